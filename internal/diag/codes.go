package diag

import (
	"fmt"
)

type Code uint16

const (
	// Неизвестная ошибка - на первое время
	UnknownCode Code = 0

	// Загрузка бинарных чанков
	LoadInfo           Code = 1000
	LoadNotAChunk      Code = 1001
	LoadMalformedChunk Code = 1002

	// Внешний компилятор (luac)
	CompileInfo         Code = 2000
	CompileFailed       Code = 2001
	CompileLuacNotFound Code = 2002

	// Анализ (деградации; отчёт всё равно полный)
	AnaInfo                 Code = 3000
	AnaDebugInfoStripped    Code = 3001
	AnaMalformedSizeHint    Code = 3002
	AnaUnresolvedGlobalLink Code = 3003

	// Ошибки I/O
	IOLoadFileError Code = 4001
	IOWriteError    Code = 4002
	IOCacheError    Code = 4003

	// Observability
	ObsInfo    Code = 6000
	ObsTimings Code = 6001
)

var ( // todo расширить описания и использовать как notes
	codeDescription = map[Code]string{
		UnknownCode:             "Unknown error",
		LoadInfo:                "Chunk loading information",
		LoadNotAChunk:           "Input is not a precompiled chunk",
		LoadMalformedChunk:      "Malformed binary chunk",
		CompileInfo:             "Compiler bridge information",
		CompileFailed:           "luac compilation failed",
		CompileLuacNotFound:     "luac binary not found",
		AnaInfo:                 "Analysis information",
		AnaDebugInfoStripped:    "Debug information stripped from chunk",
		AnaMalformedSizeHint:    "Table size hint missing its continuation word",
		AnaUnresolvedGlobalLink: "Global assignment could not be linked to a function record",
		IOLoadFileError:         "I/O load file error",
		IOWriteError:            "I/O write error",
		IOCacheError:            "Report cache error",
		ObsInfo:                 "Observability information",
		ObsTimings:              "Pipeline timings",
	}
)

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("LOD%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("CMP%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("ANA%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("IO%04d", ic)
	case ic >= 6000 && ic < 7000:
		return fmt.Sprintf("OBS%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[Code(0)]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
