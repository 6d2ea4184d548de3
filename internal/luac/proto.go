package luac

import "sort"

// Upvalue describes one captured upvalue of a prototype.
type Upvalue struct {
	Name    string // "" when debug info is stripped
	InStack bool   // captured from the enclosing function's stack
	Index   uint8  // register or upvalue index in the enclosing function
	Kind    uint8  // variable kind tag from the chunk
}

// LocVar is a debug record for one named local variable, parameters included.
type LocVar struct {
	Name    string
	StartPC int32 // first instruction where the variable is live
	EndPC   int32 // first instruction where the variable is dead
}

// AbsLine is one {pc, line} checkpoint of the sparse absolute line table.
type AbsLine struct {
	PC   int32
	Line int32
}

// Proto is one compiled function prototype. The loader builds the full tree
// rooted at the main chunk; children appear in Protos in declaration order,
// which is also the order CLOSURE operands index them.
type Proto struct {
	Source          string
	LineDefined     int32
	LastLineDefined int32
	NumParams       uint8
	IsVararg        bool
	MaxStackSize    uint8
	Code            []Instruction
	Consts          []any // nil, bool, int64, float64, or string
	Upvalues        []Upvalue
	Protos          []*Proto

	// Debug tables. All three may be empty when the chunk was stripped.
	LineInfo    []int8
	AbsLineInfo []AbsLine
	LocVars     []LocVar
}

// LineForPC resolves the source line of the instruction at pc. The sparse
// checkpoint table wins when present; otherwise the per-instruction deltas
// are summed from LineDefined. Stripped chunks yield 0.
func (p *Proto) LineForPC(pc int) int {
	if len(p.AbsLineInfo) > 0 {
		n := sort.Search(len(p.AbsLineInfo), func(i int) bool {
			return p.AbsLineInfo[i].PC > int32(pc)
		})
		if n == 0 {
			return 0
		}
		return int(p.AbsLineInfo[n-1].Line)
	}
	if len(p.LineInfo) > 0 && pc < len(p.Code) {
		line := int(p.LineDefined)
		for k := 0; k <= pc && k < len(p.LineInfo); k++ {
			line += int(p.LineInfo[k])
		}
		return line
	}
	return 0
}

// StringConst returns the constant at index i when it is a string.
func (p *Proto) StringConst(i int) (string, bool) {
	if i < 0 || i >= len(p.Consts) {
		return "", false
	}
	s, ok := p.Consts[i].(string)
	return s, ok
}

// LocalName returns the declared name of local slot i, or "" when the debug
// record is missing. Parameter slots come first, so LocalName(0) is the first
// parameter's name.
func (p *Proto) LocalName(i int) string {
	if i < 0 || i >= len(p.LocVars) {
		return ""
	}
	return p.LocVars[i].Name
}

// UpvalueName returns the debug name of upvalue i, or "" when stripped.
func (p *Proto) UpvalueName(i int) string {
	if i < 0 || i >= len(p.Upvalues) {
		return ""
	}
	return p.Upvalues[i].Name
}
