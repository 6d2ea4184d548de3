package fuzztests

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"silt/internal/luac"
	"silt/internal/testkit"
)

const (
	maxSeedBytes = 64 << 10 // 64 KiB cap for the seed corpus
)

func addCorpusSeeds(f *testing.F) {
	addTestdataSeeds(f)
	addSyntheticSeeds(f)
}

// addTestdataSeeds walks a repository testdata tree for precompiled chunks.
// The tree is optional; the synthetic seeds below are always present.
func addTestdataSeeds(f *testing.F) {
	root := filepath.Join("..", "..", "testdata")
	if _, err := os.Stat(root); err != nil {
		return
	}
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if d.IsDir() || filepath.Ext(path) != ".luac" {
			return nil
		}
		// #nosec G304 -- path comes from repository testdata walk
		src, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		f.Add(clampSeed(src))
		return nil
	})
}

// addSyntheticSeeds encodes a few well-formed chunks and a set of
// deterministic corruptions of them. The corruptions steer the mutator
// toward the interesting failure surface: headers that almost parse and
// bodies that lie about their sizes.
func addSyntheticSeeds(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte("\x1bLua"))
	f.Add([]byte("print('not a binary chunk')\n"))

	for _, proto := range []*luac.Proto{minimalProto(), strippedProto(), nestedProto()} {
		chunk := testkit.EncodeChunk(proto)
		f.Add(chunk)

		for _, n := range []int{1, len(chunk) / 2, len(chunk) - 1} {
			if n > 0 && n < len(chunk) {
				f.Add(clampSeed(chunk[:n]))
			}
		}

		flipped := clampSeed(chunk)
		if len(flipped) > 4 {
			flipped[4] ^= 0xFF // version byte
			f.Add(flipped)
		}
		resized := clampSeed(chunk)
		if len(resized) > 32 {
			resized[32] ^= 0x7F // somewhere inside the root function body
			f.Add(resized)
		}
	}
}

// minimalProto is the empty vararg main chunk luac emits for an empty file.
func minimalProto() *luac.Proto {
	return &luac.Proto{
		Source:          "@seed.lua",
		LastLineDefined: 1,
		IsVararg:        true,
		MaxStackSize:    2,
		Code: []luac.Instruction{
			luac.ABC(luac.OpVarargPrep, 0, 0, 0, false),
			luac.ABC(luac.OpReturn0, 0, 0, 0, false),
		},
		Upvalues: []luac.Upvalue{{Name: "_ENV", InStack: true}},
		LineInfo: []int8{1, 0},
	}
}

// strippedProto carries no debug tables at all.
func strippedProto() *luac.Proto {
	p := minimalProto()
	p.Upvalues = []luac.Upvalue{{InStack: true}}
	p.LineInfo = nil
	return p
}

// nestedProto defines one global function returning a constant, which drags
// the closure, constant pool, and global tracking paths into the corpus.
func nestedProto() *luac.Proto {
	child := &luac.Proto{
		Source:          "@seed.lua",
		LineDefined:     1,
		LastLineDefined: 3,
		NumParams:       1,
		MaxStackSize:    2,
		Code: []luac.Instruction{
			luac.ABx(luac.OpLoadK, 1, 0),
			luac.ABC(luac.OpReturn1, 1, 0, 0, false),
		},
		Consts:   []any{"answer"},
		Upvalues: []luac.Upvalue{{Name: "_ENV", Index: 0}},
		LineInfo: []int8{1, 0},
		LocVars:  []luac.LocVar{{Name: "n", StartPC: 0, EndPC: 2}},
	}
	root := minimalProto()
	root.MaxStackSize = 3
	root.Code = []luac.Instruction{
		luac.ABC(luac.OpVarargPrep, 0, 0, 0, false),
		luac.ABx(luac.OpClosure, 0, 0),
		luac.ABC(luac.OpSetTabUp, 0, 0, 0, false),
		luac.ABC(luac.OpReturn0, 0, 0, 0, false),
	}
	root.Consts = []any{"start"}
	root.Protos = []*luac.Proto{child}
	root.LineInfo = []int8{1, 0, 0, 0}
	return root
}

func clampSeed(src []byte) []byte {
	if len(src) <= maxSeedBytes {
		return append([]byte(nil), src...)
	}
	return append([]byte(nil), src[:maxSeedBytes]...)
}
