package undump_test

import (
	"reflect"
	"strings"
	"testing"

	"silt/internal/luac"
	"silt/internal/testkit"
	"silt/internal/undump"
)

func chunkFixture() *luac.Proto {
	child := &luac.Proto{
		Source:          "@fixture.lua",
		LineDefined:     2,
		LastLineDefined: 4,
		NumParams:       2,
		MaxStackSize:    3,
		Code: []luac.Instruction{
			luac.ABC(luac.OpAdd, 2, 0, 1, false),
			luac.ABC(luac.OpMMBin, 0, 1, 6, false),
			luac.ABC(luac.OpReturn1, 2, 0, 0, false),
		},
		Upvalues: []luac.Upvalue{{Name: "_ENV", InStack: false, Index: 0, Kind: 0}},
		LineInfo: []int8{1, 0, 1},
		LocVars: []luac.LocVar{
			{Name: "a", StartPC: 0, EndPC: 3},
			{Name: "b", StartPC: 0, EndPC: 3},
		},
	}
	return &luac.Proto{
		Source:          "@fixture.lua",
		LineDefined:     0,
		LastLineDefined: 0,
		NumParams:       0,
		IsVararg:        true,
		MaxStackSize:    2,
		Code: []luac.Instruction{
			luac.ABC(luac.OpVarargPrep, 0, 0, 0, false),
			luac.ABx(luac.OpClosure, 0, 0),
			luac.ABC(luac.OpSetTabUp, 0, 0, 0, true),
			luac.ABC(luac.OpReturn0, 0, 0, 0, false),
		},
		Consts: []any{
			"add", int64(-7), 3.25, true, false, nil,
			strings.Repeat("long", 20),
		},
		Upvalues:    []luac.Upvalue{{Name: "_ENV", InStack: true, Index: 0, Kind: 0}},
		Protos:      []*luac.Proto{child},
		AbsLineInfo: []luac.AbsLine{{PC: 0, Line: 1}, {PC: 3, Line: 6}},
	}
}

func TestLoadRoundTrip(t *testing.T) {
	want := chunkFixture()
	data := testkit.EncodeChunk(want)

	got, err := undump.Load(data, "@fixture.lua")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("loaded tree differs\n got: %+v\nwant: %+v", got, want)
	}
}

// The child in the fixture shares the parent's source, so the encoder dumps
// an absent string and the loader must inherit.
func TestLoadSourceInheritance(t *testing.T) {
	got, err := undump.Load(testkit.EncodeChunk(chunkFixture()), "@fixture.lua")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Protos[0].Source != got.Source {
		t.Fatalf("child source %q, want inherited %q", got.Protos[0].Source, got.Source)
	}
}

// Every proper prefix of a valid chunk must fail cleanly: no panic, no
// partial prototype.
func TestLoadRejectsTruncation(t *testing.T) {
	data := testkit.EncodeChunk(chunkFixture())
	for i := 0; i < len(data); i++ {
		p, err := undump.Load(data[:i], "trunc")
		if err == nil {
			t.Fatalf("prefix of %d bytes loaded without error", i)
		}
		if p != nil {
			t.Fatalf("prefix of %d bytes returned a prototype alongside %v", i, err)
		}
	}
}

func TestLoadHeaderErrors(t *testing.T) {
	valid := testkit.EncodeChunk(chunkFixture())

	corrupt := func(offset int, b byte) []byte {
		data := append([]byte(nil), valid...)
		data[offset] = b
		return data
	}

	cases := []struct {
		name    string
		data    []byte
		wantSub string
	}{
		{"signature", corrupt(0, 'X'), "not a binary chunk"},
		{"version", corrupt(4, 0x53), "version mismatch"},
		{"format", corrupt(5, 9), "format mismatch"},
		{"conversion marker", corrupt(6, 0), "conversion marker"},
		{"instruction size", corrupt(12, 8), "instruction size mismatch"},
		{"integer check", corrupt(15, 0xFF), "integer check failed"},
		{"number check", corrupt(23, 0xFF), "number check failed"},
	}
	for _, tc := range cases {
		if _, err := undump.Load(tc.data, "bad"); err == nil {
			t.Errorf("%s: corruption accepted", tc.name)
		} else if !strings.Contains(err.Error(), tc.wantSub) {
			t.Errorf("%s: error %q does not mention %q", tc.name, err, tc.wantSub)
		}
	}
}

func TestLoadUnknownConstantTag(t *testing.T) {
	w := &testkit.ChunkWriter{}
	w.Header()
	w.Byte(0)
	w.Str("@bad.lua", true)
	w.Varint(0) // linedefined
	w.Varint(0) // lastlinedefined
	w.Byte(0)   // numparams
	w.Byte(1)   // vararg
	w.Byte(2)   // maxstack
	w.Varint(1) // one instruction
	w.Raw([]byte{0x47, 0, 0, 0})
	w.Varint(1)
	w.Byte(0x2F) // no such constant tag

	if _, err := undump.Load(w.Bytes(), "bad"); err == nil ||
		!strings.Contains(err.Error(), "constant tag") {
		t.Fatalf("unknown tag not rejected: %v", err)
	}
}

func TestLoadUpvalueCountMismatch(t *testing.T) {
	p := chunkFixture()
	data := testkit.EncodeChunk(p)
	// The byte right after the 31-byte header declares the main closure's
	// upvalue count.
	data[31] = 4
	if _, err := undump.Load(data, "bad"); err == nil ||
		!strings.Contains(err.Error(), "upvalues") {
		t.Fatalf("upvalue count mismatch not rejected: %v", err)
	}
}

func TestLoadOversizedVectorRejected(t *testing.T) {
	w := &testkit.ChunkWriter{}
	w.Header()
	w.Byte(0)
	w.Str("@bad.lua", true)
	w.Varint(0)
	w.Varint(0)
	w.Byte(0)
	w.Byte(1)
	w.Byte(2)
	w.Varint(1 << 40) // instruction count far beyond the input

	if _, err := undump.Load(w.Bytes(), "bad"); err == nil ||
		!strings.Contains(err.Error(), "count") {
		t.Fatalf("oversized vector not rejected: %v", err)
	}
}

func TestLoadNestingLimit(t *testing.T) {
	leaf := &luac.Proto{
		Source:       "@deep.lua",
		MaxStackSize: 2,
		Code:         []luac.Instruction{luac.ABC(luac.OpReturn0, 0, 0, 0, false)},
	}
	root := leaf
	for i := 0; i < 220; i++ {
		root = &luac.Proto{
			Source:       "@deep.lua",
			MaxStackSize: 2,
			Code:         []luac.Instruction{luac.ABC(luac.OpReturn0, 0, 0, 0, false)},
			Protos:       []*luac.Proto{root},
		}
	}
	if _, err := undump.Load(testkit.EncodeChunk(root), "deep"); err == nil ||
		!strings.Contains(err.Error(), "nesting") {
		t.Fatalf("deep nesting not rejected: %v", err)
	}
}

func TestLoadStrippedChunk(t *testing.T) {
	p := &luac.Proto{
		Source:       "@s.lua",
		MaxStackSize: 2,
		Code: []luac.Instruction{
			luac.ABC(luac.OpVarargPrep, 0, 0, 0, false),
			luac.ABC(luac.OpReturn0, 0, 0, 0, false),
		},
		IsVararg: true,
		Upvalues: []luac.Upvalue{{InStack: true}},
	}
	got, err := undump.Load(testkit.EncodeChunk(p), "@s.lua")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.LineInfo != nil || got.AbsLineInfo != nil || got.LocVars != nil {
		t.Fatal("stripped chunk produced debug tables")
	}
	if got.Upvalues[0].Name != "" {
		t.Fatalf("stripped upvalue has name %q", got.Upvalues[0].Name)
	}
}

func TestIsChunk(t *testing.T) {
	if !undump.IsChunk([]byte("\x1bLua rest")) {
		t.Error("signature not recognized")
	}
	if undump.IsChunk([]byte("-- lua source")) {
		t.Error("source text recognized as chunk")
	}
	if undump.IsChunk([]byte("\x1bL")) {
		t.Error("short prefix recognized as chunk")
	}
}
