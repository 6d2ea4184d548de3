package luac_test

import (
	"strings"
	"testing"

	"silt/internal/luac"
)

func disasmFixture() *luac.Proto {
	child := &luac.Proto{
		Source:          "demo.lua",
		LineDefined:     3,
		LastLineDefined: 5,
		NumParams:       1,
		MaxStackSize:    2,
		Code: []luac.Instruction{
			luac.ABC(luac.OpReturn1, 0, 0, 0, false),
		},
		Upvalues: []luac.Upvalue{{Name: "_ENV"}},
	}
	return &luac.Proto{
		Source:          "demo.lua",
		LineDefined:     0,
		LastLineDefined: 0,
		IsVararg:        true,
		MaxStackSize:    3,
		Code: []luac.Instruction{
			luac.ABC(luac.OpVarargPrep, 0, 0, 0, false),
			luac.ABx(luac.OpClosure, 0, 0),
			luac.ABC(luac.OpSetTabUp, 0, 0, 0, false),
			luac.ABC(luac.OpReturn0, 0, 0, 0, false),
		},
		Consts:   []any{"answer"},
		Upvalues: []luac.Upvalue{{Name: "_ENV"}},
		Protos:   []*luac.Proto{child},
		LineInfo: []int8{1, 0, 0, 1},
	}
}

func TestDisassembleListing(t *testing.T) {
	got := luac.Disassemble(disasmFixture())

	wantFragments := []string{
		"main <demo.lua:0,0> (4 instructions)",
		"0+ params, 3 slots, 1 upvalue, 0 locals, 1 constant, 1 function",
		"VARARGPREP",
		"CLOSURE",
		"; <demo.lua:3>",
		`; _ENV["answer"]`,
		"function <demo.lua:3,5> (1 instruction)",
		"RETURN1",
	}
	for _, frag := range wantFragments {
		if !strings.Contains(got, frag) {
			t.Errorf("listing missing %q\n%s", frag, got)
		}
	}
}

func TestDisassembleNewTableComment(t *testing.T) {
	p := &luac.Proto{
		Source:       "t.lua",
		MaxStackSize: 2,
		Code: []luac.Instruction{
			luac.ABC(luac.OpNewTable, 0, 2, 5, false),
			luac.ExtraArg(0),
			luac.ABC(luac.OpReturn1, 0, 0, 0, false),
		},
	}
	got := luac.Disassemble(p)
	if !strings.Contains(got, "; 5 array, 2 hash") {
		t.Fatalf("NEWTABLE comment missing:\n%s", got)
	}
}

func TestFormatConst(t *testing.T) {
	cases := []struct {
		v    any
		want string
	}{
		{nil, "nil"},
		{true, "true"},
		{false, "false"},
		{int64(-3), "-3"},
		{1.5, "1.5"},
		{"a\"b", `"a\"b"`},
	}
	for _, tc := range cases {
		if got := luac.FormatConst(tc.v); got != tc.want {
			t.Errorf("FormatConst(%v) = %q, want %q", tc.v, got, tc.want)
		}
	}
}
