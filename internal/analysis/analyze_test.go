package analysis_test

import (
	"testing"

	"silt/internal/analysis"
	"silt/internal/diag"
	"silt/internal/luac"
	"silt/internal/report"
	"silt/internal/testkit"
)

func TestDescribeFunction(t *testing.T) {
	p := &luac.Proto{
		Source:          "@mod.lua",
		LineDefined:     3,
		LastLineDefined: 9,
		NumParams:       2,
		IsVararg:        true,
		LocVars: []luac.LocVar{
			{Name: "self", EndPC: 4},
			{Name: "opts", EndPC: 4},
		},
		Upvalues: []luac.Upvalue{
			{Name: "_ENV", InStack: true},
			{},
		},
		Consts: []any{"id", int64(42), 2.5, true, nil},
	}
	rep := analysis.Analyze(p)
	if len(rep.Functions) != 1 {
		t.Fatalf("got %d functions, want 1", len(rep.Functions))
	}
	fn := rep.Functions[0]

	if fn.Source != "@mod.lua" || fn.LineDefined != 3 || fn.LastLine != 9 {
		t.Fatalf("identity = %s:%d-%d", fn.Source, fn.LineDefined, fn.LastLine)
	}
	if fn.ParamCount != 2 || !fn.IsVararg {
		t.Fatalf("params = %d vararg=%v", fn.ParamCount, fn.IsVararg)
	}
	if len(fn.ParamNames) != 2 || fn.ParamNames[0] != "self" || fn.ParamNames[1] != "opts" {
		t.Fatalf("ParamNames = %v", fn.ParamNames)
	}
	if !fn.IsMethod {
		t.Fatal("first parameter self should mark the function a method")
	}
	if len(fn.UpvalueNames) != 2 || fn.UpvalueNames[0] != "_ENV" || fn.UpvalueNames[1] != "(?)" {
		t.Fatalf("UpvalueNames = %v", fn.UpvalueNames)
	}
	if fn.ReturnKind != report.ReturnUnknown {
		t.Fatalf("ReturnKind = %v, want unknown for an empty body", fn.ReturnKind)
	}

	wantConsts := []report.Constant{
		{Kind: report.ConstString, Str: "id"},
		{Kind: report.ConstInteger, Int: 42},
		{Kind: report.ConstFloat, Float: 2.5},
		{Kind: report.ConstBool, Bool: true},
		{Kind: report.ConstNil},
	}
	if len(fn.Constants) != len(wantConsts) {
		t.Fatalf("got %d constants, want %d", len(fn.Constants), len(wantConsts))
	}
	for i, want := range wantConsts {
		if fn.Constants[i] != want {
			t.Fatalf("Constants[%d] = %+v, want %+v", i, fn.Constants[i], want)
		}
	}
}

func TestUnnamedParameters(t *testing.T) {
	p := &luac.Proto{
		Source:    "@stripped.lua",
		NumParams: 2,
	}
	rep := analysis.Analyze(p)
	fn := rep.Functions[0]
	if len(fn.ParamNames) != 2 || fn.ParamNames[0] != "(?)" || fn.ParamNames[1] != "(?)" {
		t.Fatalf("ParamNames = %v, want placeholders", fn.ParamNames)
	}
	if fn.IsMethod {
		t.Fatal("placeholder parameter must not mark a method")
	}
}

func TestPreorderWalk(t *testing.T) {
	grandchild := &luac.Proto{Source: "@tree.lua", LineDefined: 3}
	c1 := &luac.Proto{Source: "@tree.lua", LineDefined: 2, Protos: []*luac.Proto{grandchild}}
	c2 := &luac.Proto{Source: "@tree.lua", LineDefined: 8}
	root := &luac.Proto{Source: "@tree.lua", Protos: []*luac.Proto{c1, c2}}

	rep := analysis.Analyze(root)
	if len(rep.Functions) != 4 {
		t.Fatalf("got %d functions, want 4", len(rep.Functions))
	}
	lines := []int{
		rep.Functions[0].LineDefined,
		rep.Functions[1].LineDefined,
		rep.Functions[2].LineDefined,
		rep.Functions[3].LineDefined,
	}
	if lines[0] != 0 || lines[1] != 2 || lines[2] != 3 || lines[3] != 8 {
		t.Fatalf("preorder lines = %v", lines)
	}

	if got := rep.Functions[0].ChildProtoIndices; len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Fatalf("root children = %v, want [1 3]", got)
	}
	if got := rep.Functions[1].ChildProtoIndices; len(got) != 1 || got[0] != 2 {
		t.Fatalf("first child children = %v, want [2]", got)
	}
	if got := rep.Functions[3].ChildProtoIndices; len(got) != 0 {
		t.Fatalf("leaf children = %v, want none", got)
	}
}

func TestClosureRecords(t *testing.T) {
	capturing := &luac.Proto{
		Source:      "@clo.lua",
		LineDefined: 5,
		Upvalues: []luac.Upvalue{
			{Name: "_ENV", InStack: true},
			{Name: "count"},
		},
	}
	plain := &luac.Proto{Source: "@clo.lua", LineDefined: 9}
	root := &luac.Proto{
		Source: "@clo.lua",
		Protos: []*luac.Proto{capturing, plain},
		Code: []luac.Instruction{
			luac.ABx(luac.OpClosure, 0, 0),
			luac.ABx(luac.OpClosure, 1, 1),
			luac.ABC(luac.OpReturn0, 0, 0, 0, false),
		},
	}
	rep := analysis.Analyze(root)
	fn := rep.Functions[0]

	want := report.Closure{LineDefined: 5, UpvalueCount: 2}
	if len(fn.Closures) != 1 || fn.Closures[0] != want {
		t.Fatalf("Closures = %+v, want [%+v]", fn.Closures, want)
	}
	if !fn.Table.ContainsClosures {
		t.Fatal("ContainsClosures should be set by a capturing child")
	}
}

func TestGlobals(t *testing.T) {
	t.Run("plain value", func(t *testing.T) {
		p := &luac.Proto{
			Source: "@glob.lua",
			Consts: []any{"VERSION", "1.2"},
			Code: []luac.Instruction{
				luac.ABx(luac.OpLoadK, 1, 1),
				luac.ABC(luac.OpSetTabUp, 0, 0, 1, false),
				luac.ABC(luac.OpReturn0, 0, 0, 0, false),
			},
		}
		rep := analysis.Analyze(p)
		want := report.Global{Name: "VERSION", FunctionIndex: -1}
		if len(rep.Globals) != 1 || rep.Globals[0] != want {
			t.Fatalf("Globals = %+v, want [%+v]", rep.Globals, want)
		}
	})

	t.Run("constant store skips the closure scan", func(t *testing.T) {
		p := &luac.Proto{
			Source: "@glob.lua",
			Consts: []any{"LIMIT", int64(8)},
			Code: []luac.Instruction{
				luac.ABx(luac.OpClosure, 1, 0),
				luac.ABC(luac.OpSetTabUp, 0, 0, 1, true),
				luac.ABC(luac.OpReturn0, 0, 0, 0, false),
			},
			Protos: []*luac.Proto{{Source: "@glob.lua", LineDefined: 1}},
		}
		rep := analysis.Analyze(p)
		if len(rep.Globals) != 1 || rep.Globals[0].IsFunction {
			t.Fatalf("Globals = %+v, want one non-function entry", rep.Globals)
		}
	})

	t.Run("function global links to its record", func(t *testing.T) {
		child := &luac.Proto{
			Source:      "@glob.lua",
			LineDefined: 10,
			Upvalues:    []luac.Upvalue{{Name: "_ENV", InStack: true}},
		}
		p := &luac.Proto{
			Source: "@glob.lua",
			Consts: []any{"init"},
			Protos: []*luac.Proto{child},
			Code: []luac.Instruction{
				luac.ABx(luac.OpClosure, 1, 0),
				luac.ABC(luac.OpSetTabUp, 0, 0, 1, false),
				luac.ABC(luac.OpReturn0, 0, 0, 0, false),
			},
		}
		rep := analysis.Analyze(p)
		want := report.Global{Name: "init", IsFunction: true, FunctionIndex: 1}
		if len(rep.Globals) != 1 || rep.Globals[0] != want {
			t.Fatalf("Globals = %+v, want [%+v]", rep.Globals, want)
		}
	})

	t.Run("same line closures link to distinct records", func(t *testing.T) {
		a := &luac.Proto{Source: "@glob.lua", LineDefined: 7, Upvalues: []luac.Upvalue{{Name: "_ENV"}}}
		b := &luac.Proto{Source: "@glob.lua", LineDefined: 7, Upvalues: []luac.Upvalue{{Name: "_ENV"}}}
		p := &luac.Proto{
			Source: "@glob.lua",
			Consts: []any{"f", "g"},
			Protos: []*luac.Proto{a, b},
			Code: []luac.Instruction{
				luac.ABx(luac.OpClosure, 1, 0),
				luac.ABC(luac.OpSetTabUp, 0, 0, 1, false),
				luac.ABx(luac.OpClosure, 1, 1),
				luac.ABC(luac.OpSetTabUp, 0, 1, 1, false),
				luac.ABC(luac.OpReturn0, 0, 0, 0, false),
			},
		}
		rep := analysis.Analyze(p)
		if len(rep.Globals) != 2 {
			t.Fatalf("got %d globals, want 2", len(rep.Globals))
		}
		if rep.Globals[0].FunctionIndex != 1 || rep.Globals[1].FunctionIndex != 2 {
			t.Fatalf("links = %d/%d, want 1/2",
				rep.Globals[0].FunctionIndex, rep.Globals[1].FunctionIndex)
		}
	})

	t.Run("reassignment promotes without relinking", func(t *testing.T) {
		child := &luac.Proto{Source: "@glob.lua", LineDefined: 4}
		p := &luac.Proto{
			Source: "@glob.lua",
			Consts: []any{"handler"},
			Protos: []*luac.Proto{child},
			Code: []luac.Instruction{
				luac.AsBx(luac.OpLoadI, 1, 0),
				luac.ABC(luac.OpSetTabUp, 0, 0, 1, false),
				luac.ABx(luac.OpClosure, 1, 0),
				luac.ABC(luac.OpSetTabUp, 0, 0, 1, false),
				luac.ABC(luac.OpReturn0, 0, 0, 0, false),
			},
		}
		rep := analysis.Analyze(p)
		want := report.Global{Name: "handler", IsFunction: true, FunctionIndex: -1}
		if len(rep.Globals) != 1 || rep.Globals[0] != want {
			t.Fatalf("Globals = %+v, want [%+v]", rep.Globals, want)
		}
	})

	t.Run("closure index out of range still marks a function", func(t *testing.T) {
		p := &luac.Proto{
			Source: "@glob.lua",
			Consts: []any{"broken"},
			Code: []luac.Instruction{
				luac.ABx(luac.OpClosure, 1, 3),
				luac.ABC(luac.OpSetTabUp, 0, 0, 1, false),
				luac.ABC(luac.OpReturn0, 0, 0, 0, false),
			},
		}
		rep := analysis.Analyze(p)
		want := report.Global{Name: "broken", IsFunction: true, FunctionIndex: -1}
		if len(rep.Globals) != 1 || rep.Globals[0] != want {
			t.Fatalf("Globals = %+v, want [%+v]", rep.Globals, want)
		}
	})

	t.Run("stores through other upvalues are not globals", func(t *testing.T) {
		p := &luac.Proto{
			Source: "@glob.lua",
			Consts: []any{"field"},
			Upvalues: []luac.Upvalue{
				{Name: "_ENV", InStack: true},
				{Name: "M"},
			},
			Code: []luac.Instruction{
				luac.AsBx(luac.OpLoadI, 1, 0),
				luac.ABC(luac.OpSetTabUp, 1, 0, 1, false),
				luac.ABC(luac.OpReturn0, 0, 0, 0, false),
			},
		}
		rep := analysis.Analyze(p)
		if len(rep.Globals) != 0 {
			t.Fatalf("Globals = %+v, want none", rep.Globals)
		}
	})

	t.Run("nested definitions surface at the report root", func(t *testing.T) {
		child := &luac.Proto{
			Source: "@glob.lua",
			Consts: []any{"inner"},
			Code: []luac.Instruction{
				luac.AsBx(luac.OpLoadI, 0, 1),
				luac.ABC(luac.OpSetTabUp, 0, 0, 0, false),
				luac.ABC(luac.OpReturn0, 0, 0, 0, false),
			},
		}
		p := &luac.Proto{
			Source: "@glob.lua",
			Protos: []*luac.Proto{child},
			Code: []luac.Instruction{
				luac.ABx(luac.OpClosure, 0, 0),
				luac.ABC(luac.OpReturn0, 0, 0, 0, false),
			},
		}
		rep := analysis.Analyze(p)
		if len(rep.Globals) != 1 || rep.Globals[0].Name != "inner" {
			t.Fatalf("Globals = %+v, want the nested definition", rep.Globals)
		}
	})
}

func TestVarargUse(t *testing.T) {
	used := &luac.Proto{
		Source:   "@va.lua",
		IsVararg: true,
		Code: []luac.Instruction{
			luac.ABC(luac.OpVarargPrep, 0, 0, 0, false),
			luac.ABC(luac.OpVararg, 0, 0, 0, false),
			luac.ABC(luac.OpReturn, 0, 0, 0, false),
		},
	}
	if rep := analysis.Analyze(used); !rep.Functions[0].IsVarargUsed {
		t.Fatal("VARARG in the body should set IsVarargUsed")
	}

	unused := &luac.Proto{
		Source:   "@va.lua",
		IsVararg: true,
		Code: []luac.Instruction{
			luac.ABC(luac.OpVarargPrep, 0, 0, 0, false),
			luac.ABC(luac.OpReturn0, 0, 0, 0, false),
		},
	}
	if rep := analysis.Analyze(unused); rep.Functions[0].IsVarargUsed {
		t.Fatal("VARARGPREP alone must not set IsVarargUsed")
	}
}

func TestAnalyzeDiagnostics(t *testing.T) {
	hasCode := func(bag *diag.Bag, code diag.Code) bool {
		for _, d := range bag.Items() {
			if d.Code == code {
				return true
			}
		}
		return false
	}

	t.Run("stripped debug info", func(t *testing.T) {
		bag := diag.NewBag(16)
		p := &luac.Proto{
			Source: "@s.lua",
			Code: []luac.Instruction{
				luac.ABC(luac.OpReturn0, 0, 0, 0, false),
			},
		}
		analysis.AnalyzeWithOptions(p, analysis.Options{Diags: bag})
		if !hasCode(bag, diag.AnaDebugInfoStripped) {
			t.Fatalf("missing stripped-debug warning, got %+v", bag.Items())
		}
	})

	t.Run("line info suppresses the stripped warning", func(t *testing.T) {
		bag := diag.NewBag(16)
		p := &luac.Proto{
			Source:   "@s.lua",
			LineInfo: []int8{1},
			Code: []luac.Instruction{
				luac.ABC(luac.OpReturn0, 0, 0, 0, false),
			},
		}
		analysis.AnalyzeWithOptions(p, analysis.Options{Diags: bag})
		if hasCode(bag, diag.AnaDebugInfoStripped) {
			t.Fatalf("unexpected stripped-debug warning: %+v", bag.Items())
		}
	})

	t.Run("missing size continuation", func(t *testing.T) {
		bag := diag.NewBag(16)
		p := &luac.Proto{
			Source:   "@s.lua",
			LineInfo: []int8{1, 0},
			Code: []luac.Instruction{
				luac.ABC(luac.OpNewTable, 0, 0, 2, true),
				luac.ABC(luac.OpReturn0, 0, 0, 0, false),
			},
		}
		analysis.AnalyzeWithOptions(p, analysis.Options{Diags: bag})
		if !hasCode(bag, diag.AnaMalformedSizeHint) {
			t.Fatalf("missing size-hint warning, got %+v", bag.Items())
		}
	})

	t.Run("nil bag stays silent", func(t *testing.T) {
		p := &luac.Proto{
			Source: "@s.lua",
			Code: []luac.Instruction{
				luac.ABC(luac.OpNewTable, 0, 0, 2, true),
				luac.ABC(luac.OpReturn0, 0, 0, 0, false),
			},
		}
		analysis.Analyze(p)
	})
}

func TestAnalyzeNilRoot(t *testing.T) {
	rep := analysis.Analyze(nil)
	if rep == nil || len(rep.Functions) != 0 || rep.LuaVersion != report.LuaVersion {
		t.Fatalf("nil root report = %+v", rep)
	}
}

// A module-shaped tree: the chunk defines one global function whose body
// calls out, reads globals, and returns a fresh table of closures.
func TestReportInvariants(t *testing.T) {
	helper := &luac.Proto{
		Source:      "@module.lua",
		LineDefined: 4,
		Upvalues:    []luac.Upvalue{{Name: "count"}},
		Code: []luac.Instruction{
			luac.ABC(luac.OpGetUpval, 0, 0, 0, false),
			luac.ABC(luac.OpReturn1, 0, 0, 0, false),
		},
	}
	build := &luac.Proto{
		Source:          "@module.lua",
		LineDefined:     2,
		LastLineDefined: 12,
		NumParams:       1,
		LocVars:         []luac.LocVar{{Name: "opts", EndPC: 8}},
		Upvalues:        []luac.Upvalue{{Name: "_ENV", InStack: true}},
		Consts:          []any{"assert", "field"},
		Protos:          []*luac.Proto{helper},
		Code: []luac.Instruction{
			luac.ABC(luac.OpGetTabUp, 1, 0, 0, false),
			luac.ABC(luac.OpCall, 1, 2, 1, false),
			luac.ABC(luac.OpNewTable, 1, 1, 2, false),
			luac.ABx(luac.OpClosure, 2, 0),
			luac.ABC(luac.OpSetField, 1, 1, 2, false),
			luac.ABC(luac.OpReturn1, 1, 0, 0, false),
		},
	}
	root := &luac.Proto{
		Source:   "@module.lua",
		IsVararg: true,
		Consts:   []any{"build"},
		Protos:   []*luac.Proto{build},
		Upvalues: []luac.Upvalue{{Name: "_ENV", InStack: true}},
		Code: []luac.Instruction{
			luac.ABC(luac.OpVarargPrep, 0, 0, 0, false),
			luac.ABx(luac.OpClosure, 0, 0),
			luac.ABC(luac.OpSetTabUp, 0, 0, 0, false),
			luac.ABC(luac.OpReturn0, 0, 0, 0, false),
		},
	}

	rep := analysis.Analyze(root)
	if err := testkit.CheckReportInvariants(rep); err != nil {
		t.Fatalf("invariants: %v", err)
	}

	if len(rep.Functions) != 3 {
		t.Fatalf("got %d functions, want 3", len(rep.Functions))
	}
	if got := rep.Functions[1].ReturnKind; got != report.ReturnTable {
		t.Fatalf("build returns %v, want table", got)
	}
	if !rep.Functions[1].Table.ContainsClosures {
		t.Fatal("build's table should contain closures")
	}
	want := report.Global{Name: "build", IsFunction: true, FunctionIndex: 1}
	if len(rep.Globals) != 1 || rep.Globals[0] != want {
		t.Fatalf("Globals = %+v, want [%+v]", rep.Globals, want)
	}
}
