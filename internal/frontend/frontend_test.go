package frontend_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"silt/internal/frontend"
	"silt/internal/luac"
	"silt/internal/testkit"
	"silt/internal/undump"
)

// fixedCompiler hands back a canned chunk or error, whatever the input.
type fixedCompiler struct {
	chunk []byte
	err   error
}

func (c fixedCompiler) Compile(_ context.Context, _ []byte, _ string) ([]byte, error) {
	return c.chunk, c.err
}

func reportFixture() *luac.Proto {
	child := &luac.Proto{
		Source:      "@api.lua",
		LineDefined: 2,
		Upvalues:    []luac.Upvalue{{Name: "_ENV", InStack: true}},
		Code: []luac.Instruction{
			luac.ABC(luac.OpReturn0, 0, 0, 0, false),
		},
	}
	return &luac.Proto{
		Source:       "@api.lua",
		IsVararg:     true,
		MaxStackSize: 2,
		Consts:       []any{"start"},
		Protos:       []*luac.Proto{child},
		Upvalues:     []luac.Upvalue{{Name: "_ENV", InStack: true}},
		Code: []luac.Instruction{
			luac.ABC(luac.OpVarargPrep, 0, 0, 0, false),
			luac.ABx(luac.OpClosure, 0, 0),
			luac.ABC(luac.OpSetTabUp, 0, 0, 0, false),
			luac.ABC(luac.OpReturn0, 0, 0, 0, false),
		},
	}
}

func TestGenerateReport(t *testing.T) {
	c := fixedCompiler{chunk: testkit.EncodeChunk(reportFixture())}
	out, err := frontend.GenerateReport(context.Background(), c, []byte("ignored"), "@api.lua")
	if err != nil {
		t.Fatalf("GenerateReport: %v", err)
	}
	body := string(out)
	if !strings.HasPrefix(body, "{") || !strings.HasSuffix(strings.TrimSpace(body), "}") {
		t.Fatalf("output is not a JSON object: %q", body[:min(len(body), 60)])
	}
	for _, want := range []string{
		`"lua_version": "5.4.7_rc4"`,
		`"source": "@api.lua"`,
		`"name": "start"`,
		`"is_function": true`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("output missing %s", want)
		}
	}
}

func TestGenerateReportCompileError(t *testing.T) {
	wantErr := errors.New("syntax error near 'end'")
	out, err := frontend.GenerateReport(context.Background(), fixedCompiler{err: wantErr}, []byte("x ="), "@bad.lua")
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want the compile error", err)
	}
	if out != nil {
		t.Fatalf("partial output alongside error: %q", out)
	}
}

func TestGenerateReportBadChunk(t *testing.T) {
	out, err := frontend.GenerateReport(context.Background(),
		fixedCompiler{chunk: []byte("not a chunk at all")}, nil, "@bad.lua")
	if err == nil {
		t.Fatal("garbage chunk accepted")
	}
	if out != nil {
		t.Fatalf("partial output alongside error: %q", out)
	}
}

func TestLuacMissingBinary(t *testing.T) {
	l := &frontend.Luac{Path: "/nonexistent/silt-test-luac"}
	if _, err := l.Compile(context.Background(), []byte("return 1"), "@x.lua"); err == nil {
		t.Fatal("compile through a missing binary succeeded")
	}
}

// The remaining cases drive a real luac when one is installed.
func TestLuacCompile(t *testing.T) {
	var l frontend.Luac
	if err := l.Available(); err != nil {
		t.Skip("luac not installed; skipping compiler tests")
	}

	t.Run("chunk records the requested name", func(t *testing.T) {
		chunk, err := l.Compile(context.Background(), []byte("return 1\n"), "@demo.lua")
		if err != nil {
			t.Fatalf("Compile: %v", err)
		}
		if !undump.IsChunk(chunk) {
			t.Fatal("output does not carry the chunk signature")
		}
		root, err := undump.Load(chunk, "@demo.lua")
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if root.Source != "@demo.lua" {
			t.Fatalf("Source = %q, want @demo.lua", root.Source)
		}
	})

	t.Run("syntax error surfaces luac's message", func(t *testing.T) {
		_, err := l.Compile(context.Background(), []byte("local = nope\n"), "@broken.lua")
		if err == nil {
			t.Fatal("syntax error compiled")
		}
		if !strings.Contains(err.Error(), "luac") {
			t.Fatalf("error %q does not mention the compiler", err)
		}
	})

	t.Run("strip drops debug tables", func(t *testing.T) {
		stripped := frontend.Luac{Strip: true}
		chunk, err := stripped.Compile(context.Background(), []byte("local x = 1\nreturn x\n"), "@s.lua")
		if err != nil {
			t.Fatalf("Compile: %v", err)
		}
		root, err := undump.Load(chunk, "@s.lua")
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if len(root.LocVars) != 0 {
			t.Fatalf("stripped chunk still has %d locals", len(root.LocVars))
		}
	})
}
