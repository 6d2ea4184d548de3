package ui_test

import (
	"strings"
	"testing"

	"silt/internal/diag"
	"silt/internal/driver"
	"silt/internal/report"
	"silt/internal/ui"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"short.lua", 20, "short.lua"},
		{"averylongdirectoryname/file.lua", 14, "averylongdi..."},
		{"abc", 0, "abc"},
		{"abcdef", 2, "ab"},
		// Decomposed accents must come back composed so cell widths hold.
		{"e\u0301tude.lua", 9, "\u00e9tude.lua"},
	}
	for _, tt := range tests {
		if got := ui.Truncate(tt.in, tt.width); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}

func summaryResult() *driver.Result {
	rep := report.New()
	rep.Functions = append(rep.Functions,
		report.Function{
			Source:     "@demo.lua",
			ReturnKind: report.ReturnTable,
			CallSites: []report.CallSite{
				{Line: 2, Kind: report.CallGlobal, Callee: "print", ArgCount: 1},
			},
		},
		report.Function{
			Source:      "@demo.lua",
			LineDefined: 4,
			ParamCount:  2,
			ReturnKind:  report.ReturnConstant,
		},
	)
	rep.Globals = append(rep.Globals,
		report.Global{Name: "start", IsFunction: true, FunctionIndex: 1},
		report.Global{Name: "limit", FunctionIndex: -1},
	)
	bag := diag.NewBag(4)
	bag.Add(diag.NewWarning(diag.AnaDebugInfoStripped, diag.Pos{Chunk: "@demo.lua", PC: -1}, "debug info stripped"))
	return &driver.Result{
		Path:   "demo.lua",
		JSON:   []byte(rep.JSON()),
		Bag:    bag,
		Cached: true,
	}
}

func TestRenderSummary(t *testing.T) {
	out, err := ui.RenderSummary(summaryResult(), 100)
	if err != nil {
		t.Fatalf("RenderSummary: %v", err)
	}
	for _, want := range []string{
		"demo.lua",
		"lua 5.4.7_rc4",
		"(cached)",
		"functions 2, globals 2, call sites 1",
		"warnings 1",
		"table",
		"constant",
		"@demo.lua:4",
		"start(), limit",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestRenderSummaryBadJSON(t *testing.T) {
	res := &driver.Result{Path: "x.lua", JSON: []byte("{")}
	if _, err := ui.RenderSummary(res, 80); err == nil {
		t.Fatal("expected a decode error for malformed report JSON")
	}
}
