package ui

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"golang.org/x/text/unicode/norm"

	"silt/internal/diag"
	"silt/internal/driver"
	"silt/internal/report"
)

// Truncate shortens value to width terminal cells, ellipsizing from the
// right. Input is NFC-normalized first so width measurement sees the same
// sequences the terminal draws.
func Truncate(value string, width int) string {
	value = norm.NFC.String(value)
	if width <= 0 || runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width, "...")
}

// summaryDoc is the slice of the report wire format the summary needs. The
// report serializer writes plain JSON, so the standard decoder reads it
// back.
type summaryDoc struct {
	LuaVersion string `json:"lua_version"`
	Functions  []struct {
		Source      string `json:"source"`
		LineDefined int    `json:"line_defined"`
		ParamCount  int    `json:"param_count"`
		ReturnKind  int    `json:"return_kind"`
		CallSites   []struct {
			Callee string `json:"callee"`
		} `json:"call_sites"`
	} `json:"functions"`
	Globals []struct {
		Name       string `json:"name"`
		IsFunction bool   `json:"is_function"`
	} `json:"globals"`
}

var (
	summaryPathStyle   = lipgloss.NewStyle().Bold(true)
	summaryDimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	summaryCachedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	summaryWarnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

// RenderSummary formats one finished report for terminal display instead of
// the raw JSON document. width caps line length; <=0 means 80.
func RenderSummary(res *driver.Result, width int) (string, error) {
	if width <= 0 {
		width = 80
	}
	var doc summaryDoc
	if err := json.Unmarshal(res.JSON, &doc); err != nil {
		return "", fmt.Errorf("decode report for %s: %w", res.Path, err)
	}

	var b strings.Builder
	header := summaryPathStyle.Render(Truncate(res.Path, width-24)) +
		summaryDimStyle.Render("  lua "+doc.LuaVersion)
	if res.Cached {
		header += summaryCachedStyle.Render("  (cached)")
	}
	b.WriteString(header)
	b.WriteByte('\n')

	calls := 0
	for _, fn := range doc.Functions {
		calls += len(fn.CallSites)
	}
	warnings := 0
	if res.Bag != nil {
		for _, d := range res.Bag.Items() {
			if d.Severity == diag.SevWarning {
				warnings++
			}
		}
	}
	counts := fmt.Sprintf("  functions %d, globals %d, call sites %d",
		len(doc.Functions), len(doc.Globals), calls)
	if warnings > 0 {
		counts += summaryWarnStyle.Render(fmt.Sprintf(", warnings %d", warnings))
	}
	b.WriteString(counts)
	b.WriteByte('\n')

	nameWidth := width - 26
	if nameWidth < 12 {
		nameWidth = 12
	}
	for _, fn := range doc.Functions {
		label := fmt.Sprintf("%s:%d", fn.Source, fn.LineDefined)
		fmt.Fprintf(&b, "  %-8s  %2d params  %2d calls  %s\n",
			report.ReturnKind(fn.ReturnKind).String(),
			fn.ParamCount, len(fn.CallSites),
			Truncate(label, nameWidth))
	}

	if len(doc.Globals) > 0 {
		names := make([]string, 0, len(doc.Globals))
		for _, g := range doc.Globals {
			name := g.Name
			if g.IsFunction {
				name += "()"
			}
			names = append(names, name)
		}
		b.WriteString(summaryDimStyle.Render("  globals: " + Truncate(strings.Join(names, ", "), width-12)))
		b.WriteByte('\n')
	}

	return b.String(), nil
}
