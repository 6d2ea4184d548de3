package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"silt/internal/diag"
)

func severityColor(sev diag.Severity) *color.Color {
	switch sev {
	case diag.SevError:
		return color.New(color.FgRed, color.Bold)
	case diag.SevWarning:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgCyan)
	}
}

// printDiagnostics renders the bag's warnings and errors one per line.
// Informational entries never print here (timings have their own summary),
// and quiet narrows the output to errors only.
func printDiagnostics(w io.Writer, bag *diag.Bag, useColor, quiet bool) {
	if bag == nil || bag.Len() == 0 {
		return
	}
	bag.Sort()
	for _, d := range bag.Items() {
		if d.Severity < diag.SevWarning {
			continue
		}
		if quiet && d.Severity < diag.SevError {
			continue
		}
		c := severityColor(d.Severity)
		if useColor {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		fmt.Fprintf(w, "%s %s %s: %s\n", c.Sprint(d.Severity.String()), d.Code.ID(), d.Pos, d.Message)
	}
}

// useColorOn resolves the --color mode against whether out is a terminal.
func useColorOn(mode string, out *os.File) bool {
	switch mode {
	case "on":
		return true
	case "off":
		return false
	default:
		return isTerminal(out)
	}
}
