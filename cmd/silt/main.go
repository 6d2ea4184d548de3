package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"silt/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "silt",
	Short: "Static interface reports for Lua 5.4 bytecode",
	Long: `silt inspects precompiled Lua 5.4 chunks (Diluvium dialect 5.4.7_rc4) and
reports every function's interface: parameters, return shapes, call sites,
globals, reads, and table cost estimates. Plain .lua sources are compiled
through an external luac first.`,
}

func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(disasmCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(versionCmd)

	// Глобальные флаги
	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress non-essential output")
	rootCmd.PersistentFlags().Bool("timings", false, "show per-phase timing information")
	rootCmd.PersistentFlags().Int("max-diagnostics", 100, "maximum number of diagnostics to keep per file")
	rootCmd.PersistentFlags().String("trace", "", `trace output path ("-" for stderr)`)
	rootCmd.PersistentFlags().String("trace-level", "off", "trace level (off|error|phase|detail|debug)")
	rootCmd.PersistentFlags().String("trace-mode", "stream", "trace storage (stream|ring|both); the ring dumps only on a crash")
	rootCmd.PersistentFlags().Int("trace-ring-size", 4096, "trace ring buffer capacity in events")
	rootCmd.PersistentFlags().Duration("trace-heartbeat", 0, "emit trace heartbeats at this interval (0=off)")
	rootCmd.PersistentFlags().String("cpu-profile", "", "write a CPU profile to the given path")
	rootCmd.PersistentFlags().String("mem-profile", "", "write a heap profile to the given path")
	rootCmd.PersistentFlags().String("runtime-trace", "", "write a Go runtime trace to the given path")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// isTerminal проверяет, является ли файл терминалом
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
