package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"silt/internal/frontend"
	"silt/internal/luac"
	"silt/internal/undump"
)

var disasmCmd = &cobra.Command{
	Use:   "disasm [flags] <file.lua|file.luac>",
	Short: "Disassemble a Lua chunk",
	Long: `Disasm decodes a precompiled chunk (compiling a plain .lua source through
luac first) and prints a readable instruction listing with constants,
upvalues and nested prototypes.`,
	Args: cobra.ExactArgs(1),
	RunE: runDisasm,
}

func init() {
	disasmCmd.Flags().String("luac", "", "luac binary for compiling .lua inputs (default: luac from PATH)")
}

func runDisasm(cmd *cobra.Command, args []string) error {
	target := args[0]

	luacPath, err := cmd.Flags().GetString("luac")
	if err != nil {
		return fmt.Errorf("failed to get luac flag: %w", err)
	}
	if luacPath == "" {
		manifest, found, err := loadProjectManifest(manifestBase(target))
		if err != nil {
			return err
		}
		if found {
			luacPath = manifest.luacPath()
		}
	}

	traceCleanup, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	defer traceCleanup()
	defer dumpTraceOnPanic(cmd)

	data, err := os.ReadFile(target)
	if err != nil {
		return fmt.Errorf("read %s: %w", target, err)
	}

	chunk := data
	if !undump.IsChunk(data) {
		comp := &frontend.Luac{Path: luacPath}
		chunk, err = comp.Compile(cmd.Context(), data, target)
		if err != nil {
			return fmt.Errorf("compile %s: %w", target, err)
		}
	}

	root, err := undump.Load(chunk, target)
	if err != nil {
		return fmt.Errorf("load %s: %w", target, err)
	}

	fmt.Fprint(os.Stdout, luac.Disassemble(root))
	return nil
}
