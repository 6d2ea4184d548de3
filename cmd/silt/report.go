package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"silt/internal/diag"
	"silt/internal/driver"
	"silt/internal/frontend"
	"silt/internal/ui"
)

var reportCmd = &cobra.Command{
	Use:   "report [flags] <file.lua|file.luac|directory>",
	Short: "Analyze Lua chunks and emit interface reports",
	Long: `Report decodes a precompiled chunk (compiling plain .lua sources through
luac first) and emits the interface report: functions, parameters, return
shapes, call sites, globals and table cost estimates. A directory argument
walks every .lua and .luac file under it and processes them in parallel.`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

// init registers CLI flags for the report command used by runReport.
// It configures the output format and destination, compiler selection,
// directory concurrency, disk caching and the interactive progress UI.
func init() {
	reportCmd.Flags().String("format", "json", "output format (json|pretty)")
	reportCmd.Flags().StringP("out", "o", "", "write the report to this file instead of stdout")
	reportCmd.Flags().String("out-dir", "", "write one .json report per input under this directory")
	reportCmd.Flags().Int("jobs", 0, "max parallel workers for directory processing (0=auto)")
	reportCmd.Flags().String("luac", "", "luac binary for compiling .lua inputs (default: luac from PATH)")
	reportCmd.Flags().Bool("disk-cache", false, "cache reports on disk keyed by input bytes")
	reportCmd.Flags().Bool("no-cache", false, "bypass the disk cache even when silt.toml enables it")
	reportCmd.Flags().String("ui", "auto", "interactive progress for directory batches (auto|on|off)")
}

// runReport executes the "report" command: it resolves flags against an
// optional silt.toml manifest, runs the pipeline for the given path (single
// file or directory), prints degradation diagnostics to stderr, writes the
// report(s) in the chosen format, and exits non-zero when any input produced
// error-severity diagnostics or failed outright.
func runReport(cmd *cobra.Command, args []string) error {
	target := args[0]

	// Получаем флаги
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}

	outPath, err := cmd.Flags().GetString("out")
	if err != nil {
		return fmt.Errorf("failed to get out flag: %w", err)
	}

	outDir, err := cmd.Flags().GetString("out-dir")
	if err != nil {
		return fmt.Errorf("failed to get out-dir flag: %w", err)
	}

	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return fmt.Errorf("failed to get jobs flag: %w", err)
	}

	luacPath, err := cmd.Flags().GetString("luac")
	if err != nil {
		return fmt.Errorf("failed to get luac flag: %w", err)
	}

	diskCache, err := cmd.Flags().GetBool("disk-cache")
	if err != nil {
		return fmt.Errorf("failed to get disk-cache flag: %w", err)
	}

	noCache, err := cmd.Flags().GetBool("no-cache")
	if err != nil {
		return fmt.Errorf("failed to get no-cache flag: %w", err)
	}

	if diskCache && noCache {
		return fmt.Errorf("disk-cache and no-cache flags cannot be used together")
	}
	if outPath != "" && cmd.Flags().Changed("out-dir") {
		return fmt.Errorf("out and out-dir flags cannot be used together")
	}

	uiFlag, err := cmd.Flags().GetString("ui")
	if err != nil {
		return fmt.Errorf("failed to get ui flag: %w", err)
	}
	uiModeVal, err := readUIMode(uiFlag)
	if err != nil {
		return err
	}

	maxDiagnostics, err := cmd.Root().PersistentFlags().GetInt("max-diagnostics")
	if err != nil {
		return fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}

	showTimings, err := cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil {
		return fmt.Errorf("failed to get timings flag: %w", err)
	}

	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return fmt.Errorf("failed to get quiet flag: %w", err)
	}

	colorFlag, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return fmt.Errorf("failed to get color flag: %w", err)
	}
	useColor := useColorOn(colorFlag, os.Stderr)

	st, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("failed to stat path: %w", err)
	}
	if outPath != "" && st.IsDir() {
		return fmt.Errorf("--out expects a single file input; use --out-dir for directories")
	}

	// Flags that were not given on the command line fall back to silt.toml.
	manifest, found, err := loadProjectManifest(manifestBase(target))
	if err != nil {
		return err
	}
	if found {
		if !cmd.Flags().Changed("format") && manifest.hasFormat {
			format = strings.TrimSpace(manifest.Config.Report.Format)
		}
		if !cmd.Flags().Changed("jobs") && manifest.hasJobs {
			jobs = manifest.Config.Report.Jobs
		}
		if !cmd.Flags().Changed("out-dir") && manifest.hasDir {
			outDir = manifest.Config.Report.Dir
			if !filepath.IsAbs(outDir) {
				outDir = filepath.Join(manifest.Root, outDir)
			}
		}
		if luacPath == "" {
			luacPath = manifest.luacPath()
		}
	}

	switch format {
	case "json", "pretty":
	default:
		return fmt.Errorf("unknown format: %s", format)
	}

	cacheEnabled := diskCache || (found && manifest.hasCache && manifest.Config.Report.Cache)
	if noCache {
		cacheEnabled = false
	}

	traceCleanup, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	defer traceCleanup()
	defer dumpTraceOnPanic(cmd)

	profCleanup, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	defer profCleanup()

	opts := driver.Options{
		Compiler:       &frontend.Luac{Path: luacPath},
		MaxDiagnostics: maxDiagnostics,
		EnableTimings:  showTimings,
	}
	if cacheEnabled {
		cache, err := driver.OpenCache("silt")
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: disk cache unavailable: %v\n", err)
		} else {
			opts.Cache = cache
		}
	}

	runFile := func() (int, error) {
		res, err := driver.ReportFile(cmd.Context(), target, opts)
		if err != nil {
			return 0, fmt.Errorf("report failed: %w", err)
		}

		printDiagnostics(os.Stderr, res.Bag, useColor, quiet)
		if showTimings && res.Timing != nil {
			fmt.Fprint(os.Stderr, res.Timing.Summary())
		}

		dest := outPath
		if dest == "" && outDir != "" {
			dest, err = reportDest(outDir, filepath.Dir(target), target)
			if err != nil {
				return 0, err
			}
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return 0, fmt.Errorf("failed to create %s: %w", filepath.Dir(dest), err)
			}
		}
		if dest != "" {
			if err := os.WriteFile(dest, res.JSON, 0o644); err != nil {
				return 0, fmt.Errorf("failed to write %s: %w", dest, err)
			}
		}

		switch format {
		case "pretty":
			summary, err := ui.RenderSummary(res, stdoutWidth())
			if err != nil {
				return 0, fmt.Errorf("failed to render summary: %w", err)
			}
			fmt.Fprint(os.Stdout, summary)
		default:
			if dest == "" {
				if _, err := os.Stdout.Write(res.JSON); err != nil {
					return 0, fmt.Errorf("failed to write report: %w", err)
				}
			}
		}

		if res.Bag.HasErrors() {
			return 1, nil
		}
		return 0, nil
	}

	runDir := func() (int, error) {
		// The progress UI owns stdout, so it only runs when stdout is not
		// carrying the JSON stream.
		useTUI := !quiet && shouldUseTUI(uiModeVal) && (format == "pretty" || outDir != "")

		var results []driver.FileReport
		if useTUI {
			results, err = runReportDirWithUI(cmd.Context(), "silt report "+target, target, opts, jobs)
		} else {
			dirOpts := opts
			dirOpts.Jobs = jobs
			results, err = driver.ReportDir(cmd.Context(), target, dirOpts)
		}
		if err != nil {
			return 0, fmt.Errorf("report failed: %w", err)
		}
		if len(results) == 0 {
			if !quiet {
				fmt.Fprintln(os.Stderr, "no .lua or .luac inputs found")
			}
			return 0, nil
		}

		exit := 0
		for _, r := range results {
			if r.Err != nil {
				c := severityColor(diag.SevError)
				if useColor {
					c.EnableColor()
				} else {
					c.DisableColor()
				}
				fmt.Fprintf(os.Stderr, "%s %s: %v\n", c.Sprint(diag.SevError.String()), r.Path, r.Err)
				exit = 1
				continue
			}
			printDiagnostics(os.Stderr, r.Result.Bag, useColor, quiet)
			if showTimings && r.Result.Timing != nil {
				fmt.Fprintf(os.Stderr, "== %s ==\n", r.Path)
				fmt.Fprint(os.Stderr, r.Result.Timing.Summary())
			}
			if r.Result.Bag.HasErrors() {
				exit = 1
			}
		}

		if outDir != "" {
			if err := writeReportTree(outDir, target, results); err != nil {
				return 0, err
			}
		}

		switch format {
		case "pretty":
			first := true
			for _, r := range results {
				if r.Err != nil {
					continue
				}
				if !first {
					fmt.Fprintln(os.Stdout)
				}
				first = false
				summary, err := ui.RenderSummary(r.Result, stdoutWidth())
				if err != nil {
					return 0, fmt.Errorf("failed to render summary: %w", err)
				}
				fmt.Fprint(os.Stdout, summary)
			}
		default:
			if outDir == "" {
				if err := writeAggregateJSON(os.Stdout, results); err != nil {
					return 0, fmt.Errorf("failed to write report: %w", err)
				}
			}
		}

		return exit, nil
	}

	var (
		exitCode  int
		resultErr error
	)
	if !st.IsDir() {
		exitCode, resultErr = runFile()
	} else {
		exitCode, resultErr = runDir()
	}

	if resultErr != nil {
		return resultErr
	}
	if exitCode != 0 {
		// Suppress cobra usage output on diagnostic errors
		cmd.SilenceUsage = true
		cmd.SilenceErrors = true
		return fmt.Errorf("") // Silent error - diagnostics already printed
	}
	return nil
}

// stdoutWidth reports the terminal width of stdout, or 0 when stdout is not
// a terminal. RenderSummary substitutes its own default for 0.
func stdoutWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 0
}

// reportDest maps an input inside root to its .json twin under outDir. The
// relative layout is preserved so sub/a.lua and a.lua never collide.
func reportDest(outDir, root, input string) (string, error) {
	rel, err := filepath.Rel(root, input)
	if err != nil {
		return "", fmt.Errorf("failed to place %s under %s: %w", input, outDir, err)
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel)) + ".json"
	return filepath.Join(outDir, rel), nil
}

// writeReportTree writes one .json file per successful result under outDir.
func writeReportTree(outDir, root string, results []driver.FileReport) error {
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		dst, err := reportDest(outDir, root, r.Path)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", filepath.Dir(dst), err)
		}
		if err := os.WriteFile(dst, r.Result.JSON, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", dst, err)
		}
	}
	return nil
}

// writeAggregateJSON frames the per-file documents as one path-keyed object
// so a directory batch still emits a single valid JSON document on stdout.
// Failed inputs are absent; their errors already went to stderr.
func writeAggregateJSON(w io.Writer, results []driver.FileReport) error {
	ok := make([]driver.FileReport, 0, len(results))
	for _, r := range results {
		if r.Err == nil {
			ok = append(ok, r)
		}
	}
	if _, err := io.WriteString(w, "{\n"); err != nil {
		return err
	}
	for i, r := range ok {
		key, err := json.Marshal(filepath.ToSlash(r.Path))
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s: ", key); err != nil {
			return err
		}
		if _, err := w.Write(bytes.TrimRight(r.Result.JSON, "\n")); err != nil {
			return err
		}
		sep := "\n"
		if i < len(ok)-1 {
			sep = ",\n"
		}
		if _, err := io.WriteString(w, sep); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "}\n")
	return err
}
