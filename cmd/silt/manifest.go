package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// projectManifest is a parsed silt.toml plus where it was found. Every key
// is optional; the manifest only supplies defaults that flags override.
type projectManifest struct {
	Path   string
	Root   string
	Config projectConfig

	hasDir    bool
	hasFormat bool
	hasJobs   bool
	hasCache  bool
}

type projectConfig struct {
	Compiler compilerConfig `toml:"compiler"`
	Report   reportConfig   `toml:"report"`
}

type compilerConfig struct {
	Luac string `toml:"luac"`
}

type reportConfig struct {
	Dir    string `toml:"dir"`
	Format string `toml:"format"`
	Jobs   int    `toml:"jobs"`
	Cache  bool   `toml:"cache"`
}

// findSiltToml walks up from startDir looking for a silt.toml.
func findSiltToml(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, "silt.toml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

func loadProjectManifest(startDir string) (*projectManifest, bool, error) {
	manifestPath, ok, err := findSiltToml(startDir)
	if err != nil || !ok {
		return nil, ok, err
	}
	var cfg projectConfig
	meta, err := toml.DecodeFile(manifestPath, &cfg)
	if err != nil {
		return nil, true, fmt.Errorf("%s: failed to parse TOML: %w", manifestPath, err)
	}
	if f := strings.TrimSpace(cfg.Report.Format); f != "" && f != "json" && f != "pretty" {
		return nil, true, fmt.Errorf("%s: [report].format must be json or pretty, got %q", manifestPath, f)
	}
	if cfg.Report.Jobs < 0 {
		return nil, true, fmt.Errorf("%s: [report].jobs must not be negative", manifestPath)
	}
	return &projectManifest{
		Path:      manifestPath,
		Root:      filepath.Dir(manifestPath),
		Config:    cfg,
		hasDir:    meta.IsDefined("report", "dir"),
		hasFormat: meta.IsDefined("report", "format"),
		hasJobs:   meta.IsDefined("report", "jobs"),
		hasCache:  meta.IsDefined("report", "cache"),
	}, true, nil
}

// luacPath resolves the manifest's [compiler].luac entry. A bare name still
// resolves through PATH; anything with a separator is relative to the
// manifest.
func (m *projectManifest) luacPath() string {
	p := strings.TrimSpace(m.Config.Compiler.Luac)
	if p != "" && !filepath.IsAbs(p) && strings.Contains(p, "/") {
		p = filepath.Join(m.Root, p)
	}
	return p
}

// manifestBase picks the directory the manifest walk starts from: the target
// itself when it is a directory, its parent otherwise.
func manifestBase(target string) string {
	info, err := os.Stat(target)
	if err == nil && info.IsDir() {
		return target
	}
	return filepath.Dir(target)
}
