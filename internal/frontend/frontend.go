// Package frontend turns Lua source into binary chunks by driving an
// external luac binary, and offers the one-call source-to-report path on
// top of it.
package frontend

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Compiler produces a binary chunk from Lua source. chunkName is the name
// the chunk should report in debug info, "@file.lua" style.
type Compiler interface {
	Compile(ctx context.Context, source []byte, chunkName string) ([]byte, error)
}

// Luac compiles through an external luac binary staged over temp files. The
// zero value resolves luac5.4 or luac from PATH.
type Luac struct {
	// Path overrides binary resolution when non-empty.
	Path string
	// Strip passes -s, dropping debug info from the chunk. The analyzer
	// degrades on stripped chunks, so the default keeps it.
	Strip bool
}

func (l *Luac) binary() (string, error) {
	if l.Path != "" {
		return l.Path, nil
	}
	for _, name := range []string{"luac5.4", "luac"} {
		if p, err := exec.LookPath(name); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no luac binary on PATH; install lua5.4 or configure an explicit compiler path")
}

// Available reports whether a compiler binary can be resolved, without
// running it.
func (l *Luac) Available() error {
	_, err := l.binary()
	return err
}

// Compile stages the source in a temp directory under the chunk's own name,
// so the compiled chunk records the source the caller asked for, and runs
// luac over it.
func (l *Luac) Compile(ctx context.Context, source []byte, chunkName string) ([]byte, error) {
	bin, err := l.binary()
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "silt-luac-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create compile dir: %w", err)
	}
	defer func() {
		_ = os.RemoveAll(dir)
	}()

	srcName := sourceFileName(chunkName)
	if err := os.WriteFile(filepath.Join(dir, srcName), source, 0o600); err != nil {
		return nil, fmt.Errorf("failed to stage source: %w", err)
	}

	args := make([]string, 0, 4)
	if l.Strip {
		args = append(args, "-s")
	}
	args = append(args, "-o", "out.luac", srcName)

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = dir
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("luac: %s", msg)
		}
		return nil, fmt.Errorf("luac: %w", err)
	}

	chunk, err := os.ReadFile(filepath.Join(dir, "out.luac"))
	if err != nil {
		return nil, fmt.Errorf("luac produced no output: %w", err)
	}
	return chunk, nil
}

// sourceFileName maps a chunk name to the staging file name. "@init.lua"
// compiles from a file named init.lua, so the chunk's recorded source comes
// out as "@init.lua" again.
func sourceFileName(chunkName string) string {
	name := strings.TrimPrefix(chunkName, "@")
	name = strings.TrimPrefix(name, "=")
	name = filepath.Base(name)
	switch name {
	case "", ".", "..", string(filepath.Separator):
		return "chunk.lua"
	}
	return name
}
