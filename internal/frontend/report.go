package frontend

import (
	"bytes"
	"context"

	"silt/internal/analysis"
	"silt/internal/undump"
)

// GenerateReport compiles source, analyzes the chunk, and renders the full
// interface report as JSON. Any failure yields an error and no partial
// output.
func GenerateReport(ctx context.Context, c Compiler, source []byte, chunkName string) ([]byte, error) {
	chunk, err := c.Compile(ctx, source, chunkName)
	if err != nil {
		return nil, err
	}
	root, err := undump.Load(chunk, chunkName)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := analysis.Analyze(root).WriteJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
