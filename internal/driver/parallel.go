package driver

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"silt/internal/trace"
)

// FileReport pairs one input path with its outcome inside a batch. Exactly
// one of Result and Err is set.
type FileReport struct {
	Path   string
	Result *Result
	Err    error
}

// ListInputs returns every .lua and .luac file under dir, sorted for a
// deterministic batch order. ReportDir walks exactly this list; callers that
// need the file set up front (the progress UI does) see the same paths in
// the same order.
func ListInputs(dir string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch filepath.Ext(path) {
		case ".lua", ".luac":
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// ReportDir runs ReportFile over every .lua and .luac file under dir, up to
// Options.Jobs at a time. Results come back in the sorted input order
// regardless of completion order. A failing file records its error in its
// own slot and does not stop the batch; only context cancellation aborts
// the whole run.
func ReportDir(ctx context.Context, dir string, opts Options) ([]FileReport, error) {
	files, err := ListInputs(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	tr := opts.Tracer
	if tr == nil {
		tr = trace.FromContext(ctx)
	}
	span := trace.Begin(tr, trace.ScopeDriver, "report-dir:"+dir, opts.TraceParent)

	fileOpts := opts
	fileOpts.Tracer = tr
	fileOpts.TraceParent = span.ID()
	fileOpts.Jobs = 0

	results := make([]FileReport, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(files)))

	for i, path := range files {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			res, err := ReportFile(gctx, path, fileOpts)
			results[i] = FileReport{Path: path, Result: res, Err: err}
			return nil
		})
	}

	err = g.Wait()
	span.WithExtra("files", fmt.Sprint(len(files))).End("")
	if err != nil {
		return results, err
	}
	return results, nil
}
