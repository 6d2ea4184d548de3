// Package driver orchestrates the report pipeline: load an input, compile
// it when it is source, analyze the chunk and serialize the report. It owns
// the disk cache and the parallel directory walk; the analysis itself stays
// single-threaded per file and shares nothing between files.
package driver

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"silt/internal/analysis"
	"silt/internal/diag"
	"silt/internal/frontend"
	"silt/internal/observ"
	"silt/internal/trace"
	"silt/internal/undump"
)

// defaultMaxDiagnostics bounds the degradation bag when the caller does not.
const defaultMaxDiagnostics = 100

// Options configures ReportFile and ReportDir. The zero value compiles with
// luac from PATH, caches nothing and observes nothing.
type Options struct {
	// Compiler turns Lua source into a binary chunk. nil means luac from
	// PATH; inputs that already are binary chunks never touch it.
	Compiler frontend.Compiler

	// Cache, when non-nil, is consulted before the pipeline runs and
	// filled after. Cache write failures degrade to warnings; read
	// failures count as misses.
	Cache *Cache

	// MaxDiagnostics caps the per-file degradation bag; <=0 means the
	// default.
	MaxDiagnostics int

	// EnableTimings attaches a phase report to each result and an in-band
	// timings diagnostic to its bag.
	EnableTimings bool

	// Observer receives stage events; nil means silent.
	Observer Observer

	// Tracer overrides the tracer attached to the context.
	Tracer trace.Tracer
	// TraceParent is the span new driver spans attach under.
	TraceParent uint64

	// Jobs caps ReportDir's concurrency; <=0 means GOMAXPROCS.
	Jobs int
}

// Result is one file's finished report.
type Result struct {
	// Path is the input file as given.
	Path string
	// JSON is the serialized interface report.
	JSON []byte
	// Bag holds the degradation warnings the run produced. Never nil.
	Bag *diag.Bag
	// Cached is true when JSON was replayed from the disk cache.
	Cached bool
	// Timing is non-nil when Options.EnableTimings was set.
	Timing *observ.Report
}

// ReportFile produces the interface report for one .lua or .luac input.
// Binary chunks are decoded directly; anything else is compiled first. The
// error is non-nil only when no report could be produced at all;
// degradations that keep the report schema-complete land in Result.Bag.
func ReportFile(ctx context.Context, path string, opts Options) (*Result, error) {
	if opts.MaxDiagnostics <= 0 {
		opts.MaxDiagnostics = defaultMaxDiagnostics
	}
	tr := opts.Tracer
	if tr == nil {
		tr = trace.FromContext(ctx)
	}

	span := trace.Begin(tr, trace.ScopeDriver, "report:"+path, opts.TraceParent)
	r := &run{
		path:   path,
		tr:     tr,
		parent: span.ID(),
		obs:    opts.Observer,
	}
	if opts.EnableTimings {
		r.timer = observ.NewTimer()
	}

	res, err := r.pipeline(ctx, opts)
	if err != nil {
		span.End("error: " + err.Error())
		return nil, err
	}

	if r.timer != nil {
		rep := r.timer.Report()
		res.Timing = &rep
		appendTimingDiagnostic(res.Bag, timingPayload{
			Kind:    "file",
			Path:    path,
			TotalMS: rep.TotalMS,
			Phases:  rep.Phases,
		})
	}
	if res.Cached {
		span.End("cached")
	} else {
		span.End("ok")
	}
	return res, nil
}

// run is the per-file pipeline state.
type run struct {
	path   string
	tr     trace.Tracer
	parent uint64
	timer  *observ.Timer
	obs    Observer
}

func (r *run) pipeline(ctx context.Context, opts Options) (*Result, error) {
	res := &Result{
		Path: r.path,
		Bag:  diag.NewBag(opts.MaxDiagnostics),
	}

	end := r.begin(StageLoad)
	data, err := os.ReadFile(r.path)
	if err != nil {
		end("", err)
		return nil, fmt.Errorf("read %s: %w", r.path, err)
	}
	end(fmt.Sprintf("bytes=%d", len(data)), nil)

	key := HashBytes(data)
	if opts.Cache != nil {
		idx := r.timerBegin("cache")
		var payload Payload
		ok, _ := opts.Cache.Get(key, &payload)
		if ok && payload.Usable() {
			r.timerEnd(idx, "hit")
			res.JSON = payload.Report
			res.Cached = true
			payload.Replay(res.Bag)
			r.event(Event{Path: r.path, Stage: StageCached, Status: StatusEnd})
			return res, nil
		}
		r.timerEnd(idx, "miss")
	}

	chunk := data
	if !undump.IsChunk(data) {
		end = r.begin(StageCompile)
		comp := opts.Compiler
		if comp == nil {
			comp = &frontend.Luac{}
		}
		chunk, err = comp.Compile(ctx, data, r.path)
		if err != nil {
			end("", err)
			return nil, err
		}
		end(fmt.Sprintf("bytes=%d", len(chunk)), nil)
	}

	end = r.begin(StageAnalyze)
	root, err := undump.Load(chunk, r.path)
	if err != nil {
		end("", err)
		return nil, err
	}
	rep := analysis.AnalyzeWithOptions(root, analysis.Options{
		Diags:       res.Bag,
		Tracer:      r.tr,
		TraceParent: r.parent,
	})
	end(fmt.Sprintf("functions=%d", len(rep.Functions)), nil)

	end = r.begin(StageWrite)
	var buf bytes.Buffer
	if err := rep.WriteJSON(&buf); err != nil {
		end("", err)
		return nil, err
	}
	res.JSON = buf.Bytes()
	end(fmt.Sprintf("bytes=%d", buf.Len()), nil)

	if opts.Cache != nil {
		idx := r.timerBegin("cache")
		if err := opts.Cache.Put(key, NewPayload(r.path, res.JSON, res.Bag)); err != nil {
			res.Bag.Add(diag.NewWarning(diag.IOCacheError,
				diag.Pos{Chunk: r.path, PC: -1},
				"report cache write failed: "+err.Error()))
			r.timerEnd(idx, "error")
		} else {
			r.timerEnd(idx, "store")
		}
	}
	return res, nil
}

// begin opens one pipeline stage across the timer, the tracer and the
// observer; the returned func closes all three.
func (r *run) begin(stage Stage) func(note string, err error) {
	name := stage.String()
	idx := r.timerBegin(name)
	span := trace.Begin(r.tr, trace.ScopePass, name, r.parent)
	start := time.Now()
	r.event(Event{Path: r.path, Stage: stage, Status: StatusBegin})

	return func(note string, err error) {
		if err != nil && note == "" {
			note = "error"
		}
		r.timerEnd(idx, note)
		detail := note
		if err != nil {
			detail = err.Error()
		}
		span.End(detail)
		r.event(Event{
			Path:    r.path,
			Stage:   stage,
			Status:  StatusEnd,
			Elapsed: time.Since(start),
			Err:     err,
		})
	}
}

func (r *run) timerBegin(name string) int {
	if r.timer == nil {
		return -1
	}
	return r.timer.Begin(name)
}

func (r *run) timerEnd(idx int, note string) {
	if r.timer == nil {
		return
	}
	r.timer.End(idx, note)
}

func (r *run) event(ev Event) {
	if r.obs != nil {
		r.obs(ev)
	}
}
