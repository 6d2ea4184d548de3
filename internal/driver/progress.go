package driver

import "time"

// Stage identifies one step of the report pipeline.
type Stage uint8

const (
	// StageLoad reads the input file.
	StageLoad Stage = iota
	// StageCompile shells out to luac; skipped for binary inputs.
	StageCompile
	// StageAnalyze decodes the chunk and runs the analysis pass.
	StageAnalyze
	// StageWrite serializes the report.
	StageWrite
	// StageCached replaces compile/analyze/write when a prior report is
	// reused. It is emitted once, end only.
	StageCached
)

func (s Stage) String() string {
	switch s {
	case StageLoad:
		return "load"
	case StageCompile:
		return "compile"
	case StageAnalyze:
		return "analyze"
	case StageWrite:
		return "write"
	case StageCached:
		return "cached"
	}
	return "unknown"
}

// Status reports whether a stage began or finished.
type Status uint8

const (
	// StatusBegin marks the start of a stage.
	StatusBegin Status = iota
	// StatusEnd marks the end of a stage, successful or not.
	StatusEnd
)

// Event describes one stage boundary in a file's report run.
type Event struct {
	Path    string
	Stage   Stage
	Status  Status
	Elapsed time.Duration // zero on begin
	Err     error         // non-nil when the stage failed
}

// Observer receives events emitted during ReportFile and ReportDir. Events
// for different files arrive interleaved from worker goroutines, so an
// observer must be safe for concurrent use.
type Observer func(Event)
