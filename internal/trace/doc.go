// Package trace provides the tracing subsystem for the silt analyzer.
//
// The trace package enables tracking of driver phases, per-function analysis,
// and instruction-level resolution steps to help diagnose slow batches and
// surprising classifications.
//
// # Usage
//
// Enable tracing via command-line flags:
//
//	silt report --trace=- --trace-level=phase build/init.luac
//
// # Architecture
//
// The package provides several tracer implementations:
//
//   - NopTracer: Zero-overhead no-op tracer when disabled
//   - StreamTracer: Immediate write to output (file/stderr)
//   - RingTracer: Circular buffer for crash dumps
//   - MultiTracer: Combines multiple tracers
//
// # Levels
//
// Tracing verbosity is controlled by levels:
//
//   - LevelOff: No tracing
//   - LevelError: Only crash dumps
//   - LevelPhase: Driver and pass boundaries
//   - LevelDetail: Function-level events
//   - LevelDebug: Everything including per-instruction resolution
//
// # Scopes
//
// Events are categorized by scope:
//
//   - ScopeDriver: Top-level CLI operations
//   - ScopePass: Pipeline phases (load, compile, analyze, serialize)
//   - ScopeFunction: Per-function analysis
//   - ScopeInstr: Instruction level (call and return resolution)
//
// # Context Propagation
//
// Tracers are propagated through the pipeline via context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	t := trace.FromContext(ctx)
//
//	span := trace.Begin(t, trace.ScopePass, "analyze", parentID)
//	defer span.End("")
package trace
