// Package fuzztests houses Go fuzz harnesses that exercise the binary chunk
// pipeline (bytes -> undump -> analysis -> report). Its goal is to smoke test
// robustness and guard against panics or allocator explosions on arbitrary
// inputs: the loader must reject garbage with an error, and whatever it does
// accept must analyze into a structurally sound report.
//
// The harnesses never invoke luac or touch the CLI; seeds come from the
// testkit chunk encoder plus any *.luac files dropped under testdata/.
package fuzztests
