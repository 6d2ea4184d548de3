// Package diag defines the diagnostic model shared by the chunk loader, the
// compiler bridge, and the analysis pass.
//
// # Purpose
//
//   - Provide deterministic, serialisable records for everything the analyzer
//     wants to tell the user besides the report itself: degraded scans,
//     stripped debug information, malformed size hints, unresolved links.
//   - Offer a bounded Bag that producers fill without coupling to storage or
//     formatting layers.
//
// # Scope
//
// Package diag performs no formatting, IO, or CLI integration. Rendering lives
// in cmd/silt; orchestration in internal/driver. Diagnostics never replace
// error returns: a malformed chunk is an error from internal/undump, while a
// well-formed chunk that merely lost its debug tables produces a warning here
// and a complete report anyway.
//
// # Data model
//
// Diagnostic is the central record. It contains:
//
//   - Severity – tri-level enum (Info, Warning, Error) defined in severity.go.
//   - Code – compact numeric identifier (see codes.go) with stable string form.
//   - Message – human oriented text; keep it short and actionable.
//   - Pos – chunk name, source line, and instruction index of the finding.
//   - Notes – optional secondary positions/messages for additional context.
//
// Notes should be used sparingly: each note must add new context (e.g. "table
// constructed here") rather than repeating the diagnostic message.
//
// Keep the data model deterministic: diagnostics sort and deduplicate by
// value, and tests compare bags item for item.
package diag
