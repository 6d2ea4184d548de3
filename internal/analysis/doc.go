// Package analysis extracts the interface report from a loaded prototype
// tree: what each function returns, which globals the chunk defines, which
// fields it reads, and where its calls go.
//
// The pass is a linear scan over each function's bytecode with small
// backward windows for provenance questions ("which instruction produced the
// value in this register?"). The windows trade completeness for bounded
// work: a value written outside the window degrades to an unknown
// classification, never to a wrong one. Register writes are recognized
// through the SetsA opcode property, so instructions that merely mutate a
// table through A (SETFIELD and friends) or read A as an operand (MMBIN)
// are transparent to the scans.
//
// Control flow is not followed. Every RETURN in the instruction stream
// counts as a return site and the per-site classifications fold into one
// ReturnKind per function; disagreeing sites go mixed.
//
// Analysis never fails. Stripped debug info, malformed size hints and
// unlinkable globals degrade the report and surface as warnings in the
// diagnostic bag when one is supplied.
package analysis
