// Package luac models compiled Lua 5.4 function prototypes and their
// instruction encoding, as produced by the Diluvium fork of luac (5.4.7_rc4).
// Invariants:
//   - Instruction is the raw 32-bit word; field accessors never allocate and
//     return zero values when asked for a field the opcode's mode lacks.
//   - opProps is dense over [0, maxOpCode]; OpCode.SetsA is the single source
//     of truth for "writes register A" and must stay exhaustive when opcodes
//     are added (the fork's 2Q is already in).
//   - Proto is a plain data tree: loaders build it, analyses read it, nothing
//     in this package mutates it after construction.
//   - Debug tables (line info, local names, upvalue names) are optional; every
//     accessor degrades to a zero value instead of failing when they are
//     stripped.
package luac
