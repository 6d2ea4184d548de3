package analysis

import "silt/internal/luac"

// Scan window sizes, in instructions. The short windows cover the register
// shuffling the code generator emits between producing a value and using it;
// the table window is long because table constructors run arbitrary amounts
// of SETFIELD/SETLIST population code between NEWTABLE and the RETURN.
const (
	closureScanWindow   = 16
	fieldBaseScanWindow = 16
	returnScanWindow    = 24
	callScanWindow      = 32
	tableScanWindow     = 512
)

// valueOrigin is the answer a backward provenance scan gives about the value
// sitting in a register.
type valueOrigin uint8

const (
	// originIndeterminate means no writer was found inside the window.
	originIndeterminate valueOrigin = iota
	// originClosure means the value came from a CLOSURE instruction.
	originClosure
	// originOther means some other instruction wrote the register.
	originOther
)

// closureOrigin scans backwards from pc for the instruction that stored into
// reg. When that writer is a CLOSURE, the second result is its child
// prototype index.
func closureOrigin(code []luac.Instruction, pc, reg int) (valueOrigin, int) {
	low := pc - closureScanWindow
	if low < 0 {
		low = 0
	}
	for i := pc - 1; i >= low; i-- {
		ins := code[i]
		op := ins.OpCode()
		if !op.SetsA() || int(ins.ArgA()) != reg {
			continue
		}
		if op == luac.OpClosure {
			return originClosure, int(ins.ArgBx())
		}
		return originOther, -1
	}
	return originIndeterminate, -1
}

// newTablePC locates the NEWTABLE that constructed the table sitting in reg
// at pc, or -1. Population stores (SETFIELD, SETTABLE, SETI, SETLIST) name
// the table in A without storing into it, so they fall through the SetsA
// gate and the scan walks past them; any true overwrite of reg ends the
// scan.
func newTablePC(code []luac.Instruction, pc, reg int) int {
	low := pc - tableScanWindow
	if low < 0 {
		low = 0
	}
	for i := pc - 1; i >= low; i-- {
		ins := code[i]
		op := ins.OpCode()
		if !op.SetsA() || int(ins.ArgA()) != reg {
			continue
		}
		if op == luac.OpNewTable {
			return i
		}
		return -1
	}
	return -1
}
