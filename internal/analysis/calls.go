package analysis

import (
	"silt/internal/luac"
	"silt/internal/report"
)

// resolveCallee works out where the function sitting in reg at a call site
// came from. GETTABUP on upvalue 0 is a global lookup; on any other upvalue
// it is a field of that upvalue. GETFIELD resolves its base with a secondary
// scan. MOVE, GETUPVAL and CLOSURE all mean a local function value, which
// the report leaves unnamed.
func resolveCallee(p *luac.Proto, pc, reg int) (report.CallKind, string) {
	code := p.Code
	low := pc - callScanWindow
	if low < 0 {
		low = 0
	}
	for i := pc - 1; i >= low; i-- {
		ins := code[i]
		op := ins.OpCode()
		if !op.SetsA() || int(ins.ArgA()) != reg {
			continue
		}
		switch op {
		case luac.OpGetTabUp:
			key, ok := p.StringConst(int(ins.ArgC()))
			if !ok {
				return report.CallUnknown, ""
			}
			if ins.ArgB() == 0 {
				return report.CallGlobal, key
			}
			base := p.UpvalueName(int(ins.ArgB()))
			if base == "" {
				base = "?"
			}
			return report.CallField, base + "." + key
		case luac.OpGetField:
			key, ok := p.StringConst(int(ins.ArgC()))
			if !ok {
				return report.CallUnknown, ""
			}
			return report.CallField, fieldBase(p, i, int(ins.ArgB())) + "." + key
		case luac.OpSelf:
			key, ok := p.StringConst(int(ins.ArgC()))
			if !ok {
				return report.CallUnknown, ""
			}
			return report.CallMethod, key
		case luac.OpMove, luac.OpGetUpval, luac.OpClosure:
			return report.CallLocal, ""
		}
		return report.CallUnknown, ""
	}
	return report.CallUnknown, ""
}

// fieldBase names the table register a GETFIELD read from by finding the
// GETTABUP that loaded it. Anything else degrades to "?".
func fieldBase(p *luac.Proto, pc, reg int) string {
	code := p.Code
	low := pc - fieldBaseScanWindow
	if low < 0 {
		low = 0
	}
	for i := pc - 1; i >= low; i-- {
		ins := code[i]
		op := ins.OpCode()
		if !op.SetsA() || int(ins.ArgA()) != reg {
			continue
		}
		if op == luac.OpGetTabUp {
			if key, ok := p.StringConst(int(ins.ArgC())); ok {
				return key
			}
		}
		return "?"
	}
	return "?"
}
