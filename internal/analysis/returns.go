package analysis

import (
	"silt/internal/luac"
	"silt/internal/report"
)

// estimateTableBytes is the coarse heap cost model for a returned table:
// header plus array slots plus hash nodes.
func estimateTableBytes(arraySize, hashSize int) int {
	return 32 + arraySize*16 + hashSize*32
}

// classifyReturn classifies the return instruction at pc. RETURN with B==0
// forwards whatever the stack top holds and B>2 returns several values, both
// multi; B==1 returns nothing; the single-value forms trace the returned
// register.
func classifyReturn(p *luac.Proto, pc int) report.ReturnKind {
	ins := p.Code[pc]
	switch ins.OpCode() {
	case luac.OpReturn0:
		return report.ReturnVoid
	case luac.OpReturn1:
		return classifySingle(p.Code, pc, int(ins.ArgA()))
	case luac.OpReturn:
		switch b := int(ins.ArgB()); b {
		case 1:
			return report.ReturnVoid
		case 0:
			return report.ReturnMulti
		case 2:
			return classifySingle(p.Code, pc, int(ins.ArgA()))
		default:
			return report.ReturnMulti
		}
	}
	return report.ReturnUnknown
}

// classifySingle resolves the kind of the single value returned from reg.
// A freshly constructed table is checked first with the long window; the
// short window then classifies by whichever instruction wrote reg last.
func classifySingle(code []luac.Instruction, pc, reg int) report.ReturnKind {
	if newTablePC(code, pc, reg) >= 0 {
		return report.ReturnTable
	}
	low := pc - returnScanWindow
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
		case luac.OpCall, luac.OpTailCall:
			return report.ReturnCall
		case luac.OpGetUpval, luac.OpGetTabUp, luac.OpGetTable, luac.OpGetField, luac.OpGetI:
			return report.ReturnUpvalue
		case luac.OpLoadK, luac.OpLoadKX, luac.OpLoadI, luac.OpLoadF,
			luac.OpLoadTrue, luac.OpLoadFalse, luac.OpLFalseSkip:
			return report.ReturnConstant
		}
		// Any other writer, CLOSURE among them: a returned function value
		// carries no interface information of its own.
		return report.ReturnUnknown
	}
	return report.ReturnUnknown
}

// mergeReturnKind folds one return site's kind into the function's
// accumulated kind. Mixed is sticky. Unknown and void are weak: they yield
// to any strong kind, and void wins between the two. Two disagreeing strong
// kinds go mixed.
func mergeReturnKind(cur, next report.ReturnKind) report.ReturnKind {
	if cur == report.ReturnMixed {
		return cur
	}
	curWeak := cur == report.ReturnUnknown || cur == report.ReturnVoid
	nextWeak := next == report.ReturnUnknown || next == report.ReturnVoid
	switch {
	case curWeak && !nextWeak:
		return next
	case !curWeak && !nextWeak && cur != next:
		return report.ReturnMixed
	case cur == report.ReturnUnknown && next == report.ReturnVoid:
		return report.ReturnVoid
	}
	return cur
}
