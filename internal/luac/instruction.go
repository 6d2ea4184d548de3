package luac

import "fmt"

// Instruction is a single 32-bit virtual machine instruction word.
//
// Field layout (from the least significant bit):
//
//	iABC:  op:7 | A:8 | k:1 | B:8 | C:8
//	iABx:  op:7 | A:8 | Bx:17
//	iAsBx: op:7 | A:8 | sBx:17 (excess-65535)
//	iAx:   op:7 | Ax:25
//	isJ:   op:7 | sJ:25 (excess-16777215)
type Instruction uint32

const (
	sizeOp = 7
	sizeA  = 8
	sizeK  = 1
	sizeB  = 8
	sizeC  = 8
	sizeBx = sizeK + sizeB + sizeC
	sizeAx = sizeBx + sizeA
	sizeJ  = sizeAx

	posOp = 0
	posA  = posOp + sizeOp
	posK  = posA + sizeA
	posB  = posK + sizeK
	posC  = posB + sizeB
	posBx = posA + sizeA
	posAx = posOp + sizeOp
	posJ  = posOp + sizeOp

	maxArgA  = 1<<sizeA - 1
	maxArgBx = 1<<sizeBx - 1
	maxArgAx = 1<<sizeAx - 1
	maxArgJ  = 1<<sizeJ - 1

	offsetSBx = maxArgBx >> 1
	offsetC   = (1<<sizeC - 1) >> 1
	offsetJ   = maxArgJ >> 1
)

// OpCode returns the instruction's opcode.
func (i Instruction) OpCode() OpCode {
	return OpCode(i & (1<<sizeOp - 1))
}

// ArgA returns the A field of an iABC, iABx, or iAsBx instruction.
func (i Instruction) ArgA() uint8 {
	switch i.OpCode().Mode() {
	case ModeABC, ModeABx, ModeAsBx:
		return uint8(i >> posA)
	default:
		return 0
	}
}

// ArgB returns the B field of an iABC instruction.
func (i Instruction) ArgB() uint8 {
	if i.OpCode().Mode() != ModeABC {
		return 0
	}
	return uint8(i >> posB)
}

// ArgC returns the C field of an iABC instruction.
func (i Instruction) ArgC() uint8 {
	if i.OpCode().Mode() != ModeABC {
		return 0
	}
	return uint8(i >> posC)
}

// K returns the k flag of an iABC instruction.
func (i Instruction) K() bool {
	return i.OpCode().Mode() == ModeABC && i&(1<<posK) != 0
}

// ArgBx returns the Bx field of an iABx instruction, or the decoded sBx of an
// iAsBx instruction.
func (i Instruction) ArgBx() int32 {
	switch i.OpCode().Mode() {
	case ModeABx:
		return int32(i >> posBx)
	case ModeAsBx:
		return int32(i>>posBx) - offsetSBx
	default:
		return 0
	}
}

// ArgAx returns the payload of an iAx instruction (EXTRAARG).
func (i Instruction) ArgAx() uint32 {
	if i.OpCode().Mode() != ModeAx {
		return 0
	}
	return uint32(i >> posAx)
}

// ArgJ returns the signed jump offset of an isJ instruction, relative to the
// end of the instruction.
func (i Instruction) ArgJ() int32 {
	if i.OpCode().Mode() != ModeJ {
		return 0
	}
	return int32(i>>posJ) - offsetJ
}

// SignedArg decodes an 8-bit operand that the encoding treats as signed
// (the sB/sC forms of the immediate-operand opcodes).
func SignedArg(arg uint8) int {
	return int(arg) - offsetC
}

// ABC builds an iABC instruction. It panics when the opcode's mode disagrees;
// encoders and tests construct synthetic code through these helpers, so a
// mismatch is a programming error, not input data.
func ABC(op OpCode, a, b, c uint8, k bool) Instruction {
	if op.Mode() != ModeABC {
		panic("luac: ABC encoding of non-ABC opcode " + op.String())
	}
	ins := Instruction(op) | Instruction(a)<<posA | Instruction(b)<<posB | Instruction(c)<<posC
	if k {
		ins |= 1 << posK
	}
	return ins
}

// ABx builds an iABx instruction.
func ABx(op OpCode, a uint8, bx uint32) Instruction {
	if op.Mode() != ModeABx {
		panic("luac: ABx encoding of non-ABx opcode " + op.String())
	}
	if bx > maxArgBx {
		panic("luac: Bx operand out of range")
	}
	return Instruction(op) | Instruction(a)<<posA | Instruction(bx)<<posBx
}

// AsBx builds an iAsBx instruction with a signed Bx operand.
func AsBx(op OpCode, a uint8, sbx int32) Instruction {
	if op.Mode() != ModeAsBx {
		panic("luac: AsBx encoding of non-AsBx opcode " + op.String())
	}
	if sbx < -offsetSBx || sbx > maxArgBx-offsetSBx {
		panic("luac: sBx operand out of range")
	}
	return Instruction(op) | Instruction(a)<<posA | Instruction(sbx+offsetSBx)<<posBx
}

// ExtraArg builds the iAx continuation word that follows size-extended
// NEWTABLE and SETLIST instructions.
func ExtraArg(ax uint32) Instruction {
	if ax > maxArgAx {
		panic("luac: Ax operand out of range")
	}
	return Instruction(OpExtraArg) | Instruction(ax)<<posAx
}

// Jump builds an isJ instruction with an offset relative to the end of the
// instruction.
func Jump(op OpCode, j int32) Instruction {
	if op.Mode() != ModeJ {
		panic("luac: jump encoding of non-jump opcode " + op.String())
	}
	return Instruction(op) | Instruction(j+offsetJ)<<posJ
}

// String renders the decoded operands in a compact single-line form, close to
// what luac -l prints per instruction.
func (i Instruction) String() string {
	op := i.OpCode()
	switch op.Mode() {
	case ModeABC:
		s := fmt.Sprintf("%-10s %d %d %d", op, i.ArgA(), i.ArgB(), i.ArgC())
		if i.K() {
			s += "k"
		}
		return s
	case ModeABx, ModeAsBx:
		return fmt.Sprintf("%-10s %d %d", op, i.ArgA(), i.ArgBx())
	case ModeAx:
		return fmt.Sprintf("%-10s %d", op, i.ArgAx())
	case ModeJ:
		return fmt.Sprintf("%-10s %+d", op, i.ArgJ())
	default:
		return fmt.Sprintf("Instruction(%#08x)", uint32(i))
	}
}
