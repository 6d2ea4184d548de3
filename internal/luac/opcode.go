package luac

import "fmt"

// OpCode enumerates the instruction set of the Lua 5.4 VM plus the Diluvium
// fork's null-coalescing extension. Values match the wire encoding.
type OpCode uint8

// The trailing comment gives the operand mode and the evaluation rule.
const (
	OpMove       OpCode = iota // A B      | R[A] := R[B]
	OpLoadI                    // A sBx    | R[A] := sBx
	OpLoadF                    // A sBx    | R[A] := (float)sBx
	OpLoadK                    // A Bx     | R[A] := K[Bx]
	OpLoadKX                   // A        | R[A] := K[extra arg]
	OpLoadFalse                // A        | R[A] := false
	OpLFalseSkip               // A        | R[A] := false; pc++
	OpLoadTrue                 // A        | R[A] := true
	OpLoadNil                  // A B      | R[A], ..., R[A+B] := nil
	OpGetUpval                 // A B      | R[A] := UpValue[B]
	OpSetUpval                 // A B      | UpValue[B] := R[A]
	OpGetTabUp                 // A B C    | R[A] := UpValue[B][K[C]:string]
	OpGetTable                 // A B C    | R[A] := R[B][R[C]]
	OpGetI                     // A B C    | R[A] := R[B][C]
	OpGetField                 // A B C    | R[A] := R[B][K[C]:string]
	OpSetTabUp                 // A B C    | UpValue[A][K[B]:string] := RK(C)
	OpSetTable                 // A B C    | R[A][R[B]] := RK(C)
	OpSetI                     // A B C    | R[A][B] := RK(C)
	OpSetField                 // A B C    | R[A][K[B]:string] := RK(C)
	OpNewTable                 // A B C k  | R[A] := {} (B: hash hint, C: array hint)
	OpSelf                     // A B C    | R[A+1] := R[B]; R[A] := R[B][RK(C):string]
	OpAddI                     // A B sC   | R[A] := R[B] + sC
	OpAddK                     // A B C    | R[A] := R[B] + K[C]:number
	OpSubK                     // A B C    | R[A] := R[B] - K[C]:number
	OpMulK                     // A B C    | R[A] := R[B] * K[C]:number
	OpModK                     // A B C    | R[A] := R[B] % K[C]:number
	OpPowK                     // A B C    | R[A] := R[B] ^ K[C]:number
	OpDivK                     // A B C    | R[A] := R[B] / K[C]:number
	OpIDivK                    // A B C    | R[A] := R[B] // K[C]:number
	OpBAndK                    // A B C    | R[A] := R[B] & K[C]:integer
	OpBOrK                     // A B C    | R[A] := R[B] | K[C]:integer
	OpBXorK                    // A B C    | R[A] := R[B] ~ K[C]:integer
	OpShrI                     // A B sC   | R[A] := R[B] >> sC
	OpShlI                     // A B sC   | R[A] := sC << R[B]
	OpAdd                      // A B C    | R[A] := R[B] + R[C]
	OpSub                      // A B C    | R[A] := R[B] - R[C]
	OpMul                      // A B C    | R[A] := R[B] * R[C]
	OpMod                      // A B C    | R[A] := R[B] % R[C]
	OpPow                      // A B C    | R[A] := R[B] ^ R[C]
	OpDiv                      // A B C    | R[A] := R[B] / R[C]
	OpIDiv                     // A B C    | R[A] := R[B] // R[C]
	OpBAnd                     // A B C    | R[A] := R[B] & R[C]
	OpBOr                      // A B C    | R[A] := R[B] | R[C]
	OpBXor                     // A B C    | R[A] := R[B] ~ R[C]
	OpShl                      // A B C    | R[A] := R[B] << R[C]
	OpShr                      // A B C    | R[A] := R[B] >> R[C]
	OpMMBin                    // A B C    | call binary metamethod C over R[A], R[B]
	OpMMBinI                   // A sB C k | call binary metamethod C over R[A], sB
	OpMMBinK                   // A B C k  | call binary metamethod C over R[A], K[B]
	OpUnm                      // A B      | R[A] := -R[B]
	OpBNot                     // A B      | R[A] := ~R[B]
	OpNot                      // A B      | R[A] := not R[B]
	OpLen                      // A B      | R[A] := #R[B]
	OpConcat                   // A B      | R[A] := R[A] .. ... .. R[A+B-1]
	OpClose                    // A        | close upvalues >= R[A]
	OpTBC                      // A        | mark R[A] as to-be-closed
	OpJmp                      // sJ       | pc += sJ
	OpEq                       // A B k    | if (R[A] == R[B]) ~= k then pc++
	OpLt                       // A B k    | if (R[A] <  R[B]) ~= k then pc++
	OpLe                       // A B k    | if (R[A] <= R[B]) ~= k then pc++
	OpEqK                      // A B k    | if (R[A] == K[B]) ~= k then pc++
	OpEqI                      // A sB k   | if (R[A] == sB) ~= k then pc++
	OpLtI                      // A sB k   | if (R[A] <  sB) ~= k then pc++
	OpLeI                      // A sB k   | if (R[A] <= sB) ~= k then pc++
	OpGtI                      // A sB k   | if (R[A] >  sB) ~= k then pc++
	OpGeI                      // A sB k   | if (R[A] >= sB) ~= k then pc++
	OpTest                     // A k      | if (not R[A]) == k then pc++
	OpTestSet                  // A B k    | if (not R[B]) == k then pc++ else R[A] := R[B]
	OpCall                     // A B C    | R[A], ..., R[A+C-2] := R[A](R[A+1], ..., R[A+B-1])
	OpTailCall                 // A B C k  | return R[A](R[A+1], ..., R[A+B-1])
	OpReturn                   // A B C k  | return R[A], ..., R[A+B-2]
	OpReturn0                  //          | return (no results)
	OpReturn1                  // A        | return R[A]
	OpForLoop                  // A Bx     | numeric for loop tail
	OpForPrep                  // A Bx     | numeric for loop head
	OpTForPrep                 // A Bx     | generic for loop head
	OpTForCall                 // A C      | call iterator
	OpTForLoop                 // A Bx     | generic for loop tail
	OpSetList                  // A B C k  | R[A][C+i] := R[A+i], 1 <= i <= B
	OpClosure                  // A Bx     | R[A] := closure(KPROTO[Bx])
	OpVararg                   // A C      | R[A], ..., R[A+C-2] := vararg
	OpVarargPrep               // A        | adjust varargs before first use
	OpExtraArg                 // Ax       | extra operand word for the previous opcode
	Op2Q                       // A B C    | R[A] := R[B] if not null else R[C] (fork ?? operator)

	maxOpCode = Op2Q
)

// Mode identifies which operand layout an opcode uses.
type Mode uint8

const (
	// ModeABC is the three-operand layout with a k flag.
	ModeABC Mode = 1 + iota
	// ModeABx carries an 17-bit unsigned Bx operand.
	ModeABx
	// ModeAsBx carries a 17-bit excess-encoded signed operand.
	ModeAsBx
	// ModeAx is the 25-bit continuation payload of EXTRAARG.
	ModeAx
	// ModeJ is the 25-bit signed jump offset layout.
	ModeJ
)

func (m Mode) String() string {
	switch m {
	case ModeABC:
		return "iABC"
	case ModeABx:
		return "iABx"
	case ModeAsBx:
		return "iAsBx"
	case ModeAx:
		return "iAx"
	case ModeJ:
		return "isJ"
	}
	return "invalid"
}

// Property bits for opProps entries. The low three bits hold the Mode.
const (
	propSetsA  byte = 1 << 3
	propTest   byte = 1 << 4
	propInTop  byte = 1 << 5
	propOutTop byte = 1 << 6
	propMM     byte = 1 << 7
)

// opProps is dense over every defined opcode. TestOpPropsExhaustive guards
// the density, so a new opcode without an entry fails loudly.
var opProps = [maxOpCode + 1]byte{
	OpMove:       propSetsA | byte(ModeABC),
	OpLoadI:      propSetsA | byte(ModeAsBx),
	OpLoadF:      propSetsA | byte(ModeAsBx),
	OpLoadK:      propSetsA | byte(ModeABx),
	OpLoadKX:     propSetsA | byte(ModeABx),
	OpLoadFalse:  propSetsA | byte(ModeABC),
	OpLFalseSkip: propSetsA | byte(ModeABC),
	OpLoadTrue:   propSetsA | byte(ModeABC),
	OpLoadNil:    propSetsA | byte(ModeABC),
	OpGetUpval:   propSetsA | byte(ModeABC),
	OpSetUpval:   byte(ModeABC),
	OpGetTabUp:   propSetsA | byte(ModeABC),
	OpGetTable:   propSetsA | byte(ModeABC),
	OpGetI:       propSetsA | byte(ModeABC),
	OpGetField:   propSetsA | byte(ModeABC),
	OpSetTabUp:   byte(ModeABC),
	OpSetTable:   byte(ModeABC),
	OpSetI:       byte(ModeABC),
	OpSetField:   byte(ModeABC),
	OpNewTable:   propSetsA | byte(ModeABC),
	OpSelf:       propSetsA | byte(ModeABC),
	OpAddI:       propSetsA | byte(ModeABC),
	OpAddK:       propSetsA | byte(ModeABC),
	OpSubK:       propSetsA | byte(ModeABC),
	OpMulK:       propSetsA | byte(ModeABC),
	OpModK:       propSetsA | byte(ModeABC),
	OpPowK:       propSetsA | byte(ModeABC),
	OpDivK:       propSetsA | byte(ModeABC),
	OpIDivK:      propSetsA | byte(ModeABC),
	OpBAndK:      propSetsA | byte(ModeABC),
	OpBOrK:       propSetsA | byte(ModeABC),
	OpBXorK:      propSetsA | byte(ModeABC),
	OpShrI:       propSetsA | byte(ModeABC),
	OpShlI:       propSetsA | byte(ModeABC),
	OpAdd:        propSetsA | byte(ModeABC),
	OpSub:        propSetsA | byte(ModeABC),
	OpMul:        propSetsA | byte(ModeABC),
	OpMod:        propSetsA | byte(ModeABC),
	OpPow:        propSetsA | byte(ModeABC),
	OpDiv:        propSetsA | byte(ModeABC),
	OpIDiv:       propSetsA | byte(ModeABC),
	OpBAnd:       propSetsA | byte(ModeABC),
	OpBOr:        propSetsA | byte(ModeABC),
	OpBXor:       propSetsA | byte(ModeABC),
	OpShl:        propSetsA | byte(ModeABC),
	OpShr:        propSetsA | byte(ModeABC),
	OpMMBin:      propMM | byte(ModeABC),
	OpMMBinI:     propMM | byte(ModeABC),
	OpMMBinK:     propMM | byte(ModeABC),
	OpUnm:        propSetsA | byte(ModeABC),
	OpBNot:       propSetsA | byte(ModeABC),
	OpNot:        propSetsA | byte(ModeABC),
	OpLen:        propSetsA | byte(ModeABC),
	OpConcat:     propSetsA | byte(ModeABC),
	OpClose:      byte(ModeABC),
	OpTBC:        byte(ModeABC),
	OpJmp:        byte(ModeJ),
	OpEq:         propTest | byte(ModeABC),
	OpLt:         propTest | byte(ModeABC),
	OpLe:         propTest | byte(ModeABC),
	OpEqK:        propTest | byte(ModeABC),
	OpEqI:        propTest | byte(ModeABC),
	OpLtI:        propTest | byte(ModeABC),
	OpLeI:        propTest | byte(ModeABC),
	OpGtI:        propTest | byte(ModeABC),
	OpGeI:        propTest | byte(ModeABC),
	OpTest:       propTest | byte(ModeABC),
	OpTestSet:    propTest | propSetsA | byte(ModeABC),
	OpCall:       propInTop | propOutTop | propSetsA | byte(ModeABC),
	OpTailCall:   propInTop | propOutTop | propSetsA | byte(ModeABC),
	OpReturn:     propInTop | byte(ModeABC),
	OpReturn0:    byte(ModeABC),
	OpReturn1:    byte(ModeABC),
	OpForLoop:    propSetsA | byte(ModeABx),
	OpForPrep:    propSetsA | byte(ModeABx),
	OpTForPrep:   byte(ModeABx),
	OpTForCall:   byte(ModeABC),
	OpTForLoop:   propSetsA | byte(ModeABx),
	OpSetList:    propInTop | byte(ModeABC),
	OpClosure:    propSetsA | byte(ModeABx),
	OpVararg:     propOutTop | propSetsA | byte(ModeABC),
	OpVarargPrep: propInTop | propSetsA | byte(ModeABC),
	OpExtraArg:   byte(ModeAx),
	Op2Q:         propSetsA | byte(ModeABC),
}

var opNames = [maxOpCode + 1]string{
	"MOVE", "LOADI", "LOADF", "LOADK", "LOADKX", "LOADFALSE", "LFALSESKIP",
	"LOADTRUE", "LOADNIL", "GETUPVAL", "SETUPVAL", "GETTABUP", "GETTABLE",
	"GETI", "GETFIELD", "SETTABUP", "SETTABLE", "SETI", "SETFIELD", "NEWTABLE",
	"SELF", "ADDI", "ADDK", "SUBK", "MULK", "MODK", "POWK", "DIVK", "IDIVK",
	"BANDK", "BORK", "BXORK", "SHRI", "SHLI", "ADD", "SUB", "MUL", "MOD",
	"POW", "DIV", "IDIV", "BAND", "BOR", "BXOR", "SHL", "SHR", "MMBIN",
	"MMBINI", "MMBINK", "UNM", "BNOT", "NOT", "LEN", "CONCAT", "CLOSE", "TBC",
	"JMP", "EQ", "LT", "LE", "EQK", "EQI", "LTI", "LEI", "GTI", "GEI", "TEST",
	"TESTSET", "CALL", "TAILCALL", "RETURN", "RETURN0", "RETURN1", "FORLOOP",
	"FORPREP", "TFORPREP", "TFORCALL", "TFORLOOP", "SETLIST", "CLOSURE",
	"VARARG", "VARARGPREP", "EXTRAARG", "2Q",
}

// IsValid reports whether op is a defined opcode.
func (op OpCode) IsValid() bool {
	return op <= maxOpCode
}

func (op OpCode) props() byte {
	if !op.IsValid() {
		return 0
	}
	return opProps[op]
}

// Mode returns the operand layout of the opcode. Invalid opcodes report a
// zero Mode, which no accessor matches.
func (op OpCode) Mode() Mode {
	return Mode(op.props() & 7)
}

// SetsA reports whether executing the opcode stores into register A. Backward
// provenance scans rely on this instead of per-opcode case lists.
func (op OpCode) SetsA() bool {
	return op.props()&propSetsA != 0
}

// IsTest reports whether the opcode is a conditional test; in well-formed
// code the following instruction is a jump.
func (op OpCode) IsTest() bool {
	return op.props()&propTest != 0
}

// UsesTop reports whether the opcode consumes the stack top left by the
// previous instruction when its B operand is zero.
func (op OpCode) UsesTop() bool {
	return op.props()&propInTop != 0
}

// SetsTop reports whether the opcode leaves the stack top set for the next
// instruction when its C operand is zero.
func (op OpCode) SetsTop() bool {
	return op.props()&propOutTop != 0
}

// CallsMetamethod reports whether the opcode dispatches through a metamethod.
func (op OpCode) CallsMetamethod() bool {
	return op.props()&propMM != 0
}

func (op OpCode) String() string {
	if !op.IsValid() {
		return fmt.Sprintf("OpCode(%d)", uint8(op))
	}
	return opNames[op]
}
