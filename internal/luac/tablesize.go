package luac

// NEWTABLE encodes its preallocation hints in two fields: B holds
// log2(hash size)+1 (0 for no hash part) and C holds the array size, extended
// through an EXTRAARG continuation word when the k flag is set. The old
// floating-point-byte encoding of 5.1/5.2 does not apply to 5.4 chunks.

// DecodeHashSize expands the B operand of NEWTABLE into a slot count.
// Operands past 31 cannot come from a real compiler; they are clamped so the
// count stays a sane positive int.
func DecodeHashSize(b uint8) int {
	if b == 0 {
		return 0
	}
	if b > 31 {
		b = 31
	}
	return 1 << (b - 1)
}

// DecodeArraySize expands the array-size hint of the NEWTABLE instruction at
// pc. With the k flag set the high bits live in the EXTRAARG word at pc+1;
// when that word is missing or malformed the low 8 bits from C are returned
// as-is rather than failing.
func DecodeArraySize(code []Instruction, pc int) int {
	if pc < 0 || pc >= len(code) || code[pc].OpCode() != OpNewTable {
		return 0
	}
	ins := code[pc]
	c := int(ins.ArgC())
	if !ins.K() {
		return c
	}
	if pc+1 < len(code) && code[pc+1].OpCode() == OpExtraArg {
		return int(code[pc+1].ArgAx())<<8 | c
	}
	return c
}

// HasSizeContinuation reports whether the NEWTABLE at pc declares an EXTRAARG
// continuation that is actually present. Callers use the mismatch case to
// flag degraded size hints.
func HasSizeContinuation(code []Instruction, pc int) (declared, present bool) {
	if pc < 0 || pc >= len(code) || code[pc].OpCode() != OpNewTable {
		return false, false
	}
	if !code[pc].K() {
		return false, false
	}
	present = pc+1 < len(code) && code[pc+1].OpCode() == OpExtraArg
	return true, present
}
