package luac

import (
	"fmt"
	"strings"
)

// Disassemble renders the prototype tree as a luac -l style listing: the main
// chunk first, then every nested function in preorder. The listing is purely
// informational; nothing in it round-trips.
func Disassemble(root *Proto) string {
	var b strings.Builder
	writeProto(&b, root, true)
	return b.String()
}

func writeProto(b *strings.Builder, p *Proto, isMain bool) {
	head := "function"
	if isMain {
		head = "main"
	}
	params := fmt.Sprintf("%d", p.NumParams)
	if p.IsVararg {
		params += "+"
	}
	fmt.Fprintf(b, "\n%s <%s:%d,%d> (%d instruction%s)\n",
		head, p.Source, p.LineDefined, p.LastLineDefined,
		len(p.Code), plural(len(p.Code)))
	fmt.Fprintf(b, "%s param%s, %d slot%s, %d upvalue%s, %d local%s, %d constant%s, %d function%s\n",
		params, plural(int(p.NumParams)),
		int(p.MaxStackSize), plural(int(p.MaxStackSize)),
		len(p.Upvalues), plural(len(p.Upvalues)),
		len(p.LocVars), plural(len(p.LocVars)),
		len(p.Consts), plural(len(p.Consts)),
		len(p.Protos), plural(len(p.Protos)))
	for pc := range p.Code {
		writeInstruction(b, p, pc)
	}
	for _, child := range p.Protos {
		writeProto(b, child, false)
	}
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func writeInstruction(b *strings.Builder, p *Proto, pc int) {
	ins := p.Code[pc]
	op := ins.OpCode()
	fmt.Fprintf(b, "\t%d\t[%d]\t%-11s\t", pc+1, p.LineForPC(pc), op.String())

	switch op {
	case OpAddI, OpShrI, OpShlI:
		fmt.Fprintf(b, "%d %d %d", ins.ArgA(), ins.ArgB(), SignedArg(ins.ArgC()))
	case OpEqI, OpLtI, OpLeI, OpGtI, OpGeI:
		fmt.Fprintf(b, "%d %d %s", ins.ArgA(), SignedArg(ins.ArgB()), kFlag(ins))
	case OpMMBinI:
		fmt.Fprintf(b, "%d %d %d", ins.ArgA(), SignedArg(ins.ArgB()), ins.ArgC())
	case OpJmp:
		fmt.Fprintf(b, "%+d\t; to %d", ins.ArgJ(), pc+2+int(ins.ArgJ()))
	default:
		writeModeOperands(b, ins)
	}
	writeComment(b, p, pc)
	b.WriteByte('\n')
}

func kFlag(ins Instruction) string {
	if ins.K() {
		return "1"
	}
	return "0"
}

func writeModeOperands(b *strings.Builder, ins Instruction) {
	switch ins.OpCode().Mode() {
	case ModeABC:
		fmt.Fprintf(b, "%d %d %d", ins.ArgA(), ins.ArgB(), ins.ArgC())
		if ins.K() {
			b.WriteString(" 1")
		}
	case ModeABx, ModeAsBx:
		fmt.Fprintf(b, "%d %d", ins.ArgA(), ins.ArgBx())
	case ModeAx:
		fmt.Fprintf(b, "%d", ins.ArgAx())
	case ModeJ:
		fmt.Fprintf(b, "%+d", ins.ArgJ())
	}
}

// writeComment appends the trailing "; ..." column that resolves constant
// operands and closure targets, the part of a listing humans actually read.
func writeComment(b *strings.Builder, p *Proto, pc int) {
	ins := p.Code[pc]
	switch ins.OpCode() {
	case OpLoadK:
		if c := constComment(p, int(ins.ArgBx())); c != "" {
			fmt.Fprintf(b, "\t; %s", c)
		}
	case OpGetTabUp:
		name := p.UpvalueName(int(ins.ArgB()))
		if name == "" {
			name = "?"
		}
		if c := constComment(p, int(ins.ArgC())); c != "" {
			fmt.Fprintf(b, "\t; %s[%s]", name, c)
		}
	case OpSetTabUp:
		name := p.UpvalueName(int(ins.ArgA()))
		if name == "" {
			name = "?"
		}
		if c := constComment(p, int(ins.ArgB())); c != "" {
			fmt.Fprintf(b, "\t; %s[%s]", name, c)
		}
	case OpGetField, OpSetField, OpSelf:
		idx := int(ins.ArgC())
		if ins.OpCode() == OpSetField {
			idx = int(ins.ArgB())
		}
		if c := constComment(p, idx); c != "" {
			fmt.Fprintf(b, "\t; %s", c)
		}
	case OpGetUpval, OpSetUpval:
		if name := p.UpvalueName(int(ins.ArgB())); name != "" {
			fmt.Fprintf(b, "\t; %s", name)
		}
	case OpNewTable:
		fmt.Fprintf(b, "\t; %d array, %d hash",
			DecodeArraySize(p.Code, pc), DecodeHashSize(ins.ArgB()))
	case OpClosure:
		bx := int(ins.ArgBx())
		if bx < len(p.Protos) {
			child := p.Protos[bx]
			fmt.Fprintf(b, "\t; <%s:%d>", child.Source, child.LineDefined)
		}
	}
}

func constComment(p *Proto, idx int) string {
	if idx < 0 || idx >= len(p.Consts) {
		return ""
	}
	return FormatConst(p.Consts[idx])
}

// FormatConst renders one constant-pool value for listings and traces.
func FormatConst(v any) string {
	switch v := v.(type) {
	case nil:
		return "nil"
	case bool:
		if v {
			return "true"
		}
		return "false"
	case int64:
		return fmt.Sprintf("%d", v)
	case float64:
		return fmt.Sprintf("%.14g", v)
	case string:
		return fmt.Sprintf("%q", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
