// Package undump loads precompiled Lua 5.4 binary chunks (the output of luac)
// into the prototype model of internal/luac. The reader is defensive: every
// size is bounds-checked against the remaining input before allocation, and
// malformed data yields an error, never a panic. Chunks produced by the
// Diluvium toolchain carry the stock 5.4 header.
package undump

import (
	"encoding/binary"
	"fmt"
	"math"

	"fortio.org/safecast"

	"silt/internal/luac"
)

// Signature is the four-byte mark that opens every binary chunk.
const Signature = "\x1bLua"

const (
	luacVersion = 0x54
	luacFormat  = 0
	luacData    = "\x19\x93\r\n\x1a\n"
	luacInt     = int64(0x5678)
	luacNum     = float64(370.5)

	instructionSize = 4
	integerSize     = 8
	numberSize      = 8

	// Nesting cap for recursive prototype loading. Source this deep cannot
	// come out of a real compiler; without the cap a crafted chunk could
	// exhaust the goroutine stack.
	maxNesting = 200
)

// Constant tags as dumped by the 5.4 toolchain (type | variant<<4).
const (
	tagNil      = 0x00
	tagFalse    = 0x01
	tagTrue     = 0x11
	tagFloat    = 0x03
	tagInteger  = 0x13
	tagShortStr = 0x04
	tagLongStr  = 0x14
)

// IsChunk reports whether data starts with the binary chunk signature.
// Callers use it to pick between loading bytecode and compiling source.
func IsChunk(data []byte) bool {
	return len(data) >= len(Signature) && string(data[:len(Signature)]) == Signature
}

// Load parses a complete binary chunk and returns the root prototype.
// chunkName is used for error context and as the source name when the chunk
// itself does not carry one.
func Load(data []byte, chunkName string) (*luac.Proto, error) {
	r := &reader{data: data, name: chunkName}
	if err := r.checkHeader(); err != nil {
		return nil, err
	}
	mainUpvals, err := r.byte()
	if err != nil {
		return nil, err
	}
	main, err := r.function(chunkName, 0)
	if err != nil {
		return nil, err
	}
	if int(mainUpvals) != len(main.Upvalues) {
		return nil, r.corrupt("main closure declares %d upvalues, prototype has %d",
			mainUpvals, len(main.Upvalues))
	}
	return main, nil
}

type reader struct {
	data []byte
	pos  int
	name string
}

func (r *reader) fail(format string, args ...any) error {
	return fmt.Errorf("load %s: %s", r.name, fmt.Sprintf(format, args...))
}

func (r *reader) corrupt(format string, args ...any) error {
	return r.fail("corrupted chunk: "+format, args...)
}

func (r *reader) remaining() int {
	return len(r.data) - r.pos
}

func (r *reader) byte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, r.fail("truncated chunk at offset %d", r.pos)
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, r.fail("truncated chunk: need %d bytes at offset %d, have %d",
			n, r.pos, r.remaining())
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// varint reads the dump format's big-endian 7-bit groups; the final group
// has the high bit set.
func (r *reader) varint() (uint64, error) {
	var x uint64
	for i := 0; ; i++ {
		if i >= 10 {
			return 0, r.corrupt("size varint overflow at offset %d", r.pos)
		}
		b, err := r.byte()
		if err != nil {
			return 0, err
		}
		if x >= 1<<57 {
			return 0, r.corrupt("size varint overflow at offset %d", r.pos)
		}
		x = x<<7 | uint64(b&0x7f)
		if b&0x80 != 0 {
			return x, nil
		}
	}
}

func (r *reader) size() (int, error) {
	x, err := r.varint()
	if err != nil {
		return 0, err
	}
	n, err := safecast.Conv[int](x)
	if err != nil {
		return 0, r.corrupt("size %d does not fit", x)
	}
	return n, nil
}

func (r *reader) int32() (int32, error) {
	x, err := r.varint()
	if err != nil {
		return 0, err
	}
	n, err := safecast.Conv[int32](x)
	if err != nil {
		return 0, r.corrupt("integer %d does not fit", x)
	}
	return n, nil
}

func (r *reader) integer() (int64, error) {
	b, err := r.bytes(integerSize)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b)), nil
}

func (r *reader) number() (float64, error) {
	b, err := r.bytes(numberSize)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}

// str reads one dumped string. Size 0 means absent; otherwise size-1 bytes
// follow. ok distinguishes absent from empty.
func (r *reader) str() (s string, ok bool, err error) {
	n, err := r.size()
	if err != nil {
		return "", false, err
	}
	if n == 0 {
		return "", false, nil
	}
	b, err := r.bytes(n - 1)
	if err != nil {
		return "", false, err
	}
	return string(b), true, nil
}

// countOf reads a vector length and validates it against the bytes left, so
// a forged length cannot trigger a huge allocation.
func (r *reader) countOf(minEntrySize int, what string) (int, error) {
	n, err := r.size()
	if err != nil {
		return 0, err
	}
	if minEntrySize > 0 && n > r.remaining()/minEntrySize {
		return 0, r.corrupt("%s count %d exceeds chunk size", what, n)
	}
	return n, nil
}

func (r *reader) checkHeader() error {
	sig, err := r.bytes(len(Signature))
	if err != nil {
		return err
	}
	if string(sig) != Signature {
		return r.fail("not a binary chunk")
	}
	version, err := r.byte()
	if err != nil {
		return err
	}
	if version != luacVersion {
		return r.fail("version mismatch: chunk %#02x, expected %#02x", version, luacVersion)
	}
	format, err := r.byte()
	if err != nil {
		return err
	}
	if format != luacFormat {
		return r.fail("format mismatch: chunk %d, expected %d", format, luacFormat)
	}
	data, err := r.bytes(len(luacData))
	if err != nil {
		return err
	}
	if string(data) != luacData {
		return r.corrupt("conversion marker damaged")
	}
	for _, want := range []struct {
		size byte
		what string
	}{
		{instructionSize, "instruction"},
		{integerSize, "integer"},
		{numberSize, "number"},
	} {
		got, err := r.byte()
		if err != nil {
			return err
		}
		if got != want.size {
			return r.fail("%s size mismatch: chunk %d, expected %d", want.what, got, want.size)
		}
	}
	checkInt, err := r.integer()
	if err != nil {
		return err
	}
	if checkInt != luacInt {
		return r.fail("integer check failed (endianness mismatch?)")
	}
	checkNum, err := r.number()
	if err != nil {
		return err
	}
	if checkNum != luacNum {
		return r.fail("number check failed (float format mismatch?)")
	}
	return nil
}

func (r *reader) function(parentSource string, depth int) (*luac.Proto, error) {
	if depth > maxNesting {
		return nil, r.corrupt("prototype nesting deeper than %d", maxNesting)
	}
	p := &luac.Proto{}

	source, ok, err := r.str()
	if err != nil {
		return nil, err
	}
	if !ok {
		source = parentSource
	}
	p.Source = source

	if p.LineDefined, err = r.int32(); err != nil {
		return nil, err
	}
	if p.LastLineDefined, err = r.int32(); err != nil {
		return nil, err
	}
	numParams, err := r.byte()
	if err != nil {
		return nil, err
	}
	p.NumParams = numParams
	isVararg, err := r.byte()
	if err != nil {
		return nil, err
	}
	p.IsVararg = isVararg != 0
	maxStack, err := r.byte()
	if err != nil {
		return nil, err
	}
	p.MaxStackSize = maxStack

	if err := r.code(p); err != nil {
		return nil, err
	}
	if err := r.constants(p); err != nil {
		return nil, err
	}
	if err := r.upvalues(p); err != nil {
		return nil, err
	}
	if err := r.protos(p, depth); err != nil {
		return nil, err
	}
	if err := r.debug(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *reader) code(p *luac.Proto) error {
	n, err := r.countOf(instructionSize, "instruction")
	if err != nil {
		return err
	}
	raw, err := r.bytes(n * instructionSize)
	if err != nil {
		return err
	}
	if n > 0 {
		p.Code = make([]luac.Instruction, n)
		for i := range p.Code {
			p.Code[i] = luac.Instruction(binary.LittleEndian.Uint32(raw[i*instructionSize:]))
		}
	}
	return nil
}

func (r *reader) constants(p *luac.Proto) error {
	n, err := r.countOf(1, "constant")
	if err != nil {
		return err
	}
	if n > 0 {
		p.Consts = make([]any, 0, n)
	}
	for i := 0; i < n; i++ {
		tag, err := r.byte()
		if err != nil {
			return err
		}
		switch tag {
		case tagNil:
			p.Consts = append(p.Consts, nil)
		case tagFalse:
			p.Consts = append(p.Consts, false)
		case tagTrue:
			p.Consts = append(p.Consts, true)
		case tagInteger:
			v, err := r.integer()
			if err != nil {
				return err
			}
			p.Consts = append(p.Consts, v)
		case tagFloat:
			v, err := r.number()
			if err != nil {
				return err
			}
			p.Consts = append(p.Consts, v)
		case tagShortStr, tagLongStr:
			s, _, err := r.str()
			if err != nil {
				return err
			}
			p.Consts = append(p.Consts, s)
		default:
			return r.corrupt("unknown constant tag %#02x at index %d", tag, i)
		}
	}
	return nil
}

func (r *reader) upvalues(p *luac.Proto) error {
	n, err := r.countOf(3, "upvalue")
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	p.Upvalues = make([]luac.Upvalue, n)
	for i := range p.Upvalues {
		inStack, err := r.byte()
		if err != nil {
			return err
		}
		idx, err := r.byte()
		if err != nil {
			return err
		}
		kind, err := r.byte()
		if err != nil {
			return err
		}
		p.Upvalues[i] = luac.Upvalue{InStack: inStack != 0, Index: idx, Kind: kind}
	}
	return nil
}

func (r *reader) protos(p *luac.Proto, depth int) error {
	n, err := r.countOf(1, "prototype")
	if err != nil {
		return err
	}
	if n > 0 {
		p.Protos = make([]*luac.Proto, 0, n)
	}
	for i := 0; i < n; i++ {
		child, err := r.function(p.Source, depth+1)
		if err != nil {
			return err
		}
		p.Protos = append(p.Protos, child)
	}
	return nil
}

func (r *reader) debug(p *luac.Proto) error {
	n, err := r.countOf(1, "line info")
	if err != nil {
		return err
	}
	raw, err := r.bytes(n)
	if err != nil {
		return err
	}
	if n > 0 {
		p.LineInfo = make([]int8, n)
		for i, b := range raw {
			p.LineInfo[i] = int8(b)
		}
	}

	n, err = r.countOf(2, "absolute line info")
	if err != nil {
		return err
	}
	if n > 0 {
		p.AbsLineInfo = make([]luac.AbsLine, n)
		for i := range p.AbsLineInfo {
			pc, err := r.int32()
			if err != nil {
				return err
			}
			line, err := r.int32()
			if err != nil {
				return err
			}
			p.AbsLineInfo[i] = luac.AbsLine{PC: pc, Line: line}
		}
	}

	n, err = r.countOf(3, "local variable")
	if err != nil {
		return err
	}
	if n > 0 {
		p.LocVars = make([]luac.LocVar, n)
		for i := range p.LocVars {
			name, _, err := r.str()
			if err != nil {
				return err
			}
			start, err := r.int32()
			if err != nil {
				return err
			}
			end, err := r.int32()
			if err != nil {
				return err
			}
			p.LocVars[i] = luac.LocVar{Name: name, StartPC: start, EndPC: end}
		}
	}

	n, err = r.countOf(1, "upvalue name")
	if err != nil {
		return err
	}
	if n > len(p.Upvalues) {
		return r.corrupt("%d upvalue names for %d upvalues", n, len(p.Upvalues))
	}
	for i := 0; i < n; i++ {
		name, _, err := r.str()
		if err != nil {
			return err
		}
		p.Upvalues[i].Name = name
	}
	return nil
}
