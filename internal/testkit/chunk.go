package testkit

import (
	"bytes"
	"encoding/binary"
	"math"

	"silt/internal/luac"
)

// ChunkWriter emits the binary dump format the loader consumes. The
// production path never writes chunks; tests and fuzz seeds need real bytes,
// including deliberately broken ones, so every primitive is exported.
type ChunkWriter struct {
	buf bytes.Buffer
}

func (w *ChunkWriter) Byte(b byte) {
	w.buf.WriteByte(b)
}

func (w *ChunkWriter) Raw(b []byte) {
	w.buf.Write(b)
}

// Varint writes big-endian 7-bit groups with the final group marked by the
// high bit, mirroring the dump encoding.
func (w *ChunkWriter) Varint(x uint64) {
	var groups [10]byte
	n := 0
	for {
		groups[n] = byte(x & 0x7f)
		n++
		x >>= 7
		if x == 0 {
			break
		}
	}
	for i := n - 1; i > 0; i-- {
		w.Byte(groups[i])
	}
	w.Byte(groups[0] | 0x80)
}

func (w *ChunkWriter) Integer(v int64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	w.Raw(b[:])
}

func (w *ChunkWriter) Number(v float64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	w.Raw(b[:])
}

func (w *ChunkWriter) Str(s string, present bool) {
	if !present {
		w.Varint(0)
		return
	}
	w.Varint(uint64(len(s)) + 1)
	w.Raw([]byte(s))
}

// Header writes the 31-byte chunk header with the checks the loader expects.
func (w *ChunkWriter) Header() {
	w.Raw([]byte("\x1bLua"))
	w.Byte(0x54)
	w.Byte(0)
	w.Raw([]byte("\x19\x93\r\n\x1a\n"))
	w.Byte(4)
	w.Byte(8)
	w.Byte(8)
	w.Integer(0x5678)
	w.Number(370.5)
}

// Function dumps one prototype, recursing through its children. A source
// equal to parentSource dumps as absent, which the loader inherits back.
func (w *ChunkWriter) Function(p *luac.Proto, parentSource string) {
	w.Str(p.Source, p.Source != parentSource)
	w.Varint(uint64(p.LineDefined))
	w.Varint(uint64(p.LastLineDefined))
	w.Byte(p.NumParams)
	if p.IsVararg {
		w.Byte(1)
	} else {
		w.Byte(0)
	}
	w.Byte(p.MaxStackSize)

	w.Varint(uint64(len(p.Code)))
	for _, ins := range p.Code {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(ins))
		w.Raw(b[:])
	}

	w.Varint(uint64(len(p.Consts)))
	for _, k := range p.Consts {
		switch k := k.(type) {
		case nil:
			w.Byte(0x00)
		case bool:
			if k {
				w.Byte(0x11)
			} else {
				w.Byte(0x01)
			}
		case int64:
			w.Byte(0x13)
			w.Integer(k)
		case float64:
			w.Byte(0x03)
			w.Number(k)
		case string:
			if len(k) <= 40 {
				w.Byte(0x04)
			} else {
				w.Byte(0x14)
			}
			w.Str(k, true)
		default:
			panic("unsupported constant in test fixture")
		}
	}

	w.Varint(uint64(len(p.Upvalues)))
	for _, uv := range p.Upvalues {
		if uv.InStack {
			w.Byte(1)
		} else {
			w.Byte(0)
		}
		w.Byte(uv.Index)
		w.Byte(uv.Kind)
	}

	w.Varint(uint64(len(p.Protos)))
	for _, child := range p.Protos {
		w.Function(child, p.Source)
	}

	w.Varint(uint64(len(p.LineInfo)))
	for _, d := range p.LineInfo {
		w.Byte(byte(d))
	}
	w.Varint(uint64(len(p.AbsLineInfo)))
	for _, a := range p.AbsLineInfo {
		w.Varint(uint64(a.PC))
		w.Varint(uint64(a.Line))
	}
	w.Varint(uint64(len(p.LocVars)))
	for _, lv := range p.LocVars {
		w.Str(lv.Name, true)
		w.Varint(uint64(lv.StartPC))
		w.Varint(uint64(lv.EndPC))
	}
	names := 0
	for _, uv := range p.Upvalues {
		if uv.Name != "" {
			names = len(p.Upvalues)
			break
		}
	}
	w.Varint(uint64(names))
	for i := 0; i < names; i++ {
		w.Str(p.Upvalues[i].Name, true)
	}
}

// Bytes returns the accumulated stream.
func (w *ChunkWriter) Bytes() []byte {
	return w.buf.Bytes()
}

// EncodeChunk serializes a prototype tree as a complete binary chunk.
func EncodeChunk(root *luac.Proto) []byte {
	w := &ChunkWriter{}
	w.Header()
	w.Byte(byte(len(root.Upvalues)))
	w.Function(root, "")
	return w.Bytes()
}
