package report

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strings"
)

// WriteJSON serializes the report with the fixed field order and 2-space
// indentation consumers rely on. The writer is explicit per entity rather
// than reflection-driven: field order is the contract, and marshal tags
// cannot express the per-kind constant payloads.
func (r *Report) WriteJSON(w io.Writer) error {
	jw := &jsonWriter{w: bufio.NewWriter(w)}

	jw.printf("{\n")
	jw.printf("  %q: %q,\n", "lua_version", r.LuaVersion)

	jw.printf("  %q: [\n", "functions")
	for i := range r.Functions {
		jw.function(&r.Functions[i], 2)
		jw.comma(i < len(r.Functions)-1)
	}
	jw.printf("  ],\n")

	jw.printf("  %q: [\n", "globals")
	for i, g := range r.Globals {
		jw.printf("    {%q: ", "name")
		jw.str(g.Name)
		jw.printf(", %q: %s, %q: %d}", "is_function", boolLit(g.IsFunction), "function_index", g.FunctionIndex)
		jw.comma(i < len(r.Globals)-1)
	}
	jw.printf("  ]\n")

	jw.printf("}\n")
	if jw.err != nil {
		return jw.err
	}
	return jw.w.Flush()
}

// JSON renders the report to a string. Serialization into memory cannot
// fail, so no error is returned.
func (r *Report) JSON() string {
	var b strings.Builder
	_ = r.WriteJSON(&b)
	return b.String()
}

type jsonWriter struct {
	w   *bufio.Writer
	err error
}

func (jw *jsonWriter) printf(format string, args ...any) {
	if jw.err != nil {
		return
	}
	_, jw.err = fmt.Fprintf(jw.w, format, args...)
}

func (jw *jsonWriter) indent(depth int) {
	if jw.err != nil {
		return
	}
	for i := 0; i < depth; i++ {
		if _, jw.err = jw.w.WriteString("  "); jw.err != nil {
			return
		}
	}
}

func (jw *jsonWriter) comma(more bool) {
	if more {
		jw.printf(",\n")
	} else {
		jw.printf("\n")
	}
}

// str writes s escaped per RFC 8259. Only the mandatory escapes are applied;
// non-ASCII bytes pass through untouched.
func (jw *jsonWriter) str(s string) {
	if jw.err != nil {
		return
	}
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if c < 0x20 {
				fmt.Fprintf(&b, `\u%04x`, c)
			} else {
				b.WriteByte(c)
			}
		}
	}
	b.WriteByte('"')
	_, jw.err = jw.w.WriteString(b.String())
}

func boolLit(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

// floatLit renders a JSON number. NaN and the infinities have no JSON
// spelling and degrade to null.
func floatLit(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "null"
	}
	return fmt.Sprintf("%.17g", f)
}

func (jw *jsonWriter) function(f *Function, depth int) {
	jw.indent(depth)
	jw.printf("{\n")

	field := func(name string) {
		jw.indent(depth + 1)
		jw.printf("%q: ", name)
	}

	field("source")
	jw.str(f.Source)
	jw.printf(",\n")

	field("line_defined")
	jw.printf("%d,\n", f.LineDefined)
	field("last_line")
	jw.printf("%d,\n", f.LastLine)
	field("param_count")
	jw.printf("%d,\n", f.ParamCount)
	field("is_vararg")
	jw.printf("%s,\n", boolLit(f.IsVararg))
	field("is_method")
	jw.printf("%s,\n", boolLit(f.IsMethod))

	field("param_names")
	jw.stringArray(f.ParamNames, depth+1)
	jw.printf(",\n")

	field("upvalue_names")
	jw.stringArray(f.UpvalueNames, depth+1)
	jw.printf(",\n")

	field("return_kind")
	jw.printf("%d,\n", f.ReturnKind)

	field("table_info")
	jw.tableInfo(&f.Table, depth+1)
	jw.printf(",\n")

	field("is_vararg_used")
	jw.printf("%s,\n", boolLit(f.IsVarargUsed))

	field("closures")
	jw.closureArray(f.Closures, depth+1)
	jw.printf(",\n")

	field("constants")
	jw.constantArray(f.Constants, depth+1)
	jw.printf(",\n")

	field("child_proto_indices")
	jw.intArray(f.ChildProtoIndices, depth+1)
	jw.printf(",\n")

	field("call_sites")
	jw.callSiteArray(f.CallSites, depth+1)
	jw.printf(",\n")

	field("reads")
	jw.readArray(f.Reads, depth+1)
	jw.printf("\n")

	jw.indent(depth)
	jw.printf("}")
}

// stringArray collapses to [] when empty; the aggregate arrays below never
// collapse. Both shapes are part of the wire contract.
func (jw *jsonWriter) stringArray(arr []string, depth int) {
	if len(arr) == 0 {
		jw.printf("[]")
		return
	}
	jw.printf("[\n")
	for i, s := range arr {
		jw.indent(depth + 1)
		jw.str(s)
		jw.comma(i < len(arr)-1)
	}
	jw.indent(depth)
	jw.printf("]")
}

func (jw *jsonWriter) tableInfo(ti *TableInfo, depth int) {
	jw.printf("{\n")
	jw.indent(depth + 1)
	jw.printf("%q: %d,\n", "array_size", ti.ArraySize)
	jw.indent(depth + 1)
	jw.printf("%q: %d,\n", "hash_size", ti.HashSize)
	jw.indent(depth + 1)
	jw.printf("%q: %d,\n", "estimated_bytes", ti.EstimatedBytes)
	jw.indent(depth + 1)
	jw.printf("%q: %s\n", "contains_closures", boolLit(ti.ContainsClosures))
	jw.indent(depth)
	jw.printf("}")
}

func (jw *jsonWriter) constantArray(arr []Constant, depth int) {
	jw.printf("[\n")
	for i, c := range arr {
		jw.indent(depth + 1)
		jw.printf("{%q: %d, ", "kind", c.Kind)
		switch c.Kind {
		case ConstString:
			jw.printf("%q: ", "s_val")
			jw.str(c.Str)
			jw.printf(", %q: 0, %q: 0.0, %q: false", "i_val", "f_val", "b_val")
		case ConstInteger:
			jw.printf("%q: null, %q: %d, %q: 0.0, %q: false", "s_val", "i_val", c.Int, "f_val", "b_val")
		case ConstFloat:
			jw.printf("%q: null, %q: 0, %q: %s, %q: false", "s_val", "i_val", "f_val", floatLit(c.Float), "b_val")
		case ConstBool:
			jw.printf("%q: null, %q: 0, %q: 0.0, %q: %s", "s_val", "i_val", "f_val", "b_val", boolLit(c.Bool))
		default:
			jw.printf("%q: null, %q: 0, %q: 0.0, %q: false", "s_val", "i_val", "f_val", "b_val")
		}
		jw.printf("}")
		jw.comma(i < len(arr)-1)
	}
	jw.indent(depth)
	jw.printf("]")
}

func (jw *jsonWriter) intArray(arr []int, depth int) {
	jw.printf("[\n")
	for i, v := range arr {
		jw.indent(depth + 1)
		jw.printf("%d", v)
		jw.comma(i < len(arr)-1)
	}
	jw.indent(depth)
	jw.printf("]")
}

func (jw *jsonWriter) closureArray(arr []Closure, depth int) {
	jw.printf("[\n")
	for i, c := range arr {
		jw.indent(depth + 1)
		jw.printf("{%q: %d, %q: %d}", "line_defined", c.LineDefined, "upvalue_count", c.UpvalueCount)
		jw.comma(i < len(arr)-1)
	}
	jw.indent(depth)
	jw.printf("]")
}

func (jw *jsonWriter) callSiteArray(arr []CallSite, depth int) {
	jw.printf("[\n")
	for i, cs := range arr {
		jw.indent(depth + 1)
		jw.printf("{%q: %d, %q: %d, %q: ", "line", cs.Line, "kind", cs.Kind, "callee")
		jw.str(cs.Callee)
		jw.printf(", %q: %d, %q: %s}", "arg_count", cs.ArgCount, "is_tail", boolLit(cs.IsTail))
		jw.comma(i < len(arr)-1)
	}
	jw.indent(depth)
	jw.printf("]")
}

func (jw *jsonWriter) readArray(arr []Read, depth int) {
	jw.printf("[\n")
	for i, rd := range arr {
		jw.indent(depth + 1)
		jw.printf("{%q: ", "table_name")
		jw.str(rd.TableName)
		jw.printf(", %q: ", "field_name")
		jw.str(rd.FieldName)
		jw.printf("}")
		jw.comma(i < len(arr)-1)
	}
	jw.indent(depth)
	jw.printf("]")
}
