package analysis

import (
	"fmt"

	"silt/internal/diag"
	"silt/internal/luac"
	"silt/internal/report"
	"silt/internal/trace"
)

// Options carries the optional plumbing of one analysis run. The zero value
// analyzes silently.
type Options struct {
	// Diags collects degradation warnings; nil discards them.
	Diags *diag.Bag
	// Tracer receives function spans and, at debug level, per-call points.
	Tracer trace.Tracer
	// TraceParent is the span the function spans attach under.
	TraceParent uint64
}

// Analyze runs the full pass over the prototype tree rooted at root and
// returns the report. Function records appear in preorder, the root first.
func Analyze(root *luac.Proto) *report.Report {
	return AnalyzeWithOptions(root, Options{})
}

// AnalyzeWithOptions is Analyze with diagnostics and tracing wired in.
func AnalyzeWithOptions(root *luac.Proto, opts Options) *report.Report {
	if opts.Tracer == nil {
		opts.Tracer = trace.Nop
	}
	w := &walker{
		rep:   report.New(),
		opts:  opts,
		index: make(map[*luac.Proto]int),
	}
	if root != nil {
		if len(root.Code) > 0 && len(root.LineInfo) == 0 && len(root.AbsLineInfo) == 0 {
			w.warnf(root, -1, diag.AnaDebugInfoStripped,
				"debug information stripped; lines, parameter names and global links degrade")
		}
		w.function(root, opts.TraceParent)
	}
	return w.rep
}

// walker is the per-run traversal state.
type walker struct {
	rep  *report.Report
	opts Options

	// index maps visited prototypes to their Functions slot. Linking global
	// assignments to function records goes through prototype identity first
	// and only falls back to line matching.
	index map[*luac.Proto]int
}

// pendingGlobal is a global assignment whose closure target is linked after
// the subtree walk, once the child's record exists.
type pendingGlobal struct {
	slot  int
	proto *luac.Proto
}

func (w *walker) function(p *luac.Proto, parent uint64) int {
	span := trace.Begin(w.opts.Tracer, trace.ScopeFunction,
		fmt.Sprintf("function:%s:%d", chunkName(p), p.LineDefined), parent)

	idx := len(w.rep.Functions)
	w.index[p] = idx

	fn := describe(p)
	pending := w.scanCode(p, &fn, span.ID())
	w.rep.Functions = append(w.rep.Functions, fn)

	for _, child := range p.Protos {
		ci := len(w.rep.Functions)
		w.rep.Functions[idx].ChildProtoIndices = append(w.rep.Functions[idx].ChildProtoIndices, ci)
		w.function(child, span.ID())
	}

	w.resolve(p, pending)
	span.WithExtra("children", fmt.Sprint(len(p.Protos))).End(w.rep.Functions[idx].ReturnKind.String())
	return idx
}

// describe fills the half of a function record that needs no instruction
// scanning.
func describe(p *luac.Proto) report.Function {
	src := p.Source
	if src == "" {
		src = "?"
	}
	fn := report.Function{
		Source:      src,
		LineDefined: int(p.LineDefined),
		LastLine:    int(p.LastLineDefined),
		ParamCount:  int(p.NumParams),
		IsVararg:    p.IsVararg,
		ReturnKind:  report.ReturnUnknown,
	}
	for i := 0; i < int(p.NumParams); i++ {
		name := p.LocalName(i)
		if name == "" {
			name = "(?)"
		}
		fn.ParamNames = append(fn.ParamNames, name)
	}
	fn.IsMethod = len(fn.ParamNames) > 0 && fn.ParamNames[0] == "self"
	for i := range p.Upvalues {
		name := p.UpvalueName(i)
		if name == "" {
			name = "(?)"
		}
		fn.UpvalueNames = append(fn.UpvalueNames, name)
	}
	for _, v := range p.Consts {
		fn.Constants = append(fn.Constants, constantEntry(v))
	}
	return fn
}

// constantEntry converts one constant-pool value into its wire record.
func constantEntry(v any) report.Constant {
	switch c := v.(type) {
	case string:
		return report.Constant{Kind: report.ConstString, Str: c}
	case int64:
		return report.Constant{Kind: report.ConstInteger, Int: c}
	case float64:
		return report.Constant{Kind: report.ConstFloat, Float: c}
	case bool:
		return report.Constant{Kind: report.ConstBool, Bool: c}
	}
	return report.Constant{Kind: report.ConstNil}
}

// tableShape remembers the most recent NEWTABLE's size hints. It is the
// fallback shape for a table return whose constructor the backward scan
// could not reach.
type tableShape struct {
	arraySize int
	hashSize  int
}

func (w *walker) scanCode(p *luac.Proto, fn *report.Function, span uint64) []pendingGlobal {
	var pending []pendingGlobal
	var lastTable tableShape

	for pc, ins := range p.Code {
		switch op := ins.OpCode(); op {
		case luac.OpNewTable:
			lastTable = tableShape{
				arraySize: luac.DecodeArraySize(p.Code, pc),
				hashSize:  luac.DecodeHashSize(ins.ArgB()),
			}
			if declared, present := luac.HasSizeContinuation(p.Code, pc); declared && !present {
				w.warnf(p, pc, diag.AnaMalformedSizeHint,
					"NEWTABLE declares an EXTRAARG size word that is missing; using the truncated hint")
			}

		case luac.OpReturn, luac.OpReturn0, luac.OpReturn1:
			kind := classifyReturn(p, pc)
			fn.ReturnKind = mergeReturnKind(fn.ReturnKind, kind)
			if kind == report.ReturnTable {
				arr, hsh := lastTable.arraySize, lastTable.hashSize
				if nt := newTablePC(p.Code, pc, int(ins.ArgA())); nt >= 0 {
					arr = luac.DecodeArraySize(p.Code, nt)
					hsh = luac.DecodeHashSize(p.Code[nt].ArgB())
				}
				fn.Table.ArraySize = arr
				fn.Table.HashSize = hsh
				fn.Table.EstimatedBytes = estimateTableBytes(arr, hsh)
			}

		case luac.OpClosure:
			if bx := int(ins.ArgBx()); bx < len(p.Protos) {
				child := p.Protos[bx]
				if len(child.Upvalues) > 0 {
					fn.Closures = append(fn.Closures, report.Closure{
						LineDefined:  int(child.LineDefined),
						UpvalueCount: len(child.Upvalues),
					})
					fn.Table.ContainsClosures = true
				}
			}

		case luac.OpSetTabUp:
			// Only writes through upvalue 0 count as global definitions.
			if ins.ArgA() != 0 {
				break
			}
			name, ok := p.StringConst(int(ins.ArgB()))
			if !ok {
				break
			}
			isFn := false
			var child *luac.Proto
			if !ins.K() {
				if origin, bx := closureOrigin(p.Code, pc, int(ins.ArgC())); origin == originClosure {
					isFn = true
					if bx >= 0 && bx < len(p.Protos) {
						child = p.Protos[bx]
					}
				}
			}
			slot := len(w.rep.Globals)
			w.upsertGlobal(name, isFn)
			if child != nil && len(w.rep.Globals) > slot {
				pending = append(pending, pendingGlobal{slot: slot, proto: child})
			}

		case luac.OpGetTabUp:
			field, ok := p.StringConst(int(ins.ArgC()))
			if !ok {
				break
			}
			table := "_ENV"
			if b := int(ins.ArgB()); b != 0 {
				if name := p.UpvalueName(b); name != "" {
					table = name
				}
			}
			addRead(fn, table, field)

		case luac.OpGetField:
			if field, ok := p.StringConst(int(ins.ArgC())); ok {
				addRead(fn, "?", field)
			}

		case luac.OpVararg:
			fn.IsVarargUsed = true

		case luac.OpCall, luac.OpTailCall:
			argc := -1
			if b := int(ins.ArgB()); b > 0 {
				argc = b - 1
			}
			kind, callee := resolveCallee(p, pc, int(ins.ArgA()))
			fn.CallSites = append(fn.CallSites, report.CallSite{
				Line:     p.LineForPC(pc),
				Kind:     kind,
				Callee:   callee,
				ArgCount: argc,
				IsTail:   op == luac.OpTailCall,
			})
			trace.Point(w.opts.Tracer, trace.ScopeInstr,
				"call:"+kind.String(),
				fmt.Sprintf("pc=%d callee=%q argc=%d", pc, callee, argc), span)
		}
	}
	return pending
}

// upsertGlobal records one global definition, deduplicated by name. A later
// function assignment promotes IsFunction on an existing entry; it never
// demotes.
func (w *walker) upsertGlobal(name string, isFn bool) {
	for i := range w.rep.Globals {
		if w.rep.Globals[i].Name == name {
			if isFn {
				w.rep.Globals[i].IsFunction = true
			}
			return
		}
	}
	w.rep.Globals = append(w.rep.Globals, report.Global{
		Name:          name,
		IsFunction:    isFn,
		FunctionIndex: -1,
	})
}

// addRead records one field access, deduplicated per function.
func addRead(fn *report.Function, table, field string) {
	for _, r := range fn.Reads {
		if r.TableName == table && r.FieldName == field {
			return
		}
	}
	fn.Reads = append(fn.Reads, report.Read{TableName: table, FieldName: field})
}

// resolve links pending global assignments to the function records created
// by the subtree walk. Prototype identity is exact; the line scan only
// catches a target reached through some other pointer.
func (w *walker) resolve(p *luac.Proto, pending []pendingGlobal) {
	for _, pg := range pending {
		if idx, ok := w.index[pg.proto]; ok {
			w.rep.Globals[pg.slot].FunctionIndex = idx
			continue
		}
		if idx := w.findByLine(pg.proto.LineDefined); idx >= 0 {
			w.rep.Globals[pg.slot].FunctionIndex = idx
			continue
		}
		w.warnf(p, -1, diag.AnaUnresolvedGlobalLink,
			"global %q is assigned a closure with no matching function record",
			w.rep.Globals[pg.slot].Name)
	}
}

func (w *walker) findByLine(line int32) int {
	for i := range w.rep.Functions {
		if w.rep.Functions[i].LineDefined == int(line) {
			return i
		}
	}
	return -1
}

func (w *walker) warnf(p *luac.Proto, pc int, code diag.Code, format string, args ...any) {
	if w.opts.Diags == nil {
		return
	}
	pos := diag.Pos{Chunk: p.Source, PC: pc}
	if pc >= 0 {
		pos.Line = p.LineForPC(pc)
	}
	w.opts.Diags.Add(diag.NewWarning(code, pos, fmt.Sprintf(format, args...)))
}

func chunkName(p *luac.Proto) string {
	if p.Source == "" {
		return "?"
	}
	return p.Source
}
