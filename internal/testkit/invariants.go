package testkit

import (
	"fmt"

	"silt/internal/report"
)

// CheckReportInvariants runs the structural invariants every analyzer report
// must satisfy:
// 1) the version tag matches the dialect the analyzer understands
// 2) child indices point strictly forward into the function list (preorder),
//    no record is claimed as a child twice, and the root is nobody's child
// 3) global links stay in range and only function globals carry one
// 4) per-record counts and enum values are within their defined ranges
// 5) the table cost model agrees with the recorded sizes
func CheckReportInvariants(rep *report.Report) error {
	if rep == nil {
		return fmt.Errorf("nil report")
	}
	if rep.LuaVersion != report.LuaVersion {
		return fmt.Errorf("lua version %q, want %q", rep.LuaVersion, report.LuaVersion)
	}

	// 2) tree shape over the flat function list
	childRefs := make([]int, len(rep.Functions))
	for i := range rep.Functions {
		fn := &rep.Functions[i]
		for _, ci := range fn.ChildProtoIndices {
			if ci <= i || ci >= len(rep.Functions) {
				return fmt.Errorf("function %d: child index %d outside (%d, %d)", i, ci, i, len(rep.Functions))
			}
			childRefs[ci]++
			if childRefs[ci] > 1 {
				return fmt.Errorf("function %d claimed as a child twice", ci)
			}
		}
	}
	if len(rep.Functions) > 0 && childRefs[0] != 0 {
		return fmt.Errorf("root function claimed as a child")
	}
	for i := 1; i < len(childRefs); i++ {
		if childRefs[i] == 0 {
			return fmt.Errorf("function %d is unreachable from the root", i)
		}
	}

	// 4) + 5) per-record checks
	for i := range rep.Functions {
		fn := &rep.Functions[i]
		if fn.ParamCount != len(fn.ParamNames) {
			return fmt.Errorf("function %d: %d params but %d names", i, fn.ParamCount, len(fn.ParamNames))
		}
		if fn.ReturnKind > report.ReturnMixed {
			return fmt.Errorf("function %d: return kind %d out of range", i, fn.ReturnKind)
		}
		for si, cs := range fn.CallSites {
			if cs.Kind > report.CallLocal {
				return fmt.Errorf("function %d call %d: kind %d out of range", i, si, cs.Kind)
			}
			if cs.ArgCount < -1 {
				return fmt.Errorf("function %d call %d: arg count %d", i, si, cs.ArgCount)
			}
		}
		for ki, c := range fn.Constants {
			if c.Kind > report.ConstNil {
				return fmt.Errorf("function %d constant %d: kind %d out of range", i, ki, c.Kind)
			}
		}
		// Field names may be empty: "" is a valid table key. Table names
		// always carry at least the "_ENV" or "?" placeholder.
		for ri, r := range fn.Reads {
			if r.TableName == "" {
				return fmt.Errorf("function %d read %d: empty table name", i, ri)
			}
		}
		ti := fn.Table
		if ti.ArraySize < 0 || ti.HashSize < 0 {
			return fmt.Errorf("function %d: negative table sizes %+v", i, ti)
		}
		if ti.EstimatedBytes != 0 && ti.EstimatedBytes != 32+ti.ArraySize*16+ti.HashSize*32 {
			return fmt.Errorf("function %d: estimated bytes %d disagree with sizes %d/%d",
				i, ti.EstimatedBytes, ti.ArraySize, ti.HashSize)
		}
	}

	// 3) global links; an empty global name is legal, "" is a valid key
	for _, g := range rep.Globals {
		if g.FunctionIndex < -1 || g.FunctionIndex >= len(rep.Functions) {
			return fmt.Errorf("global %q: function index %d out of range", g.Name, g.FunctionIndex)
		}
		if g.FunctionIndex >= 0 && !g.IsFunction {
			return fmt.Errorf("global %q: linked to function %d but not marked one", g.Name, g.FunctionIndex)
		}
	}
	return nil
}
