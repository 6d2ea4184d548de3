package report_test

import (
	"bytes"
	"encoding/json"
	"math"
	"testing"

	"silt/internal/report"
)

func fullFixture() *report.Report {
	r := report.New()
	r.Functions = append(r.Functions, report.Function{
		Source:       "@demo.lua",
		LineDefined:  3,
		LastLine:     9,
		ParamCount:   2,
		IsMethod:     true,
		ParamNames:   []string{"self", "n"},
		UpvalueNames: []string{"_ENV"},
		ReturnKind:   report.ReturnTable,
		Table: report.TableInfo{
			ArraySize:        4,
			HashSize:         2,
			EstimatedBytes:   160,
			ContainsClosures: true,
		},
		Closures: []report.Closure{{LineDefined: 5, UpvalueCount: 1}},
		Constants: []report.Constant{
			{Kind: report.ConstString, Str: "name"},
			{Kind: report.ConstInteger, Int: -7},
			{Kind: report.ConstFloat, Float: 0.5},
			{Kind: report.ConstBool, Bool: true},
			{Kind: report.ConstNil},
		},
		ChildProtoIndices: []int{1},
		CallSites: []report.CallSite{
			{Line: 6, Kind: report.CallGlobal, Callee: "print", ArgCount: 1},
		},
		Reads: []report.Read{{TableName: "_ENV", FieldName: "print"}},
	})
	r.Globals = append(r.Globals,
		report.Global{Name: "make", IsFunction: true, FunctionIndex: 1},
		report.Global{Name: "version", IsFunction: false, FunctionIndex: -1},
	)
	return r
}

const fullGolden = `{
  "lua_version": "5.4.7_rc4",
  "functions": [
    {
      "source": "@demo.lua",
      "line_defined": 3,
      "last_line": 9,
      "param_count": 2,
      "is_vararg": false,
      "is_method": true,
      "param_names": [
        "self",
        "n"
      ],
      "upvalue_names": [
        "_ENV"
      ],
      "return_kind": 2,
      "table_info": {
        "array_size": 4,
        "hash_size": 2,
        "estimated_bytes": 160,
        "contains_closures": true
      },
      "is_vararg_used": false,
      "closures": [
        {"line_defined": 5, "upvalue_count": 1}
      ],
      "constants": [
        {"kind": 0, "s_val": "name", "i_val": 0, "f_val": 0.0, "b_val": false},
        {"kind": 1, "s_val": null, "i_val": -7, "f_val": 0.0, "b_val": false},
        {"kind": 2, "s_val": null, "i_val": 0, "f_val": 0.5, "b_val": false},
        {"kind": 3, "s_val": null, "i_val": 0, "f_val": 0.0, "b_val": true},
        {"kind": 4, "s_val": null, "i_val": 0, "f_val": 0.0, "b_val": false}
      ],
      "child_proto_indices": [
        1
      ],
      "call_sites": [
        {"line": 6, "kind": 1, "callee": "print", "arg_count": 1, "is_tail": false}
      ],
      "reads": [
        {"table_name": "_ENV", "field_name": "print"}
      ]
    }
  ],
  "globals": [
    {"name": "make", "is_function": true, "function_index": 1},
    {"name": "version", "is_function": false, "function_index": -1}
  ]
}
`

func TestJSONGolden(t *testing.T) {
	got := fullFixture().JSON()
	if got != fullGolden {
		t.Fatalf("serialized report differs from golden\ngot:\n%s\nwant:\n%s", got, fullGolden)
	}
}

const emptyGolden = `{
  "lua_version": "5.4.7_rc4",
  "functions": [
  ],
  "globals": [
  ]
}
`

func TestJSONEmptyReport(t *testing.T) {
	if got := report.New().JSON(); got != emptyGolden {
		t.Fatalf("empty report = %q, want %q", got, emptyGolden)
	}
}

// Functions with no recorded aggregates still serialize every field: name
// lists collapse to [] while the aggregate arrays stay bracketed across
// lines. Consumers pattern-match on this shape.
func TestJSONEmptyAggregates(t *testing.T) {
	r := report.New()
	r.Functions = append(r.Functions, report.Function{Source: "@empty.lua"})
	got := r.JSON()

	for _, frag := range []string{
		"\"param_names\": [],\n",
		"\"upvalue_names\": [],\n",
		"\"closures\": [\n      ],\n",
		"\"constants\": [\n      ],\n",
		"\"child_proto_indices\": [\n      ],\n",
		"\"call_sites\": [\n      ],\n",
		"\"reads\": [\n      ]\n",
	} {
		if !bytes.Contains([]byte(got), []byte(frag)) {
			t.Errorf("output missing fragment %q\n%s", frag, got)
		}
	}
}

func TestJSONDeterministic(t *testing.T) {
	r := fullFixture()
	first := r.JSON()
	second := r.JSON()
	if first != second {
		t.Fatal("repeated serialization of the same report differs")
	}

	var buf bytes.Buffer
	if err := r.WriteJSON(&buf); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if buf.String() != first {
		t.Fatal("WriteJSON and JSON disagree")
	}
}

// The output must parse as standard JSON with exactly the documented keys.
func TestJSONRoundTrip(t *testing.T) {
	var doc struct {
		LuaVersion string `json:"lua_version"`
		Functions  []struct {
			Source     string          `json:"source"`
			ParamNames []string        `json:"param_names"`
			ReturnKind int             `json:"return_kind"`
			TableInfo  map[string]any  `json:"table_info"`
			Constants  []map[string]any `json:"constants"`
		} `json:"functions"`
		Globals []struct {
			Name          string `json:"name"`
			IsFunction    bool   `json:"is_function"`
			FunctionIndex int    `json:"function_index"`
		} `json:"globals"`
	}
	if err := json.Unmarshal([]byte(fullFixture().JSON()), &doc); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if doc.LuaVersion != report.LuaVersion {
		t.Errorf("lua_version = %q", doc.LuaVersion)
	}
	if len(doc.Functions) != 1 || len(doc.Globals) != 2 {
		t.Fatalf("decoded %d functions, %d globals", len(doc.Functions), len(doc.Globals))
	}
	if doc.Functions[0].ReturnKind != int(report.ReturnTable) {
		t.Errorf("return_kind = %d", doc.Functions[0].ReturnKind)
	}
	if doc.Functions[0].Constants[1]["s_val"] != nil {
		t.Error("integer constant serialized a non-null s_val")
	}
	if doc.Globals[1].FunctionIndex != -1 {
		t.Errorf("unresolved global index = %d", doc.Globals[1].FunctionIndex)
	}
}

func TestJSONStringEscaping(t *testing.T) {
	r := report.New()
	r.Globals = append(r.Globals, report.Global{
		Name:          "a\"b\\c\nd\x01",
		FunctionIndex: -1,
	})
	got := r.JSON()
	want := `{"name": "a\"b\\c\nd", "is_function": false, "function_index": -1}`
	if !bytes.Contains([]byte(got), []byte(want)) {
		t.Fatalf("escaped global line missing\nwant fragment: %s\ngot: %s", want, got)
	}
	if !json.Valid([]byte(got)) {
		t.Fatal("escaped output is not valid JSON")
	}
}

// A crafted chunk can put NaN or an infinity in the constant pool; neither
// has a JSON spelling, so f_val degrades to null.
func TestJSONNonFiniteFloats(t *testing.T) {
	r := report.New()
	r.Functions = append(r.Functions, report.Function{
		Source: "@nan.lua",
		Constants: []report.Constant{
			{Kind: report.ConstFloat, Float: math.NaN()},
			{Kind: report.ConstFloat, Float: math.Inf(1)},
			{Kind: report.ConstFloat, Float: math.Inf(-1)},
			{Kind: report.ConstFloat, Float: 0.5},
		},
	})
	got := r.JSON()
	if !json.Valid([]byte(got)) {
		t.Fatalf("non-finite constants produced invalid JSON:\n%s", got)
	}
	if n := bytes.Count([]byte(got), []byte(`"f_val": null`)); n != 3 {
		t.Fatalf("want 3 null f_val entries, got %d:\n%s", n, got)
	}
	if !bytes.Contains([]byte(got), []byte(`"f_val": 0.5`)) {
		t.Fatalf("finite constant lost:\n%s", got)
	}
}

// Enum values are wire format; renames are fine, renumbering is not.
func TestEnumValues(t *testing.T) {
	retKinds := map[report.ReturnKind]int{
		report.ReturnUnknown: 0, report.ReturnVoid: 1, report.ReturnTable: 2,
		report.ReturnCall: 3, report.ReturnUpvalue: 4, report.ReturnConstant: 5,
		report.ReturnMulti: 6, report.ReturnMixed: 7,
	}
	for k, want := range retKinds {
		if int(k) != want {
			t.Errorf("ReturnKind %s = %d, want %d", k, int(k), want)
		}
	}
	callKinds := map[report.CallKind]int{
		report.CallUnknown: 0, report.CallGlobal: 1, report.CallField: 2,
		report.CallMethod: 3, report.CallLocal: 4,
	}
	for k, want := range callKinds {
		if int(k) != want {
			t.Errorf("CallKind %s = %d, want %d", k, int(k), want)
		}
	}
	constKinds := map[report.ConstKind]int{
		report.ConstString: 0, report.ConstInteger: 1, report.ConstFloat: 2,
		report.ConstBool: 3, report.ConstNil: 4,
	}
	for k, want := range constKinds {
		if int(k) != want {
			t.Errorf("ConstKind %s = %d, want %d", k, int(k), want)
		}
	}
}

func TestEnumStrings(t *testing.T) {
	if report.ReturnMixed.String() != "mixed" || report.ReturnKind(99).String() != "invalid" {
		t.Error("ReturnKind.String misbehaves")
	}
	if report.CallMethod.String() != "method" || report.CallKind(99).String() != "invalid" {
		t.Error("CallKind.String misbehaves")
	}
	if report.ConstNil.String() != "null" || report.ConstKind(99).String() != "invalid" {
		t.Error("ConstKind.String misbehaves")
	}
}
