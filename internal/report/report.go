// Package report defines the interface report produced by the analyzer and
// its JSON wire form. The schema is a contract with downstream consumers:
// every field is always present, arrays are always arrays, booleans are
// true/false, and enums serialize as their integer values. Nothing here is
// versioned implicitly; schema changes bump LuaVersion consumers key on.
package report

// LuaVersion identifies the bytecode dialect the analyzer understands. It is
// emitted verbatim at the top of every report.
const LuaVersion = "5.4.7_rc4"

// ReturnKind classifies what a function returns. The integer values are part
// of the wire format.
type ReturnKind uint8

const (
	// ReturnUnknown means no return site could be classified.
	ReturnUnknown ReturnKind = iota
	// ReturnVoid means the function returns no values.
	ReturnVoid
	// ReturnTable means the function returns a freshly constructed table.
	ReturnTable
	// ReturnCall means the function returns another call's results.
	ReturnCall
	// ReturnUpvalue means the function returns an upvalue or field read.
	ReturnUpvalue
	// ReturnConstant means the function returns a literal constant.
	ReturnConstant
	// ReturnMulti means the function returns a variable number of values.
	ReturnMulti
	// ReturnMixed means different return sites disagree.
	ReturnMixed
)

func (k ReturnKind) String() string {
	switch k {
	case ReturnUnknown:
		return "unknown"
	case ReturnVoid:
		return "void"
	case ReturnTable:
		return "table"
	case ReturnCall:
		return "call"
	case ReturnUpvalue:
		return "upvalue"
	case ReturnConstant:
		return "constant"
	case ReturnMulti:
		return "multi"
	case ReturnMixed:
		return "mixed"
	}
	return "invalid"
}

// CallKind classifies how a call site resolves its callee.
type CallKind uint8

const (
	// CallUnknown is an unresolvable callee.
	CallUnknown CallKind = iota
	// CallGlobal is a call through the global environment.
	CallGlobal
	// CallField is a call through a table field.
	CallField
	// CallMethod is a method-style dispatch (colon syntax).
	CallMethod
	// CallLocal is a call of a local, upvalue, or inline closure.
	CallLocal
)

func (k CallKind) String() string {
	switch k {
	case CallUnknown:
		return "unknown"
	case CallGlobal:
		return "global"
	case CallField:
		return "field"
	case CallMethod:
		return "method"
	case CallLocal:
		return "local"
	}
	return "invalid"
}

// ConstKind tags the active payload of a Constant.
type ConstKind uint8

const (
	// ConstString selects the Str payload.
	ConstString ConstKind = iota
	// ConstInteger selects the Int payload.
	ConstInteger
	// ConstFloat selects the Float payload.
	ConstFloat
	// ConstBool selects the Bool payload.
	ConstBool
	// ConstNil has no payload.
	ConstNil
)

func (k ConstKind) String() string {
	switch k {
	case ConstString:
		return "string"
	case ConstInteger:
		return "integer"
	case ConstFloat:
		return "float"
	case ConstBool:
		return "bool"
	case ConstNil:
		return "null"
	}
	return "invalid"
}

// TableInfo describes the table a function returns. Sizes come from the
// constructor's preallocation hints; EstimatedBytes is the coarse heap cost
// model 32 + array*16 + hash*32. ContainsClosures is maintained for every
// function regardless of its return kind.
type TableInfo struct {
	ArraySize        int
	HashSize         int
	EstimatedBytes   int
	ContainsClosures bool
}

// Constant is one constant-pool entry in wire form. Exactly the payload
// selected by Kind is meaningful; the others hold zero values and are still
// serialized.
type Constant struct {
	Kind  ConstKind
	Str   string
	Int   int64
	Float float64
	Bool  bool
}

// Closure records a nested closure that captures at least one upvalue.
type Closure struct {
	LineDefined  int
	UpvalueCount int
}

// CallSite is one CALL or TAILCALL instruction with its resolved callee.
// ArgCount counts the value operands passed to the call, the implicit self
// of a method dispatch included; -1 means the count is dynamic.
type CallSite struct {
	Line     int
	Kind     CallKind
	Callee   string
	ArgCount int
	IsTail   bool
}

// Read is one observed field access, deduplicated per function. TableName is
// "_ENV" for globals, the upvalue's name when known, or "?".
type Read struct {
	TableName string
	FieldName string
}

// Global is one name written into the global environment anywhere in the
// prototype tree. FunctionIndex links to Functions when the assigned value
// was traced to a closure; -1 otherwise.
type Global struct {
	Name          string
	IsFunction    bool
	FunctionIndex int
}

// Function is the complete record for one prototype. Records appear in
// Functions in preorder; ChildProtoIndices are indices into that slice.
type Function struct {
	Source            string
	LineDefined       int
	LastLine          int
	ParamCount        int
	IsVararg          bool
	IsMethod          bool
	ParamNames        []string
	UpvalueNames      []string
	ReturnKind        ReturnKind
	Table             TableInfo
	IsVarargUsed      bool
	Closures          []Closure
	Constants         []Constant
	ChildProtoIndices []int
	CallSites         []CallSite
	Reads             []Read
}

// Report is the root document for one analyzed chunk.
type Report struct {
	LuaVersion string
	Functions  []Function
	Globals    []Global
}

// New returns an empty report carrying the current dialect tag.
func New() *Report {
	return &Report{LuaVersion: LuaVersion}
}
