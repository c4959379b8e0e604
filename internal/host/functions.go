package host

// ParamKind distinguishes the binding behavior of a parameter.
type ParamKind uint8

const (
	PosParam    ParamKind = iota // positional-or-keyword
	KwOnlyParam                  // keyword-only (after *)
	VarArgsParam                 // *args
	VarKwParam                   // **kwargs
)

// Param is one entry of a code object's signature.
type Param struct {
	Name string
	Kind ParamKind
}

// Code is the engine-visible shape of a host code object: enough to bind
// arguments and resolve free variables, nothing executable.
type Code struct {
	CoName   string
	Filename string
	Params   []Param
	FreeVars []string
}

// Cell is a closure cell.
type Cell struct {
	Contents Value
	Bound    bool
}

// MakeCell wraps a value into a bound cell.
func MakeCell(v Value) *Cell {
	return &Cell{Contents: v, Bound: true}
}

// Namespace is a mutable name->value mapping (module globals, frame
// builtins).
type Namespace map[string]Value

// Function is a host callable. Impl, when present, is the concrete behavior
// used for constant folding of pure functions; functions without Impl can
// only be inlined or emitted as graph nodes.
type Function struct {
	FnName     string
	Code       *Code
	Globals    Namespace
	Defaults   []Value
	KwDefaults map[string]Value
	Closure    []*Cell

	// Module is the qualified defining module ("builtins", "math",
	// "tensor", "tensor.nn.util", ...), used by allow/skip policy and
	// constant-function tables.
	Module string

	Impl func(args []Value, kwargs map[string]Value) (Value, error)
}

// QualName is the fully qualified function name.
func (f *Function) QualName() string {
	if f.Module == "" {
		return f.FnName
	}
	return f.Module + "." + f.FnName
}

// Filename reports the defining file, empty for native functions.
func (f *Function) Filename() string {
	if f.Code == nil {
		return ""
	}
	return f.Code.Filename
}

func (f *Function) String() string {
	return "<function " + f.QualName() + ">"
}

// Module is a host module object.
type Module struct {
	ModName  string
	Filename string
	Attrs    map[string]Value
}

func (m *Module) String() string {
	return "<module '" + m.ModName + "'>"
}
