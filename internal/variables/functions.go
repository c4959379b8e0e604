package variables

import (
	"strings"

	"github.com/symtrace/symtrace/internal/host"
)

// Inlinable is the contract the driver's inliner needs from a function
// variable: bind call arguments into a fresh symbolic local map, surface
// the code object to walk, and flow writes to free variables back out.
type Inlinable interface {
	Variable
	FnCode() *host.Code
	FnGlobals() host.Namespace
	BindArgs(parent Tx, args []Variable, kwargs Kwargs) (map[string]Variable, error)
	ExportFreevars(parent, child Tx)
}

// UserFunctionVariable tracks a plain traced-program function that will be
// inlined rather than recorded as a graph call.
type UserFunctionVariable struct {
	base
	Fn *host.Function
}

// NewUserFunction wraps fn for inlining.
func NewUserFunction(fn *host.Function, opts Options) *UserFunctionVariable {
	invariant(fn.Code != nil, "cannot inline native function %s", fn.QualName())
	return &UserFunctionVariable{base: makeBase(opts), Fn: fn}
}

func (f *UserFunctionVariable) VarType() VarType { return USER_FUNC_VAR }

func (f *UserFunctionVariable) String() string {
	return "UserFunctionVariable(" + f.Fn.QualName() + ")"
}

func (f *UserFunctionVariable) clone(opts Options) Variable {
	return &UserFunctionVariable{base: makeBase(opts), Fn: f.Fn}
}

func (f *UserFunctionVariable) mapOver(fn func(Variable) Variable) Variable {
	return f.clone(f.options())
}

func (f *UserFunctionVariable) TypeOf() (host.Type, error) { return host.FunctionType, nil }

func (f *UserFunctionVariable) FnCode() *host.Code { return f.Fn.Code }

func (f *UserFunctionVariable) FnGlobals() host.Namespace { return f.Fn.Globals }

func (f *UserFunctionVariable) selfArgs() []Variable { return nil }

func (f *UserFunctionVariable) CallFunction(tx Tx, args []Variable, kwargs Kwargs) (Variable, error) {
	return tx.InlineUserFunctionReturn(f, append(f.selfArgs(), args...), kwargs)
}

// BindArgs binds a call onto the function signature. Literal defaults are
// wrapped as constants sharing this function's guards; non-literal defaults
// would need their own provenance, which a default has none of.
func (f *UserFunctionVariable) BindArgs(parent Tx, args []Variable, kwargs Kwargs) (map[string]Variable, error) {
	defaults, kwdefaults, err := f.wrapDefaults()
	if err != nil {
		return nil, err
	}
	return bindSignature(f.Fn.Code, defaults, kwdefaults, args, kwargs)
}

func (f *UserFunctionVariable) wrapDefaults() ([]Variable, map[string]Variable, error) {
	opts := Propagate(f)
	var defaults []Variable
	for _, d := range f.Fn.Defaults {
		if !host.IsLiteral(d) {
			return nil, nil, unsupported("%s has non-literal default %s", f, host.Repr(d))
		}
		defaults = append(defaults, NewConstant(d, opts))
	}
	var kwdefaults map[string]Variable
	if len(f.Fn.KwDefaults) > 0 {
		kwdefaults = make(map[string]Variable, len(f.Fn.KwDefaults))
		for k, d := range f.Fn.KwDefaults {
			if !host.IsLiteral(d) {
				return nil, nil, unsupported("%s has non-literal default %s", f, host.Repr(d))
			}
			kwdefaults[k] = NewConstant(d, opts)
		}
	}
	return defaults, kwdefaults, nil
}

// ExportFreevars is a no-op: a plain function's free variables live in its
// closure cells, not the parent frame.
func (f *UserFunctionVariable) ExportFreevars(parent, child Tx) {}

// UserMethodVariable is a bound method of a tracked receiver.
type UserMethodVariable struct {
	base
	Fn  *host.Function
	Obj Variable
}

// NewUserMethod binds fn to obj. Library-layer methods without a code
// object are allowed; they only ever take the layer fast path.
func NewUserMethod(fn *host.Function, obj Variable, opts Options) *UserMethodVariable {
	return &UserMethodVariable{base: makeBase(opts), Fn: fn, Obj: obj}
}

func (m *UserMethodVariable) VarType() VarType { return USER_METHOD_VAR }

func (m *UserMethodVariable) String() string {
	return "UserMethodVariable(" + m.Fn.QualName() + ")"
}

func (m *UserMethodVariable) clone(opts Options) Variable {
	return &UserMethodVariable{base: makeBase(opts), Fn: m.Fn, Obj: m.Obj}
}

func (m *UserMethodVariable) mapOver(fn func(Variable) Variable) Variable {
	return &UserMethodVariable{base: makeBase(m.options()), Fn: m.Fn, Obj: fn(m.Obj)}
}

func (m *UserMethodVariable) TypeOf() (host.Type, error) { return host.MethodType, nil }

func (m *UserMethodVariable) FnCode() *host.Code { return m.Fn.Code }

func (m *UserMethodVariable) FnGlobals() host.Namespace { return m.Fn.Globals }

func (m *UserMethodVariable) CallFunction(tx Tx, args []Variable, kwargs Kwargs) (Variable, error) {
	// methods of library layers short-circuit into the layer's own
	// symbolic method handling instead of inlining library internals
	if layer, ok := m.Obj.(*LayerVariable); ok && strings.HasPrefix(m.Fn.Module, "tensor.nn") {
		out, err := layer.CallMethod(tx, m.Fn.FnName, args, kwargs)
		if err != nil {
			return nil, err
		}
		return AddGuards(out, m.guardSet), nil
	}
	if m.Fn.Code == nil {
		return nil, unsupported("call of native method %s", m.Fn.QualName())
	}
	return tx.InlineUserFunctionReturn(m, append([]Variable{m.Obj}, args...), kwargs)
}

func (m *UserMethodVariable) BindArgs(parent Tx, args []Variable, kwargs Kwargs) (map[string]Variable, error) {
	fn := &UserFunctionVariable{base: makeBase(m.options()), Fn: m.Fn}
	return fn.BindArgs(parent, args, kwargs)
}

func (m *UserMethodVariable) ExportFreevars(parent, child Tx) {}

// NestedUserFunctionVariable tracks a function object created inside the
// traced region (MAKE_FUNCTION). Its pieces are still variables; the
// closure resolves against the parent frame's symbolic locals.
type NestedUserFunctionVariable struct {
	base
	FnName      Variable // constant string
	Code        Variable // constant *host.Code
	FnGlobalsNS host.Namespace
	Defaults    Variable // *TupleVariable or nil
	KwDefaults  Variable // *ConstDictVariable or nil
	Annotations Variable // or nil
	ClosureVars Variable // *TupleVariable of ClosureVariable or nil
}

// NewNestedUserFunction assembles a function object from stack pieces.
func NewNestedUserFunction(fnName, code Variable, globals host.Namespace, defaults, kwdefaults, annotations, closure Variable, opts Options) *NestedUserFunctionVariable {
	nameVal, err := AsConstant(fnName)
	_, nameOK := nameVal.(string)
	invariant(err == nil && nameOK, "nested function name %s is not a constant string", fnName)
	codeVal, err := AsConstant(code)
	_, codeOK := codeVal.(*host.Code)
	invariant(err == nil && codeOK, "nested function code %s is not a code constant", code)
	return &NestedUserFunctionVariable{
		base:        makeBase(opts),
		FnName:      fnName,
		Code:        code,
		FnGlobalsNS: globals,
		Defaults:    defaults,
		KwDefaults:  kwdefaults,
		Annotations: annotations,
		ClosureVars: closure,
	}
}

func (f *NestedUserFunctionVariable) VarType() VarType { return NESTED_FUNC_VAR }

func (f *NestedUserFunctionVariable) String() string {
	name, _ := AsConstant(f.FnName)
	return "NestedUserFunctionVariable(" + name.(string) + ")"
}

func (f *NestedUserFunctionVariable) clone(opts Options) Variable {
	out := *f
	out.base = makeBase(opts)
	return &out
}

func (f *NestedUserFunctionVariable) mapOver(fn func(Variable) Variable) Variable {
	mapped := func(v Variable) Variable {
		if v == nil {
			return nil
		}
		return fn(v)
	}
	return &NestedUserFunctionVariable{
		base:        makeBase(f.options()),
		FnName:      mapped(f.FnName),
		Code:        mapped(f.Code),
		FnGlobalsNS: f.FnGlobalsNS,
		Defaults:    mapped(f.Defaults),
		KwDefaults:  mapped(f.KwDefaults),
		Annotations: mapped(f.Annotations),
		ClosureVars: mapped(f.ClosureVars),
	}
}

func (f *NestedUserFunctionVariable) TypeOf() (host.Type, error) { return host.FunctionType, nil }

func (f *NestedUserFunctionVariable) FnCode() *host.Code {
	v, err := AsConstant(f.Code)
	invariant(err == nil, "nested function code vanished")
	return v.(*host.Code)
}

func (f *NestedUserFunctionVariable) FnGlobals() host.Namespace { return f.FnGlobalsNS }

func (f *NestedUserFunctionVariable) CallFunction(tx Tx, args []Variable, kwargs Kwargs) (Variable, error) {
	return tx.InlineUserFunctionReturn(f, args, kwargs)
}

func (f *NestedUserFunctionVariable) closureItems() []Variable {
	if f.ClosureVars == nil {
		return nil
	}
	tup, ok := f.ClosureVars.(*TupleVariable)
	invariant(ok, "nested function closure is %s, not a tuple", f.ClosureVars)
	return tup.Items
}

// BindArgs binds the signature, then resolves each free variable through
// the closure against the parent frame's live symbolic locals.
func (f *NestedUserFunctionVariable) BindArgs(parent Tx, args []Variable, kwargs Kwargs) (map[string]Variable, error) {
	code := f.FnCode()

	var defaults []Variable
	if f.Defaults != nil {
		tup, ok := f.Defaults.(*TupleVariable)
		invariant(ok, "nested function defaults are %s, not a tuple", f.Defaults)
		defaults = tup.Items
	}
	var kwdefaults map[string]Variable
	if f.KwDefaults != nil {
		d, ok := f.KwDefaults.(*ConstDictVariable)
		invariant(ok, "nested function kwdefaults are %s, not a dict", f.KwDefaults)
		kwdefaults = make(map[string]Variable, d.Len())
		for _, k := range d.Keys() {
			name, ok := k.(string)
			invariant(ok, "kwdefault key %v is not a name", k)
			v, _ := d.Entry(k)
			kwdefaults[name] = v
		}
	}

	result, err := bindSignature(code, defaults, kwdefaults, args, kwargs)
	if err != nil {
		return nil, err
	}

	closure := f.closureItems()
	locals := parent.SymbolicLocals()
	for i, freevar := range code.FreeVars {
		if i >= len(closure) {
			return nil, unsupported("%s: free variable %s has no closure cell", f, freevar)
		}
		cell, ok := closure[i].(*ClosureVariable)
		if !ok {
			return nil, unsupported("%s: closure cell for %s is %s", f, freevar, closure[i])
		}
		invariant(cell.Name == freevar, "closure cell %s bound to free variable %s", cell.Name, freevar)
		v, ok := locals[freevar]
		if !ok {
			return nil, unsupported("%s: free variable %s not live in parent frame", f, freevar)
		}
		_, bound := result[freevar]
		invariant(!bound, "free variable %s collides with parameter", freevar)
		result[freevar] = v
	}
	return result, nil
}

// ExportFreevars flows free-variable bindings created inside the inlined
// frame back into the parent, so writes through cells stay visible.
func (f *NestedUserFunctionVariable) ExportFreevars(parent, child Tx) {
	childLocals := child.SymbolicLocals()
	parentLocals := parent.SymbolicLocals()
	for _, freevar := range f.FnCode().FreeVars {
		if v, ok := childLocals[freevar]; ok {
			parentLocals[freevar] = v
		}
	}
}

// make-function flag bits of the host VM
const (
	mkfnDefaults    = 0x01
	mkfnKwDefaults  = 0x02
	mkfnAnnotations = 0x04
	mkfnClosure     = 0x08
)

func (f *NestedUserFunctionVariable) Reconstruct(cg Codegen) ([]Instruction, error) {
	flags := 0
	if f.Defaults != nil {
		flags |= mkfnDefaults
		if err := cg.Emit(f.Defaults); err != nil {
			return nil, err
		}
	}
	if f.KwDefaults != nil {
		flags |= mkfnKwDefaults
		if err := cg.Emit(f.KwDefaults); err != nil {
			return nil, err
		}
	}
	if f.Annotations != nil {
		flags |= mkfnAnnotations
		if err := cg.Emit(f.Annotations); err != nil {
			return nil, err
		}
	}
	if f.ClosureVars != nil {
		flags |= mkfnClosure
		if err := cg.Emit(f.ClosureVars); err != nil {
			return nil, err
		}
	}
	if err := cg.Emit(f.Code); err != nil {
		return nil, err
	}
	if err := cg.Emit(f.FnName); err != nil {
		return nil, err
	}
	return []Instruction{Inst("MAKE_FUNCTION", flags)}, nil
}

// bindSignature applies host call-binding rules: positionals fill
// positional-or-keyword params (overflow into *args), keywords fill by
// name (overflow into **kwargs), defaults fill the rest. Anything that
// would raise at call time in the host is a graph break.
func bindSignature(code *host.Code, defaults []Variable, kwdefaults map[string]Variable, args []Variable, kwargs Kwargs) (map[string]Variable, error) {
	result := make(map[string]Variable)

	var posNames []string
	varArgs, varKw := "", ""
	var kwOnly []string
	for _, p := range code.Params {
		switch p.Kind {
		case host.PosParam:
			posNames = append(posNames, p.Name)
		case host.KwOnlyParam:
			kwOnly = append(kwOnly, p.Name)
		case host.VarArgsParam:
			varArgs = p.Name
		case host.VarKwParam:
			varKw = p.Name
		}
	}

	n := len(args)
	if n > len(posNames) {
		n = len(posNames)
	}
	for i := 0; i < n; i++ {
		result[posNames[i]] = args[i]
	}
	extra := args[n:]
	if len(extra) > 0 && varArgs == "" {
		return nil, unsupported("%s() takes %d positional arguments, got %d", code.CoName, len(posNames), len(args))
	}
	if varArgs != "" {
		result[varArgs] = NewTuple(append([]Variable{}, extra...), Propagate(extra))
	}

	var extraKw map[host.Value]Variable
	if varKw != "" {
		extraKw = make(map[host.Value]Variable)
	}
	for name, v := range kwargs {
		if _, dup := result[name]; dup {
			return nil, unsupported("%s() got multiple values for %s", code.CoName, name)
		}
		if nameIn(name, posNames) || nameIn(name, kwOnly) {
			result[name] = v
		} else if extraKw != nil {
			extraKw[name] = v
		} else {
			return nil, unsupported("%s() got unexpected keyword %s", code.CoName, name)
		}
	}
	if varKw != "" {
		result[varKw] = NewConstDict(extraKw, Propagate(kwargs))
	}

	// trailing positional defaults align to the last positional params
	firstDefault := len(posNames) - len(defaults)
	for i, name := range posNames {
		if _, ok := result[name]; ok {
			continue
		}
		if i >= firstDefault && firstDefault >= 0 {
			result[name] = defaults[i-firstDefault]
			continue
		}
		return nil, unsupported("%s() missing argument %s", code.CoName, name)
	}
	for _, name := range kwOnly {
		if _, ok := result[name]; ok {
			continue
		}
		if d, ok := kwdefaults[name]; ok {
			result[name] = d
			continue
		}
		return nil, unsupported("%s() missing keyword-only argument %s", code.CoName, name)
	}
	return result, nil
}

func nameIn(name string, names []string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
