package variables

import (
	"regexp"

	"github.com/symtrace/symtrace/internal/config"
	"github.com/symtrace/symtrace/internal/graph"
	"github.com/symtrace/symtrace/internal/host"
)

// AllowedVariable tracks a value from an allowlisted library module:
// functions recorded as graph calls instead of being inlined, plus dtype,
// device and class objects from the same modules.
type AllowedVariable struct {
	base
	Value host.Value
}

// NewAllowed wraps an allowlisted library value.
func NewAllowed(value host.Value, opts Options) *AllowedVariable {
	return &AllowedVariable{base: makeBase(opts), Value: value}
}

func (a *AllowedVariable) VarType() VarType { return ALLOWED_VAR }

func (a *AllowedVariable) String() string {
	return "AllowedVariable(" + host.Repr(a.Value) + ")"
}

func (a *AllowedVariable) clone(opts Options) Variable {
	return &AllowedVariable{base: makeBase(opts), Value: a.Value}
}

func (a *AllowedVariable) mapOver(fn func(Variable) Variable) Variable {
	return a.clone(a.options())
}

func (a *AllowedVariable) AsConstant() (host.Value, error) { return a.Value, nil }

func (a *AllowedVariable) AsProxy() (interface{}, error) { return a.Value, nil }

func (a *AllowedVariable) TypeOf() (host.Type, error) {
	switch a.Value.(type) {
	case *host.TensorMeta:
		return host.TensorType, nil
	case *host.DType:
		return host.DTypeType, nil
	case host.Device:
		return host.DeviceType, nil
	case *host.Class, *host.BuiltinType:
		return host.TypeType, nil
	}
	return nil, unsupported("%s has no known host type", a)
}

var varNameBad = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

// UniqueVarName is the synthetic global name the reconstruction caches this
// value under.
func (a *AllowedVariable) UniqueVarName() string {
	name := host.Repr(a.Value)
	if fn, ok := a.Value.(*host.Function); ok {
		name = fn.QualName()
	}
	return "__" + varNameBad.ReplaceAllString(name, "_")
}

func (a *AllowedVariable) Reconstruct(cg Codegen) ([]Instruction, error) {
	return cg.SetupGloballyCached(a.UniqueVarName(), a.Value), nil
}

// GetConstAttr resolves attributes of allowlisted modules and classes
// statically.
func (a *AllowedVariable) GetConstAttr(tx Tx, name string) (host.Value, error) {
	switch v := a.Value.(type) {
	case *host.Module:
		if attr, ok := v.Attrs[name]; ok {
			return attr, nil
		}
	case *host.Class:
		if attr, ok := v.ClassAttr(name); ok {
			return attr, nil
		}
	}
	return nil, unsupported("getattr %s.%s", a, name)
}

func (a *AllowedVariable) canFold() bool {
	switch a.Value {
	case host.IsTensorFn, host.IsFloatingPointFn:
		return true
	}
	if fn, ok := a.Value.(*host.Function); ok {
		return fn.Module == "math" && fn.Impl != nil
	}
	return false
}

func (a *AllowedVariable) CallFunction(tx Tx, args []Variable, kwargs Kwargs) (Variable, error) {
	opts := Propagate(a, args, kwargs)
	allConst := checkConstantArgs(args, kwargs)

	// configuration can pin whole functions to constant results
	if fn, ok := a.Value.(*host.Function); ok {
		if result, pinned := config.ConstantFunction(fn.QualName()); pinned {
			invariant(len(args) == 0 && len(kwargs) == 0, "constant function %s called with arguments", fn.QualName())
			return NewConstant(result, opts), nil
		}
	}

	if a.canFold() && allConst {
		fn := a.Value.(*host.Function)
		if fn.Impl == nil {
			return a.foldPredicate(args, opts)
		}
		vals, kwvals, err := constantArgs(args, kwargs)
		if err != nil {
			return nil, err
		}
		out, err := fn.Impl(vals, kwvals)
		if err != nil {
			return nil, unsupported("folding %s: %v", fn.QualName(), err)
		}
		return NewConstant(out, opts), nil
	}

	// stateful layer classes are not constructed symbolically, except the
	// ones rewritten onto their stateless functional form
	if cls, ok := a.Value.(*host.Class); ok {
		if cls == host.SoftmaxClass {
			return a.callSoftmax(tx, args, kwargs, opts)
		}
		for _, c := range cls.MRO() {
			if c == host.BaseLayerClass {
				return nil, unsupported("construct layer class %s inside trace", cls.ClsName)
			}
		}
		return nil, unsupported("construct %s inside trace", cls.ClsName)
	}

	// metadata predicates over symbolic tensors fold from specialization
	if (a.Value == host.IsTensorFn || a.Value == host.IsFloatingPointFn) && len(args) == 1 {
		if t, ok := args[0].(*TensorVariable); ok {
			if a.Value == host.IsTensorFn {
				return NewConstant(true, opts), nil
			}
			if t.DType != nil {
				return NewConstant(t.DType.Floating, opts), nil
			}
		}
	}
	if a.Value == host.NumelFn && len(args) == 1 {
		if t, ok := args[0].(*TensorVariable); ok && t.Size != nil {
			n := 1
			for _, s := range t.Size {
				n *= s
			}
			return NewConstant(n, opts), nil
		}
	}

	if fn, ok := a.Value.(*host.Function); ok && isNTupleFamily(fn) {
		return a.callNTuple(tx, fn, args, kwargs, opts)
	}

	if !config.DynamicShapes {
		if name, dyn := a.dynamicShapeCall(args, kwargs); dyn {
			return nil, unsupported("%s produces data-dependent shapes", name)
		}
	}

	fn, ok := a.Value.(*host.Function)
	if !ok {
		return nil, unsupported("call_function %s %s %s", a, fmtVars(args), fmtKwargs(kwargs))
	}
	pArgs, pKwargs, err := proxyArgs(args, kwargs)
	if err != nil {
		return nil, err
	}
	return CreateTensor(tx, tx.CreateProxy(graph.CallFunction, fn, pArgs, pKwargs), nil, nil, opts)
}

func (a *AllowedVariable) foldPredicate(args []Variable, opts Options) (Variable, error) {
	if len(args) != 1 {
		return nil, unsupported("%s arity", a)
	}
	v, err := AsConstant(args[0])
	if err != nil {
		return nil, err
	}
	switch a.Value {
	case host.IsTensorFn:
		_, isT := v.(*host.TensorMeta)
		return NewConstant(isT, opts), nil
	case host.IsFloatingPointFn:
		t, isT := v.(*host.TensorMeta)
		return NewConstant(isT && t.DType.Floating, opts), nil
	}
	return nil, unsupported("%s is not foldable", a)
}

// callSoftmax rewrites construction of the stateful softmax layer into a
// lambda closing over the stateless functional form.
func (a *AllowedVariable) callSoftmax(tx Tx, args []Variable, kwargs Kwargs, opts Options) (Variable, error) {
	var dim Variable
	switch {
	case len(args) >= 1:
		dim = args[0]
	case kwargs["dim"] != nil:
		dim = kwargs["dim"]
	default:
		dim = NewConstant(nil, Options{})
	}
	fn := func(callArgs []Variable, callKwargs Kwargs) (Variable, error) {
		if len(callArgs) != 1 || len(callKwargs) != 0 {
			return nil, unsupported("softmax forward arity")
		}
		input := callArgs[0]
		callOpts := Propagate(input, dim)
		pArgs, _, err := proxyArgs([]Variable{input, dim}, nil)
		if err != nil {
			return nil, err
		}
		proxy := tx.CreateProxy(graph.CallFunction, host.FunctionalSoftmaxFn, pArgs, nil)
		return CreateTensor(tx, proxy, nil, nil, callOpts)
	}
	return NewLambda(fn, opts), nil
}

func isNTupleFamily(fn *host.Function) bool {
	switch fn {
	case host.NTupleFn, host.SingleFn, host.PairFn, host.TripleFn, host.QuadrupleFn:
		return true
	}
	return false
}

// callNTuple handles the scalar-broadcast helper family: fixed-arity
// instances broadcast immediately, the factory returns a broadcasting
// lambda.
func (a *AllowedVariable) callNTuple(tx Tx, fn *host.Function, args []Variable, kwargs Kwargs, opts Options) (Variable, error) {
	if len(kwargs) != 0 || len(args) != 1 {
		return nil, unsupported("%s arity", fn.QualName())
	}

	handler := func(count int) func([]Variable, Kwargs) (Variable, error) {
		return func(callArgs []Variable, callKwargs Kwargs) (Variable, error) {
			if len(callArgs) != 1 || len(callKwargs) != 0 {
				return nil, unsupported("%s arity", fn.QualName())
			}
			value := callArgs[0]
			callOpts := Propagate(a, value)
			if items, err := Unpack(tx, value); err == nil {
				return NewTuple(items, callOpts), nil
			}
			v, err := AsConstant(value)
			if err != nil {
				return nil, err
			}
			out, err := host.Broadcast(count, v)
			if err != nil {
				return nil, unsupported("%s: %v", fn.QualName(), err)
			}
			return NewConstant(out, callOpts), nil
		}
	}

	if fn == host.NTupleFn {
		nVal, err := AsConstant(args[0])
		if err != nil {
			return nil, err
		}
		n, ok := nVal.(int)
		if !ok {
			return nil, unsupported("_ntuple with non-integer arity %s", args[0])
		}
		return NewLambda(handler(n), opts), nil
	}

	count, err := host.NTupleCount(fn)
	if err != nil {
		return nil, unsupported("%v", err)
	}
	return handler(count)(args, kwargs)
}

// dynamicShapeCall reports calls whose result shape depends on element
// data.
func (a *AllowedVariable) dynamicShapeCall(args []Variable, kwargs Kwargs) (string, bool) {
	fn, ok := a.Value.(*host.Function)
	if !ok {
		return "", false
	}
	switch fn {
	case host.NonzeroFn, host.UniqueFn, host.UniqueConsecutiveFn:
		return fn.QualName(), true
	case host.ArangeFn:
		for i, a := range args {
			if i < 3 && !IsConstant(a) {
				return fn.QualName(), true
			}
		}
		for _, key := range []string{"start", "end", "step"} {
			if v, ok := kwargs[key]; ok && !IsConstant(v) {
				return fn.QualName(), true
			}
		}
	case host.RepeatInterleaveFn:
		if len(args) > 1 && !IsConstant(args[1]) {
			return fn.QualName(), true
		}
		if v, ok := kwargs["repeats"]; ok && !IsConstant(v) {
			return fn.QualName(), true
		}
	}
	return "", false
}
