package host

import (
	"fmt"
)

// Well-known handles from the host tensor library. The engine special-cases
// these by identity, the same way the original special-cases the concrete
// library functions it imports.
var (
	// Predicates foldable even over symbolic tensors when metadata is known.
	IsTensorFn        = newTensorFunc("is_tensor")
	IsFloatingPointFn = newTensorFunc("is_floating_point")
	NumelFn           = newTensorFunc("numel")

	// Shape-data-dependent operations: always dynamic.
	NonzeroFn           = newTensorFunc("nonzero")
	UniqueFn            = newTensorFunc("unique")
	UniqueConsecutiveFn = newTensorFunc("unique_consecutive")

	// Dynamic depending on argument constness.
	ArangeFn           = newTensorFunc("arange")
	RepeatInterleaveFn = newTensorFunc("repeat_interleave")

	// Trace-mode introspection, forced constant by configuration.
	IsScriptingFn = newTensorFunc("jit.is_scripting")
	IsTracingFn   = newTensorFunc("is_tracing")

	// The stateless functional softmax and the stateful layer class that is
	// rewritten onto it.
	FunctionalSoftmaxFn = &Function{FnName: "softmax", Module: "tensor.nn.functional"}
	SoftmaxClass        *Class

	// Scalar-broadcast helpers: fixed-arity wrappers created by NTupleFn.
	NTupleFn   = &Function{FnName: "_ntuple", Module: "tensor.nn.util"}
	SingleFn   = ntupleInstance("_single", 1)
	PairFn     = ntupleInstance("_pair", 2)
	TripleFn   = ntupleInstance("_triple", 3)
	QuadrupleFn = ntupleInstance("_quadruple", 4)

	// OperatorGetItem is the subscript operator as a graph-callable
	// function; it addresses one element of a tuple-producing node.
	OperatorGetItem = &Function{
		FnName: "getitem",
		Module: "operator",
		Impl: func(args []Value, kwargs map[string]Value) (Value, error) {
			if len(args) != 2 || len(kwargs) != 0 {
				return nil, fmt.Errorf("getitem expects (obj, index)")
			}
			return GetItem(args[0], args[1])
		},
	}

	// TensorModule is the library root module object.
	TensorModule *Module
)

func newTensorFunc(name string) *Function {
	return &Function{FnName: name, Module: "tensor"}
}

func ntupleInstance(name string, count int) *Function {
	return &Function{
		FnName:  name,
		Module:  "tensor.nn.util",
		Closure: []*Cell{MakeCell(count)},
		Code: &Code{
			CoName:   name,
			Filename: "tensor/nn/util.host",
			Params:   []Param{{Name: "x"}},
			FreeVars: []string{"n"},
		},
	}
}

// NTupleCount extracts the arity captured by an _ntuple-family instance.
func NTupleCount(fn *Function) (int, error) {
	if len(fn.Closure) != 1 || !fn.Closure[0].Bound {
		return 0, fmt.Errorf("%s has no captured arity", fn.QualName())
	}
	n, ok := fn.Closure[0].Contents.(int)
	if !ok {
		return 0, fmt.Errorf("%s captured non-integer arity", fn.QualName())
	}
	return n, nil
}

// Broadcast replicates a scalar into an n-tuple unless the value already is
// a sequence (the host _ntuple contract).
func Broadcast(n int, v Value) (Value, error) {
	switch v.(type) {
	case Tuple, List:
		seq, _ := asSequence(v)
		return Tuple(append([]Value{}, seq...)), nil
	}
	if !IsLiteral(v) {
		return nil, fmt.Errorf("cannot broadcast non-literal %s", Repr(v))
	}
	out := make(Tuple, n)
	for i := range out {
		out[i] = v
	}
	return out, nil
}

func init() {
	SoftmaxClass = NewClass("tensor.nn.Softmax", BaseLayerClass)
	TensorModule = &Module{
		ModName:  "tensor",
		Filename: "tensor/__init__.host",
		Attrs: map[string]Value{
			"is_tensor":          IsTensorFn,
			"is_floating_point":  IsFloatingPointFn,
			"numel":              NumelFn,
			"nonzero":            NonzeroFn,
			"unique":             UniqueFn,
			"unique_consecutive": UniqueConsecutiveFn,
			"arange":             ArangeFn,
			"repeat_interleave":  RepeatInterleaveFn,
			"float32":            Float32,
			"float64":            Float64,
			"int64":              Int64,
		},
	}
}
