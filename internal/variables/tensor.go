package variables

import (
	"github.com/symtrace/symtrace/internal/config"
	"github.com/symtrace/symtrace/internal/graph"
	"github.com/symtrace/symtrace/internal/host"
)

// TensorVariable tracks a symbolic tensor: a graph proxy plus whatever
// metadata specialization has pinned down. Absent fields are unknown, not
// empty.
type TensorVariable struct {
	base
	Proxy *graph.Proxy

	DType        *host.DType
	Device       *host.Device
	Ndim         *int
	Size         []int
	Stride       []int
	RequiresGrad *bool
}

func (t *TensorVariable) VarType() VarType { return TENSOR_VAR }

func (t *TensorVariable) String() string { return "TensorVariable()" }

func (t *TensorVariable) clone(opts Options) Variable {
	out := *t
	out.base = makeBase(opts)
	return &out
}

func (t *TensorVariable) mapOver(fn func(Variable) Variable) Variable {
	return t.clone(t.options())
}

func (t *TensorVariable) AsProxy() (interface{}, error) { return t.Proxy, nil }

func (t *TensorVariable) TypeOf() (host.Type, error) { return host.TensorType, nil }

func (t *TensorVariable) specialize(tm *host.TensorMeta) {
	dt, dev, nd, rg := tm.DType, tm.Device, tm.NDim(), tm.RequiresGrad
	t.DType = dt
	t.Device = &dev
	t.Ndim = &nd
	t.RequiresGrad = &rg
	if !config.DynamicShapes {
		t.Size = append([]int{}, tm.Sizes...)
		t.Stride = append([]int{}, tm.Strides...)
	}
}

// CreateTensor wraps a freshly recorded graph operation as the variable(s)
// for its result. When dynamic propagation is on and no sample is supplied,
// the operation is re-executed eagerly on the operands' samples through the
// graph's evaluator; tuple samples explode into element tensors addressed
// by derived getitem nodes.
func CreateTensor(tx Tx, proxy *graph.Proxy, example host.Value, layer *host.Layer, opts Options) (Variable, error) {
	node := proxy.Node()
	_, seen := node.Meta[graph.ExampleValueKey]
	invariant(!seen, "node %s already carries a sample", node.Name)

	if !config.DynamicPropagation {
		return newTensorFromSample(proxy, example, opts), nil
	}

	if example == nil {
		var err error
		example, err = evalSample(proxy, layer)
		if err != nil {
			return nil, err
		}
	}

	switch ex := example.(type) {
	case *host.TensorMeta:
		return newTensorFromSample(proxy, ex, opts), nil
	case host.Tuple:
		items, err := explodeSample(tx, proxy, ex, opts)
		if err != nil {
			return nil, err
		}
		return NewTuple(items, opts), nil
	case *host.NamedTupleSample:
		items, err := explodeSample(tx, proxy, host.Tuple(ex.Items), opts)
		if err != nil {
			return nil, err
		}
		return NewNamedTuple(items, ex.Cls, opts), nil
	default:
		invariant(false, "node %s produced non-tensor sample %s", node.Name, host.Repr(example))
		return nil, nil
	}
}

func newTensorFromSample(proxy *graph.Proxy, example host.Value, opts Options) *TensorVariable {
	out := &TensorVariable{base: makeBase(opts), Proxy: proxy}
	if tm, ok := example.(*host.TensorMeta); ok {
		proxy.Node().Meta[graph.ExampleValueKey] = tm.Clone()
		out.specialize(tm)
	}
	return out
}

func evalSample(proxy *graph.Proxy, layer *host.Layer) (host.Value, error) {
	node := proxy.Node()
	args, kwargs, err := graph.MapArgs(node)
	if err != nil {
		return nil, unsupported("no sample for operand of %s: %v", node.Name, err)
	}
	ev := proxy.Graph().Evaluator
	if ev == nil {
		return nil, unsupported("graph has no evaluator for %s", node.Name)
	}
	var out host.Value
	switch node.Op {
	case graph.CallFunction:
		fn, ok := node.Target.(*host.Function)
		invariant(ok, "call_function target %v is not a function", node.Target)
		out, err = ev.CallFunction(fn, args, kwargs)
	case graph.CallMethod:
		name, ok := node.Target.(string)
		invariant(ok, "call_method target %v is not a name", node.Target)
		invariant(len(args) > 0, "call_method %s without receiver", name)
		out, err = ev.CallMethod(name, args[0], args[1:], kwargs)
	case graph.CallModule:
		invariant(layer != nil, "call_module %s without layer", node.Name)
		out, err = ev.CallLayer(layer.DeepCopy(), args, kwargs)
	default:
		invariant(false, "cannot propagate samples through %s node", node.Op)
	}
	if err != nil {
		return nil, unsupported("sample evaluation of %s failed: %v", node.Name, err)
	}
	return out, nil
}

func explodeSample(tx Tx, proxy *graph.Proxy, samples host.Tuple, opts Options) ([]Variable, error) {
	items := make([]Variable, len(samples))
	for i, sample := range samples {
		elem := proxy.Graph().CreateProxy(
			graph.CallFunction,
			host.OperatorGetItem,
			[]interface{}{proxy, i},
			nil,
		)
		v, err := CreateTensor(tx, elem, sample, nil, opts)
		if err != nil {
			return nil, err
		}
		items[i] = v
	}
	return items, nil
}

// GetVarAttr answers metadata attributes from specialization when known,
// falling back to a recorded method call for shape queries under dynamic
// shapes.
func (t *TensorVariable) GetVarAttr(tx Tx, name string) (Variable, error) {
	opts := Propagate(t)
	switch name {
	case "ndim":
		if t.Ndim != nil {
			return NewConstant(*t.Ndim, opts), nil
		}
		return t.CallMethod(tx, "dim", nil, nil)
	case "dtype":
		if t.DType != nil {
			return NewAllowed(t.DType, opts), nil
		}
	case "device":
		if t.Device != nil {
			return NewAllowed(*t.Device, opts), nil
		}
	case "is_cuda":
		if t.Device != nil {
			return NewConstant(t.Device.IsCUDA(), opts), nil
		}
	case "shape":
		if t.Size != nil {
			return NewConstant(intTuple(t.Size), opts), nil
		}
		return t.CallMethod(tx, "size", nil, nil)
	case "requires_grad":
		if t.RequiresGrad != nil {
			return NewConstant(*t.RequiresGrad, opts), nil
		}
	}
	return nil, unsupported("getattr %s.%s", t, name)
}

func (t *TensorVariable) CallMethod(tx Tx, name string, args []Variable, kwargs Kwargs) (Variable, error) {
	opts := Propagate(t, args, kwargs)

	var folded Variable
	switch name {
	case "size":
		if t.Size != nil {
			folded = NewConstant(intTuple(t.Size), opts)
		}
	case "stride":
		if t.Stride != nil {
			folded = NewConstant(intTuple(t.Stride), opts)
		}
	case "numel":
		if t.Size != nil {
			n := 1
			for _, s := range t.Size {
				n *= s
			}
			folded = NewConstant(n, opts)
		}
	case "dim", "ndimension":
		if t.Ndim != nil {
			folded = NewConstant(*t.Ndim, opts)
		}
	case "is_floating_point":
		if t.DType != nil {
			folded = NewConstant(t.DType.Floating, opts)
		}
	}
	if folded != nil {
		invariant(len(kwargs) == 0, "tensor.%s with kwargs", name)
		switch len(args) {
		case 0:
			return folded, nil
		case 1:
			return GetItemConst(folded, args[0])
		default:
			picked := make([]Variable, len(args))
			for i, a := range args {
				v, err := GetItemConst(folded, a)
				if err != nil {
					return nil, err
				}
				picked[i] = v
			}
			return NewTuple(picked, opts), nil
		}
	}

	switch name {
	case "item", "tolist":
		return nil, unsupported("tensor.%s escapes to a concrete value", name)
	case "repeat":
		if !checkConstantArgs(args, kwargs) && !config.DynamicShapes {
			return nil, unsupported("tensor.repeat with symbolic repeats")
		}
	case "__len__":
		b := NewBuiltin(host.LenFn, Options{})
		return b.CallFunction(tx, append([]Variable{t}, args...), kwargs)
	}

	pArgs, pKwargs, err := proxyArgs(append([]Variable{t}, args...), kwargs)
	if err != nil {
		return nil, err
	}
	return CreateTensor(tx, tx.CreateProxy(graph.CallMethod, name, pArgs, pKwargs), nil, nil, opts)
}

func intTuple(xs []int) host.Tuple {
	out := make(host.Tuple, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}
