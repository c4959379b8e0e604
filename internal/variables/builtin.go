package variables

import (
	"errors"

	"github.com/symtrace/symtrace/internal/config"
	"github.com/symtrace/symtrace/internal/graph"
	"github.com/symtrace/symtrace/internal/guards"
	"github.com/symtrace/symtrace/internal/host"
)

// constantFoldable lists the pure builtins folded eagerly when every
// argument is a known constant.
var constantFoldable = map[string]bool{
	"abs": true, "all": true, "any": true, "bool": true, "callable": true,
	"chr": true, "dict": true, "divmod": true, "float": true, "int": true,
	"len": true, "list": true, "max": true, "min": true, "ord": true,
	"pow": true, "repr": true, "round": true, "str": true, "sum": true,
	"tuple": true, "type": true,
}

// BuiltinVariable tracks a host builtin function. Most of the interesting
// builtins never fold; they reshape other variables instead.
type BuiltinVariable struct {
	base
	Fn *host.Function
}

// NewBuiltin wraps a builtin function handle.
func NewBuiltin(fn *host.Function, opts Options) *BuiltinVariable {
	return &BuiltinVariable{base: makeBase(opts), Fn: fn}
}

func (b *BuiltinVariable) VarType() VarType { return BUILTIN_VAR }

func (b *BuiltinVariable) String() string {
	return "BuiltinVariable(" + b.Fn.FnName + ")"
}

func (b *BuiltinVariable) clone(opts Options) Variable {
	return &BuiltinVariable{base: makeBase(opts), Fn: b.Fn}
}

func (b *BuiltinVariable) mapOver(fn func(Variable) Variable) Variable {
	return b.clone(b.options())
}

func (b *BuiltinVariable) TypeOf() (host.Type, error) { return host.BuiltinFnType, nil }

func (b *BuiltinVariable) AsConstant() (host.Value, error) { return b.Fn, nil }

func (b *BuiltinVariable) AsProxy() (interface{}, error) { return b.Fn, nil }

func (b *BuiltinVariable) canFold() bool {
	if b.Fn.Impl == nil {
		return false
	}
	if b.Fn.Module == "math" {
		return true
	}
	return b.Fn.Module == "builtins" && constantFoldable[b.Fn.FnName]
}

func (b *BuiltinVariable) Reconstruct(cg Codegen) ([]Instruction, error) {
	invariant(b.Fn.Module == "builtins", "reconstruct of non-builtin %s", b.Fn.QualName())
	invariant(!cg.GlobalExists(b.Fn.FnName), "builtin %s is shadowed in traced frame", b.Fn.FnName)
	return []Instruction{cg.CreateLoadGlobal(b.Fn.FnName, true)}, nil
}

func (b *BuiltinVariable) CallFunction(tx Tx, args []Variable, kwargs Kwargs) (Variable, error) {
	opts := Propagate(b, args, kwargs)
	allConst := checkConstantArgs(args, kwargs)

	if b.canFold() && allConst {
		vals, kwvals, err := constantArgs(args, kwargs)
		if err != nil {
			return nil, err
		}
		out, err := b.Fn.Impl(vals, kwvals)
		if err != nil {
			return nil, unsupported("folding %s: %v", b.Fn.FnName, err)
		}
		return NewConstant(out, opts), nil
	}

	switch b.Fn {
	case host.RangeFn:
		return b.callRange(args, kwargs, opts)
	case host.SliceFn:
		invariant(len(kwargs) == 0, "slice() with kwargs")
		return NewSlice(args, opts), nil
	case host.IterFn:
		if len(args) == 1 && len(kwargs) == 0 {
			return b.callIter(tx, args[0], opts)
		}
	case host.ZipFn:
		if len(kwargs) == 0 {
			return b.callZip(tx, args, opts)
		}
	case host.EnumerateFn:
		if len(args) == 1 && len(kwargs) == 0 {
			return b.callEnumerate(tx, args[0], opts)
		}
	case host.LenFn:
		if len(args) == 1 && len(kwargs) == 0 {
			return b.callLen(tx, args[0], opts)
		}
	case host.IsinstanceFn:
		if len(args) == 2 && len(kwargs) == 0 {
			return b.callIsinstance(args[0], args[1], opts)
		}
	case host.SuperFn:
		invariant(len(kwargs) == 0, "super() with kwargs")
		if len(args) == 1 || len(args) == 2 {
			var obj Variable
			if len(args) == 2 {
				obj = args[1]
			}
			return NewSuper(args[0], obj, opts), nil
		}
	case host.NextFn:
		if len(args) == 1 && len(kwargs) == 0 {
			if it, ok := args[0].(*ListIteratorVariable); ok {
				return b.callNext(tx, it)
			}
		}
	case host.HasattrFn:
		if len(args) == 2 && len(kwargs) == 0 {
			if layer, ok := args[0].(*LayerVariable); ok {
				return b.callLayerHasattr(tx, layer, args[1], opts)
			}
		}
	}

	return nil, unsupported("call_function %s %s %s", b, fmtVars(args), fmtKwargs(kwargs))
}

func (b *BuiltinVariable) callRange(args []Variable, kwargs Kwargs, opts Options) (Variable, error) {
	if len(kwargs) != 0 || len(args) == 0 || len(args) > 3 {
		return nil, unsupported("range with %d args, %d kwargs", len(args), len(kwargs))
	}
	bounds := make([]int, len(args))
	for i, a := range args {
		v, err := AsConstant(a)
		if err != nil {
			return nil, err
		}
		n, ok := v.(int)
		if !ok {
			return nil, unsupported("range bound %s is not an integer", a)
		}
		bounds[i] = n
	}
	var r host.Range
	switch len(bounds) {
	case 1:
		r = host.Range{Start: 0, Stop: bounds[0], Step: 1}
	case 2:
		r = host.Range{Start: bounds[0], Stop: bounds[1], Step: 1}
	case 3:
		if bounds[2] == 0 {
			return nil, unsupported("range step is zero")
		}
		r = host.Range{Start: bounds[0], Stop: bounds[1], Step: bounds[2]}
	}
	if r.Len() > config.MaxRangeLen {
		return nil, unsupported("range of %d elements exceeds materialization bound", r.Len())
	}
	return NewRange(r, opts), nil
}

func (b *BuiltinVariable) callIter(tx Tx, arg Variable, opts Options) (Variable, error) {
	var items []Variable
	if seq, ok := arg.(listLike); ok {
		items = seq.listItems()
	} else {
		var err error
		items, err = Unpack(tx, arg)
		if err != nil {
			return nil, err
		}
	}
	opts.Mutable = NewMutableLocal()
	return NewListIterator(items, 0, opts), nil
}

func (b *BuiltinVariable) callZip(tx Tx, args []Variable, opts Options) (Variable, error) {
	rows := make([][]Variable, len(args))
	width := -1
	for i, a := range args {
		items, err := Unpack(tx, a)
		if err != nil {
			return nil, err
		}
		rows[i] = items
		if width < 0 || len(items) < width {
			width = len(items)
		}
	}
	if width < 0 {
		width = 0
	}
	out := make([]Variable, width)
	for col := 0; col < width; col++ {
		tuple := make([]Variable, len(rows))
		for i := range rows {
			tuple[i] = rows[i][col]
		}
		out[col] = NewTuple(tuple, opts)
	}
	return NewTuple(out, opts), nil
}

func (b *BuiltinVariable) callEnumerate(tx Tx, arg Variable, opts Options) (Variable, error) {
	items, err := Unpack(tx, arg)
	if err != nil {
		return nil, err
	}
	out := make([]Variable, len(items))
	for i, item := range items {
		out[i] = NewTuple([]Variable{NewConstant(i, Options{}), item}, opts)
	}
	return NewTuple(out, opts), nil
}

func (b *BuiltinVariable) callLen(tx Tx, arg Variable, opts Options) (Variable, error) {
	switch v := arg.(type) {
	case *TensorVariable:
		if v.Size != nil {
			invariant(!config.DynamicShapes, "specialized size under dynamic shapes")
			if len(v.Size) == 0 {
				return nil, unsupported("len() of zero-dim tensor")
			}
			return NewConstant(v.Size[0], opts), nil
		}
		p, err := AsProxy(v)
		if err != nil {
			return nil, err
		}
		return CreateTensor(tx, tx.CreateProxy(graph.CallFunction, host.LenFn, []interface{}{p}, nil), nil, nil, opts)
	case listLike:
		return NewConstant(len(v.listItems()), opts), nil
	case *ConstDictVariable:
		return NewConstant(v.Len(), opts), nil
	case *LayerVariable:
		return NewConstant(tx.GetSubmodule(v.Key).Len(), opts), nil
	}
	if items, err := Unpack(tx, arg); err == nil {
		return NewConstant(len(items), opts), nil
	}
	return nil, unsupported("len(%s)", arg)
}

func (b *BuiltinVariable) callIsinstance(obj, cls Variable, opts Options) (Variable, error) {
	objType, err := TypeOf(obj)
	if err != nil {
		return nil, err
	}
	clsVal, err := AsConstant(cls)
	if err != nil {
		return nil, err
	}
	clsType, ok := clsVal.(host.Type)
	if !ok {
		return nil, unsupported("isinstance with non-type %s", cls)
	}
	result, err := host.Subclasses(objType, clsType)
	if err != nil {
		// undecidable subclass hooks degrade to exact type identity
		result = objType == clsType
	}
	return NewConstant(result, opts), nil
}

func (b *BuiltinVariable) callNext(tx Tx, it *ListIteratorVariable) (Variable, error) {
	val, next, err := it.NextVariables()
	if err != nil {
		if errors.Is(err, ErrStopIteration) {
			return nil, err
		}
		return nil, err
	}
	tx.ReplaceAll(it, next)
	return AddGuards(val, b.guardSet), nil
}

// callLayerHasattr answers hasattr on a registered layer and records a
// presence guard on the attribute's provenance, since the answer is only
// valid while the layer keeps (or keeps lacking) the attribute.
func (b *BuiltinVariable) callLayerHasattr(tx Tx, layer *LayerVariable, attr Variable, opts Options) (Variable, error) {
	nameVal, err := AsConstant(attr)
	if err != nil {
		return nil, err
	}
	name, ok := nameVal.(string)
	if !ok {
		return nil, unsupported("hasattr with non-string name %s", attr)
	}
	invariant(layer.Source() != nil, "layer %s has no source", layer)
	mod := tx.GetSubmodule(layer.Key)
	result := mod.HasAttr(name)
	src := guards.LayerSource{Inner: guards.AttrSource{Base: layer.Source(), Member: name}}
	out := NewConstant(result, opts)
	return AddGuard(out, src.CreateGuard(guards.HasAttr)), nil
}
