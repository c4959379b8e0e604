package variables

import (
	"regexp"

	"github.com/symtrace/symtrace/internal/allowlist"
	"github.com/symtrace/symtrace/internal/graph"
	"github.com/symtrace/symtrace/internal/guards"
	"github.com/symtrace/symtrace/internal/host"
)

// LayerVariable tracks a layer registered with the driver. The layer object
// itself is never captured; it is re-resolved through its key on every use
// so monkey-patching between uses is observed.
type LayerVariable struct {
	base
	Cls *host.Class
	Key string
}

// NewLayer wraps a registered layer. Layers always have provenance: they
// are reachable from the traced region's inputs by construction.
func NewLayer(cls *host.Class, key string, opts Options) *LayerVariable {
	invariant(opts.Source != nil, "layer %s registered without source", key)
	return &LayerVariable{base: makeBase(opts), Cls: cls, Key: key}
}

func (l *LayerVariable) VarType() VarType { return LAYER_VAR }

func (l *LayerVariable) String() string {
	return "LayerVariable(" + l.Cls.ClsName + ")"
}

func (l *LayerVariable) clone(opts Options) Variable {
	return &LayerVariable{base: makeBase(opts), Cls: l.Cls, Key: l.Key}
}

func (l *LayerVariable) mapOver(fn func(Variable) Variable) Variable {
	return l.clone(l.options())
}

func (l *LayerVariable) TypeOf() (host.Type, error) { return l.Cls, nil }

// UnpackSequence explodes a container layer into its registered children.
func (l *LayerVariable) UnpackSequence(tx Tx) ([]Variable, error) {
	mod := tx.GetSubmodule(l.Key)
	if !host.IsContainerClass(mod.Class) {
		return nil, unsupported("unpack non-container layer %s", mod.Class.ClsName)
	}
	opts := Propagate(l)
	out := make([]Variable, 0, mod.Len())
	for idx, child := range mod.NamedChildren() {
		src := guards.ItemSource{Base: l.source, Index: idx}
		out = append(out, tx.AddSubmodule(child.Layer, l.Key, idx, src, opts))
	}
	return out, nil
}

// CallFunction applies the layer. Sequential containers with the stock
// forward unroll into per-child calls; allowlisted library layers record a
// call_module node; everything else inlines the layer's forward callable.
func (l *LayerVariable) CallFunction(tx Tx, args []Variable, kwargs Kwargs) (Variable, error) {
	opts := Propagate(l, args, kwargs)
	mod := tx.GetSubmodule(l.Key)

	if host.IsSequential(mod.Class) && mod.ForwardFn() == host.SequentialForward {
		invariant(len(kwargs) == 0 && len(args) == 1, "sequential forward arity")
		arg := args[0]
		for idx, child := range mod.NamedChildren() {
			src := guards.LayerSource{Inner: guards.ItemSource{Base: l.source, Index: idx}}
			sub := tx.AddSubmodule(child.Layer, l.Key, idx, src, opts)
			if err := tx.CallFunction(sub, []Variable{arg}, nil); err != nil {
				return nil, err
			}
			arg = tx.Pop()
		}
		return arg, nil
	}

	if allowlist.AllowedLayerClass(mod.Class) {
		pArgs, pKwargs, err := proxyArgs(args, kwargs)
		if err != nil {
			return nil, err
		}
		proxy := tx.CreateProxy(graph.CallModule, l.Key, pArgs, pKwargs)
		return CreateTensor(tx, proxy, nil, mod, opts)
	}

	fwd := mod.ForwardFn()
	if fwd == nil || fwd == host.BaseForward {
		return nil, unsupported("layer %s has no usable forward", mod.Class.ClsName)
	}
	fn := NewUserFunction(fwd, opts)
	return tx.InlineUserFunctionReturn(fn, append([]Variable{l}, args...), kwargs)
}

// numericPath rewrites dotted numeric child indices into subscripts, so
// guard names address container children the way the host renders them
// ("blocks.0.weight" -> "blocks[0].weight").
var numericPath = regexp.MustCompile(`[.]([0-9]+)([.]|$)`)

func rewritePath(name string) string {
	return numericPath.ReplaceAllString(name, "[$1]$2")
}

func (l *LayerVariable) CallMethod(tx Tx, name string, args []Variable, kwargs Kwargs) (Variable, error) {
	if !checkConstantArgs(args, kwargs) {
		return nil, unsupported("layer.%s with symbolic arguments", name)
	}
	opts := Propagate(l, args, kwargs)
	mod := tx.GetSubmodule(l.Key)

	attrWrap := func(entryName string, value interface{}) Variable {
		src := guards.LayerSource{Inner: guards.AttrSource{Base: l.source, Member: rewritePath(entryName)}}
		return tx.AddSubmodule(value, l.Key, entryName, src, opts)
	}
	itemWrap := func(entryName string, value interface{}) Variable {
		src := guards.LayerSource{Inner: guards.ItemSource{Base: l.source, Index: entryName}}
		return tx.AddSubmodule(value, l.Key, entryName, src, opts)
	}
	iterate := func(items []Variable) Variable {
		iterOpts := opts
		iterOpts.Mutable = NewMutableLocal()
		return NewListIterator(items, 0, iterOpts)
	}

	switch name {
	case "children":
		invariant(len(args) == 0 && len(kwargs) == 0, "layer.children arity")
		var out []Variable
		for _, child := range mod.NamedChildren() {
			out = append(out, attrWrap(child.Name, child.Layer))
		}
		return iterate(out), nil
	case "parameters":
		recurse := true
		if len(args) >= 1 {
			v, _ := AsConstant(args[0])
			if b, ok := v.(bool); ok {
				recurse = b
			}
		} else if rv, ok := kwargs["recurse"]; ok {
			v, _ := AsConstant(rv)
			if b, ok := v.(bool); ok {
				recurse = b
			}
		}
		var out []Variable
		for _, p := range mod.NamedParameters(recurse) {
			out = append(out, attrWrap(p.Name, p.Param))
		}
		return iterate(out), nil
	case "values":
		invariant(len(args) == 0 && len(kwargs) == 0, "layer.values arity")
		var out []Variable
		for _, child := range mod.Items() {
			out = append(out, itemWrap(child.Name, child.Layer))
		}
		return iterate(out), nil
	case "items":
		invariant(len(args) == 0 && len(kwargs) == 0, "layer.items arity")
		var out []Variable
		for _, child := range mod.Items() {
			pair := NewTuple([]Variable{
				NewConstant(child.Name, opts),
				itemWrap(child.Name, child.Layer),
			}, opts)
			out = append(out, pair)
		}
		return iterate(out), nil
	default:
		return nil, unsupportedMethod(l, name, args, kwargs)
	}
}
