package variables

import (
	"github.com/google/uuid"

	"github.com/symtrace/symtrace/internal/guards"
	"github.com/symtrace/symtrace/internal/host"
)

// VarType tags the concrete variant of a Variable.
type VarType string

const (
	CONSTANT_VAR    VarType = "CONSTANT"
	TENSOR_VAR      VarType = "TENSOR"
	LIST_VAR        VarType = "LIST"
	TUPLE_VAR       VarType = "TUPLE"
	NAMED_TUPLE_VAR VarType = "NAMED_TUPLE"
	RANGE_VAR       VarType = "RANGE"
	SLICE_VAR       VarType = "SLICE"
	CONST_DICT_VAR  VarType = "CONST_DICT"
	LIST_ITER_VAR   VarType = "LIST_ITERATOR"
	USER_FUNC_VAR   VarType = "USER_FUNCTION"
	USER_METHOD_VAR VarType = "USER_METHOD"
	NESTED_FUNC_VAR VarType = "NESTED_FUNCTION"
	BUILTIN_VAR     VarType = "BUILTIN"
	ALLOWED_VAR     VarType = "ALLOWED"
	LAYER_VAR       VarType = "LAYER"
	HOST_MODULE_VAR VarType = "HOST_MODULE"
	USER_CLASS_VAR  VarType = "USER_CLASS"
	LAMBDA_VAR      VarType = "LAMBDA"
	GETATTR_VAR     VarType = "GETATTR"
	SUPER_VAR       VarType = "SUPER"
	UNSUPPORTED_VAR VarType = "UNSUPPORTED"
	UNKNOWN_VAR     VarType = "UNKNOWN"
	CLOSURE_VAR     VarType = "CLOSURE"
)

// Kwargs are keyword arguments of a symbolic call.
type Kwargs map[string]Variable

// MutableLocal marks a variable as a trace-local container that may still
// be "mutated" (by constructing a replacement and substituting it
// everywhere). Tokens compare by pointer identity; two variables share
// mutation history iff they share a token.
type MutableLocal struct {
	id uuid.UUID
}

// NewMutableLocal mints a fresh mutation token.
func NewMutableLocal() *MutableLocal {
	return &MutableLocal{id: uuid.New()}
}

func (m *MutableLocal) String() string {
	return "MutableLocal(" + m.id.String()[:8] + ")"
}

// Options carries the tracking state a constructor or clone installs on the
// produced variable. A nil Guards means the empty set.
type Options struct {
	Guards  *guards.Set
	Source  guards.Source
	Mutable *MutableLocal
}

// Variable is one symbolically tracked value. Implementations are immutable
// after construction: every state change produces a new variable.
type Variable interface {
	VarType() VarType
	String() string

	// Guards is the accumulated re-entry guard set (never nil).
	Guards() *guards.Set
	// Source is the externally resolvable provenance, nil for synthetic
	// values that cannot be re-fetched.
	Source() guards.Source
	// Mutable is the mutation token, nil for escaped or inherently
	// immutable values.
	Mutable() *MutableLocal

	// clone rebuilds the variable with replaced tracking state, keeping
	// the variant payload.
	clone(opts Options) Variable
	// mapOver rebuilds the variable with every child variable passed
	// through fn (payload children only; guards and source are kept).
	mapOver(fn func(Variable) Variable) Variable
}

// base carries the tracking state common to all variants.
type base struct {
	guardSet *guards.Set
	source   guards.Source
	mutable  *MutableLocal
}

func makeBase(opts Options) base {
	gs := opts.Guards
	if gs == nil {
		gs = guards.NewSet()
	}
	return base{guardSet: gs, source: opts.Source, mutable: opts.Mutable}
}

func (b *base) Guards() *guards.Set    { return b.guardSet }
func (b *base) Source() guards.Source  { return b.source }
func (b *base) Mutable() *MutableLocal { return b.mutable }

func (b *base) options() Options {
	return Options{Guards: b.guardSet, Source: b.source, Mutable: b.mutable}
}

// AddGuard returns a copy of v with g added.
func AddGuard(v Variable, g guards.Guard) Variable {
	opts := optionsOf(v)
	opts.Guards = v.Guards().Add(g)
	return v.clone(opts)
}

// AddGuards returns a copy of v with every guard of gs added.
func AddGuards(v Variable, gs *guards.Set) Variable {
	if gs.Len() == 0 {
		return v
	}
	opts := optionsOf(v)
	opts.Guards = v.Guards().Union(gs)
	return v.clone(opts)
}

// AddOptions layers extra tracking state over v: guards union, source and
// mutable only filled where v has none.
func AddOptions(v Variable, extra Options) Variable {
	opts := optionsOf(v)
	opts.Guards = guards.UnionAll(opts.Guards, extra.Guards)
	if opts.Source == nil {
		opts.Source = extra.Source
	}
	if opts.Mutable == nil {
		opts.Mutable = extra.Mutable
	}
	return v.clone(opts)
}

func optionsOf(v Variable) Options {
	return Options{Guards: v.Guards(), Source: v.Source(), Mutable: v.Mutable()}
}

// Propagate unions the guard sets of every variable reachable in the given
// argument groups. Groups may be Variables, slices or maps of them, or
// nested []interface{}; a non-variable leaf is an invariant violation
// because it means an untracked value leaked into the engine.
func Propagate(groups ...interface{}) Options {
	var sets []*guards.Set
	var visit func(interface{})
	visit = func(g interface{}) {
		switch x := g.(type) {
		case nil:
			// empty optional group
		case Variable:
			sets = append(sets, x.Guards())
		case []Variable:
			for _, v := range x {
				visit(v)
			}
		case Kwargs:
			for _, v := range x {
				visit(v)
			}
		case map[string]Variable:
			for _, v := range x {
				visit(v)
			}
		case []interface{}:
			for _, v := range x {
				visit(v)
			}
		default:
			invariant(false, "propagate over non-variable %T", g)
		}
	}
	for _, g := range groups {
		visit(g)
	}
	return Options{Guards: guards.UnionAll(sets...)}
}

// Apply rewrites the tree rooted at v bottom-up: children first, then fn on
// a copy of each node holding the rewritten children. Nodes are memoized by
// identity so shared children stay shared in the result.
func Apply(fn func(Variable) Variable, v Variable) Variable {
	cache := make(map[Variable]Variable)
	var rec func(Variable) Variable
	rec = func(cur Variable) Variable {
		if r, ok := cache[cur]; ok {
			return r
		}
		result := fn(cur.mapOver(rec))
		cache[cur] = result
		return result
	}
	return rec(v)
}

// Copy produces a node-wise copy of v (aliasing preserved, payload values
// shared).
func Copy(v Variable) Variable {
	return Apply(func(x Variable) Variable { return x }, v)
}

//
// Capability interfaces. Variants opt into operations by implementing
// these; the package-level dispatchers below fall back to a graph break
// when a variant does not.
//

// Callable variants support symbolic calling.
type Callable interface {
	Variable
	CallFunction(tx Tx, args []Variable, kwargs Kwargs) (Variable, error)
}

type methodCaller interface {
	CallMethod(tx Tx, name string, args []Variable, kwargs Kwargs) (Variable, error)
}

type attrGetter interface {
	GetVarAttr(tx Tx, name string) (Variable, error)
}

type constAttrGetter interface {
	GetConstAttr(tx Tx, name string) (host.Value, error)
}

type constValued interface {
	AsConstant() (host.Value, error)
}

type proxyable interface {
	AsProxy() (interface{}, error)
}

type typed interface {
	TypeOf() (host.Type, error)
}

type unpackable interface {
	UnpackSequence(tx Tx) ([]Variable, error)
}

type itemGetter interface {
	GetItemConst(arg Variable) (Variable, error)
}

type reconstructible interface {
	Reconstruct(cg Codegen) ([]Instruction, error)
}

// CallFunction symbolically calls v.
func CallFunction(tx Tx, v Variable, args []Variable, kwargs Kwargs) (Variable, error) {
	if c, ok := v.(Callable); ok {
		return c.CallFunction(tx, args, kwargs)
	}
	return nil, unsupported("call_function %s %s %s", v, fmtVars(args), fmtKwargs(kwargs))
}

// CallMethod symbolically calls the named method on v.
func CallMethod(tx Tx, v Variable, name string, args []Variable, kwargs Kwargs) (Variable, error) {
	if m, ok := v.(methodCaller); ok {
		return m.CallMethod(tx, name, args, kwargs)
	}
	return nil, unsupportedMethod(v, name, args, kwargs)
}

// GetAttr resolves an attribute of v as a variable. Variants without a
// symbolic attribute hook fall back to their static constant attributes,
// wrapped as constants with derived provenance.
func GetAttr(tx Tx, v Variable, name string) (Variable, error) {
	if ag, ok := v.(attrGetter); ok {
		return ag.GetVarAttr(tx, name)
	}
	if cg, ok := v.(constAttrGetter); ok {
		val, err := cg.GetConstAttr(tx, name)
		if err != nil {
			return nil, unsupported("getattr %s.%s: %v", v, name, err)
		}
		opts := Propagate(v)
		if v.Source() != nil {
			opts.Source = guards.AttrSource{Base: v.Source(), Member: name}
		}
		return NewConstant(val, opts), nil
	}
	return nil, unsupported("getattr %s.%s", v, name)
}

// AsConstant extracts the concrete host value v stands for, if it stands
// for exactly one.
func AsConstant(v Variable) (host.Value, error) {
	if cv, ok := v.(constValued); ok {
		return cv.AsConstant()
	}
	return nil, unsupported("%s is not a constant", v)
}

// IsConstant reports whether AsConstant would succeed.
func IsConstant(v Variable) bool {
	_, err := AsConstant(v)
	return err == nil
}

// AsProxy projects v into graph-operand form.
func AsProxy(v Variable) (interface{}, error) {
	if p, ok := v.(proxyable); ok {
		return p.AsProxy()
	}
	return nil, unsupported("%s has no graph projection", v)
}

// IsProxyable reports whether AsProxy would succeed.
func IsProxyable(v Variable) bool {
	_, err := AsProxy(v)
	return err == nil
}

// Substitute rewrites the tree rooted at root, replacing every variable
// that shares oldVar's mutation token with newVar. Drivers implement
// ReplaceAll by running this over every tracked root (locals, stack,
// containers), which keeps aliases of a mutated container in sync.
func Substitute(root, oldVar, newVar Variable) Variable {
	tok := oldVar.Mutable()
	invariant(tok != nil, "substitute target %s has no mutation token", oldVar)
	return Apply(func(v Variable) Variable {
		if v.Mutable() == tok {
			return newVar
		}
		return v
	}, root)
}

// TypeOf reports the host type of the value v stands for.
func TypeOf(v Variable) (host.Type, error) {
	if t, ok := v.(typed); ok {
		return t.TypeOf()
	}
	return nil, unsupported("%s has no known host type", v)
}

// Unpack explodes v into its elements.
func Unpack(tx Tx, v Variable) ([]Variable, error) {
	if u, ok := v.(unpackable); ok {
		return u.UnpackSequence(tx)
	}
	return nil, unsupported("%s cannot be unpacked", v)
}

// HasUnpack reports whether Unpack would succeed.
func HasUnpack(tx Tx, v Variable) bool {
	_, err := Unpack(tx, v)
	return err == nil
}

// GetItemConst subscripts v by a constant index or slice.
func GetItemConst(v Variable, arg Variable) (Variable, error) {
	if g, ok := v.(itemGetter); ok {
		return g.GetItemConst(arg)
	}
	return nil, unsupported("%s[%s] with constant index", v, arg)
}

// Reconstruct emits instructions that rebuild v's value on the host stack.
func Reconstruct(cg Codegen, v Variable) ([]Instruction, error) {
	if r, ok := v.(reconstructible); ok {
		return r.Reconstruct(cg)
	}
	return nil, unsupported("%s cannot be reconstructed", v)
}

// checkConstantArgs reports whether every argument is a known constant.
func checkConstantArgs(args []Variable, kwargs Kwargs) bool {
	for _, a := range args {
		if !IsConstant(a) {
			return false
		}
	}
	for _, a := range kwargs {
		if !IsConstant(a) {
			return false
		}
	}
	return true
}

func constantArgs(args []Variable, kwargs Kwargs) ([]host.Value, map[string]host.Value, error) {
	vals := make([]host.Value, len(args))
	for i, a := range args {
		v, err := AsConstant(a)
		if err != nil {
			return nil, nil, err
		}
		vals[i] = v
	}
	var kwvals map[string]host.Value
	if len(kwargs) > 0 {
		kwvals = make(map[string]host.Value, len(kwargs))
		for k, a := range kwargs {
			v, err := AsConstant(a)
			if err != nil {
				return nil, nil, err
			}
			kwvals[k] = v
		}
	}
	return vals, kwvals, nil
}

// proxyArgs projects every argument into graph-operand form; any
// non-projectable argument is a graph break.
func proxyArgs(args []Variable, kwargs Kwargs) ([]interface{}, map[string]interface{}, error) {
	outArgs := make([]interface{}, len(args))
	for i, a := range args {
		p, err := AsProxy(a)
		if err != nil {
			return nil, nil, err
		}
		outArgs[i] = p
	}
	var outKw map[string]interface{}
	if len(kwargs) > 0 {
		outKw = make(map[string]interface{}, len(kwargs))
		for k, a := range kwargs {
			p, err := AsProxy(a)
			if err != nil {
				return nil, nil, err
			}
			outKw[k] = p
		}
	}
	return outArgs, outKw, nil
}

func mapVars(vs []Variable, fn func(Variable) Variable) []Variable {
	out := make([]Variable, len(vs))
	for i, v := range vs {
		out[i] = fn(v)
	}
	return out
}
