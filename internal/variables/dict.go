package variables

import (
	"fmt"

	"github.com/emirpasic/gods/maps/treemap"

	"github.com/symtrace/symtrace/internal/guards"
	"github.com/symtrace/symtrace/internal/host"
)

// ConstDictVariable tracks a dictionary whose keys are all known literal
// hashables; values stay symbolic. Keys are kept in canonical order so the
// trace is deterministic regardless of host insertion order.
type ConstDictVariable struct {
	base
	items *treemap.Map
}

// NewConstDict builds a tracked dict. Every key must be a hashable
// literal.
func NewConstDict(items map[host.Value]Variable, opts Options) *ConstDictVariable {
	m := treemap.NewWith(func(a, b interface{}) int {
		return host.KeyRank(a, b)
	})
	sets := make([]*guards.Set, 0, len(items)+1)
	sets = append(sets, opts.Guards)
	for k, v := range items {
		invariant(host.IsLiteral(k) && host.IsHashable(k), "dict key %v is not a literal hashable", k)
		m.Put(k, v)
		sets = append(sets, v.Guards())
	}
	opts.Guards = guards.UnionAll(sets...)
	return &ConstDictVariable{base: makeBase(opts), items: m}
}

func (d *ConstDictVariable) VarType() VarType { return CONST_DICT_VAR }

func (d *ConstDictVariable) String() string {
	return fmt.Sprintf("ConstDictVariable(length %d)", d.items.Size())
}

func (d *ConstDictVariable) Len() int { return d.items.Size() }

// Keys returns the keys in canonical order.
func (d *ConstDictVariable) Keys() []host.Value {
	out := make([]host.Value, 0, d.items.Size())
	for _, k := range d.items.Keys() {
		out = append(out, k)
	}
	return out
}

// Entry looks up one value.
func (d *ConstDictVariable) Entry(key host.Value) (Variable, bool) {
	v, ok := d.items.Get(key)
	if !ok {
		return nil, false
	}
	return v.(Variable), true
}

func (d *ConstDictVariable) entryMap() map[host.Value]Variable {
	out := make(map[host.Value]Variable, d.items.Size())
	d.items.Each(func(k, v interface{}) {
		out[k] = v.(Variable)
	})
	return out
}

func (d *ConstDictVariable) clone(opts Options) Variable {
	out := &ConstDictVariable{base: makeBase(opts), items: treemap.NewWith(func(a, b interface{}) int {
		return host.KeyRank(a, b)
	})}
	d.items.Each(func(k, v interface{}) {
		out.items.Put(k, v)
	})
	return out
}

func (d *ConstDictVariable) mapOver(fn func(Variable) Variable) Variable {
	out := &ConstDictVariable{base: makeBase(d.options()), items: treemap.NewWith(func(a, b interface{}) int {
		return host.KeyRank(a, b)
	})}
	d.items.Each(func(k, v interface{}) {
		out.items.Put(k, fn(v.(Variable)))
	})
	return out
}

func (d *ConstDictVariable) TypeOf() (host.Type, error) { return host.DictType, nil }

func (d *ConstDictVariable) AsConstant() (host.Value, error) {
	out := make(map[host.Value]host.Value, d.items.Size())
	var firstErr error
	d.items.Each(func(k, v interface{}) {
		if firstErr != nil {
			return
		}
		c, err := AsConstant(v.(Variable))
		if err != nil {
			firstErr = err
			return
		}
		out[k] = c
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

func (d *ConstDictVariable) AsProxy() (interface{}, error) {
	out := make(map[host.Value]interface{}, d.items.Size())
	var firstErr error
	d.items.Each(func(k, v interface{}) {
		if firstErr != nil {
			return
		}
		p, err := AsProxy(v.(Variable))
		if err != nil {
			firstErr = err
			return
		}
		out[k] = p
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// GetItemConst looks up a constant key; a missing key is a graph break
// because the traced program would raise.
func (d *ConstDictVariable) GetItemConst(arg Variable) (Variable, error) {
	key, err := AsConstant(arg)
	if err != nil {
		return nil, err
	}
	v, ok := d.Entry(key)
	if !ok {
		return nil, unsupported("%s[%s]: missing key", d, host.Repr(key))
	}
	out := AddGuards(v, d.guardSet)
	return AddGuards(out, arg.Guards()), nil
}

func (d *ConstDictVariable) CallMethod(tx Tx, name string, args []Variable, kwargs Kwargs) (Variable, error) {
	opts := Propagate(d, args, kwargs)
	switch name {
	case "items":
		invariant(len(args) == 0 && len(kwargs) == 0, "dict.items arity")
		pairs := make([]Variable, 0, d.items.Size())
		d.items.Each(func(k, v interface{}) {
			pair := NewTuple([]Variable{NewConstant(k, Options{}), v.(Variable)}, opts)
			pairs = append(pairs, pair)
		})
		return NewTuple(pairs, opts), nil
	case "keys":
		invariant(len(args) == 0 && len(kwargs) == 0, "dict.keys arity")
		ks := make([]Variable, 0, d.items.Size())
		for _, k := range d.Keys() {
			ks = append(ks, NewConstant(k, opts))
		}
		return NewTuple(ks, opts), nil
	case "values":
		invariant(len(args) == 0 && len(kwargs) == 0, "dict.values arity")
		vs := make([]Variable, 0, d.items.Size())
		d.items.Each(func(_, v interface{}) {
			vs = append(vs, v.(Variable))
		})
		return NewTuple(vs, opts), nil
	case "__setitem__", "__setattr__":
		if d.mutable == nil {
			return nil, unsupportedMethod(d, name, args, kwargs)
		}
		invariant(len(args) == 2 && len(kwargs) == 0, "dict store arity")
		key, err := AsConstant(args[0])
		if err != nil {
			return nil, err
		}
		if !host.IsLiteral(key) || !host.IsHashable(key) {
			return nil, unsupported("dict store with key %s", args[0])
		}
		next := d.entryMap()
		next[key] = args[1]
		succOpts := opts
		succOpts.Source = d.source
		succOpts.Mutable = NewMutableLocal()
		tx.ReplaceAll(d, NewConstDict(next, succOpts))
		return NewConstant(nil, opts), nil
	default:
		return nil, unsupportedMethod(d, name, args, kwargs)
	}
}

func (d *ConstDictVariable) Reconstruct(cg Codegen) ([]Instruction, error) {
	if d.items.Size() == 0 {
		return []Instruction{Inst("BUILD_MAP", 0)}, nil
	}
	keys := d.Keys()
	for _, k := range keys {
		v, _ := d.Entry(k)
		if err := cg.Emit(v); err != nil {
			return nil, err
		}
	}
	cg.Append(cg.CreateLoadConst(host.Tuple(keys)))
	return []Instruction{Inst("BUILD_CONST_KEY_MAP", len(keys))}, nil
}
