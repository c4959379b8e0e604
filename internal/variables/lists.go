package variables

import (
	"fmt"

	"github.com/symtrace/symtrace/internal/guards"
	"github.com/symtrace/symtrace/internal/host"
)

// baseList is the shared payload of the sequence variants. Guards of the
// items are folded into the container's own set at construction time, so
// reading an element never loses its provenance checks.
type baseList struct {
	base
	Items []Variable
}

func makeBaseList(items []Variable, opts Options) baseList {
	sets := make([]*guards.Set, 0, len(items)+1)
	sets = append(sets, opts.Guards)
	for _, it := range items {
		sets = append(sets, it.Guards())
	}
	opts.Guards = guards.UnionAll(sets...)
	return baseList{base: makeBase(opts), Items: items}
}

// listLike is implemented by every sequence variant; iter() and len()
// dispatch through it.
type listLike interface {
	Variable
	listItems() []Variable
}

func (b *baseList) listItems() []Variable { return b.Items }

func (b *baseList) unpackWithGuards() []Variable {
	out := make([]Variable, len(b.Items))
	for i, it := range b.Items {
		out[i] = AddGuards(it, b.guardSet)
	}
	return out
}

func (b *baseList) constItems() ([]host.Value, error) {
	out := make([]host.Value, len(b.Items))
	for i, it := range b.Items {
		v, err := AsConstant(it)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (b *baseList) proxyItems() ([]interface{}, error) {
	out := make([]interface{}, len(b.Items))
	for i, it := range b.Items {
		p, err := AsProxy(it)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

// getitemSequence subscripts by a constant int or slice. rebuild constructs
// the receiver's variant around a sliced item subset.
func getitemSequence(self listLike, items []Variable, arg Variable, rebuild func([]Variable) Variable) (Variable, error) {
	index, err := AsConstant(arg)
	if err != nil {
		return nil, err
	}
	if sl, ok := index.(host.Slice); ok {
		subset, err := sliceItems(items, sl)
		if err != nil {
			return nil, unsupported("%s[%s]: %v", self, arg, err)
		}
		return AddGuards(rebuild(subset), arg.Guards()), nil
	}
	i, ok := index.(int)
	if !ok {
		return nil, unsupported("%s[%s]: non-integer index", self, arg)
	}
	if i < 0 {
		i += len(items)
	}
	if i < 0 || i >= len(items) {
		return nil, unsupported("%s[%s]: index out of range", self, arg)
	}
	out := AddGuards(items[i], self.Guards())
	return AddGuards(out, arg.Guards()), nil
}

// sliceItems applies host slice semantics (defaults, negative indices,
// arbitrary non-zero step) to a variable slice.
func sliceItems(items []Variable, sl host.Slice) ([]Variable, error) {
	n := len(items)
	step := 1
	if sl.Step != nil {
		s, ok := sl.Step.(int)
		if !ok || s == 0 {
			return nil, fmt.Errorf("invalid slice step %v", host.Repr(sl.Step))
		}
		step = s
	}
	start, stop := 0, n
	if step < 0 {
		start, stop = n-1, -1
	}
	bound := func(v host.Value, def int) (int, error) {
		if v == nil {
			return def, nil
		}
		i, ok := v.(int)
		if !ok {
			return 0, fmt.Errorf("non-integer slice bound %v", host.Repr(v))
		}
		if i < 0 {
			i += n
		}
		if step > 0 {
			if i < 0 {
				i = 0
			}
			if i > n {
				i = n
			}
		} else {
			if i < -1 {
				i = -1
			}
			if i > n-1 {
				i = n - 1
			}
		}
		return i, nil
	}
	var err error
	if start, err = bound(sl.Start, start); err != nil {
		return nil, err
	}
	if stop, err = bound(sl.Stop, stop); err != nil {
		return nil, err
	}
	var out []Variable
	if step > 0 {
		for i := start; i < stop; i += step {
			out = append(out, items[i])
		}
	} else {
		for i := start; i > stop; i += step {
			out = append(out, items[i])
		}
	}
	return out, nil
}

// ListVariable tracks a host list. Lists constructed inside the trace carry
// a mutation token and support append/insert/pop by replacement.
type ListVariable struct {
	baseList
}

// NewList builds a tracked list around items.
func NewList(items []Variable, opts Options) *ListVariable {
	return &ListVariable{baseList: makeBaseList(items, opts)}
}

func (l *ListVariable) VarType() VarType { return LIST_VAR }

func (l *ListVariable) String() string {
	return fmt.Sprintf("ListVariable(length %d)", len(l.Items))
}

func (l *ListVariable) clone(opts Options) Variable {
	return &ListVariable{baseList: baseList{base: makeBase(opts), Items: l.Items}}
}

func (l *ListVariable) mapOver(fn func(Variable) Variable) Variable {
	return &ListVariable{baseList: baseList{base: makeBase(l.options()), Items: mapVars(l.Items, fn)}}
}

func (l *ListVariable) TypeOf() (host.Type, error) { return host.ListType, nil }

func (l *ListVariable) AsConstant() (host.Value, error) {
	vals, err := l.constItems()
	if err != nil {
		return nil, err
	}
	return host.List(vals), nil
}

func (l *ListVariable) AsProxy() (interface{}, error) {
	ps, err := l.proxyItems()
	if err != nil {
		return nil, err
	}
	return host.List(ps), nil
}

func (l *ListVariable) UnpackSequence(tx Tx) ([]Variable, error) {
	return l.unpackWithGuards(), nil
}

func (l *ListVariable) GetItemConst(arg Variable) (Variable, error) {
	return getitemSequence(l, l.Items, arg, func(sub []Variable) Variable {
		return NewList(sub, l.options())
	})
}

func (l *ListVariable) Reconstruct(cg Codegen) ([]Instruction, error) {
	if err := cg.Foreach(l.Items); err != nil {
		return nil, err
	}
	return []Instruction{Inst("BUILD_LIST", len(l.Items))}, nil
}

// CallMethod supports in-place style list methods on trace-local lists by
// building the successor list and substituting it through the driver.
func (l *ListVariable) CallMethod(tx Tx, name string, args []Variable, kwargs Kwargs) (Variable, error) {
	opts := Propagate(l, args, kwargs)
	if l.mutable == nil {
		return nil, unsupportedMethod(l, name, args, kwargs)
	}
	switch name {
	case "append":
		invariant(len(kwargs) == 0 && len(args) == 1, "list.append arity")
		next := append(append([]Variable{}, l.Items...), args[0])
		replaceList(tx, l, next, opts)
		return NewConstant(nil, opts), nil
	case "insert":
		invariant(len(kwargs) == 0 && len(args) == 2, "list.insert arity")
		idx, err := AsConstant(args[0])
		if err != nil {
			return nil, err
		}
		i, ok := idx.(int)
		if !ok {
			return nil, unsupported("list.insert with non-integer position %s", args[0])
		}
		if i < 0 {
			i += len(l.Items)
		}
		if i < 0 {
			i = 0
		}
		if i > len(l.Items) {
			i = len(l.Items)
		}
		next := make([]Variable, 0, len(l.Items)+1)
		next = append(next, l.Items[:i]...)
		next = append(next, args[1])
		next = append(next, l.Items[i:]...)
		replaceList(tx, l, next, opts)
		return NewConstant(nil, opts), nil
	case "pop":
		invariant(len(kwargs) == 0 && len(args) <= 1, "list.pop arity")
		i := len(l.Items) - 1
		if len(args) == 1 {
			idx, err := AsConstant(args[0])
			if err != nil {
				return nil, err
			}
			n, ok := idx.(int)
			if !ok {
				return nil, unsupported("list.pop with non-integer position %s", args[0])
			}
			if n < 0 {
				n += len(l.Items)
			}
			i = n
		}
		if i < 0 || i >= len(l.Items) {
			return nil, unsupported("list.pop index out of range on %s", l)
		}
		result := l.Items[i]
		next := append(append([]Variable{}, l.Items[:i]...), l.Items[i+1:]...)
		replaceList(tx, l, next, opts)
		return result, nil
	default:
		return nil, unsupportedMethod(l, name, args, kwargs)
	}
}

func replaceList(tx Tx, old *ListVariable, items []Variable, opts Options) {
	opts.Source = old.source
	opts.Mutable = NewMutableLocal()
	tx.ReplaceAll(old, NewList(items, opts))
}

// TupleVariable tracks a host tuple; immutable, so it never carries a
// mutation token.
type TupleVariable struct {
	baseList
}

// NewTuple builds a tracked tuple around items.
func NewTuple(items []Variable, opts Options) *TupleVariable {
	return &TupleVariable{baseList: makeBaseList(items, opts)}
}

func (t *TupleVariable) VarType() VarType { return TUPLE_VAR }

func (t *TupleVariable) String() string {
	return fmt.Sprintf("TupleVariable(length %d)", len(t.Items))
}

func (t *TupleVariable) clone(opts Options) Variable {
	return &TupleVariable{baseList: baseList{base: makeBase(opts), Items: t.Items}}
}

func (t *TupleVariable) mapOver(fn func(Variable) Variable) Variable {
	return &TupleVariable{baseList: baseList{base: makeBase(t.options()), Items: mapVars(t.Items, fn)}}
}

func (t *TupleVariable) TypeOf() (host.Type, error) { return host.TupleType, nil }

func (t *TupleVariable) AsConstant() (host.Value, error) {
	vals, err := t.constItems()
	if err != nil {
		return nil, err
	}
	return host.Tuple(vals), nil
}

func (t *TupleVariable) AsProxy() (interface{}, error) {
	ps, err := t.proxyItems()
	if err != nil {
		return nil, err
	}
	return host.Tuple(ps), nil
}

func (t *TupleVariable) UnpackSequence(tx Tx) ([]Variable, error) {
	return t.unpackWithGuards(), nil
}

func (t *TupleVariable) GetItemConst(arg Variable) (Variable, error) {
	return getitemSequence(t, t.Items, arg, func(sub []Variable) Variable {
		return NewTuple(sub, t.options())
	})
}

func (t *TupleVariable) Reconstruct(cg Codegen) ([]Instruction, error) {
	if err := cg.Foreach(t.Items); err != nil {
		return nil, err
	}
	return []Instruction{Inst("BUILD_TUPLE", len(t.Items))}, nil
}

// NamedTupleVariable is a tuple whose class exposes positional fields as
// attributes.
type NamedTupleVariable struct {
	baseList
	TupleCls *host.Class
}

// NewNamedTuple builds an instance of the named-tuple class cls.
func NewNamedTuple(items []Variable, cls *host.Class, opts Options) *NamedTupleVariable {
	invariant(cls.IsNamedTuple(), "%s is not a named-tuple class", cls.ClsName)
	return &NamedTupleVariable{baseList: makeBaseList(items, opts), TupleCls: cls}
}

func (t *NamedTupleVariable) VarType() VarType { return NAMED_TUPLE_VAR }

func (t *NamedTupleVariable) String() string {
	return fmt.Sprintf("NamedTupleVariable(%s)", t.TupleCls.ClsName)
}

func (t *NamedTupleVariable) clone(opts Options) Variable {
	return &NamedTupleVariable{baseList: baseList{base: makeBase(opts), Items: t.Items}, TupleCls: t.TupleCls}
}

func (t *NamedTupleVariable) mapOver(fn func(Variable) Variable) Variable {
	return &NamedTupleVariable{
		baseList: baseList{base: makeBase(t.options()), Items: mapVars(t.Items, fn)},
		TupleCls: t.TupleCls,
	}
}

func (t *NamedTupleVariable) TypeOf() (host.Type, error) { return t.TupleCls, nil }

func (t *NamedTupleVariable) AsConstant() (host.Value, error) {
	vals, err := t.constItems()
	if err != nil {
		return nil, err
	}
	return &host.NamedTupleSample{Cls: t.TupleCls, Items: vals}, nil
}

func (t *NamedTupleVariable) UnpackSequence(tx Tx) ([]Variable, error) {
	return t.unpackWithGuards(), nil
}

func (t *NamedTupleVariable) GetItemConst(arg Variable) (Variable, error) {
	return getitemSequence(t, t.Items, arg, func(sub []Variable) Variable {
		return NewTuple(sub, t.options())
	})
}

// GetVarAttr resolves a field name to its positional item.
func (t *NamedTupleVariable) GetVarAttr(tx Tx, name string) (Variable, error) {
	for i, field := range t.TupleCls.Fields {
		if field == name {
			return AddGuards(t.Items[i], t.guardSet), nil
		}
	}
	return nil, unsupported("getattr %s.%s", t, name)
}

func (t *NamedTupleVariable) Reconstruct(cg Codegen) ([]Instruction, error) {
	cg.Append(cg.CreateLoadConst(t.TupleCls))
	if err := cg.Foreach(t.Items); err != nil {
		return nil, err
	}
	return []Instruction{
		Inst("BUILD_TUPLE", len(t.Items)),
		Inst("CALL_FUNCTION", 1),
	}, nil
}

// RangeVariable tracks a literal range, with its elements eagerly
// materialized as constants. The range builtin bounds materialization
// before constructing one.
type RangeVariable struct {
	baseList
	Value host.Range
}

// NewRange materializes r.
func NewRange(r host.Range, opts Options) *RangeVariable {
	items := make([]Variable, 0, r.Len())
	elemOpts := Options{Guards: opts.Guards}
	r.Each(func(x int) {
		items = append(items, NewConstant(x, elemOpts))
	})
	return &RangeVariable{baseList: makeBaseList(items, opts), Value: r}
}

func (r *RangeVariable) VarType() VarType { return RANGE_VAR }

func (r *RangeVariable) String() string {
	return fmt.Sprintf("RangeVariable(%d, %d, %d)", r.Value.Start, r.Value.Stop, r.Value.Step)
}

func (r *RangeVariable) clone(opts Options) Variable {
	return &RangeVariable{baseList: baseList{base: makeBase(opts), Items: r.Items}, Value: r.Value}
}

func (r *RangeVariable) mapOver(fn func(Variable) Variable) Variable {
	return &RangeVariable{
		baseList: baseList{base: makeBase(r.options()), Items: mapVars(r.Items, fn)},
		Value:    r.Value,
	}
}

func (r *RangeVariable) TypeOf() (host.Type, error) { return host.RangeType, nil }

func (r *RangeVariable) AsConstant() (host.Value, error) { return r.Value, nil }

func (r *RangeVariable) AsProxy() (interface{}, error) { return r.Value, nil }

func (r *RangeVariable) UnpackSequence(tx Tx) ([]Variable, error) {
	return r.unpackWithGuards(), nil
}

func (r *RangeVariable) GetItemConst(arg Variable) (Variable, error) {
	return getitemSequence(r, r.Items, arg, func(sub []Variable) Variable {
		return NewTuple(sub, r.options())
	})
}

func (r *RangeVariable) Reconstruct(cg Codegen) ([]Instruction, error) {
	invariant(!cg.GlobalExists("range"), "range builtin is shadowed in traced frame")
	cg.Append(cg.CreateLoadGlobal("range", true))
	cg.Append(cg.CreateLoadConst(r.Value.Start))
	cg.Append(cg.CreateLoadConst(r.Value.Stop))
	cg.Append(cg.CreateLoadConst(r.Value.Step))
	return []Instruction{Inst("CALL_FUNCTION", 3)}, nil
}

// SliceVariable tracks a slice object of three tracked bounds; absent
// bounds are constant None.
type SliceVariable struct {
	baseList
}

// NewSlice normalizes the 1-, 2- or 3-argument slice forms.
func NewSlice(items []Variable, opts Options) *SliceVariable {
	none := func() Variable { return NewConstant(nil, Options{}) }
	var start, stop, step Variable
	switch len(items) {
	case 1:
		start, stop, step = none(), items[0], none()
	case 2:
		start, stop, step = items[0], items[1], none()
	case 3:
		start, stop, step = items[0], items[1], items[2]
	default:
		invariant(false, "slice with %d arguments", len(items))
	}
	return &SliceVariable{baseList: makeBaseList([]Variable{start, stop, step}, opts)}
}

func (s *SliceVariable) VarType() VarType { return SLICE_VAR }

func (s *SliceVariable) String() string { return "SliceVariable()" }

func (s *SliceVariable) clone(opts Options) Variable {
	return &SliceVariable{baseList: baseList{base: makeBase(opts), Items: s.Items}}
}

func (s *SliceVariable) mapOver(fn func(Variable) Variable) Variable {
	return &SliceVariable{baseList: baseList{base: makeBase(s.options()), Items: mapVars(s.Items, fn)}}
}

func (s *SliceVariable) TypeOf() (host.Type, error) { return host.SliceType, nil }

func (s *SliceVariable) AsConstant() (host.Value, error) {
	vals, err := s.constItems()
	if err != nil {
		return nil, err
	}
	return host.Slice{Start: vals[0], Stop: vals[1], Step: vals[2]}, nil
}

func (s *SliceVariable) AsProxy() (interface{}, error) {
	ps, err := s.proxyItems()
	if err != nil {
		return nil, err
	}
	return host.Slice{Start: ps[0], Stop: ps[1], Step: ps[2]}, nil
}

// GetVarAttr exposes the slice bounds.
func (s *SliceVariable) GetVarAttr(tx Tx, name string) (Variable, error) {
	var item Variable
	switch name {
	case "start":
		item = s.Items[0]
	case "stop":
		item = s.Items[1]
	case "step":
		item = s.Items[2]
	default:
		return nil, unsupported("getattr %s.%s", s, name)
	}
	return AddGuards(item, s.guardSet), nil
}

func (s *SliceVariable) Reconstruct(cg Codegen) ([]Instruction, error) {
	if err := cg.Foreach(s.Items); err != nil {
		return nil, err
	}
	return []Instruction{Inst("BUILD_SLICE", 3)}, nil
}

// ListIteratorVariable tracks an iterator over an already-unpacked
// sequence. Advancing requires a mutation token: a token-less iterator has
// escaped the trace and advancing it symbolically would desynchronize it
// from the concrete one.
type ListIteratorVariable struct {
	base
	Items []Variable
	Index int
}

// NewListIterator positions an iterator at index over items.
func NewListIterator(items []Variable, index int, opts Options) *ListIteratorVariable {
	return &ListIteratorVariable{base: makeBase(opts), Items: items, Index: index}
}

func (it *ListIteratorVariable) VarType() VarType { return LIST_ITER_VAR }

func (it *ListIteratorVariable) String() string {
	return fmt.Sprintf("ListIteratorVariable(%d of %d)", it.Index, len(it.Items))
}

func (it *ListIteratorVariable) clone(opts Options) Variable {
	return &ListIteratorVariable{base: makeBase(opts), Items: it.Items, Index: it.Index}
}

func (it *ListIteratorVariable) mapOver(fn func(Variable) Variable) Variable {
	return &ListIteratorVariable{base: makeBase(it.options()), Items: mapVars(it.Items, fn), Index: it.Index}
}

// NextVariables returns the next element and the advanced iterator. The
// caller must substitute the successor for the receiver via ReplaceAll.
func (it *ListIteratorVariable) NextVariables() (Variable, *ListIteratorVariable, error) {
	if it.mutable == nil {
		return nil, nil, unsupported("next() on escaped iterator %s", it)
	}
	if it.Index >= len(it.Items) {
		return nil, nil, ErrStopIteration
	}
	opts := Propagate(it)
	opts.Mutable = NewMutableLocal()
	next := NewListIterator(it.Items, it.Index+1, opts)
	return AddGuards(it.Items[it.Index], it.guardSet), next, nil
}

// AsConstant is only sound before the first advance: a partly consumed
// concrete iterator cannot be rebuilt from its remaining elements.
func (it *ListIteratorVariable) AsConstant() (host.Value, error) {
	if it.Index > 0 {
		return nil, unsupported("%s partly consumed", it)
	}
	vals := make([]host.Value, len(it.Items))
	for i, item := range it.Items {
		v, err := AsConstant(item)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return host.Tuple(vals), nil
}

func (it *ListIteratorVariable) UnpackSequence(tx Tx) ([]Variable, error) {
	rest := it.Items[it.Index:]
	out := make([]Variable, len(rest))
	for i, item := range rest {
		out[i] = AddGuards(item, it.guardSet)
	}
	return out, nil
}

func (it *ListIteratorVariable) Reconstruct(cg Codegen) ([]Instruction, error) {
	rest := it.Items[it.Index:]
	if err := cg.Foreach(rest); err != nil {
		return nil, err
	}
	return []Instruction{
		Inst("BUILD_TUPLE", len(rest)),
		Inst("GET_ITER", nil),
	}, nil
}
