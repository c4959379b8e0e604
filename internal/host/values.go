package host

import (
	"fmt"
	"sort"
	"strings"
)

// Value is any host-language runtime value. Literal scalars use Go natives
// directly: nil, bool, int, float64, string. Composite literals use the
// container types below so that list/tuple/set identity survives the trip
// through the engine.
type Value = interface{}

// Tuple is an immutable ordered host sequence.
type Tuple []Value

// List is a mutable ordered host sequence.
type List []Value

// SetLit is a literal host set (order-preserving representation).
type SetLit []Value

// FrozenSet is a literal frozen host set.
type FrozenSet []Value

// Range is the host range value with fully known bounds.
type Range struct {
	Start, Stop, Step int
}

// Len returns the number of elements the range yields.
func (r Range) Len() int {
	if r.Step == 0 {
		return 0
	}
	if r.Step > 0 {
		if r.Stop <= r.Start {
			return 0
		}
		return (r.Stop - r.Start + r.Step - 1) / r.Step
	}
	if r.Stop >= r.Start {
		return 0
	}
	return (r.Start - r.Stop - r.Step - 1) / (-r.Step)
}

// Each visits the range's elements in order.
func (r Range) Each(fn func(int)) {
	if r.Step > 0 {
		for i := r.Start; i < r.Stop; i += r.Step {
			fn(i)
		}
	} else if r.Step < 0 {
		for i := r.Start; i > r.Stop; i += r.Step {
			fn(i)
		}
	}
}

// Slice is the host slice value; fields are nil when unspecified.
type Slice struct {
	Start, Stop, Step Value
}

// IsLiteral reports whether v is fully known at trace time: a literal
// scalar, or a tuple/list/set/frozenset composed entirely of literals.
// Composite containers holding a non-literal (a tensor, a layer) are
// represented by container variables instead, never by a constant.
func IsLiteral(v Value) bool {
	switch x := v.(type) {
	case nil, bool, int, float64, string:
		return true
	case Tuple:
		return allLiteral(x)
	case List:
		return allLiteral(x)
	case SetLit:
		return allLiteral(x)
	case FrozenSet:
		return allLiteral(x)
	default:
		return false
	}
}

func allLiteral(vs []Value) bool {
	for _, v := range vs {
		if !IsLiteral(v) {
			return false
		}
	}
	return true
}

// Truthy is the host truth test for literal values.
func Truthy(v Value) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case int:
		return x != 0
	case float64:
		return x != 0
	case string:
		return x != ""
	case Tuple:
		return len(x) > 0
	case List:
		return len(x) > 0
	case SetLit:
		return len(x) > 0
	case FrozenSet:
		return len(x) > 0
	default:
		return true
	}
}

// GetItem performs literal subscripting: sequences by int (negative indices
// wrap) or by Slice, and nothing else.
func GetItem(v Value, index Value) (Value, error) {
	if sl, ok := index.(Slice); ok {
		return getSlice(v, sl)
	}
	i, ok := index.(int)
	if !ok {
		return nil, fmt.Errorf("unhashable or unsupported index %v", Repr(index))
	}
	seq, err := asSequence(v)
	if err != nil {
		return nil, err
	}
	if i < 0 {
		i += len(seq)
	}
	if i < 0 || i >= len(seq) {
		return nil, fmt.Errorf("index %d out of range for %s", i, Repr(v))
	}
	return seq[i], nil
}

func getSlice(v Value, sl Slice) (Value, error) {
	seq, err := asSequence(v)
	if err != nil {
		return nil, err
	}
	lo, hi := 0, len(seq)
	if s, ok := sl.Start.(int); ok {
		lo = clampIndex(s, len(seq))
	}
	if s, ok := sl.Stop.(int); ok {
		hi = clampIndex(s, len(seq))
	}
	if sl.Step != nil {
		if st, ok := sl.Step.(int); !ok || st != 1 {
			return nil, fmt.Errorf("unsupported literal slice step %v", Repr(sl.Step))
		}
	}
	if hi < lo {
		hi = lo
	}
	out := append([]Value{}, seq[lo:hi]...)
	switch v.(type) {
	case Tuple:
		return Tuple(out), nil
	case string:
		var b strings.Builder
		for _, c := range out {
			b.WriteString(c.(string))
		}
		return b.String(), nil
	default:
		return List(out), nil
	}
}

func clampIndex(i, n int) int {
	if i < 0 {
		i += n
	}
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}

func asSequence(v Value) ([]Value, error) {
	switch x := v.(type) {
	case Tuple:
		return x, nil
	case List:
		return x, nil
	case string:
		out := make([]Value, 0, len(x))
		for _, r := range x {
			out = append(out, string(r))
		}
		return out, nil
	case Range:
		out := make([]Value, 0, x.Len())
		x.Each(func(i int) { out = append(out, i) })
		return out, nil
	default:
		return nil, fmt.Errorf("%s is not a literal sequence", Repr(v))
	}
}

// Sequence exposes asSequence for engine unpacking of literal constants.
func Sequence(v Value) ([]Value, error) { return asSequence(v) }

// KeyRank orders literal dict keys canonically: by type class first, then
// by value. It panics on unhashable keys; callers validate with IsHashable.
func KeyRank(a, b Value) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return ra - rb
	}
	switch x := a.(type) {
	case nil:
		return 0
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	case int:
		return x - b.(int)
	case float64:
		y := b.(float64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		default:
			return 0
		}
	case string:
		return strings.Compare(x, b.(string))
	default:
		panic(fmt.Sprintf("unhashable dict key %v", Repr(a)))
	}
}

// IsHashable reports whether v may be used as a literal dict key.
func IsHashable(v Value) bool {
	switch v.(type) {
	case nil, bool, int, float64, string:
		return true
	default:
		return false
	}
}

func typeRank(v Value) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case int:
		return 2
	case float64:
		return 3
	case string:
		return 4
	default:
		return 5
	}
}

// Repr renders a value for diagnostics, close to host literal syntax.
func Repr(v Value) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case bool:
		if x {
			return "True"
		}
		return "False"
	case string:
		return fmt.Sprintf("%q", x)
	case Tuple:
		return "(" + joinRepr(x) + ")"
	case List:
		return "[" + joinRepr(x) + "]"
	case SetLit:
		return "{" + joinRepr(x) + "}"
	case FrozenSet:
		return "frozenset({" + joinRepr(x) + "})"
	case Range:
		return fmt.Sprintf("range(%d, %d, %d)", x.Start, x.Stop, x.Step)
	case Slice:
		return fmt.Sprintf("slice(%s, %s, %s)", Repr(x.Start), Repr(x.Stop), Repr(x.Step))
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprintf("%v", x)
	}
}

func joinRepr(vs []Value) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = Repr(v)
	}
	return strings.Join(parts, ", ")
}

// SortedKeys returns map keys in deterministic order; shared by engine code
// that iterates keyword arguments.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
