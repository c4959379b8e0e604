package guards

import (
	"fmt"
	"strings"

	"github.com/emirpasic/gods/sets/treeset"
)

// Kind selects the check a guard performs on its named location.
type Kind uint8

const (
	ValueMatch Kind = iota // concrete value equality
	TypeMatch              // runtime type identity
	IDMatch                // object identity
	ConstantMatch          // literal constant equality
	HasAttr                // attribute presence on the named object
	FunctionMatch          // callable identity for inlined functions
	ListLength             // container length
	FixedTensorShape       // full shape/stride specialization
)

var kindNames = [...]string{
	ValueMatch:       "VALUE_MATCH",
	TypeMatch:        "TYPE_MATCH",
	IDMatch:          "ID_MATCH",
	ConstantMatch:    "CONSTANT_MATCH",
	HasAttr:          "HASATTR",
	FunctionMatch:    "FUNCTION_MATCH",
	ListLength:       "LIST_LENGTH",
	FixedTensorShape: "FIXED_TENSOR_SHAPE",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Guard is a predicate over one named, externally resolvable location.
// Guards are immutable and compared by (Name, Kind).
type Guard struct {
	Name string
	Kind Kind
}

func (g Guard) String() string {
	return fmt.Sprintf("%s:%s", g.Kind, g.Name)
}

func compareGuards(a, b interface{}) int {
	ga, gb := a.(Guard), b.(Guard)
	if c := strings.Compare(ga.Name, gb.Name); c != 0 {
		return c
	}
	return int(ga.Kind) - int(gb.Kind)
}

// Set is an ordered, deduplicated collection of guards. A nil *Set behaves
// as the empty set. Sets reachable from a constructed variable are treated
// as frozen: all set-producing operations return a fresh set.
type Set struct {
	inner *treeset.Set
}

// NewSet builds a set from the given guards.
func NewSet(gs ...Guard) *Set {
	s := &Set{inner: treeset.NewWith(compareGuards)}
	for _, g := range gs {
		s.inner.Add(g)
	}
	return s
}

func (s *Set) Len() int {
	if s == nil || s.inner == nil {
		return 0
	}
	return s.inner.Size()
}

func (s *Set) Contains(g Guard) bool {
	if s == nil || s.inner == nil {
		return false
	}
	return s.inner.Contains(g)
}

// Add returns a new set with gs included.
func (s *Set) Add(gs ...Guard) *Set {
	out := s.copy()
	for _, g := range gs {
		out.inner.Add(g)
	}
	return out
}

// Union returns a new set holding every guard of s and o.
func (s *Set) Union(o *Set) *Set {
	out := s.copy()
	o.Each(func(g Guard) {
		out.inner.Add(g)
	})
	return out
}

// UnionAll folds any number of sets into one fresh set.
func UnionAll(sets ...*Set) *Set {
	out := NewSet()
	for _, s := range sets {
		s.Each(func(g Guard) {
			out.inner.Add(g)
		})
	}
	return out
}

// Each visits the guards in canonical (Name, Kind) order.
func (s *Set) Each(fn func(Guard)) {
	if s == nil || s.inner == nil {
		return
	}
	s.inner.Each(func(_ int, value interface{}) {
		fn(value.(Guard))
	})
}

// List returns the guards in canonical order.
func (s *Set) List() []Guard {
	out := make([]Guard, 0, s.Len())
	s.Each(func(g Guard) {
		out = append(out, g)
	})
	return out
}

// Equal reports whether both sets hold exactly the same guards.
func (s *Set) Equal(o *Set) bool {
	if s.Len() != o.Len() {
		return false
	}
	eq := true
	s.Each(func(g Guard) {
		if !o.Contains(g) {
			eq = false
		}
	})
	return eq
}

func (s *Set) String() string {
	var b strings.Builder
	b.WriteString("{")
	first := true
	s.Each(func(g Guard) {
		if !first {
			b.WriteString(", ")
		}
		first = false
		b.WriteString(g.String())
	})
	b.WriteString("}")
	return b.String()
}

func (s *Set) copy() *Set {
	out := &Set{inner: treeset.NewWith(compareGuards)}
	s.Each(func(g Guard) {
		out.inner.Add(g)
	})
	return out
}
