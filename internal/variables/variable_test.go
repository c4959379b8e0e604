package variables

import (
	"testing"

	"github.com/symtrace/symtrace/internal/guards"
)

func TestAddGuardIdempotent(t *testing.T) {
	g := guards.Guard{Name: "x", Kind: guards.TypeMatch}
	v := constant(1)
	once := AddGuard(v, g)
	twice := AddGuard(once, g)
	if once.Guards().Len() != 1 || twice.Guards().Len() != 1 {
		t.Fatalf("guard counts: once=%d twice=%d, want 1", once.Guards().Len(), twice.Guards().Len())
	}
	if !once.Guards().Equal(twice.Guards()) {
		t.Errorf("repeated AddGuard changed the set: %s vs %s", once.Guards(), twice.Guards())
	}
	if v.Guards().Len() != 0 {
		t.Errorf("AddGuard mutated the original: %s", v.Guards())
	}
}

func TestPropagateUnionsAllGroups(t *testing.T) {
	a := guardedConstant(1, "a", guards.ValueMatch)
	b := guardedConstant(2, "b", guards.ValueMatch)
	c := guardedConstant(3, "c", guards.ValueMatch)
	opts := Propagate(a, []Variable{b}, Kwargs{"k": c})
	if opts.Guards.Len() != 3 {
		t.Fatalf("propagated %d guards, want 3: %s", opts.Guards.Len(), opts.Guards)
	}
	for _, name := range []string{"a", "b", "c"} {
		if !opts.Guards.Contains(guards.Guard{Name: name, Kind: guards.ValueMatch}) {
			t.Errorf("missing guard for %s in %s", name, opts.Guards)
		}
	}
}

func TestPropagatePanicsOnUntrackedLeaf(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected invariant panic")
		}
		if _, ok := r.(*InvariantError); !ok {
			t.Fatalf("panic value %T, want *InvariantError", r)
		}
	}()
	Propagate(42)
}

func TestContainerFoldsItemGuards(t *testing.T) {
	item := guardedConstant(5, "lst[0]", guards.ConstantMatch)
	l := NewList([]Variable{item}, Options{})
	if !l.Guards().Contains(guards.Guard{Name: "lst[0]", Kind: guards.ConstantMatch}) {
		t.Errorf("list did not fold item guards: %s", l.Guards())
	}
}

func TestApplyPreservesAliasing(t *testing.T) {
	shared := constant(7)
	tup := NewTuple([]Variable{shared, shared}, Options{})
	out := Apply(func(v Variable) Variable { return v }, tup).(*TupleVariable)
	if out.Items[0] != out.Items[1] {
		t.Errorf("shared child rewritten to distinct nodes")
	}
}

func TestSubstituteByToken(t *testing.T) {
	lst := NewList([]Variable{constant(1)}, Options{Mutable: NewMutableLocal()})
	alias := AddGuard(lst, guards.Guard{Name: "l", Kind: guards.TypeMatch})
	outer := NewTuple([]Variable{lst, alias}, Options{})

	repl := NewList([]Variable{constant(1), constant(2)}, Options{Mutable: NewMutableLocal()})
	out := Substitute(outer, lst, repl).(*TupleVariable)

	for i, item := range out.Items {
		got, ok := item.(*ListVariable)
		if !ok || len(got.Items) != 2 {
			t.Errorf("slot %d not replaced: %s", i, item)
		}
	}
}

func TestCloneKeepsPayload(t *testing.T) {
	v := constant("hello")
	out := AddGuard(v, guards.Guard{Name: "s", Kind: guards.TypeMatch}).(*ConstantVariable)
	if out.Value != "hello" {
		t.Errorf("clone dropped payload: %v", out.Value)
	}
	if out.Mutable() != nil || out.Source() != nil {
		t.Errorf("clone invented tracking state")
	}
}

func TestDispatchFallbackIsGraphBreak(t *testing.T) {
	tx := newFakeTx()
	_, err := CallFunction(tx, constant(3), nil, nil)
	if !IsUnsupported(err) {
		t.Fatalf("calling a constant: err=%v, want graph break", err)
	}
	_, err = Unpack(tx, NewUnknown(Options{}))
	if !IsUnsupported(err) {
		t.Fatalf("unpacking unknown: err=%v, want graph break", err)
	}
}
