package variables

import (
	"errors"
	"testing"

	"github.com/symtrace/symtrace/internal/host"
)

func TestListAppendBuildsSuccessor(t *testing.T) {
	tx := newFakeTx()
	lst := NewList([]Variable{constant(1)}, Options{Mutable: NewMutableLocal()})
	tx.locals["l"] = lst

	out, err := lst.CallMethod(tx, "append", []Variable{constant(2)}, nil)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if c, ok := out.(*ConstantVariable); !ok || c.Value != nil {
		t.Errorf("append returned %s, want constant None", out)
	}
	next, ok := tx.locals["l"].(*ListVariable)
	if !ok || len(next.Items) != 2 {
		t.Fatalf("local not replaced with extended list: %s", tx.locals["l"])
	}
	if next.Mutable() == lst.Mutable() {
		t.Errorf("successor reuses the old mutation token")
	}
	if len(lst.Items) != 1 {
		t.Errorf("append mutated the original list")
	}
}

func TestListInsertAndPop(t *testing.T) {
	tx := newFakeTx()
	lst := NewList([]Variable{constant("a"), constant("c")}, Options{Mutable: NewMutableLocal()})
	tx.locals["l"] = lst

	if _, err := lst.CallMethod(tx, "insert", []Variable{constant(1), constant("b")}, nil); err != nil {
		t.Fatalf("insert: %v", err)
	}
	mid := tx.locals["l"].(*ListVariable)
	want := []host.Value{"a", "b", "c"}
	for i, w := range want {
		got, _ := AsConstant(mid.Items[i])
		if got != w {
			t.Errorf("after insert, item %d = %v, want %v", i, got, w)
		}
	}

	popped, err := mid.CallMethod(tx, "pop", nil, nil)
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if v, _ := AsConstant(popped); v != "c" {
		t.Errorf("pop returned %v, want c", v)
	}
	if final := tx.locals["l"].(*ListVariable); len(final.Items) != 2 {
		t.Errorf("pop left %d items, want 2", len(final.Items))
	}
}

func TestListMutationWithoutTokenBreaks(t *testing.T) {
	tx := newFakeTx()
	lst := NewList([]Variable{constant(1)}, Options{})
	_, err := lst.CallMethod(tx, "append", []Variable{constant(2)}, nil)
	if !IsUnsupported(err) {
		t.Fatalf("append on escaped list: err=%v, want graph break", err)
	}
}

func TestTupleGetItem(t *testing.T) {
	tup := NewTuple([]Variable{constant(10), constant(20), constant(30)}, Options{})

	out, err := GetItemConst(tup, constant(-1))
	if err != nil {
		t.Fatalf("negative index: %v", err)
	}
	if v, _ := AsConstant(out); v != 30 {
		t.Errorf("tup[-1] = %v, want 30", v)
	}

	sliced, err := GetItemConst(tup, NewSlice([]Variable{constant(1)}, Options{}))
	if err != nil {
		t.Fatalf("slice index: %v", err)
	}
	st, ok := sliced.(*TupleVariable)
	if !ok || len(st.Items) != 1 {
		t.Fatalf("tup[:1] = %s", sliced)
	}

	if _, err := GetItemConst(tup, constant(9)); !IsUnsupported(err) {
		t.Errorf("out-of-range index: err=%v, want graph break", err)
	}
}

func TestSliceNormalization(t *testing.T) {
	one := NewSlice([]Variable{constant(5)}, Options{})
	v, err := one.AsConstant()
	if err != nil {
		t.Fatalf("slice constant: %v", err)
	}
	sl := v.(host.Slice)
	if sl.Start != nil || sl.Stop != 5 || sl.Step != nil {
		t.Errorf("slice(5) normalized to %v", sl)
	}

	three := NewSlice([]Variable{constant(1), constant(9), constant(2)}, Options{})
	start, err := GetAttr(newFakeTx(), three, "start")
	if err != nil {
		t.Fatalf("slice.start: %v", err)
	}
	if x, _ := AsConstant(start); x != 1 {
		t.Errorf("slice.start = %v, want 1", x)
	}
}

func TestNamedTupleFieldAccess(t *testing.T) {
	cls := host.NewClass("Point")
	cls.Fields = []string{"x", "y"}
	pt := NewNamedTuple([]Variable{constant(3), constant(4)}, cls, Options{})

	y, err := GetAttr(newFakeTx(), pt, "y")
	if err != nil {
		t.Fatalf("pt.y: %v", err)
	}
	if v, _ := AsConstant(y); v != 4 {
		t.Errorf("pt.y = %v, want 4", v)
	}
	if _, err := GetAttr(newFakeTx(), pt, "z"); !IsUnsupported(err) {
		t.Errorf("pt.z: err=%v, want graph break", err)
	}
}

func TestRangeMaterialization(t *testing.T) {
	r := NewRange(host.Range{Start: 4, Stop: 0, Step: -2}, Options{})
	if len(r.Items) != 2 {
		t.Fatalf("range(4,0,-2) has %d items, want 2", len(r.Items))
	}
	v0, _ := AsConstant(r.Items[0])
	v1, _ := AsConstant(r.Items[1])
	if v0 != 4 || v1 != 2 {
		t.Errorf("range items %v, %v; want 4, 2", v0, v1)
	}
	if c, _ := r.AsConstant(); c.(host.Range).Stop != 0 {
		t.Errorf("range constant lost bounds: %v", c)
	}
}

func TestIteratorAdvanceAndExhaustion(t *testing.T) {
	it := NewListIterator([]Variable{constant(1)}, 0, Options{Mutable: NewMutableLocal()})

	val, next, err := it.NextVariables()
	if err != nil {
		t.Fatalf("first next: %v", err)
	}
	if v, _ := AsConstant(val); v != 1 {
		t.Errorf("first element %v, want 1", v)
	}
	if next.Index != 1 {
		t.Errorf("successor index %d, want 1", next.Index)
	}
	if next.Mutable() == it.Mutable() {
		t.Errorf("successor reuses the old mutation token")
	}

	_, _, err = next.NextVariables()
	if !errors.Is(err, ErrStopIteration) {
		t.Fatalf("exhausted next: err=%v, want ErrStopIteration", err)
	}
}

func TestEscapedIteratorRefusesAdvance(t *testing.T) {
	it := NewListIterator([]Variable{constant(1)}, 0, Options{})
	_, _, err := it.NextVariables()
	if !IsUnsupported(err) {
		t.Fatalf("escaped iterator: err=%v, want graph break", err)
	}
}

func TestIteratorConstantOnlyBeforeAdvance(t *testing.T) {
	it := NewListIterator([]Variable{constant(1), constant(2)}, 0, Options{Mutable: NewMutableLocal()})
	if _, err := it.AsConstant(); err != nil {
		t.Errorf("fresh iterator constant: %v", err)
	}
	_, next, err := it.NextVariables()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if _, err := next.AsConstant(); !IsUnsupported(err) {
		t.Errorf("consumed iterator constant: err=%v, want graph break", err)
	}
}
