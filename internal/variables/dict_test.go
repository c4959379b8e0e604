package variables

import (
	"testing"

	"github.com/symtrace/symtrace/internal/host"
)

func TestDictCanonicalKeyOrder(t *testing.T) {
	d := NewConstDict(map[host.Value]Variable{
		"b":  constant(2),
		"a":  constant(1),
		3:    constant(3),
		true: constant(4),
	}, Options{})

	keys := d.Keys()
	if len(keys) != 4 {
		t.Fatalf("key count %d, want 4", len(keys))
	}
	// numeric-kind keys rank before strings regardless of insertion order
	if keys[len(keys)-1] != "b" || keys[len(keys)-2] != "a" {
		t.Errorf("keys not in canonical order: %v", keys)
	}
}

func TestDictItemsKeysValues(t *testing.T) {
	tx := newFakeTx()
	d := NewConstDict(map[host.Value]Variable{
		"x": constant(1),
		"y": constant(2),
	}, Options{})

	items, err := d.CallMethod(tx, "items", nil, nil)
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	pairs := items.(*TupleVariable).Items
	if len(pairs) != 2 {
		t.Fatalf("items count %d, want 2", len(pairs))
	}
	first := pairs[0].(*TupleVariable)
	if k, _ := AsConstant(first.Items[0]); k != "x" {
		t.Errorf("first item key %v, want x", k)
	}

	vals, err := d.CallMethod(tx, "values", nil, nil)
	if err != nil {
		t.Fatalf("values: %v", err)
	}
	if v, _ := AsConstant(vals.(*TupleVariable).Items[1]); v != 2 {
		t.Errorf("second value %v, want 2", v)
	}
}

func TestDictStoreBuildsSuccessor(t *testing.T) {
	tx := newFakeTx()
	d := NewConstDict(map[host.Value]Variable{"x": constant(1)}, Options{Mutable: NewMutableLocal()})
	tx.locals["d"] = d

	if _, err := d.CallMethod(tx, "__setitem__", []Variable{constant("y"), constant(2)}, nil); err != nil {
		t.Fatalf("setitem: %v", err)
	}
	next := tx.locals["d"].(*ConstDictVariable)
	if next.Len() != 2 {
		t.Fatalf("successor has %d entries, want 2", next.Len())
	}
	if d.Len() != 1 {
		t.Errorf("store mutated the original dict")
	}
	if next.Mutable() == d.Mutable() {
		t.Errorf("successor reuses the old mutation token")
	}
}

func TestDictStoreWithoutTokenBreaks(t *testing.T) {
	tx := newFakeTx()
	d := NewConstDict(map[host.Value]Variable{"x": constant(1)}, Options{})
	_, err := d.CallMethod(tx, "__setitem__", []Variable{constant("y"), constant(2)}, nil)
	if !IsUnsupported(err) {
		t.Fatalf("store on escaped dict: err=%v, want graph break", err)
	}
}

func TestDictGetItem(t *testing.T) {
	d := NewConstDict(map[host.Value]Variable{"k": constant(9)}, Options{})
	out, err := GetItemConst(d, constant("k"))
	if err != nil {
		t.Fatalf("getitem: %v", err)
	}
	if v, _ := AsConstant(out); v != 9 {
		t.Errorf("d[k] = %v, want 9", v)
	}
	if _, err := GetItemConst(d, constant("missing")); !IsUnsupported(err) {
		t.Errorf("missing key: err=%v, want graph break", err)
	}
}
