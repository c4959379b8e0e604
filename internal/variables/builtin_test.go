package variables

import (
	"testing"

	"github.com/symtrace/symtrace/internal/config"
	"github.com/symtrace/symtrace/internal/guards"
	"github.com/symtrace/symtrace/internal/host"
)

func TestBuiltinConstantFolding(t *testing.T) {
	tx := newFakeTx()

	out, err := NewBuiltin(host.LenFn, Options{}).CallFunction(tx, []Variable{constant("hello")}, nil)
	if err != nil {
		t.Fatalf("len fold: %v", err)
	}
	if v, _ := AsConstant(out); v != 5 {
		t.Errorf("len(hello) = %v, want 5", v)
	}

	out, err = NewBuiltin(host.MaxFn, Options{}).CallFunction(tx, []Variable{constant(3), constant(7)}, nil)
	if err != nil {
		t.Fatalf("max fold: %v", err)
	}
	if v, _ := AsConstant(out); v != 7 {
		t.Errorf("max(3,7) = %v, want 7", v)
	}
}

func TestBuiltinFoldPropagatesGuards(t *testing.T) {
	tx := newFakeTx()
	arg := guardedConstant("ab", "s", guards.ConstantMatch)
	out, err := NewBuiltin(host.LenFn, Options{}).CallFunction(tx, []Variable{arg}, nil)
	if err != nil {
		t.Fatalf("len fold: %v", err)
	}
	if !out.Guards().Contains(guards.Guard{Name: "s", Kind: guards.ConstantMatch}) {
		t.Errorf("folded result lost argument guards: %s", out.Guards())
	}
}

func TestRangeBuiltin(t *testing.T) {
	tx := newFakeTx()
	b := NewBuiltin(host.RangeFn, Options{})

	out, err := b.CallFunction(tx, []Variable{constant(3)}, nil)
	if err != nil {
		t.Fatalf("range(3): %v", err)
	}
	r := out.(*RangeVariable)
	if len(r.Items) != 3 {
		t.Errorf("range(3) materialized %d items", len(r.Items))
	}

	snap := config.Save()
	defer config.Restore(snap)
	config.MaxRangeLen = 10
	if _, err := b.CallFunction(tx, []Variable{constant(11)}, nil); !IsUnsupported(err) {
		t.Errorf("oversized range: err=%v, want graph break", err)
	}
}

func TestIterZipEnumerate(t *testing.T) {
	tx := newFakeTx()
	lst := NewList([]Variable{constant(1), constant(2), constant(3)}, Options{})

	it, err := NewBuiltin(host.IterFn, Options{}).CallFunction(tx, []Variable{lst}, nil)
	if err != nil {
		t.Fatalf("iter: %v", err)
	}
	iter := it.(*ListIteratorVariable)
	if iter.Mutable() == nil {
		t.Errorf("fresh iterator has no mutation token")
	}

	short := NewTuple([]Variable{constant("a")}, Options{})
	zipped, err := NewBuiltin(host.ZipFn, Options{}).CallFunction(tx, []Variable{lst, short}, nil)
	if err != nil {
		t.Fatalf("zip: %v", err)
	}
	if n := len(zipped.(*TupleVariable).Items); n != 1 {
		t.Errorf("zip truncation produced %d tuples, want 1", n)
	}

	enum, err := NewBuiltin(host.EnumerateFn, Options{}).CallFunction(tx, []Variable{short}, nil)
	if err != nil {
		t.Fatalf("enumerate: %v", err)
	}
	pair := enum.(*TupleVariable).Items[0].(*TupleVariable)
	if idx, _ := AsConstant(pair.Items[0]); idx != 0 {
		t.Errorf("enumerate index %v, want 0", idx)
	}
}

func TestNextBuiltinDrivesReplacement(t *testing.T) {
	tx := newFakeTx()
	it := NewListIterator([]Variable{constant(1), constant(2)}, 0, Options{Mutable: NewMutableLocal()})
	tx.locals["it"] = it

	out, err := NewBuiltin(host.NextFn, Options{}).CallFunction(tx, []Variable{it}, nil)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if v, _ := AsConstant(out); v != 1 {
		t.Errorf("next yielded %v, want 1", v)
	}
	advanced := tx.locals["it"].(*ListIteratorVariable)
	if advanced.Index != 1 {
		t.Errorf("local iterator not advanced: index %d", advanced.Index)
	}
}

func TestIsinstance(t *testing.T) {
	tx := newFakeTx()
	b := NewBuiltin(host.IsinstanceFn, Options{})

	out, err := b.CallFunction(tx, []Variable{constant(1), constant(host.IntType)}, nil)
	if err != nil {
		t.Fatalf("isinstance: %v", err)
	}
	if v, _ := AsConstant(out); v != true {
		t.Errorf("isinstance(1, int) = %v", v)
	}

	// bool subtypes int
	out, err = b.CallFunction(tx, []Variable{constant(true), constant(host.IntType)}, nil)
	if err != nil {
		t.Fatalf("isinstance bool: %v", err)
	}
	if v, _ := AsConstant(out); v != true {
		t.Errorf("isinstance(True, int) = %v", v)
	}

	// protocol classes degrade to identity
	proto := host.NewClass("Proto")
	proto.Protocol = true
	obj := NewUnsupported(host.NewObject(host.NewClass("Impl")), Options{})
	out, err = b.CallFunction(tx, []Variable{obj, constant(proto)}, nil)
	if err != nil {
		t.Fatalf("isinstance protocol: %v", err)
	}
	if v, _ := AsConstant(out); v != false {
		t.Errorf("isinstance(obj, Proto) = %v, want identity fallback false", v)
	}
}

func TestLayerHasattrEmitsGuard(t *testing.T) {
	tx := newFakeTx()
	cls := host.NewClass("Block", host.BaseLayerClass)
	layer := host.NewLayer(cls)
	layer.Attrs["scale"] = 2.0
	lv := tx.addLayer("self.block", layer)

	out, err := NewBuiltin(host.HasattrFn, Options{}).CallFunction(tx, []Variable{lv, constant("scale")}, nil)
	if err != nil {
		t.Fatalf("hasattr: %v", err)
	}
	if v, _ := AsConstant(out); v != true {
		t.Errorf("hasattr = %v, want true", v)
	}
	want := guards.Guard{Name: "self.block.scale", Kind: guards.HasAttr}
	if !out.Guards().Contains(want) {
		t.Errorf("missing presence guard %s in %s", want, out.Guards())
	}
}

func TestLenOfVariants(t *testing.T) {
	tx := newFakeTx()
	b := NewBuiltin(host.LenFn, Options{})

	lst := NewList([]Variable{constant(1), constant(2)}, Options{})
	out, err := b.CallFunction(tx, []Variable{lst}, nil)
	if err != nil {
		t.Fatalf("len(list): %v", err)
	}
	if v, _ := AsConstant(out); v != 2 {
		t.Errorf("len(list) = %v", v)
	}

	d := NewConstDict(map[host.Value]Variable{"a": constant(1)}, Options{})
	out, err = b.CallFunction(tx, []Variable{d}, nil)
	if err != nil {
		t.Fatalf("len(dict): %v", err)
	}
	if v, _ := AsConstant(out); v != 1 {
		t.Errorf("len(dict) = %v", v)
	}
}

func TestBuiltinReconstructRefusesShadowedGlobal(t *testing.T) {
	cg := newFakeCodegen()
	cg.globals["len"] = true
	defer func() {
		if recover() == nil {
			t.Fatalf("expected invariant panic for shadowed builtin")
		}
	}()
	_, _ = NewBuiltin(host.LenFn, Options{}).Reconstruct(cg)
}
