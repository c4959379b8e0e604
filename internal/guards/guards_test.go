package guards

import (
	"testing"
)

func TestSetDedup(t *testing.T) {
	g := Guard{Name: "x", Kind: TypeMatch}
	s := NewSet(g, g, g)
	if s.Len() != 1 {
		t.Fatalf("expected 1 guard after dedup, got %d", s.Len())
	}
	s2 := s.Add(g)
	if s2.Len() != 1 {
		t.Errorf("Add of existing guard grew the set to %d", s2.Len())
	}
	if !s.Equal(s2) {
		t.Errorf("idempotent Add changed the set: %s vs %s", s, s2)
	}
}

func TestSetUnionIsFresh(t *testing.T) {
	a := NewSet(Guard{Name: "a", Kind: ValueMatch})
	b := NewSet(Guard{Name: "b", Kind: ValueMatch})
	u := a.Union(b)
	if u.Len() != 2 {
		t.Fatalf("union has %d guards, want 2", u.Len())
	}
	if a.Len() != 1 || b.Len() != 1 {
		t.Errorf("union mutated an operand: a=%s b=%s", a, b)
	}
	if !u.Contains(Guard{Name: "a", Kind: ValueMatch}) || !u.Contains(Guard{Name: "b", Kind: ValueMatch}) {
		t.Errorf("union missing members: %s", u)
	}
}

func TestNilSetBehavesEmpty(t *testing.T) {
	var s *Set
	if s.Len() != 0 {
		t.Errorf("nil set length %d", s.Len())
	}
	if s.Contains(Guard{Name: "x"}) {
		t.Errorf("nil set claims membership")
	}
	u := s.Add(Guard{Name: "x", Kind: HasAttr})
	if u.Len() != 1 {
		t.Errorf("Add on nil set produced %d guards", u.Len())
	}
}

func TestCanonicalOrder(t *testing.T) {
	s := NewSet(
		Guard{Name: "z", Kind: ValueMatch},
		Guard{Name: "a", Kind: TypeMatch},
		Guard{Name: "a", Kind: ValueMatch},
	)
	list := s.List()
	if list[0].Name != "a" || list[len(list)-1].Name != "z" {
		t.Errorf("guards not in canonical order: %v", list)
	}
	// same name orders by kind
	if !(list[0].Kind < list[1].Kind) {
		t.Errorf("same-name guards not ordered by kind: %v", list)
	}
}

func TestDerivedSourceNames(t *testing.T) {
	root := LocalSource{Local: "m"}
	attr := AttrSource{Base: root, Member: "layers"}
	if attr.Name() != "m.layers" {
		t.Errorf("attr source name = %q", attr.Name())
	}
	item := ItemSource{Base: attr, Index: 0}
	if item.Name() != "m.layers[0]" {
		t.Errorf("item source name = %q", item.Name())
	}
	keyed := ItemSource{Base: attr, Index: "conv"}
	if keyed.Name() != `m.layers["conv"]` {
		t.Errorf("keyed item source name = %q", keyed.Name())
	}
	wrapped := LayerSource{Inner: item}
	if wrapped.Name() != item.Name() {
		t.Errorf("layer source changed the name: %q", wrapped.Name())
	}
	g := wrapped.CreateGuard(HasAttr)
	if g.Kind != HasAttr || g.Name != "m.layers[0]" {
		t.Errorf("unexpected guard %s", g)
	}
}

func TestReplace(t *testing.T) {
	src := LocalSource{Local: "x"}
	s := NewSet(
		Guard{Name: "x", Kind: TypeMatch},
		Guard{Name: "y", Kind: TypeMatch},
	)
	out := Replace(s, src, ValueMatch, IDMatch)
	if out.Contains(Guard{Name: "x", Kind: TypeMatch}) {
		t.Errorf("stale guard for x survived: %s", out)
	}
	if !out.Contains(Guard{Name: "x", Kind: ValueMatch}) || !out.Contains(Guard{Name: "x", Kind: IDMatch}) {
		t.Errorf("replacement guards missing: %s", out)
	}
	if !out.Contains(Guard{Name: "y", Kind: TypeMatch}) {
		t.Errorf("unrelated guard dropped: %s", out)
	}
}
