package config

import (
	"testing"
)

func TestLoadBytesOverlay(t *testing.T) {
	snap := Save()
	defer Restore(snap)

	doc := []byte(`
dynamic_shapes: true
max_range_len: 64
constant_functions:
  tensor.cuda.is_available: false
skip_prefixes:
  - vendor/
`)
	if err := LoadBytes(doc); err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	if !DynamicShapes {
		t.Errorf("dynamic_shapes not applied")
	}
	if MaxRangeLen != 64 {
		t.Errorf("max_range_len = %d, want 64", MaxRangeLen)
	}
	// untouched default survives
	if !DynamicPropagation {
		t.Errorf("dynamic_propagation default clobbered")
	}
	if v, ok := ConstantFunction("tensor.cuda.is_available"); !ok || v != false {
		t.Errorf("constant function not registered: %v %v", v, ok)
	}
	if v, ok := ConstantFunction("tensor.jit.is_scripting"); !ok || v != false {
		t.Errorf("builtin constant function lost: %v %v", v, ok)
	}
	if len(SkipPrefixes) != 1 || SkipPrefixes[0] != "vendor/" {
		t.Errorf("skip_prefixes = %v", SkipPrefixes)
	}
}

func TestLoadBytesRejectsGarbage(t *testing.T) {
	snap := Save()
	defer Restore(snap)
	if err := LoadBytes([]byte("dynamic_shapes: [nope")); err == nil {
		t.Errorf("expected yaml error")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	snap := Save()
	DynamicShapes = !DynamicShapes
	MaxRangeLen = 7
	SetConstantFunction("x.y", 3)
	Restore(snap)
	if MaxRangeLen == 7 {
		t.Errorf("Restore did not reset MaxRangeLen")
	}
	if _, ok := ConstantFunction("x.y"); ok {
		t.Errorf("Restore did not reset constant functions")
	}
}
