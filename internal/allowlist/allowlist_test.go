package allowlist

import (
	"testing"

	"github.com/symtrace/symtrace/internal/host"
)

func TestAllowedNamespaces(t *testing.T) {
	if !Allowed(host.IsTensorFn) {
		t.Errorf("tensor.is_tensor should be allowed")
	}
	if !Allowed(host.MathFunc("sqrt")) {
		t.Errorf("math.sqrt should be allowed")
	}
	if !Allowed(host.TensorModule) {
		t.Errorf("tensor module should be allowed")
	}
	if !Allowed(host.Float32) {
		t.Errorf("dtypes should be allowed")
	}
	user := &host.Function{FnName: "helper", Module: "mymodel.util"}
	if Allowed(user) {
		t.Errorf("user function must not be allowed")
	}
	if Allowed(42) {
		t.Errorf("plain values are never allowed callables")
	}
}

func TestAllowedLayerClass(t *testing.T) {
	if !AllowedLayerClass(host.SoftmaxClass) {
		t.Errorf("library layer class should be allowed")
	}
	if AllowedLayerClass(host.BaseLayerClass) {
		t.Errorf("base layer class must never be allowed")
	}
	mine := host.NewClass("mymodel.Block", host.BaseLayerClass)
	if AllowedLayerClass(mine) {
		t.Errorf("user layer class must not be allowed")
	}
}

func TestSkipFile(t *testing.T) {
	if !SkipFile("tensor/nn/container.host") {
		t.Errorf("library files are skipped")
	}
	if !SkipFile("") {
		t.Errorf("unknown provenance is skipped")
	}
	if SkipFile("mymodel/blocks.host") {
		t.Errorf("user files are not skipped")
	}
	AddSkip("thirdparty/")
	if !SkipFile("thirdparty/lib.host") {
		t.Errorf("AddSkip prefix not honored")
	}
}
