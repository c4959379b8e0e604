package variables

import (
	"strconv"
	"testing"

	"github.com/symtrace/symtrace/internal/graph"
	"github.com/symtrace/symtrace/internal/guards"
	"github.com/symtrace/symtrace/internal/host"
)

func newSequential(children ...*host.Layer) *host.Layer {
	seq := host.NewLayer(host.SequentialClass)
	for i, c := range children {
		seq.AddChild(strconv.Itoa(i), c)
	}
	return seq
}

func allowedLeafLayer() *host.Layer {
	cls := host.NewClass("tensor.nn.ReLU", host.BaseLayerClass)
	return host.NewLayer(cls)
}

func TestSequentialUnrolls(t *testing.T) {
	tx := newFakeTx()
	seq := newSequential(allowedLeafLayer(), allowedLeafLayer())
	lv := tx.addLayer("self.seq", seq)
	tvIn := tx.inputTensor("x", sample2x3())
	before := tx.g.Len()

	out, err := lv.CallFunction(tx, []Variable{tvIn}, nil)
	if err != nil {
		t.Fatalf("sequential: %v", err)
	}
	if _, ok := out.(*TensorVariable); !ok {
		t.Fatalf("result %s", out)
	}
	recorded := 0
	for _, n := range tx.g.Nodes()[before:] {
		if n.Op == graph.CallModule {
			recorded++
		}
	}
	if recorded != 2 {
		t.Errorf("unroll recorded %d call_module nodes, want 2", recorded)
	}
}

func TestAllowedLayerRecordsCallModule(t *testing.T) {
	tx := newFakeTx()
	lv := tx.addLayer("self.act", allowedLeafLayer())
	tvIn := tx.inputTensor("x", sample2x3())

	out, err := lv.CallFunction(tx, []Variable{tvIn}, nil)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if _, ok := out.(*TensorVariable); !ok {
		t.Fatalf("result %s", out)
	}
	nodes := tx.g.Nodes()
	last := nodes[len(nodes)-1]
	if last.Op != graph.CallModule || last.Target != "self.act" {
		t.Errorf("node %s target=%v", last.Op, last.Target)
	}
}

func TestCustomLayerInlinesForward(t *testing.T) {
	tx := newFakeTx()
	var inlined *host.Function
	tx.inline = func(fn Variable, args []Variable, kwargs Kwargs) (Variable, error) {
		inlined = fn.(*UserFunctionVariable).Fn
		return args[len(args)-1], nil
	}

	cls := host.NewClass("model.Block", host.BaseLayerClass)
	fwd := userFn("forward", host.Param{Name: "self"}, host.Param{Name: "x"})
	cls.Methods["forward"] = fwd
	lv := tx.addLayer("self.block", host.NewLayer(cls))
	tvIn := tx.inputTensor("x", sample2x3())

	if _, err := lv.CallFunction(tx, []Variable{tvIn}, nil); err != nil {
		t.Fatalf("call: %v", err)
	}
	if inlined != fwd {
		t.Errorf("inlined %v, want the class forward", inlined)
	}
}

func TestStockForwardRefused(t *testing.T) {
	tx := newFakeTx()
	cls := host.NewClass("model.Empty", host.BaseLayerClass)
	lv := tx.addLayer("self.e", host.NewLayer(cls))
	tvIn := tx.inputTensor("x", sample2x3())

	_, err := lv.CallFunction(tx, []Variable{tvIn}, nil)
	if !IsUnsupported(err) {
		t.Fatalf("stock forward: err=%v, want graph break", err)
	}
}

func TestLayerChildrenWrapWithProvenance(t *testing.T) {
	tx := newFakeTx()
	parent := host.NewLayer(host.NewClass("model.Net", host.BaseLayerClass))
	parent.AddChild("encoder", allowedLeafLayer())
	lv := tx.addLayer("self.net", parent)

	out, err := lv.CallMethod(tx, "children", nil, nil)
	if err != nil {
		t.Fatalf("children: %v", err)
	}
	it := out.(*ListIteratorVariable)
	if it.Mutable() == nil {
		t.Errorf("children iterator has no mutation token")
	}
	child := it.Items[0].(*LayerVariable)
	if child.Source().Name() != "self.net.encoder" {
		t.Errorf("child provenance %q", child.Source().Name())
	}
}

func TestParameterPathRewritesNumericComponents(t *testing.T) {
	tx := newFakeTx()
	inner := host.NewLayer(host.NewClass("tensor.nn.Linear", host.BaseLayerClass))
	inner.AddParam("weight", sample2x3())
	net := host.NewLayer(host.NewClass("model.Net", host.BaseLayerClass))
	net.AddChild("blocks", newSequential(inner))
	lv := tx.addLayer("self.net", net)

	out, err := lv.CallMethod(tx, "parameters", nil, nil)
	if err != nil {
		t.Fatalf("parameters: %v", err)
	}
	it := out.(*ListIteratorVariable)
	if len(it.Items) != 1 {
		t.Fatalf("parameter count %d", len(it.Items))
	}
	// NamedParameters renders "blocks.0.weight"; the numeric component
	// must come out as a subscript, never a dotted attribute
	if src := it.Items[0].Source().Name(); src != "self.net.blocks[0].weight" {
		t.Errorf("parameter provenance %q", src)
	}
}

func TestLayerMethodWithSymbolicArgBreaks(t *testing.T) {
	tx := newFakeTx()
	lv := tx.addLayer("self.net", host.NewLayer(host.NewClass("model.Net", host.BaseLayerClass)))
	tvIn := tx.inputTensor("x", sample2x3())

	_, err := lv.CallMethod(tx, "parameters", []Variable{tvIn}, nil)
	if !IsUnsupported(err) {
		t.Fatalf("symbolic method arg: err=%v, want graph break", err)
	}
}

func TestContainerUnpack(t *testing.T) {
	tx := newFakeTx()
	seq := newSequential(allowedLeafLayer(), allowedLeafLayer())
	lv := tx.addLayer("self.seq", seq)

	items, err := Unpack(tx, lv)
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("unpacked %d children", len(items))
	}
	if _, ok := items[0].(*LayerVariable); !ok {
		t.Errorf("child %s", items[0])
	}
	if _, ok := items[0].Source().(guards.ItemSource); !ok {
		t.Errorf("child provenance %T, want subscript", items[0].Source())
	}

	plain := tx.addLayer("self.p", host.NewLayer(host.NewClass("model.P", host.BaseLayerClass)))
	if _, err := Unpack(tx, plain); !IsUnsupported(err) {
		t.Errorf("unpack non-container: err=%v, want graph break", err)
	}
}
