package variables

import (
	"fmt"

	"github.com/symtrace/symtrace/internal/graph"
	"github.com/symtrace/symtrace/internal/guards"
	"github.com/symtrace/symtrace/internal/host"
)

// fakeEval re-executes recorded operations on tensor metadata: every call
// yields a fresh sample shaped like the first tensor operand.
type fakeEval struct {
	fail bool
}

func firstTensor(args []host.Value) *host.TensorMeta {
	for _, a := range args {
		if tm, ok := a.(*host.TensorMeta); ok {
			return tm
		}
	}
	return nil
}

func (e *fakeEval) CallFunction(fn *host.Function, args []host.Value, kwargs map[string]host.Value) (host.Value, error) {
	if e.fail {
		return nil, fmt.Errorf("operation %s not modeled", fn.QualName())
	}
	if fn == host.ArangeFn {
		n := 0
		if len(args) == 1 {
			n = args[0].(int)
		} else if len(args) >= 2 {
			n = args[1].(int) - args[0].(int)
		}
		return host.NewTensorMeta(host.Int64, host.CPU, n), nil
	}
	if tm := firstTensor(args); tm != nil {
		return tm.Clone(), nil
	}
	return nil, fmt.Errorf("no tensor operand for %s", fn.QualName())
}

func (e *fakeEval) CallMethod(name string, self host.Value, args []host.Value, kwargs map[string]host.Value) (host.Value, error) {
	if e.fail {
		return nil, fmt.Errorf("method %s not modeled", name)
	}
	if tm, ok := self.(*host.TensorMeta); ok {
		return tm.Clone(), nil
	}
	return nil, fmt.Errorf("method %s on non-tensor", name)
}

func (e *fakeEval) CallLayer(layer *host.Layer, args []host.Value, kwargs map[string]host.Value) (host.Value, error) {
	if e.fail {
		return nil, fmt.Errorf("layer %s not modeled", layer.Class.ClsName)
	}
	if tm := firstTensor(args); tm != nil {
		return tm.Clone(), nil
	}
	return nil, fmt.Errorf("no tensor input for %s", layer.Class.ClsName)
}

// fakeTx is the test stand-in for the driver transaction.
type fakeTx struct {
	g       *graph.Graph
	layers  map[string]*host.Layer
	locals  map[string]Variable
	globals host.Namespace
	stack   []Variable

	// inline overrides InlineUserFunctionReturn when set
	inline func(fn Variable, args []Variable, kwargs Kwargs) (Variable, error)

	replacements int
}

func newFakeTx() *fakeTx {
	return &fakeTx{
		g:       graph.New(&fakeEval{}),
		layers:  make(map[string]*host.Layer),
		locals:  make(map[string]Variable),
		globals: make(host.Namespace),
	}
}

func (f *fakeTx) addLayer(key string, l *host.Layer) *LayerVariable {
	f.layers[key] = l
	return NewLayer(l.Class, key, Options{Source: guards.LocalSource{Local: key}})
}

// inputTensor records a placeholder carrying the given sample and wraps it.
func (f *fakeTx) inputTensor(name string, tm *host.TensorMeta) *TensorVariable {
	proxy := f.g.CreateProxy(graph.Placeholder, name, nil, nil)
	src := guards.LocalSource{Local: name}
	v, err := CreateTensor(f, proxy, tm, nil, Options{Source: src})
	if err != nil {
		panic(err)
	}
	return v.(*TensorVariable)
}

func (f *fakeTx) CreateProxy(op graph.Op, target interface{}, args []interface{}, kwargs map[string]interface{}) *graph.Proxy {
	return f.g.CreateProxy(op, target, args, kwargs)
}

func (f *fakeTx) GetSubmodule(key string) *host.Layer {
	return f.layers[key]
}

func (f *fakeTx) AddSubmodule(value interface{}, key string, component interface{}, source guards.Source, opts Options) Variable {
	subKey := fmt.Sprintf("%s.%v", key, component)
	wrapped := opts
	wrapped.Source = source
	switch v := value.(type) {
	case *host.Layer:
		f.layers[subKey] = v
		return NewLayer(v.Class, subKey, wrapped)
	case *host.TensorMeta:
		proxy := f.g.CreateProxy(graph.GetAttrOp, subKey, nil, nil)
		out, err := CreateTensor(f, proxy, v, nil, wrapped)
		if err != nil {
			panic(err)
		}
		return out
	default:
		panic(fmt.Sprintf("AddSubmodule of %T", value))
	}
}

func (f *fakeTx) CallFunction(fn Variable, args []Variable, kwargs Kwargs) error {
	out, err := CallFunction(f, fn, args, kwargs)
	if err != nil {
		return err
	}
	f.stack = append(f.stack, out)
	return nil
}

func (f *fakeTx) Pop() Variable {
	out := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return out
}

func (f *fakeTx) InlineUserFunctionReturn(fn Variable, args []Variable, kwargs Kwargs) (Variable, error) {
	if f.inline != nil {
		return f.inline(fn, args, kwargs)
	}
	if len(args) > 0 {
		return args[len(args)-1], nil
	}
	return NewConstant(nil, Options{}), nil
}

func (f *fakeTx) ReplaceAll(oldVar, newVar Variable) {
	f.replacements++
	for name, v := range f.locals {
		f.locals[name] = Substitute(v, oldVar, newVar)
	}
	for i, v := range f.stack {
		f.stack[i] = Substitute(v, oldVar, newVar)
	}
}

func (f *fakeTx) FGlobals() host.Namespace { return f.globals }

func (f *fakeTx) SymbolicLocals() map[string]Variable { return f.locals }

// fakeCodegen assembles instructions in order.
type fakeCodegen struct {
	insts   []Instruction
	globals map[string]bool
	cached  map[string]interface{}
}

func newFakeCodegen() *fakeCodegen {
	return &fakeCodegen{globals: make(map[string]bool), cached: make(map[string]interface{})}
}

func (c *fakeCodegen) Emit(v Variable) error {
	tail, err := Reconstruct(c, v)
	if err != nil {
		return err
	}
	c.insts = append(c.insts, tail...)
	return nil
}

func (c *fakeCodegen) Foreach(vs []Variable) error {
	for _, v := range vs {
		if err := c.Emit(v); err != nil {
			return err
		}
	}
	return nil
}

func (c *fakeCodegen) Append(inst Instruction) {
	c.insts = append(c.insts, inst)
}

func (c *fakeCodegen) CreateLoadGlobal(name string, add bool) Instruction {
	return Inst("LOAD_GLOBAL", name)
}

func (c *fakeCodegen) CreateLoadConst(val interface{}) Instruction {
	return Inst("LOAD_CONST", val)
}

func (c *fakeCodegen) CreateLoadAttr(name string) Instruction {
	return Inst("LOAD_ATTR", name)
}

func (c *fakeCodegen) CreateLoadClosure(name string) Instruction {
	return Inst("LOAD_CLOSURE", name)
}

func (c *fakeCodegen) SetupGloballyCached(name string, val interface{}) []Instruction {
	c.cached[name] = val
	return []Instruction{Inst("LOAD_GLOBAL", name)}
}

func (c *fakeCodegen) GlobalExists(name string) bool {
	return c.globals[name]
}

// helpers

func constant(v host.Value) *ConstantVariable {
	return NewConstant(v, Options{})
}

func guardedConstant(v host.Value, name string, kind guards.Kind) *ConstantVariable {
	return NewConstant(v, Options{Guards: guards.NewSet(guards.Guard{Name: name, Kind: kind})})
}
