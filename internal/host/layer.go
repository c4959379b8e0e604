package host

// Layer is the host's composable model unit (the object tree the engine
// addresses through submodule keys). The engine never stores layers inside
// variables; it re-resolves them through the driver on every use.
type Layer struct {
	Class *Class
	Attrs map[string]Value

	children []NamedChild
	params   []NamedParam

	// forward overrides the class-level forward when an instance was
	// monkey-patched; nil means the class method applies.
	forward *Function
}

// NamedChild is an ordered (name, child) entry.
type NamedChild struct {
	Name  string
	Layer *Layer
}

// NamedParam is an ordered (name, parameter) entry.
type NamedParam struct {
	Name  string
	Param *TensorMeta
}

// NewLayer builds an empty layer of the given class.
func NewLayer(cls *Class) *Layer {
	return &Layer{Class: cls, Attrs: make(map[string]Value)}
}

// AddChild appends a named child layer; returns the receiver for chaining.
func (l *Layer) AddChild(name string, child *Layer) *Layer {
	l.children = append(l.children, NamedChild{Name: name, Layer: child})
	return l
}

// AddParam appends a named parameter.
func (l *Layer) AddParam(name string, p *TensorMeta) *Layer {
	l.params = append(l.params, NamedParam{Name: name, Param: p})
	return l
}

// SetForward monkey-patches the instance forward.
func (l *Layer) SetForward(fn *Function) { l.forward = fn }

// NamedChildren lists direct children in registration order.
func (l *Layer) NamedChildren() []NamedChild {
	return append([]NamedChild{}, l.children...)
}

// Child resolves a direct child by name.
func (l *Layer) Child(name string) (*Layer, bool) {
	for _, c := range l.children {
		if c.Name == name {
			return c.Layer, true
		}
	}
	return nil, false
}

// Len is the direct child count (container semantics).
func (l *Layer) Len() int { return len(l.children) }

// NamedParameters lists parameters; with recurse, children contribute theirs
// under dotted names.
func (l *Layer) NamedParameters(recurse bool) []NamedParam {
	out := append([]NamedParam{}, l.params...)
	if recurse {
		for _, c := range l.children {
			for _, p := range c.Layer.NamedParameters(true) {
				out = append(out, NamedParam{Name: c.Name + "." + p.Name, Param: p.Param})
			}
		}
	}
	return out
}

// Items lists direct children as key/value pairs (dict-container
// semantics; identical ordering to NamedChildren).
func (l *Layer) Items() []NamedChild { return l.NamedChildren() }

// ForwardFn resolves the effective forward callable: the instance override
// if set, else the class-level method.
func (l *Layer) ForwardFn() *Function {
	if l.forward != nil {
		return l.forward
	}
	return l.Class.Method("forward")
}

// HasAttr reports whether name resolves on this layer: instance attrs,
// parameters, children, then class methods and attrs.
func (l *Layer) HasAttr(name string) bool {
	if _, ok := l.Attrs[name]; ok {
		return true
	}
	for _, p := range l.params {
		if p.Name == name {
			return true
		}
	}
	if _, ok := l.Child(name); ok {
		return true
	}
	if l.Class.Method(name) != nil {
		return true
	}
	_, ok := l.Class.ClassAttr(name)
	return ok
}

// DeepCopy snapshots the layer tree (attrs are copied shallowly; parameter
// metadata is cloned).
func (l *Layer) DeepCopy() *Layer {
	out := &Layer{Class: l.Class, Attrs: make(map[string]Value, len(l.Attrs)), forward: l.forward}
	for k, v := range l.Attrs {
		out.Attrs[k] = v
	}
	for _, c := range l.children {
		out.children = append(out.children, NamedChild{Name: c.Name, Layer: c.Layer.DeepCopy()})
	}
	for _, p := range l.params {
		out.params = append(out.params, NamedParam{Name: p.Name, Param: p.Param.Clone()})
	}
	return out
}

// The layer base class and the container classes the engine statically
// unrolls. BaseForward is the stock no-op forward: calling a layer that
// still has it is a modeling error in the traced program.
var (
	BaseLayerClass   *Class
	SequentialClass  *Class
	LayerListClass   *Class
	ParamListClass   *Class
	BaseForward      *Function
	SequentialForward *Function
)

func init() {
	BaseLayerClass = NewClass("tensor.nn.Layer")
	BaseForward = &Function{
		FnName: "forward",
		Module: "tensor.nn",
		Code:   &Code{CoName: "forward", Filename: "tensor/nn/layer.host", Params: []Param{{Name: "self"}}},
	}
	BaseLayerClass.Methods["forward"] = BaseForward

	SequentialClass = NewClass("tensor.nn.Sequential", BaseLayerClass)
	SequentialForward = &Function{
		FnName: "forward",
		Module: "tensor.nn",
		Code:   &Code{CoName: "forward", Filename: "tensor/nn/container.host", Params: []Param{{Name: "self"}, {Name: "input"}}},
	}
	SequentialClass.Methods["forward"] = SequentialForward

	LayerListClass = NewClass("tensor.nn.LayerList", BaseLayerClass)
	ParamListClass = NewClass("tensor.nn.ParamList", BaseLayerClass)
}

// IsContainerClass reports whether cls is one of the statically unpackable
// layer containers.
func IsContainerClass(cls *Class) bool {
	for _, c := range cls.MRO() {
		if c == SequentialClass || c == LayerListClass || c == ParamListClass {
			return true
		}
	}
	return false
}

// IsSequential reports whether cls inherits the Sequential container.
func IsSequential(cls *Class) bool {
	for _, c := range cls.MRO() {
		if c == SequentialClass {
			return true
		}
	}
	return false
}
