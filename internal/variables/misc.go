package variables

import (
	"github.com/symtrace/symtrace/internal/graph"
	"github.com/symtrace/symtrace/internal/host"
)

// LambdaVariable tracks an engine-synthesized callable (rewritten library
// constructs close over their replacement behavior).
type LambdaVariable struct {
	base
	Fn func(args []Variable, kwargs Kwargs) (Variable, error)
}

// NewLambda wraps a synthesized callable.
func NewLambda(fn func(args []Variable, kwargs Kwargs) (Variable, error), opts Options) *LambdaVariable {
	return &LambdaVariable{base: makeBase(opts), Fn: fn}
}

func (l *LambdaVariable) VarType() VarType { return LAMBDA_VAR }

func (l *LambdaVariable) String() string { return "LambdaVariable()" }

func (l *LambdaVariable) clone(opts Options) Variable {
	return &LambdaVariable{base: makeBase(opts), Fn: l.Fn}
}

func (l *LambdaVariable) mapOver(fn func(Variable) Variable) Variable {
	return l.clone(l.options())
}

func (l *LambdaVariable) CallFunction(tx Tx, args []Variable, kwargs Kwargs) (Variable, error) {
	out, err := l.Fn(args, kwargs)
	if err != nil {
		return nil, err
	}
	return AddGuards(out, l.guardSet), nil
}

// UserDefinedClassVariable tracks a traced-program class object. Only
// named-tuple classes are constructible symbolically.
type UserDefinedClassVariable struct {
	base
	Cls *host.Class
}

// NewUserDefinedClass wraps a class object.
func NewUserDefinedClass(cls *host.Class, opts Options) *UserDefinedClassVariable {
	return &UserDefinedClassVariable{base: makeBase(opts), Cls: cls}
}

func (c *UserDefinedClassVariable) VarType() VarType { return USER_CLASS_VAR }

func (c *UserDefinedClassVariable) String() string {
	return "UserDefinedClassVariable(" + c.Cls.ClsName + ")"
}

func (c *UserDefinedClassVariable) clone(opts Options) Variable {
	return &UserDefinedClassVariable{base: makeBase(opts), Cls: c.Cls}
}

func (c *UserDefinedClassVariable) mapOver(fn func(Variable) Variable) Variable {
	return c.clone(c.options())
}

func (c *UserDefinedClassVariable) AsConstant() (host.Value, error) { return c.Cls, nil }

func (c *UserDefinedClassVariable) AsProxy() (interface{}, error) { return c.Cls, nil }

func (c *UserDefinedClassVariable) TypeOf() (host.Type, error) { return host.TypeType, nil }

// CallFunction constructs a named tuple by binding positional and keyword
// arguments onto the field list.
func (c *UserDefinedClassVariable) CallFunction(tx Tx, args []Variable, kwargs Kwargs) (Variable, error) {
	if !c.Cls.IsNamedTuple() {
		return nil, unsupported("construct class %s inside trace", c.Cls.ClsName)
	}
	fields := c.Cls.Fields
	if len(args) > len(fields) {
		return nil, unsupported("%s takes %d fields, got %d positional", c.Cls.ClsName, len(fields), len(args))
	}
	items := make([]Variable, len(fields))
	copy(items, args)
	for name, v := range kwargs {
		idx := -1
		for i, f := range fields {
			if f == name {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, unsupported("%s has no field %s", c.Cls.ClsName, name)
		}
		if items[idx] != nil {
			return nil, unsupported("%s got multiple values for %s", c.Cls.ClsName, name)
		}
		items[idx] = v
	}
	for i, it := range items {
		if it == nil {
			return nil, unsupported("%s missing field %s", c.Cls.ClsName, fields[i])
		}
	}
	return NewNamedTuple(items, c.Cls, Propagate(c, items)), nil
}

// HostModuleVariable tracks a traced-program (non-library) module object.
type HostModuleVariable struct {
	base
	Mod *host.Module
}

// NewHostModule wraps a module object.
func NewHostModule(mod *host.Module, opts Options) *HostModuleVariable {
	return &HostModuleVariable{base: makeBase(opts), Mod: mod}
}

func (m *HostModuleVariable) VarType() VarType { return HOST_MODULE_VAR }

func (m *HostModuleVariable) String() string {
	return "HostModuleVariable(" + m.Mod.ModName + ")"
}

func (m *HostModuleVariable) clone(opts Options) Variable {
	return &HostModuleVariable{base: makeBase(opts), Mod: m.Mod}
}

func (m *HostModuleVariable) mapOver(fn func(Variable) Variable) Variable {
	return m.clone(m.options())
}

func (m *HostModuleVariable) TypeOf() (host.Type, error) { return host.ModuleType, nil }

func (m *HostModuleVariable) AsConstant() (host.Value, error) { return m.Mod, nil }

func (m *HostModuleVariable) GetConstAttr(tx Tx, name string) (host.Value, error) {
	if v, ok := m.Mod.Attrs[name]; ok {
		return v, nil
	}
	return nil, unsupported("module %s has no attribute %s", m.Mod.ModName, name)
}

// GetAttrVariable tracks a deferred attribute access whose result could not
// be resolved to a more specific variant. It resolves lazily: as a graph
// projection, a two-step static lookup, or a method call.
type GetAttrVariable struct {
	base
	Obj  Variable
	Name string
}

// NewGetAttr defers obj.name.
func NewGetAttr(obj Variable, name string, opts Options) *GetAttrVariable {
	invariant(obj != nil && name != "", "malformed deferred attribute")
	return &GetAttrVariable{base: makeBase(opts), Obj: obj, Name: name}
}

func (g *GetAttrVariable) VarType() VarType { return GETATTR_VAR }

func (g *GetAttrVariable) String() string {
	return "GetAttrVariable(" + g.Obj.String() + ", " + g.Name + ")"
}

func (g *GetAttrVariable) clone(opts Options) Variable {
	return &GetAttrVariable{base: makeBase(opts), Obj: g.Obj, Name: g.Name}
}

func (g *GetAttrVariable) mapOver(fn func(Variable) Variable) Variable {
	return &GetAttrVariable{base: makeBase(g.options()), Obj: fn(g.Obj), Name: g.Name}
}

func (g *GetAttrVariable) AsProxy() (interface{}, error) {
	p, err := AsProxy(g.Obj)
	if err != nil {
		return nil, err
	}
	proxy, ok := p.(*graph.Proxy)
	if !ok {
		return nil, unsupported("%s projects onto non-node operand", g)
	}
	return proxy.Attr(g.Name), nil
}

// GetConstAttr resolves the two-step static lookup layer.attr1.attr2; it
// only answers when the intermediate is itself statically addressable.
func (g *GetAttrVariable) GetConstAttr(tx Tx, name string) (host.Value, error) {
	layer, ok := g.Obj.(*LayerVariable)
	if !ok {
		return nil, unsupported("getattr %s.%s", g, name)
	}
	step1 := tx.GetSubmodule(layer.Key)
	mid, ok := step1.Attrs[g.Name]
	if !ok {
		return nil, unsupported("layer %s has no static attribute %s", layer.Key, g.Name)
	}
	switch v := mid.(type) {
	case *host.Object:
		if out, ok := v.Dict[name]; ok {
			return out, nil
		}
	case *host.Layer:
		if out, ok := v.Attrs[name]; ok {
			return out, nil
		}
	}
	return nil, unsupported("attribute %s.%s is not statically known", g.Name, name)
}

// CallFunction treats the deferred attribute as a method of its object.
func (g *GetAttrVariable) CallFunction(tx Tx, args []Variable, kwargs Kwargs) (Variable, error) {
	out, err := CallMethod(tx, g.Obj, g.Name, args, kwargs)
	if err != nil {
		return nil, err
	}
	return AddGuards(out, g.guardSet), nil
}

func (g *GetAttrVariable) Reconstruct(cg Codegen) ([]Instruction, error) {
	if err := cg.Emit(g.Obj); err != nil {
		return nil, err
	}
	return []Instruction{cg.CreateLoadAttr(g.Name)}, nil
}

// SuperVariable tracks a two-argument super() binding.
type SuperVariable struct {
	base
	TypeVar Variable
	ObjVar  Variable // nil for the unsupported zero/one-argument form
}

// NewSuper binds super(typeVar, objVar); objVar may be nil.
func NewSuper(typeVar, objVar Variable, opts Options) *SuperVariable {
	return &SuperVariable{base: makeBase(opts), TypeVar: typeVar, ObjVar: objVar}
}

func (s *SuperVariable) VarType() VarType { return SUPER_VAR }

func (s *SuperVariable) String() string { return "SuperVariable()" }

func (s *SuperVariable) clone(opts Options) Variable {
	return &SuperVariable{base: makeBase(opts), TypeVar: s.TypeVar, ObjVar: s.ObjVar}
}

func (s *SuperVariable) mapOver(fn func(Variable) Variable) Variable {
	var obj Variable
	if s.ObjVar != nil {
		obj = fn(s.ObjVar)
	}
	return &SuperVariable{base: makeBase(s.options()), TypeVar: fn(s.TypeVar), ObjVar: obj}
}

func (s *SuperVariable) GetConstAttr(tx Tx, name string) (host.Value, error) {
	if s.ObjVar == nil {
		return nil, unsupported("one-argument super()")
	}
	searchVal, err := AsConstant(s.TypeVar)
	if err != nil {
		return nil, err
	}
	search, ok := searchVal.(*host.Class)
	if !ok {
		return nil, unsupported("super() over non-class %s", s.TypeVar)
	}
	objType, err := TypeOf(s.ObjVar)
	if err != nil {
		return nil, err
	}
	out, err := host.SuperLookup(search, objType, name)
	if err != nil {
		return nil, unsupported("%v", err)
	}
	return out, nil
}

// CallMethod resolves the method after the search class and inlines it with
// the bound object. Only plain traced-program functions are accepted.
func (s *SuperVariable) CallMethod(tx Tx, name string, args []Variable, kwargs Kwargs) (Variable, error) {
	opts := Propagate(s, args, kwargs)
	inner, err := s.GetConstAttr(tx, name)
	if err != nil {
		return nil, err
	}
	fn, ok := inner.(*host.Function)
	if !ok || fn.Code == nil {
		return nil, unsupported("super() resolved %s to non-function %s", name, host.Repr(inner))
	}
	callee := NewUserFunction(fn, opts)
	return callee.CallFunction(tx, append([]Variable{s.ObjVar}, args...), kwargs)
}

func (s *SuperVariable) Reconstruct(cg Codegen) ([]Instruction, error) {
	if err := cg.Emit(NewBuiltin(host.SuperFn, Options{})); err != nil {
		return nil, err
	}
	if err := cg.Emit(s.TypeVar); err != nil {
		return nil, err
	}
	n := 1
	if s.ObjVar != nil {
		if err := cg.Emit(s.ObjVar); err != nil {
			return nil, err
		}
		n = 2
	}
	return []Instruction{Inst("CALL_FUNCTION", n)}, nil
}

// UnsupportedVariable tracks a value the engine knows nothing about beyond
// its type. Its only workable operation is calling a class-level method
// that can be inlined.
type UnsupportedVariable struct {
	base
	Value     host.Value
	ValueType host.Type
}

// NewUnsupported wraps an unmodeled value.
func NewUnsupported(value host.Value, opts Options) *UnsupportedVariable {
	return &UnsupportedVariable{base: makeBase(opts), Value: value, ValueType: host.TypeOf(value)}
}

func (u *UnsupportedVariable) VarType() VarType { return UNSUPPORTED_VAR }

func (u *UnsupportedVariable) String() string {
	return "UnsupportedVariable(" + u.ValueType.TypeName() + ")"
}

func (u *UnsupportedVariable) clone(opts Options) Variable {
	return &UnsupportedVariable{base: makeBase(opts), Value: u.Value, ValueType: u.ValueType}
}

func (u *UnsupportedVariable) mapOver(fn func(Variable) Variable) Variable {
	return u.clone(u.options())
}

func (u *UnsupportedVariable) TypeOf() (host.Type, error) { return u.ValueType, nil }

// CallMethod inlines a class-level method. Instance-dict overrides are
// refused: the engine cannot prove the stored callable stays stable.
func (u *UnsupportedVariable) CallMethod(tx Tx, name string, args []Variable, kwargs Kwargs) (Variable, error) {
	cls, ok := u.ValueType.(*host.Class)
	if !ok {
		return nil, unsupportedMethod(u, name, args, kwargs)
	}
	if obj, ok := u.Value.(*host.Object); ok {
		if _, shadowed := obj.Dict[name]; shadowed {
			return nil, unsupported("instance-dict method %s on %s", name, u)
		}
	}
	fn := cls.Method(name)
	if fn == nil || fn.Code == nil {
		return nil, unsupportedMethod(u, name, args, kwargs)
	}
	opts := Propagate(u, args, kwargs)
	method := NewUserMethod(fn, u, opts)
	return method.CallFunction(tx, args, kwargs)
}

// UnknownVariable is the placeholder for stack slots whose value the driver
// never learned; every operation on it is a graph break.
type UnknownVariable struct {
	base
}

// NewUnknown builds a placeholder.
func NewUnknown(opts Options) *UnknownVariable {
	return &UnknownVariable{base: makeBase(opts)}
}

func (u *UnknownVariable) VarType() VarType { return UNKNOWN_VAR }

func (u *UnknownVariable) String() string { return "UnknownVariable()" }

func (u *UnknownVariable) clone(opts Options) Variable {
	return &UnknownVariable{base: makeBase(opts)}
}

func (u *UnknownVariable) mapOver(fn func(Variable) Variable) Variable {
	return u.clone(u.options())
}

// ClosureVariable names a closure cell of the enclosing frame; the actual
// value lives in the parent's symbolic locals.
type ClosureVariable struct {
	base
	Name string
}

// NewClosure names a cell.
func NewClosure(name string, opts Options) *ClosureVariable {
	return &ClosureVariable{base: makeBase(opts), Name: name}
}

func (c *ClosureVariable) VarType() VarType { return CLOSURE_VAR }

func (c *ClosureVariable) String() string { return "ClosureVariable(" + c.Name + ")" }

func (c *ClosureVariable) clone(opts Options) Variable {
	return &ClosureVariable{base: makeBase(opts), Name: c.Name}
}

func (c *ClosureVariable) mapOver(fn func(Variable) Variable) Variable {
	return c.clone(c.options())
}

func (c *ClosureVariable) Reconstruct(cg Codegen) ([]Instruction, error) {
	return []Instruction{cg.CreateLoadClosure(c.Name)}, nil
}
