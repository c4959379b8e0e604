package host

import (
	"fmt"
)

// Type is a host type object. Builtin types are singletons; user classes
// carry bases, methods and attributes.
type Type interface {
	TypeName() string
}

// BuiltinType is a primitive or structural host type.
type BuiltinType struct {
	name string
}

func (t *BuiltinType) TypeName() string { return t.name }
func (t *BuiltinType) String() string   { return "<type '" + t.name + "'>" }

var (
	NoneType     = &BuiltinType{"NoneType"}
	BoolType     = &BuiltinType{"bool"}
	IntType      = &BuiltinType{"int"}
	FloatType    = &BuiltinType{"float"}
	StrType      = &BuiltinType{"str"}
	ListType     = &BuiltinType{"list"}
	TupleType    = &BuiltinType{"tuple"}
	SetType      = &BuiltinType{"set"}
	DictType     = &BuiltinType{"dict"}
	RangeType    = &BuiltinType{"range"}
	SliceType    = &BuiltinType{"slice"}
	FunctionType = &BuiltinType{"function"}
	MethodType   = &BuiltinType{"method"}
	BuiltinFnType = &BuiltinType{"builtin_function_or_method"}
	ModuleType   = &BuiltinType{"module"}
	CodeType     = &BuiltinType{"code"}
	CellType     = &BuiltinType{"cell"}
	TypeType     = &BuiltinType{"type"}
	TensorType   = &BuiltinType{"Tensor"}
	DTypeType    = &BuiltinType{"dtype"}
	DeviceType   = &BuiltinType{"device"}
)

// Class is a user-defined (or library-defined) host class.
type Class struct {
	ClsName string
	Bases   []*Class
	Methods map[string]*Function
	Attrs   map[string]Value

	// Fields is non-nil for named-tuple classes and lists the positional
	// field names.
	Fields []string

	// Protocol marks classes whose subclass relation is not decidable
	// (abstract protocols); Subclasses returns an error for them and
	// callers fall back to identity comparison.
	Protocol bool
}

func (c *Class) TypeName() string { return c.ClsName }
func (c *Class) String() string   { return "<class '" + c.ClsName + "'>" }

// NewClass builds a class with the given bases.
func NewClass(name string, bases ...*Class) *Class {
	return &Class{
		ClsName: name,
		Bases:   bases,
		Methods: make(map[string]*Function),
		Attrs:   make(map[string]Value),
	}
}

// MRO returns the method resolution order: the class itself, then bases
// depth-first with duplicates removed. Host classes observed in traces are
// effectively single-inheritance, so full C3 linearization is not needed.
func (c *Class) MRO() []*Class {
	seen := make(map[*Class]bool)
	var out []*Class
	var walk func(*Class)
	walk = func(cl *Class) {
		if cl == nil || seen[cl] {
			return
		}
		seen[cl] = true
		out = append(out, cl)
		for _, b := range cl.Bases {
			walk(b)
		}
	}
	walk(c)
	return out
}

// Method resolves a method along the MRO; nil if absent.
func (c *Class) Method(name string) *Function {
	for _, cl := range c.MRO() {
		if fn, ok := cl.Methods[name]; ok {
			return fn
		}
	}
	return nil
}

// ClassAttr resolves a class-level attribute along the MRO.
func (c *Class) ClassAttr(name string) (Value, bool) {
	for _, cl := range c.MRO() {
		if v, ok := cl.Attrs[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// IsNamedTuple reports whether c is a named-tuple class.
func (c *Class) IsNamedTuple() bool { return c.Fields != nil }

// TypeOf classifies a host value.
func TypeOf(v Value) Type {
	switch x := v.(type) {
	case nil:
		return NoneType
	case bool:
		return BoolType
	case int:
		return IntType
	case float64:
		return FloatType
	case string:
		return StrType
	case List:
		return ListType
	case Tuple:
		return TupleType
	case SetLit, FrozenSet:
		return SetType
	case Range:
		return RangeType
	case Slice:
		return SliceType
	case *Function:
		if x.Module == "builtins" {
			return BuiltinFnType
		}
		return FunctionType
	case *Module:
		return ModuleType
	case *Code:
		return CodeType
	case *Cell:
		return CellType
	case *Class:
		return TypeType
	case *BuiltinType:
		return TypeType
	case *DType:
		return DTypeType
	case Device:
		return DeviceType
	case *TensorMeta:
		return TensorType
	case *Object:
		return x.Class
	case *Layer:
		return x.Class
	default:
		return &BuiltinType{fmt.Sprintf("%T", v)}
	}
}

// Subclasses reports whether t is a subclass of (or identical to) "of".
// Protocol classes refuse the question with an error, mirroring host types
// whose subclass hook raises.
func Subclasses(t, of Type) (bool, error) {
	ofCls, ofIsClass := of.(*Class)
	if ofIsClass && ofCls.Protocol {
		return false, fmt.Errorf("issubclass() with protocol class %s", ofCls.ClsName)
	}
	if t == of {
		return true, nil
	}
	tCls, tIsClass := t.(*Class)
	if tIsClass && ofIsClass {
		for _, c := range tCls.MRO() {
			if c == ofCls {
				return true, nil
			}
		}
	}
	// bool is a subtype of int in the host numeric tower
	if t == BoolType && of == IntType {
		return true, nil
	}
	return false, nil
}

// SuperLookup resolves name starting *after* search in the MRO of objType,
// the two-argument super() semantics. Only class-level entries are
// consulted.
func SuperLookup(search *Class, objType Type, name string) (Value, error) {
	objCls, ok := objType.(*Class)
	if !ok {
		return nil, fmt.Errorf("super(): %s is not a class instance type", objType.TypeName())
	}
	mro := objCls.MRO()
	idx := -1
	for i, c := range mro {
		if c == search {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("super(): %s not in MRO of %s", search.ClsName, objCls.ClsName)
	}
	for _, c := range mro[idx+1:] {
		if fn, ok := c.Methods[name]; ok {
			return fn, nil
		}
		if v, ok := c.Attrs[name]; ok {
			return v, nil
		}
	}
	return nil, fmt.Errorf("super(): no attribute %q after %s", name, search.ClsName)
}

// Object is an instance of a user-defined class whose internals the engine
// does not model beyond its type and instance dictionary.
type Object struct {
	Class *Class
	Dict  map[string]Value
}

// NewObject builds an instance with an empty dictionary.
func NewObject(cls *Class) *Object {
	return &Object{Class: cls, Dict: make(map[string]Value)}
}
