package variables

import (
	"github.com/symtrace/symtrace/internal/host"
)

// ConstantVariable tracks a concrete host value the engine fully knows.
// The payload is usually a literal, but synthetic constants (host types,
// code objects, size tuples) occur as intermediate results.
type ConstantVariable struct {
	base
	Value host.Value
}

// NewConstant wraps a concrete host value.
func NewConstant(value host.Value, opts Options) *ConstantVariable {
	_, isVar := value.(Variable)
	invariant(!isVar, "constant payload is itself tracked: %v", value)
	return &ConstantVariable{base: makeBase(opts), Value: value}
}

func (c *ConstantVariable) VarType() VarType { return CONSTANT_VAR }

func (c *ConstantVariable) String() string {
	return "ConstantVariable(" + host.Repr(c.Value) + ")"
}

func (c *ConstantVariable) clone(opts Options) Variable {
	return &ConstantVariable{base: makeBase(opts), Value: c.Value}
}

func (c *ConstantVariable) mapOver(fn func(Variable) Variable) Variable {
	return c.clone(c.options())
}

func (c *ConstantVariable) AsConstant() (host.Value, error) {
	return c.Value, nil
}

func (c *ConstantVariable) AsProxy() (interface{}, error) {
	return c.Value, nil
}

func (c *ConstantVariable) TypeOf() (host.Type, error) {
	return host.TypeOf(c.Value), nil
}

// GetItemConst subscripts the literal payload.
func (c *ConstantVariable) GetItemConst(arg Variable) (Variable, error) {
	index, err := AsConstant(arg)
	if err != nil {
		return nil, err
	}
	out, err := host.GetItem(c.Value, index)
	if err != nil {
		return nil, unsupported("%s[%s]: %v", c, arg, err)
	}
	return NewConstant(out, Propagate(c, arg)), nil
}

func (c *ConstantVariable) UnpackSequence(tx Tx) ([]Variable, error) {
	seq, err := host.Sequence(c.Value)
	if err != nil {
		return nil, unsupported("unpack %s: %v", c, err)
	}
	opts := Propagate(c)
	out := make([]Variable, len(seq))
	for i, v := range seq {
		out[i] = NewConstant(v, opts)
	}
	return out, nil
}

// GetVarAttr exposes the data members carried by structured literals.
// Callable attributes are refused so a method fetched off a constant never
// masquerades as a constant itself.
func (c *ConstantVariable) GetVarAttr(tx Tx, name string) (Variable, error) {
	var member host.Value
	switch v := c.Value.(type) {
	case host.Range:
		switch name {
		case "start":
			member = v.Start
		case "stop":
			member = v.Stop
		case "step":
			member = v.Step
		default:
			return nil, unsupported("getattr %s.%s", c, name)
		}
	default:
		return nil, unsupported("getattr %s.%s", c, name)
	}
	if _, isFn := member.(*host.Function); isFn {
		return nil, unsupported("getattr %s.%s is callable", c, name)
	}
	return NewConstant(member, Propagate(c)), nil
}

func (c *ConstantVariable) Reconstruct(cg Codegen) ([]Instruction, error) {
	return []Instruction{cg.CreateLoadConst(c.Value)}, nil
}
