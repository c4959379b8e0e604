package host

import (
	"fmt"
	"strings"
)

// DType is a tensor element type.
type DType struct {
	DTName   string
	Floating bool
}

func (d *DType) String() string { return "tensor." + d.DTName }

var (
	Float16 = &DType{"float16", true}
	Float32 = &DType{"float32", true}
	Float64 = &DType{"float64", true}
	Int8    = &DType{"int8", false}
	Int32   = &DType{"int32", false}
	Int64   = &DType{"int64", false}
	Uint8   = &DType{"uint8", false}
	BoolDT  = &DType{"bool", false}
)

// Device locates tensor storage.
type Device struct {
	Kind  string // "cpu" or "cuda"
	Index int
}

func (d Device) String() string {
	if d.Kind == "cuda" {
		return fmt.Sprintf("cuda:%d", d.Index)
	}
	return d.Kind
}

// IsCUDA reports accelerator residency.
func (d Device) IsCUDA() bool { return d.Kind == "cuda" }

// CPU is the default device.
var CPU = Device{Kind: "cpu"}

// TensorMeta is a concrete sample value: the metadata of a real runtime
// tensor, used for shape/type specialization and example-value propagation.
// It carries no element data.
type TensorMeta struct {
	DType        *DType
	Device       Device
	Sizes        []int
	Strides      []int
	RequiresGrad bool
}

// NewTensorMeta builds a contiguous sample of the given shape.
func NewTensorMeta(dt *DType, dev Device, sizes ...int) *TensorMeta {
	return &TensorMeta{
		DType:   dt,
		Device:  dev,
		Sizes:   append([]int{}, sizes...),
		Strides: ContiguousStrides(sizes),
	}
}

// NDim is the tensor rank.
func (t *TensorMeta) NDim() int { return len(t.Sizes) }

// Numel is the element count.
func (t *TensorMeta) Numel() int {
	n := 1
	for _, s := range t.Sizes {
		n *= s
	}
	return n
}

// Clone copies the sample.
func (t *TensorMeta) Clone() *TensorMeta {
	return &TensorMeta{
		DType:        t.DType,
		Device:       t.Device,
		Sizes:        append([]int{}, t.Sizes...),
		Strides:      append([]int{}, t.Strides...),
		RequiresGrad: t.RequiresGrad,
	}
}

func (t *TensorMeta) String() string {
	dims := make([]string, len(t.Sizes))
	for i, s := range t.Sizes {
		dims[i] = fmt.Sprintf("%d", s)
	}
	return fmt.Sprintf("tensor<%s,[%s],%s>", t.DType.DTName, strings.Join(dims, "x"), t.Device)
}

// ContiguousStrides computes row-major strides for sizes.
func ContiguousStrides(sizes []int) []int {
	strides := make([]int, len(sizes))
	acc := 1
	for i := len(sizes) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= sizes[i]
	}
	return strides
}

// NamedTupleSample is a structured multi-tensor sample (the host's
// value/index return bundles).
type NamedTupleSample struct {
	Cls   *Class
	Items []Value
}
