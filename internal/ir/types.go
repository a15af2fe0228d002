package ir

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/shapes"
)

// Type is a sealed interface describing the type of an SSA value.
// Only BufferType and ScalarType implement it.
type Type interface {
	fmt.Stringer
	isType() // Sealed
}

// Layout describes how a buffer's elements are arranged in memory.
// The zero Layout is the identity (canonical, row-major contiguous) layout.
type Layout struct {
	Strides []int64 // Per-dimension element strides; nil for identity
	Offset  int64   // Element offset of the first element
}

// IsIdentity reports whether the layout is the canonical layout.
// A layout that spells out strides is never identity, even when the
// strides happen to be contiguous.
func (l Layout) IsIdentity() bool {
	return len(l.Strides) == 0 && l.Offset == 0
}

// Equal reports whether two layouts are identical.
func (l Layout) Equal(o Layout) bool {
	return l.Offset == o.Offset && slices.Equal(l.Strides, o.Strides)
}

// BufferType is a typed view of memory: element type, shape and layout.
type BufferType struct {
	Shape  shapes.Shape
	Layout Layout
}

func (BufferType) isType() {}

// ScalarType is a single element of the given dtype.
type ScalarType struct {
	DType dtypes.DType
}

func (ScalarType) isType() {}

// Buffer creates a canonical-layout buffer type.
// Dimensions may be zero; shapes.Make is not used because it rejects
// zero-sized axes.
func Buffer(dtype dtypes.DType, dims ...int) BufferType {
	return BufferType{Shape: shapes.Shape{DType: dtype, Dimensions: slices.Clone(dims)}}
}

// StridedBuffer creates a buffer type with an explicit strided layout.
func StridedBuffer(dtype dtypes.DType, dims []int, strides []int64, offset int64) BufferType {
	b := Buffer(dtype, dims...)
	b.Layout = Layout{Strides: slices.Clone(strides), Offset: offset}
	return b
}

// Scalar creates a scalar type.
func Scalar(dtype dtypes.DType) ScalarType {
	return ScalarType{DType: dtype}
}

// I32 is the 32-bit signless integer scalar type.
var I32 = Scalar(dtypes.Int32)

// HoleType is the type of the zero-size placeholder buffer.
var HoleType = Buffer(dtypes.Int8, 0)

// DType returns the buffer's element type.
func (b BufferType) DType() dtypes.DType {
	return b.Shape.DType
}

// Dims returns a copy of the buffer's dimensions.
func (b BufferType) Dims() []int {
	return slices.Clone(b.Shape.Dimensions)
}

// Canonical returns the same buffer type with the identity layout.
func (b BufferType) Canonical() BufferType {
	return Buffer(b.Shape.DType, b.Shape.Dimensions...)
}

// NumElements returns the product of the dimensions (1 for rank 0).
func (b BufferType) NumElements() int {
	n := 1
	for _, d := range b.Shape.Dimensions {
		n *= d
	}
	return n
}

// String renders the type in memref notation, e.g. memref<2x3xf32> or
// memref<4xf32, strided<[2], offset: 1>>.
func (b BufferType) String() string {
	var sb strings.Builder
	sb.WriteString("memref<")
	for _, d := range b.Shape.Dimensions {
		sb.WriteString(strconv.Itoa(d))
		sb.WriteByte('x')
	}
	sb.WriteString(DTypeName(b.Shape.DType))
	if !b.Layout.IsIdentity() {
		sb.WriteString(", strided<[")
		for i, s := range b.Layout.Strides {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(strconv.FormatInt(s, 10))
		}
		sb.WriteString("], offset: ")
		sb.WriteString(strconv.FormatInt(b.Layout.Offset, 10))
		sb.WriteByte('>')
	}
	sb.WriteByte('>')
	return sb.String()
}

func (s ScalarType) String() string {
	return DTypeName(s.DType)
}

// TypesEqual reports whether two types are structurally identical.
func TypesEqual(a, b Type) bool {
	switch at := a.(type) {
	case BufferType:
		bt, ok := b.(BufferType)
		return ok &&
			at.Shape.DType == bt.Shape.DType &&
			slices.Equal(at.Shape.Dimensions, bt.Shape.Dimensions) &&
			at.Layout.Equal(bt.Layout)
	case ScalarType:
		bt, ok := b.(ScalarType)
		return ok && at.DType == bt.DType
	default:
		return false
	}
}

// TypeListsEqual reports whether two type lists are pairwise identical.
func TypeListsEqual(a, b []Type) bool {
	return slices.EqualFunc(a, b, TypesEqual)
}

// IsBuffer reports whether t is a buffer type.
func IsBuffer(t Type) bool {
	_, ok := t.(BufferType)
	return ok
}

// dtypeNames maps element types to their textual form.
var dtypeNames = map[dtypes.DType]string{
	dtypes.Bool:     "i1",
	dtypes.Int8:     "i8",
	dtypes.Int16:    "i16",
	dtypes.Int32:    "i32",
	dtypes.Int64:    "i64",
	dtypes.Uint8:    "ui8",
	dtypes.Uint16:   "ui16",
	dtypes.Uint32:   "ui32",
	dtypes.Uint64:   "ui64",
	dtypes.Float16:  "f16",
	dtypes.BFloat16: "bf16",
	dtypes.Float32:  "f32",
	dtypes.Float64:  "f64",
}

// DTypeName returns the short textual name of a dtype ("f32", "i8", ...).
func DTypeName(dt dtypes.DType) string {
	if name, ok := dtypeNames[dt]; ok {
		return name
	}
	return fmt.Sprintf("!dtype<%d>", int(dt))
}

// ParseDType resolves a short dtype name back to its dtype.
func ParseDType(name string) (dtypes.DType, error) {
	for dt, n := range dtypeNames {
		if n == name {
			return dt, nil
		}
	}
	return dtypes.Bool, fmt.Errorf("unknown element type %q", name)
}
