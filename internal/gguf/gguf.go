package gguf

import (
	"errors"
	"fmt"
)

const (
	magicGGUF = "GGUF"

	// Version is the container version produced by Writer.
	Version uint32 = 3

	// DefaultAlignment is used when general.alignment is absent.
	DefaultAlignment uint64 = 32

	// MaxDims is the highest tensor rank a GGUF file may declare.
	MaxDims = 4

	keyAlignment = "general.alignment"
)

var (
	ErrInvalidMagic    = errors.New("gguf: invalid magic")
	ErrUnsupported     = errors.New("gguf: unsupported container version")
	ErrUnsupportedType = errors.New("gguf: unsupported tensor type")
	ErrDataSize        = errors.New("gguf: tensor data size mismatch")
)

type ValueType uint32

const (
	TypeUint8   ValueType = 0
	TypeInt8    ValueType = 1
	TypeUint16  ValueType = 2
	TypeInt16   ValueType = 3
	TypeUint32  ValueType = 4
	TypeInt32   ValueType = 5
	TypeFloat32 ValueType = 6
	TypeBool    ValueType = 7
	TypeString  ValueType = 8
	TypeArray   ValueType = 9
	TypeUint64  ValueType = 10
	TypeInt64   ValueType = 11
	TypeFloat64 ValueType = 12
)

func (t ValueType) String() string {
	switch t {
	case TypeUint8:
		return "u8"
	case TypeInt8:
		return "i8"
	case TypeUint16:
		return "u16"
	case TypeInt16:
		return "i16"
	case TypeUint32:
		return "u32"
	case TypeInt32:
		return "i32"
	case TypeUint64:
		return "u64"
	case TypeInt64:
		return "i64"
	case TypeFloat32:
		return "f32"
	case TypeFloat64:
		return "f64"
	case TypeBool:
		return "bool"
	case TypeString:
		return "string"
	case TypeArray:
		return "array"
	default:
		return fmt.Sprintf("type(%d)", uint32(t))
	}
}

// ArrayValue holds a decoded GGUF array. Nested arrays appear as ArrayValue elements.
type ArrayValue struct {
	ElemType ValueType
	Values   []any
}

// Value is one typed metadata entry. Value holds the Go type matching Type
// (uint8 for TypeUint8, string for TypeString, ArrayValue for TypeArray, ...).
type Value struct {
	Type  ValueType
	Value any
}

type Header struct {
	Version     uint32
	TensorCount uint64
	KVCount     uint64
}

// TensorInfo is a tensor record from the container header. Dims[0] is the
// innermost (row) dimension.
type TensorInfo struct {
	Name   string
	Dims   []uint64
	Type   TensorType
	Offset uint64
}

// Elements returns the element count of the tensor.
func (t TensorInfo) Elements() (uint64, error) {
	return Elements(t.Dims)
}

// Tensor is a tensor descriptor with its payload. Data either aliases the
// mapped input file or is a buffer owned by the descriptor.
type Tensor struct {
	Name string
	Dims []uint64
	Type TensorType
	Data []byte
}

// Elements returns the element count of the tensor.
func (t Tensor) Elements() (uint64, error) {
	return Elements(t.Dims)
}

// Elements returns the element count of a tensor with the given dims.
func Elements(dims []uint64) (uint64, error) {
	if len(dims) == 0 || len(dims) > MaxDims {
		return 0, fmt.Errorf("gguf: invalid rank %d", len(dims))
	}
	n := uint64(1)
	for _, d := range dims {
		if d == 0 {
			return 0, errors.New("gguf: zero dimension")
		}
		if n > ^uint64(0)/d {
			return 0, errors.New("gguf: tensor too large")
		}
		n *= d
	}
	return n, nil
}

func align(offset, alignment uint64) uint64 {
	if alignment == 0 {
		return offset
	}
	rem := offset % alignment
	if rem == 0 {
		return offset
	}
	return offset + (alignment - rem)
}

func asUint64(v any) (uint64, bool) {
	switch t := v.(type) {
	case uint8:
		return uint64(t), true
	case uint16:
		return uint64(t), true
	case uint32:
		return uint64(t), true
	case uint64:
		return t, true
	case int8:
		if t < 0 {
			return 0, false
		}
		return uint64(t), true
	case int16:
		if t < 0 {
			return 0, false
		}
		return uint64(t), true
	case int32:
		if t < 0 {
			return 0, false
		}
		return uint64(t), true
	case int64:
		if t < 0 {
			return 0, false
		}
		return uint64(t), true
	default:
		return 0, false
	}
}
