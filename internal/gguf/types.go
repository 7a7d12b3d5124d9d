package gguf

import "fmt"

// TensorType is the ggml element type of a tensor.
type TensorType uint32

const (
	GGMLTypeF32     TensorType = 0
	GGMLTypeF16     TensorType = 1
	GGMLTypeQ4_0    TensorType = 2
	GGMLTypeQ4_1    TensorType = 3
	GGMLTypeQ5_0    TensorType = 6
	GGMLTypeQ5_1    TensorType = 7
	GGMLTypeQ8_0    TensorType = 8
	GGMLTypeQ8_1    TensorType = 9
	GGMLTypeQ2_K    TensorType = 10
	GGMLTypeQ3_K    TensorType = 11
	GGMLTypeQ4_K    TensorType = 12
	GGMLTypeQ5_K    TensorType = 13
	GGMLTypeQ6_K    TensorType = 14
	GGMLTypeQ8_K    TensorType = 15
	GGMLTypeIQ2_XXS TensorType = 16
	GGMLTypeIQ2_XS  TensorType = 17
	GGMLTypeIQ3_XXS TensorType = 18
	GGMLTypeIQ1_S   TensorType = 19
	GGMLTypeIQ4_NL  TensorType = 20
	GGMLTypeIQ3_S   TensorType = 21
	GGMLTypeIQ2_S   TensorType = 22
	GGMLTypeIQ4_XS  TensorType = 23
	GGMLTypeI8      TensorType = 24
	GGMLTypeI16     TensorType = 25
	GGMLTypeI32     TensorType = 26
	GGMLTypeI64     TensorType = 27
	GGMLTypeF64     TensorType = 28
	GGMLTypeIQ1_M   TensorType = 29
	GGMLTypeBF16    TensorType = 30
	GGMLTypeTQ1_0   TensorType = 34
	GGMLTypeTQ2_0   TensorType = 35
	GGMLTypeMXFP4   TensorType = 39

	// TypeInvalid is returned by resolvers for names that map to no type.
	TypeInvalid TensorType = ^TensorType(0)
)

const qkK = 256

type traits struct {
	name      string
	blockSize uint64 // elements per block
	typeSize  uint64 // bytes per block
	packed    bool
}

var typeTraits = map[TensorType]traits{
	GGMLTypeF32:     {"F32", 1, 4, false},
	GGMLTypeF16:     {"F16", 1, 2, false},
	GGMLTypeQ4_0:    {"Q4_0", 32, 18, true},
	GGMLTypeQ4_1:    {"Q4_1", 32, 20, true},
	GGMLTypeQ5_0:    {"Q5_0", 32, 22, true},
	GGMLTypeQ5_1:    {"Q5_1", 32, 24, true},
	GGMLTypeQ8_0:    {"Q8_0", 32, 34, true},
	GGMLTypeQ8_1:    {"Q8_1", 32, 36, true},
	GGMLTypeQ2_K:    {"Q2_K", qkK, 84, true},
	GGMLTypeQ3_K:    {"Q3_K", qkK, 110, true},
	GGMLTypeQ4_K:    {"Q4_K", qkK, 144, true},
	GGMLTypeQ5_K:    {"Q5_K", qkK, 176, true},
	GGMLTypeQ6_K:    {"Q6_K", qkK, 210, true},
	GGMLTypeQ8_K:    {"Q8_K", qkK, 292, true},
	GGMLTypeIQ2_XXS: {"IQ2_XXS", qkK, 66, true},
	GGMLTypeIQ2_XS:  {"IQ2_XS", qkK, 74, true},
	GGMLTypeIQ3_XXS: {"IQ3_XXS", qkK, 98, true},
	GGMLTypeIQ1_S:   {"IQ1_S", qkK, 50, true},
	GGMLTypeIQ4_NL:  {"IQ4_NL", 32, 18, true},
	GGMLTypeIQ3_S:   {"IQ3_S", qkK, 110, true},
	GGMLTypeIQ2_S:   {"IQ2_S", qkK, 82, true},
	GGMLTypeIQ4_XS:  {"IQ4_XS", qkK, 136, true},
	GGMLTypeI8:      {"I8", 1, 1, false},
	GGMLTypeI16:     {"I16", 1, 2, false},
	GGMLTypeI32:     {"I32", 1, 4, false},
	GGMLTypeI64:     {"I64", 1, 8, false},
	GGMLTypeF64:     {"F64", 1, 8, false},
	GGMLTypeIQ1_M:   {"IQ1_M", qkK, 56, true},
	GGMLTypeBF16:    {"BF16", 1, 2, false},
	GGMLTypeTQ1_0:   {"TQ1_0", qkK, 54, true},
	GGMLTypeTQ2_0:   {"TQ2_0", qkK, 66, true},
	GGMLTypeMXFP4:   {"MXFP4", 32, 17, true},
}

func (t TensorType) String() string {
	if t == TypeInvalid {
		return "invalid"
	}
	if tr, ok := typeTraits[t]; ok {
		return tr.name
	}
	return fmt.Sprintf("type(%d)", uint32(t))
}

// Known reports whether the size of a tensor of this type can be computed.
func (t TensorType) Known() bool {
	_, ok := typeTraits[t]
	return ok
}

// BlockSize is the number of elements one block of t encodes. Unpacked
// types report 1; unknown types report 0.
func (t TensorType) BlockSize() uint64 {
	return typeTraits[t].blockSize
}

// TypeSize is the byte size of one block of t.
func (t TensorType) TypeSize() uint64 {
	return typeTraits[t].typeSize
}

// IsQuantized reports whether t is a block-packed format.
func (t TensorType) IsQuantized() bool {
	return typeTraits[t].packed
}

// RowSize returns the byte size of n elements stored as t. n must be a
// multiple of t.BlockSize().
func (t TensorType) RowSize(n uint64) (uint64, error) {
	tr, ok := typeTraits[t]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedType, t)
	}
	if n%tr.blockSize != 0 {
		return 0, fmt.Errorf("gguf: %s: %d elements is not a multiple of block size %d", tr.name, n, tr.blockSize)
	}
	blocks := n / tr.blockSize
	if blocks > ^uint64(0)/tr.typeSize {
		return 0, fmt.Errorf("gguf: %s: tensor too large", tr.name)
	}
	return blocks * tr.typeSize, nil
}

// DataSize returns the payload size of a tensor with the given dims.
func DataSize(t TensorType, dims []uint64) (uint64, error) {
	n, err := Elements(dims)
	if err != nil {
		return 0, err
	}
	return t.RowSize(n)
}
