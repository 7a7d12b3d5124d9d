package quantize

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/samcharles93/quantize/internal/gguf"
	"github.com/samcharles93/quantize/pkg/quant"
)

// DefaultMaxTensorBytes caps a single output buffer.
const DefaultMaxTensorBytes uint64 = 64 << 30

// Encodable reports whether tensors can be encoded into t: the plain float
// types and every packed type with a block encoder.
func Encodable(t gguf.TensorType) bool {
	if t == gguf.GGMLTypeF32 || t == gguf.GGMLTypeF16 {
		return true
	}
	_, ok := scheme(t)
	return ok
}

func scheme(t gguf.TensorType) (quant.Scheme, bool) {
	if !t.IsQuantized() {
		return nil, false
	}
	return quant.Lookup(t.String())
}

// Executor turns canonical float32 data into target-typed payloads.
type Executor struct {
	// MaxTensorBytes bounds one output buffer; zero means
	// DefaultMaxTensorBytes.
	MaxTensorBytes uint64
}

// Quantize encodes src, laid out as dims, into target. Each row of dims[0]
// values is packed independently. The returned buffer is freshly allocated
// and sized by target.RowSize.
func (e Executor) Quantize(src []float32, dims []uint64, target gguf.TensorType) ([]byte, error) {
	n, err := gguf.Elements(dims)
	if err != nil {
		return nil, err
	}
	if uint64(len(src)) != n {
		return nil, fmt.Errorf("quantize: source holds %d values, dims %v need %d", len(src), dims, n)
	}
	size, err := target.RowSize(n)
	if err != nil {
		return nil, err
	}
	dst, err := e.alloc(size)
	if err != nil {
		return nil, err
	}

	switch target {
	case gguf.GGMLTypeF32:
		for i, v := range src {
			binary.LittleEndian.PutUint32(dst[4*i:], math.Float32bits(v))
		}
		return dst, nil
	case gguf.GGMLTypeF16:
		quant.F32ToF16Row(dst, src)
		return dst, nil
	}

	s, ok := scheme(target)
	if !ok {
		return nil, fmt.Errorf("%w: no encoder for %s", gguf.ErrUnsupportedType, target)
	}
	perRow := int(dims[0])
	rows := int(n) / perRow
	if _, err := quant.Chunk(s, src, dst, 0, rows, perRow); err != nil {
		return nil, err
	}
	return dst, nil
}

// Execute bridges t to float32 and encodes it into target. The result keeps
// the name and dims of t and owns its payload.
func (e Executor) Execute(t gguf.Tensor, target gguf.TensorType) (gguf.Tensor, []float32, error) {
	src, err := ToF32(t)
	if err != nil {
		return gguf.Tensor{}, nil, err
	}
	data, err := e.Quantize(src, t.Dims, target)
	if err != nil {
		return gguf.Tensor{}, nil, fmt.Errorf("quantize: %s: %w", t.Name, err)
	}
	return gguf.Tensor{
		Name: t.Name,
		Dims: t.Dims,
		Type: target,
		Data: data,
	}, src, nil
}

func (e Executor) alloc(size uint64) ([]byte, error) {
	limit := e.MaxTensorBytes
	if limit == 0 {
		limit = DefaultMaxTensorBytes
	}
	if size > limit || size > math.MaxInt {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrAllocation, size, limit)
	}
	return make([]byte, size), nil
}
