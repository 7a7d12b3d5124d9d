package quantize

import (
	"fmt"

	"github.com/samcharles93/quantize/internal/gguf"
)

// DefaultFallback is the packed type used for half precision tensors the
// target cannot hold.
const DefaultFallback = gguf.GGMLTypeQ8_0

// Fallback re-encodes half precision tensors that were skipped for
// alignment or for a target without an encoder.
type Fallback struct {
	Type gguf.TensorType
	Exec Executor
}

// applies reports whether the fallback path handles a tensor of type from
// with the given verdict. Denylisted tensors are always copied unchanged.
func (f Fallback) applies(from gguf.TensorType, v Verdict) bool {
	if from != gguf.GGMLTypeF16 || v.Action != ActionSkip {
		return false
	}
	return v.Reason == ReasonUnaligned || v.Reason == ReasonNotQuantizable
}

// Select returns the output type for t: the fallback type when its block
// size divides the row length, else F32.
func (f Fallback) Select(t gguf.Tensor) gguf.TensorType {
	bs := f.Type.BlockSize()
	if f.Type.IsQuantized() && bs > 0 && len(t.Dims) > 0 && t.Dims[0]%bs == 0 {
		return f.Type
	}
	return gguf.GGMLTypeF32
}

// Apply encodes t into the selected fallback type.
func (f Fallback) Apply(t gguf.Tensor) (gguf.Tensor, []float32, error) {
	if t.Type != gguf.GGMLTypeF16 {
		return gguf.Tensor{}, nil, fmt.Errorf("quantize: fallback for %s: source is %s, want F16", t.Name, t.Type)
	}
	return f.Exec.Execute(t, f.Select(t))
}

// ValidateFallback checks that t can serve as a fallback type.
func ValidateFallback(t gguf.TensorType) error {
	if !t.IsQuantized() || !Encodable(t) {
		return fmt.Errorf("%w: fallback type %s must be a packed type", ErrInvalidType, t)
	}
	return nil
}
