package quantize

import (
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"

	"github.com/samcharles93/quantize/internal/gguf"
	"github.com/samcharles93/quantize/pkg/quant"
)

var littleEndian = func() bool {
	x := uint16(1)
	return *(*byte)(unsafe.Pointer(&x)) == 1
}()

// ToF32 returns the tensor values as float32. F32 payloads are viewed in
// place when the host is little-endian and the data is 4-byte aligned, so
// the result may alias t.Data and must be treated as read-only. F16
// payloads are widened into a new buffer. Other types are rejected.
func ToF32(t gguf.Tensor) ([]float32, error) {
	n, err := t.Elements()
	if err != nil {
		return nil, fmt.Errorf("quantize: %s: %w", t.Name, err)
	}
	switch t.Type {
	case gguf.GGMLTypeF32:
		if uint64(len(t.Data)) != n*4 {
			return nil, fmt.Errorf("%w: %s", gguf.ErrDataSize, t.Name)
		}
		if n == 0 {
			return []float32{}, nil
		}
		if littleEndian && uintptr(unsafe.Pointer(&t.Data[0]))%4 == 0 {
			return unsafe.Slice((*float32)(unsafe.Pointer(&t.Data[0])), n), nil
		}
		out := make([]float32, n)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(t.Data[4*i:]))
		}
		return out, nil
	case gguf.GGMLTypeF16:
		if uint64(len(t.Data)) != n*2 {
			return nil, fmt.Errorf("%w: %s", gguf.ErrDataSize, t.Name)
		}
		out := make([]float32, n)
		quant.F16ToF32Row(out, t.Data)
		return out, nil
	default:
		return nil, fmt.Errorf("quantize: %s: cannot convert %s to F32", t.Name, t.Type)
	}
}

// bridgeable reports whether ToF32 accepts the type.
func bridgeable(t gguf.TensorType) bool {
	return t == gguf.GGMLTypeF32 || t == gguf.GGMLTypeF16
}
