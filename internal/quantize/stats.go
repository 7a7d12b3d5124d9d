package quantize

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/samcharles93/quantize/internal/gguf"
	"github.com/samcharles93/quantize/pkg/quant"
)

// ErrorStats measures how far an encoded tensor drifts from its source.
type ErrorStats struct {
	RMSE   float64
	MaxAbs float64
}

// Measure decodes data of type typ and compares it with src.
func Measure(src []float32, data []byte, typ gguf.TensorType) (ErrorStats, error) {
	decoded := make([]float32, len(src))
	switch typ {
	case gguf.GGMLTypeF32:
		return ErrorStats{}, nil
	case gguf.GGMLTypeF16:
		if len(data) < 2*len(src) {
			return ErrorStats{}, fmt.Errorf("%w: F16 payload of %d bytes", gguf.ErrDataSize, len(data))
		}
		quant.F16ToF32Row(decoded, data)
	default:
		s, ok := scheme(typ)
		if !ok {
			return ErrorStats{}, fmt.Errorf("%w: no decoder for %s", gguf.ErrUnsupportedType, typ)
		}
		want, err := quant.RowSize(s, len(src))
		if err != nil {
			return ErrorStats{}, err
		}
		if len(data) != want {
			return ErrorStats{}, fmt.Errorf("%w: %s payload of %d bytes, want %d", gguf.ErrDataSize, typ, len(data), want)
		}
		s.Dequantize(decoded, data)
	}
	return compare(src, decoded), nil
}

func compare(a, b []float32) ErrorStats {
	if len(a) == 0 {
		return ErrorStats{}
	}
	diff := make([]float64, len(a))
	for i := range a {
		diff[i] = float64(a[i]) - float64(b[i])
	}
	return ErrorStats{
		RMSE:   floats.Norm(diff, 2) / math.Sqrt(float64(len(diff))),
		MaxAbs: floats.Norm(diff, math.Inf(1)),
	}
}
