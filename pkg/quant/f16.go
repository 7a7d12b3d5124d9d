package quant

import (
	"encoding/binary"

	"github.com/x448/float16"
)

// F16ToF32Row widens little-endian IEEE half values from src into dst.
func F16ToF32Row(dst []float32, src []byte) {
	for i := range dst {
		dst[i] = float16.Frombits(binary.LittleEndian.Uint16(src[2*i:])).Float32()
	}
}

// F32ToF16Row narrows src into little-endian IEEE half values, rounding to
// nearest even.
func F32ToF16Row(dst []byte, src []float32) {
	for i, v := range src {
		binary.LittleEndian.PutUint16(dst[2*i:], float16.Fromfloat32(v).Bits())
	}
}

func getF16(b []byte) float32 {
	return float16.Frombits(binary.LittleEndian.Uint16(b)).Float32()
}

func putF16(b []byte, v float32) {
	binary.LittleEndian.PutUint16(b, float16.Fromfloat32(v).Bits())
}

// roundF16 returns v as it reads back after a trip through half precision.
func roundF16(v float32) float32 {
	return float16.Fromfloat32(v).Float32()
}
