package quant

import (
	"encoding/binary"
	"math"
)

const qk = 32

// absMax returns the value with the largest magnitude and that magnitude.
func absMax(x []float32) (maxv, amax float32) {
	for _, v := range x {
		if a := abs32(v); a > amax {
			amax = a
			maxv = v
		}
	}
	return maxv, amax
}

func minMax(x []float32) (lo, hi float32) {
	lo, hi = math.MaxFloat32, -math.MaxFloat32
	for _, v := range x {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return lo, hi
}

func inverse(d float32) float32 {
	if d == 0 {
		return 0
	}
	return 1 / d
}

// Q4_0: d, qs[16]. Value j sits in the low nibble of qs[j], value j+16 in
// the high nibble.
func quantizeQ4_0(dst []byte, x []float32) {
	maxv, _ := absMax(x)
	d := maxv / -8
	id := inverse(d)
	putF16(dst, d)
	qs := dst[2:]
	for j := range qk / 2 {
		x0 := min(15, int8(x[j]*id+8.5))
		x1 := min(15, int8(x[qk/2+j]*id+8.5))
		qs[j] = uint8(x0) | uint8(x1)<<4
	}
}

func dequantizeQ4_0(y []float32, src []byte) {
	d := getF16(src)
	qs := src[2:]
	for j := range qk / 2 {
		y[j] = float32(int(qs[j]&0x0F)-8) * d
		y[j+qk/2] = float32(int(qs[j]>>4)-8) * d
	}
}

// Q4_1: d, m, qs[16].
func quantizeQ4_1(dst []byte, x []float32) {
	lo, hi := minMax(x)
	d := (hi - lo) / 15
	id := inverse(d)
	putF16(dst, d)
	putF16(dst[2:], lo)
	qs := dst[4:]
	for j := range qk / 2 {
		x0 := min(15, int8((x[j]-lo)*id+0.5))
		x1 := min(15, int8((x[qk/2+j]-lo)*id+0.5))
		qs[j] = uint8(x0) | uint8(x1)<<4
	}
}

func dequantizeQ4_1(y []float32, src []byte) {
	d := getF16(src)
	m := getF16(src[2:])
	qs := src[4:]
	for j := range qk / 2 {
		y[j] = float32(qs[j]&0x0F)*d + m
		y[j+qk/2] = float32(qs[j]>>4)*d + m
	}
}

// Q5_0: d, qh, qs[16]. Bit j of qh is the fifth bit of value j, bit j+16
// that of value j+16.
func quantizeQ5_0(dst []byte, x []float32) {
	maxv, _ := absMax(x)
	d := maxv / -16
	id := inverse(d)
	putF16(dst, d)
	qs := dst[6:]
	var qh uint32
	for j := range qk / 2 {
		x0 := uint8(min(31, int8(x[j]*id+16.5)))
		x1 := uint8(min(31, int8(x[qk/2+j]*id+16.5)))
		qs[j] = x0&0x0F | (x1&0x0F)<<4
		qh |= uint32(x0>>4&1) << j
		qh |= uint32(x1>>4&1) << (j + qk/2)
	}
	binary.LittleEndian.PutUint32(dst[2:], qh)
}

func dequantizeQ5_0(y []float32, src []byte) {
	d := getF16(src)
	qh := binary.LittleEndian.Uint32(src[2:])
	qs := src[6:]
	for j := range qk / 2 {
		h0 := uint8(qh>>j<<4) & 0x10
		h1 := uint8(qh>>(j+12)) & 0x10
		y[j] = float32(int(qs[j]&0x0F|h0)-16) * d
		y[j+qk/2] = float32(int(qs[j]>>4|h1)-16) * d
	}
}

// Q5_1: d, m, qh, qs[16].
func quantizeQ5_1(dst []byte, x []float32) {
	lo, hi := minMax(x)
	d := (hi - lo) / 31
	id := inverse(d)
	putF16(dst, d)
	putF16(dst[2:], lo)
	qs := dst[8:]
	var qh uint32
	for j := range qk / 2 {
		x0 := min(31, uint8((x[j]-lo)*id+0.5))
		x1 := min(31, uint8((x[qk/2+j]-lo)*id+0.5))
		qs[j] = x0&0x0F | (x1&0x0F)<<4
		qh |= uint32(x0>>4&1) << j
		qh |= uint32(x1>>4&1) << (j + qk/2)
	}
	binary.LittleEndian.PutUint32(dst[4:], qh)
}

func dequantizeQ5_1(y []float32, src []byte) {
	d := getF16(src)
	m := getF16(src[2:])
	qh := binary.LittleEndian.Uint32(src[4:])
	qs := src[8:]
	for j := range qk / 2 {
		h0 := uint8(qh>>j<<4) & 0x10
		h1 := uint8(qh>>(j+12)) & 0x10
		y[j] = float32(qs[j]&0x0F|h0)*d + m
		y[j+qk/2] = float32(qs[j]>>4|h1)*d + m
	}
}

// Q8_0: d, qs[32] as signed bytes.
func quantizeQ8_0(dst []byte, x []float32) {
	_, amax := absMax(x)
	d := amax / 127
	id := inverse(d)
	putF16(dst, d)
	qs := dst[2:]
	for j, v := range x {
		qs[j] = uint8(int8(math.Round(float64(v * id))))
	}
}

func dequantizeQ8_0(y []float32, src []byte) {
	d := getF16(src)
	qs := src[2:]
	for j := range qk {
		y[j] = float32(int8(qs[j])) * d
	}
}

func abs32(v float32) float32 {
	return math.Float32frombits(math.Float32bits(v) &^ (1 << 31))
}
