// Package quant implements the ggml block quantization formats used by GGUF
// files: the 32-element legacy blocks (Q4_0, Q4_1, Q5_0, Q5_1, Q8_0) and the
// 256-element K-quant super-blocks (Q4_K, Q5_K, Q6_K). Encoders follow the
// ggml reference quantizers so the output is readable by any GGUF consumer.
package quant

import (
	"fmt"
	"slices"
)

// Scheme packs float32 values into fixed-size blocks.
type Scheme interface {
	Name() string
	// BlockSize is the number of values one block encodes.
	BlockSize() int
	// BlockBytes is the encoded size of one block.
	BlockBytes() int
	// Quantize encodes src into dst. len(src) must be a multiple of
	// BlockSize and dst must hold len(src)/BlockSize blocks.
	Quantize(dst []byte, src []float32)
	// Dequantize decodes whole blocks from src into dst.
	Dequantize(dst []float32, src []byte)
}

type blockScheme struct {
	name       string
	blockSize  int
	blockBytes int
	quantize   func(dst []byte, src []float32)
	dequantize func(dst []float32, src []byte)
}

func (s *blockScheme) Name() string    { return s.name }
func (s *blockScheme) BlockSize() int  { return s.blockSize }
func (s *blockScheme) BlockBytes() int { return s.blockBytes }

func (s *blockScheme) Quantize(dst []byte, src []float32) {
	for i := 0; i+s.blockSize <= len(src); i += s.blockSize {
		b := i / s.blockSize * s.blockBytes
		s.quantize(dst[b:b+s.blockBytes], src[i:i+s.blockSize])
	}
}

func (s *blockScheme) Dequantize(dst []float32, src []byte) {
	for i := 0; i+s.blockSize <= len(dst); i += s.blockSize {
		b := i / s.blockSize * s.blockBytes
		s.dequantize(dst[i:i+s.blockSize], src[b:b+s.blockBytes])
	}
}

var (
	Q4_0 Scheme = &blockScheme{"Q4_0", qk, 2 + qk/2, quantizeQ4_0, dequantizeQ4_0}
	Q4_1 Scheme = &blockScheme{"Q4_1", qk, 4 + qk/2, quantizeQ4_1, dequantizeQ4_1}
	Q5_0 Scheme = &blockScheme{"Q5_0", qk, 2 + 4 + qk/2, quantizeQ5_0, dequantizeQ5_0}
	Q5_1 Scheme = &blockScheme{"Q5_1", qk, 4 + 4 + qk/2, quantizeQ5_1, dequantizeQ5_1}
	Q8_0 Scheme = &blockScheme{"Q8_0", qk, 2 + qk, quantizeQ8_0, dequantizeQ8_0}
	Q4_K Scheme = &blockScheme{"Q4_K", qkK, 4 + kScaleSize + qkK/2, quantizeQ4_K, dequantizeQ4_K}
	Q5_K Scheme = &blockScheme{"Q5_K", qkK, 4 + kScaleSize + qkK/8 + qkK/2, quantizeQ5_K, dequantizeQ5_K}
	Q6_K Scheme = &blockScheme{"Q6_K", qkK, qkK/2 + qkK/4 + qkK/16 + 2, quantizeQ6_K, dequantizeQ6_K}
)

var schemes = map[string]Scheme{}

func init() {
	for _, s := range []Scheme{Q4_0, Q4_1, Q5_0, Q5_1, Q8_0, Q4_K, Q5_K, Q6_K} {
		schemes[s.Name()] = s
	}
}

// Lookup returns the scheme registered under its ggml type name.
func Lookup(name string) (Scheme, bool) {
	s, ok := schemes[name]
	return s, ok
}

// Names lists the registered schemes in sorted order.
func Names() []string {
	names := make([]string, 0, len(schemes))
	for n := range schemes {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// RowSize returns the encoded size of n values.
func RowSize(s Scheme, n int) (int, error) {
	if n < 0 || n%s.BlockSize() != 0 {
		return 0, fmt.Errorf("quant: %s: row of %d values is not a multiple of %d", s.Name(), n, s.BlockSize())
	}
	return n / s.BlockSize() * s.BlockBytes(), nil
}

// Chunk quantizes nRows rows of nPerRow values starting at startRow. src
// and dst address the whole tensor; the rows are read from and written to
// their natural offsets. It returns the number of bytes written.
func Chunk(s Scheme, src []float32, dst []byte, startRow, nRows, nPerRow int) (int, error) {
	rowSize, err := RowSize(s, nPerRow)
	if err != nil {
		return 0, err
	}
	if startRow < 0 || nRows < 0 {
		return 0, fmt.Errorf("quant: invalid row range %d+%d", startRow, nRows)
	}
	start := startRow * nPerRow
	end := start + nRows*nPerRow
	if end > len(src) {
		return 0, fmt.Errorf("quant: rows [%d, %d) exceed source of %d values", startRow, startRow+nRows, len(src))
	}
	out := startRow * rowSize
	size := nRows * rowSize
	if out+size > len(dst) {
		return 0, fmt.Errorf("quant: %s: destination holds %d bytes, need %d", s.Name(), len(dst), out+size)
	}
	for r := range nRows {
		o := out + r*rowSize
		i := start + r*nPerRow
		s.Quantize(dst[o:o+rowSize], src[i:i+nPerRow])
	}
	return size, nil
}
