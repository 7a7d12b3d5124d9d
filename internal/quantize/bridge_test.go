package quantize

import (
	"errors"
	"testing"
	"unsafe"

	"github.com/samcharles93/quantize/internal/gguf"
)

func TestToF32ViewsF32(t *testing.T) {
	t.Parallel()

	src := values(64, 1)
	tensor := gguf.Tensor{Name: "w", Dims: []uint64{32, 2}, Type: gguf.GGMLTypeF32, Data: f32Bytes(src)}
	got, err := ToF32(tensor)
	if err != nil {
		t.Fatalf("ToF32: %v", err)
	}
	if len(got) != len(src) {
		t.Fatalf("len = %d, want %d", len(got), len(src))
	}
	for i := range src {
		if got[i] != src[i] {
			t.Fatalf("value %d = %v, want %v", i, got[i], src[i])
		}
	}
	if littleEndian && unsafe.Pointer(&got[0]) != unsafe.Pointer(&tensor.Data[0]) {
		t.Fatal("aligned F32 payload was copied instead of viewed")
	}
}

func TestToF32UnalignedF32(t *testing.T) {
	t.Parallel()

	src := values(8, 2)
	buf := append([]byte{0}, f32Bytes(src)...)
	got, err := ToF32(gguf.Tensor{Name: "w", Dims: []uint64{8}, Type: gguf.GGMLTypeF32, Data: buf[1:]})
	if err != nil {
		t.Fatalf("ToF32: %v", err)
	}
	for i := range src {
		if got[i] != src[i] {
			t.Fatalf("value %d = %v, want %v", i, got[i], src[i])
		}
	}
}

func TestToF32WidensF16(t *testing.T) {
	t.Parallel()

	src := []float32{0, 1, -1, 0.5, -0.25, 2048}
	got, err := ToF32(gguf.Tensor{Name: "w", Dims: []uint64{6}, Type: gguf.GGMLTypeF16, Data: f16Bytes(src)})
	if err != nil {
		t.Fatalf("ToF32: %v", err)
	}
	for i := range src {
		if got[i] != src[i] {
			t.Fatalf("value %d = %v, want %v", i, got[i], src[i])
		}
	}
}

func TestToF32Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		tensor gguf.Tensor
		isSize bool
	}{
		{"packed source", gguf.Tensor{Name: "q", Dims: []uint64{32}, Type: gguf.GGMLTypeQ8_0, Data: make([]byte, 34)}, false},
		{"short f32", gguf.Tensor{Name: "f", Dims: []uint64{4}, Type: gguf.GGMLTypeF32, Data: make([]byte, 12)}, true},
		{"short f16", gguf.Tensor{Name: "h", Dims: []uint64{4}, Type: gguf.GGMLTypeF16, Data: make([]byte, 6)}, true},
		{"no dims", gguf.Tensor{Name: "e", Type: gguf.GGMLTypeF32}, false},
	}
	for _, tc := range tests {
		_, err := ToF32(tc.tensor)
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if tc.isSize && !errors.Is(err, gguf.ErrDataSize) {
			t.Fatalf("%s: err = %v, want ErrDataSize", tc.name, err)
		}
	}
}
