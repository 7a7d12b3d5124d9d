package quantize

import (
	"encoding/binary"
	"math"
	"math/rand/v2"
	"path/filepath"
	"testing"

	"github.com/samcharles93/quantize/internal/gguf"
	"github.com/samcharles93/quantize/pkg/quant"
)

func values(n int, seed uint64) []float32 {
	r := rand.New(rand.NewPCG(seed, 17))
	x := make([]float32, n)
	for i := range x {
		x[i] = r.Float32()*2 - 1
	}
	return x
}

func f32Bytes(x []float32) []byte {
	b := make([]byte, 4*len(x))
	for i, v := range x {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(v))
	}
	return b
}

func f16Bytes(x []float32) []byte {
	b := make([]byte, 2*len(x))
	quant.F32ToF16Row(b, x)
	return b
}

func count(dims ...uint64) int {
	n := 1
	for _, d := range dims {
		n *= int(d)
	}
	return n
}

func f32Tensor(name string, seed uint64, dims ...uint64) gguf.Tensor {
	return gguf.Tensor{Name: name, Dims: dims, Type: gguf.GGMLTypeF32, Data: f32Bytes(values(count(dims...), seed))}
}

func f16Tensor(name string, seed uint64, dims ...uint64) gguf.Tensor {
	return gguf.Tensor{Name: name, Dims: dims, Type: gguf.GGMLTypeF16, Data: f16Bytes(values(count(dims...), seed))}
}

// writeFixture writes a container with a few metadata keys and tensors
// and returns its path.
func writeFixture(t *testing.T, tensors ...gguf.Tensor) string {
	t.Helper()
	w := gguf.NewWriter()
	w.SetKV(gguf.KeyArchitecture, gguf.Value{Type: gguf.TypeString, Value: "llama"})
	w.SetKV("llama.context_length", gguf.Value{Type: gguf.TypeUint32, Value: uint32(4096)})
	w.SetKV("llama.rope.freq_base", gguf.Value{Type: gguf.TypeFloat32, Value: float32(10000)})
	w.SetKV("tokenizer.ggml.tokens", gguf.Value{Type: gguf.TypeArray, Value: gguf.ArrayValue{
		ElemType: gguf.TypeString,
		Values:   []any{"<unk>", "<s>", "</s>"},
	}})
	for _, tt := range tensors {
		if err := w.AddTensor(tt); err != nil {
			t.Fatalf("AddTensor(%s): %v", tt.Name, err)
		}
	}
	path := filepath.Join(t.TempDir(), "in.gguf")
	if err := w.WriteFile(path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func openFixture(t *testing.T, path string) *gguf.File {
	t.Helper()
	f, err := gguf.Open(path)
	if err != nil {
		t.Fatalf("Open(%s): %v", path, err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}
