package quantize

import (
	"errors"
	"testing"

	"github.com/samcharles93/quantize/internal/gguf"
)

func TestResolveType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		token string
		want  gguf.TensorType
	}{
		{"F32", gguf.GGMLTypeF32},
		{"f16", gguf.GGMLTypeF16},
		{"q4_0", gguf.GGMLTypeQ4_0},
		{"Q4_1", gguf.GGMLTypeQ4_1},
		{"Q5_0", gguf.GGMLTypeQ5_0},
		{"q5_1", gguf.GGMLTypeQ5_1},
		{"Q8_0", gguf.GGMLTypeQ8_0},
		{"Q4_K", gguf.GGMLTypeQ4_K},
		{"q4_k_m", gguf.GGMLTypeQ4_K},
		{"Q4_K_S", gguf.GGMLTypeQ4_K},
		{"Q5_K", gguf.GGMLTypeQ5_K},
		{"Q5_K_M", gguf.GGMLTypeQ5_K},
		{"q5_k_s", gguf.GGMLTypeQ5_K},
		{" Q6_K ", gguf.GGMLTypeQ6_K},
	}
	for _, tc := range tests {
		got, err := ResolveType(tc.token)
		if err != nil {
			t.Fatalf("ResolveType(%q): %v", tc.token, err)
		}
		if got != tc.want {
			t.Fatalf("ResolveType(%q) = %s, want %s", tc.token, got, tc.want)
		}
	}
}

func TestResolveTypeInvalid(t *testing.T) {
	t.Parallel()

	for _, token := range []string{"Q9_X", "", "Q4", "Q4_K_L", "IQ2_XS"} {
		got, err := ResolveType(token)
		if !errors.Is(err, ErrInvalidType) {
			t.Fatalf("ResolveType(%q): err = %v, want ErrInvalidType", token, err)
		}
		if got != gguf.TypeInvalid {
			t.Fatalf("ResolveType(%q) = %s, want the invalid sentinel", token, got)
		}
	}
}

func TestTypeNamesResolve(t *testing.T) {
	t.Parallel()

	names := TypeNames()
	if len(names) != len(typeAliases) {
		t.Fatalf("TypeNames has %d entries, alias table has %d", len(names), len(typeAliases))
	}
	for _, name := range names {
		typ, err := ResolveType(name)
		if err != nil {
			t.Fatalf("ResolveType(%q): %v", name, err)
		}
		if !Encodable(typ) {
			t.Fatalf("%s resolves to %s which has no encoder", name, typ)
		}
	}
}
