package quantize

import (
	"fmt"
	"strings"

	"github.com/samcharles93/quantize/internal/gguf"
)

// typeAliases is the single table of accepted type names. Size variants of
// the K-quant families collapse onto their base type.
var typeAliases = map[string]gguf.TensorType{
	"F32":    gguf.GGMLTypeF32,
	"F16":    gguf.GGMLTypeF16,
	"Q4_0":   gguf.GGMLTypeQ4_0,
	"Q4_1":   gguf.GGMLTypeQ4_1,
	"Q5_0":   gguf.GGMLTypeQ5_0,
	"Q5_1":   gguf.GGMLTypeQ5_1,
	"Q8_0":   gguf.GGMLTypeQ8_0,
	"Q4_K":   gguf.GGMLTypeQ4_K,
	"Q4_K_M": gguf.GGMLTypeQ4_K,
	"Q4_K_S": gguf.GGMLTypeQ4_K,
	"Q5_K":   gguf.GGMLTypeQ5_K,
	"Q5_K_M": gguf.GGMLTypeQ5_K,
	"Q5_K_S": gguf.GGMLTypeQ5_K,
	"Q6_K":   gguf.GGMLTypeQ6_K,
}

// ResolveType maps a case-insensitive type name to its tensor type. Unknown
// names return gguf.TypeInvalid and an error wrapping ErrInvalidType.
func ResolveType(token string) (gguf.TensorType, error) {
	t, ok := typeAliases[strings.ToUpper(strings.TrimSpace(token))]
	if !ok {
		return gguf.TypeInvalid, fmt.Errorf("%w: %q (valid: %s)", ErrInvalidType, token, strings.Join(TypeNames(), ", "))
	}
	return t, nil
}

// TypeNames lists every accepted name in a stable order.
func TypeNames() []string {
	return []string{
		"F32", "F16",
		"Q4_0", "Q4_1", "Q5_0", "Q5_1", "Q8_0",
		"Q4_K", "Q4_K_M", "Q4_K_S",
		"Q5_K", "Q5_K_M", "Q5_K_S",
		"Q6_K",
	}
}
