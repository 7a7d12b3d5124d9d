package quantize

import (
	"strings"

	"github.com/samcharles93/quantize/internal/gguf"
)

type Action uint8

const (
	ActionQuantize Action = iota
	ActionSkip
)

func (a Action) String() string {
	if a == ActionQuantize {
		return "quantize"
	}
	return "skip"
}

// Reason explains a skip verdict.
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonDenied
	ReasonNotQuantizable
	ReasonUnaligned
	// Set by the assembler for tensors copied although the policy allowed
	// quantization.
	ReasonSameType
	ReasonSourceType
)

func (r Reason) String() string {
	switch r {
	case ReasonDenied:
		return "denylisted"
	case ReasonNotQuantizable:
		return "no encoder for target"
	case ReasonUnaligned:
		return "row not aligned to block"
	case ReasonSameType:
		return "already target type"
	case ReasonSourceType:
		return "source is not F32 or F16"
	default:
		return ""
	}
}

// Verdict is the classifier decision for one tensor.
type Verdict struct {
	Action Action
	Reason Reason
	// Match is the denylist entry that matched, if any.
	Match string
	// BlockSize is the target block size the row length was checked against.
	BlockSize uint64
}

// DefaultDenylist holds name fragments of tensors kept at full precision:
// biases, normalization weights and the token embedding table.
func DefaultDenylist() []string {
	return []string{"bias", "norm", "token_embd"}
}

// Policy decides per tensor whether it is quantized. The zero value
// quantizes every aligned tensor.
type Policy struct {
	Denylist []string
}

// NewPolicy returns a Policy with the given substrings. Empty entries are
// dropped since they would match every name.
func NewPolicy(deny []string) Policy {
	p := Policy{Denylist: make([]string, 0, len(deny))}
	for _, d := range deny {
		if d = strings.TrimSpace(d); d != "" {
			p.Denylist = append(p.Denylist, d)
		}
	}
	return p
}

// Classify applies the rules in order: denylisted names, targets without an
// encoder, rows not aligned to the target block size. A tensor matching
// none of them is quantized. Classify has no side effects.
func (p Policy) Classify(name string, dims []uint64, target gguf.TensorType) Verdict {
	for _, d := range p.Denylist {
		if strings.Contains(name, d) {
			return Verdict{Action: ActionSkip, Reason: ReasonDenied, Match: d}
		}
	}
	if !Encodable(target) {
		return Verdict{Action: ActionSkip, Reason: ReasonNotQuantizable}
	}
	bs := target.BlockSize()
	if len(dims) == 0 || dims[0]%bs != 0 {
		return Verdict{Action: ActionSkip, Reason: ReasonUnaligned, BlockSize: bs}
	}
	return Verdict{Action: ActionQuantize, BlockSize: bs}
}
