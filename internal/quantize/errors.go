package quantize

import "errors"

var (
	// ErrInvalidType reports a type name that maps to no output type.
	ErrInvalidType = errors.New("quantize: invalid quantization type")
	// ErrContainerOpen reports an input container that is missing or corrupt.
	ErrContainerOpen = errors.New("quantize: cannot open input container")
	// ErrAllocation reports an output buffer that cannot be allocated.
	ErrAllocation = errors.New("quantize: cannot allocate tensor buffer")
)
