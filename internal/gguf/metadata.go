package gguf

import (
	"fmt"
	"strings"
)

const (
	KeyArchitecture = "general.architecture"
	KeyName         = "general.name"
	KeyFileType     = "general.file_type"
	KeyQuantVersion = "general.quantization_version"
)

// String returns the string value stored under key.
func (f *File) String(key string) (string, bool) {
	v, ok := f.KV[key]
	if !ok {
		return "", false
	}
	s, ok := v.Value.(string)
	return s, ok
}

// Uint64 returns an unsigned or non-negative integer value stored under key.
func (f *File) Uint64(key string) (uint64, bool) {
	v, ok := f.KV[key]
	if !ok {
		return 0, false
	}
	return asUint64(v.Value)
}

// Array retrieves the elements of an array value as T. It fails when any
// element has a different Go type.
func Array[T any](kv map[string]Value, key string) ([]T, bool) {
	v, ok := kv[key]
	if !ok {
		return nil, false
	}
	arr, ok := v.Value.(ArrayValue)
	if !ok {
		return nil, false
	}
	out := make([]T, 0, len(arr.Values))
	for _, item := range arr.Values {
		x, ok := item.(T)
		if !ok {
			return nil, false
		}
		out = append(out, x)
	}
	return out, true
}

// FormatValue renders v for display. Arrays longer than limit are
// summarized by element type and length.
func FormatValue(v Value, limit int) string {
	switch x := v.Value.(type) {
	case string:
		return fmt.Sprintf("%q", x)
	case ArrayValue:
		if len(x.Values) > limit {
			return fmt.Sprintf("[%s x %d]", x.ElemType, len(x.Values))
		}
		parts := make([]string, len(x.Values))
		for i, item := range x.Values {
			parts[i] = FormatValue(Value{Type: x.ElemType, Value: item}, limit)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprint(x)
	}
}
