package gguf

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
)

// Writer assembles a GGUF container in memory and serializes it. Metadata
// keys and tensors are written in insertion order.
type Writer struct {
	Alignment uint64

	keys    []string
	kv      map[string]Value
	tensors []Tensor
	names   map[string]struct{}
}

// NewWriter returns an empty container.
func NewWriter() *Writer {
	return &Writer{
		Alignment: DefaultAlignment,
		kv:        make(map[string]Value),
		names:     make(map[string]struct{}),
	}
}

// SetKV sets a metadata entry. An existing key keeps its position.
func (w *Writer) SetKV(key string, v Value) {
	if _, ok := w.kv[key]; !ok {
		w.keys = append(w.keys, key)
	}
	w.kv[key] = v
	if key == keyAlignment {
		if u, ok := asUint64(v.Value); ok && u > 0 {
			w.Alignment = u
		}
	}
}

// CopyKV copies every metadata entry of src, in order.
func (w *Writer) CopyKV(src *File) {
	for _, k := range src.Keys {
		w.SetKV(k, src.KV[k])
	}
	if src.Alignment > 0 {
		w.Alignment = src.Alignment
	}
}

// Keys returns the metadata keys in write order.
func (w *Writer) Keys() []string {
	return w.keys
}

// AddTensor appends a tensor. The payload must match the type and dims.
func (w *Writer) AddTensor(t Tensor) error {
	if t.Name == "" {
		return errors.New("gguf: empty tensor name")
	}
	if _, dup := w.names[t.Name]; dup {
		return fmt.Errorf("gguf: duplicate tensor %s", t.Name)
	}
	size, err := DataSize(t.Type, t.Dims)
	if err != nil {
		return fmt.Errorf("gguf: tensor %s: %w", t.Name, err)
	}
	if uint64(len(t.Data)) != size {
		return fmt.Errorf("%w: %s has %d bytes, %s%v needs %d", ErrDataSize, t.Name, len(t.Data), t.Type, t.Dims, size)
	}
	w.names[t.Name] = struct{}{}
	w.tensors = append(w.tensors, t)
	return nil
}

// Tensors returns the appended tensors in write order.
func (w *Writer) Tensors() []Tensor {
	return w.tensors
}

// WriteTo serializes the container.
func (w *Writer) WriteTo(out io.Writer) (int64, error) {
	alignment := w.Alignment
	if alignment == 0 {
		alignment = DefaultAlignment
	}

	offsets := make([]uint64, len(w.tensors))
	var cur uint64
	for i, t := range w.tensors {
		cur = align(cur, alignment)
		offsets[i] = cur
		cur += uint64(len(t.Data))
	}

	e := &encoder{w: bufio.NewWriterSize(out, 1<<20)}
	e.raw([]byte(magicGGUF))
	e.u32(Version)
	e.u64(uint64(len(w.tensors)))
	e.u64(uint64(len(w.keys)))
	for _, k := range w.keys {
		v := w.kv[k]
		e.str(k)
		e.u32(uint32(v.Type))
		e.value(v.Type, v.Value)
	}
	for i, t := range w.tensors {
		e.str(t.Name)
		e.u32(uint32(len(t.Dims)))
		for _, d := range t.Dims {
			e.u64(d)
		}
		e.u32(uint32(t.Type))
		e.u64(offsets[i])
	}
	e.pad(alignment)

	base := e.n
	for i, t := range w.tensors {
		e.zeros(base + offsets[i] - e.n)
		e.raw(t.Data)
	}
	if e.err == nil {
		e.err = e.w.Flush()
	}
	return int64(e.n), e.err
}

// WriteFile serializes the container to path. Output goes to a temporary
// file in the same directory that is renamed over path only after a
// complete write, so a failed run never leaves a truncated file behind.
func (w *Writer) WriteFile(path string) error {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return err
	}
	cleanup := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}

	if _, err := w.WriteTo(tmp); err != nil {
		return cleanup(fmt.Errorf("gguf: write %s: %w", path, err))
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return nil
}

// encoder keeps the first error and turns later writes into no-ops.
type encoder struct {
	w       *bufio.Writer
	n       uint64
	err     error
	scratch [8]byte
}

func (e *encoder) raw(b []byte) {
	if e.err != nil {
		return
	}
	n, err := e.w.Write(b)
	e.n += uint64(n)
	e.err = err
}

func (e *encoder) u8(v uint8) {
	e.scratch[0] = v
	e.raw(e.scratch[:1])
}

func (e *encoder) u16(v uint16) {
	binary.LittleEndian.PutUint16(e.scratch[:2], v)
	e.raw(e.scratch[:2])
}

func (e *encoder) u32(v uint32) {
	binary.LittleEndian.PutUint32(e.scratch[:4], v)
	e.raw(e.scratch[:4])
}

func (e *encoder) u64(v uint64) {
	binary.LittleEndian.PutUint64(e.scratch[:8], v)
	e.raw(e.scratch[:8])
}

func (e *encoder) str(s string) {
	e.u64(uint64(len(s)))
	if e.err == nil {
		n, err := e.w.WriteString(s)
		e.n += uint64(n)
		e.err = err
	}
}

func (e *encoder) zeros(n uint64) {
	var zero [64]byte
	for n > 0 && e.err == nil {
		c := min(n, uint64(len(zero)))
		e.raw(zero[:c])
		n -= c
	}
}

func (e *encoder) pad(alignment uint64) {
	e.zeros(align(e.n, alignment) - e.n)
}

func (e *encoder) value(vt ValueType, v any) {
	if e.err != nil {
		return
	}
	ok := true
	switch vt {
	case TypeUint8:
		var x uint8
		x, ok = v.(uint8)
		e.u8(x)
	case TypeInt8:
		var x int8
		x, ok = v.(int8)
		e.u8(uint8(x))
	case TypeUint16:
		var x uint16
		x, ok = v.(uint16)
		e.u16(x)
	case TypeInt16:
		var x int16
		x, ok = v.(int16)
		e.u16(uint16(x))
	case TypeUint32:
		var x uint32
		x, ok = v.(uint32)
		e.u32(x)
	case TypeInt32:
		var x int32
		x, ok = v.(int32)
		e.u32(uint32(x))
	case TypeUint64:
		var x uint64
		x, ok = v.(uint64)
		e.u64(x)
	case TypeInt64:
		var x int64
		x, ok = v.(int64)
		e.u64(uint64(x))
	case TypeFloat32:
		var x float32
		x, ok = v.(float32)
		e.u32(math.Float32bits(x))
	case TypeFloat64:
		var x float64
		x, ok = v.(float64)
		e.u64(math.Float64bits(x))
	case TypeBool:
		var x bool
		x, ok = v.(bool)
		if x {
			e.u8(1)
		} else {
			e.u8(0)
		}
	case TypeString:
		var x string
		x, ok = v.(string)
		e.str(x)
	case TypeArray:
		var arr ArrayValue
		arr, ok = v.(ArrayValue)
		if !ok {
			break
		}
		e.u32(uint32(arr.ElemType))
		e.u64(uint64(len(arr.Values)))
		for _, item := range arr.Values {
			e.value(arr.ElemType, item)
		}
	default:
		e.err = fmt.Errorf("gguf: unsupported value type %d", uint32(vt))
		return
	}
	if !ok && e.err == nil {
		e.err = fmt.Errorf("gguf: value %T does not match type %s", v, vt)
	}
}
