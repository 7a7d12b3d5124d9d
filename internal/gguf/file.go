package gguf

import (
	"fmt"
	"os"
)

// File is a GGUF container opened for reading. The whole file is mapped
// read-only; tensor payloads returned by Tensor alias the mapping and stay
// valid until Close.
type File struct {
	Path       string
	Header     Header
	Keys       []string // metadata keys in file order
	KV         map[string]Value
	Tensors    []TensorInfo
	Alignment  uint64
	DataOffset uint64
	Data       []byte

	unmap func() error
}

// Open maps path and decodes the header, metadata and tensor table.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	data, unmap, err := mapFile(f, st.Size())
	if err != nil {
		return nil, fmt.Errorf("gguf: map %s: %w", path, err)
	}

	file, err := decode(data)
	if err != nil {
		_ = unmap()
		return nil, fmt.Errorf("gguf: %s: %w", path, err)
	}
	file.Path = path
	file.unmap = unmap
	return file, nil
}

// Parse decodes a container held in memory. The returned File aliases data.
func Parse(data []byte) (*File, error) {
	return decode(data)
}

func decode(data []byte) (*File, error) {
	d := &decoder{buf: data}

	magic, err := d.next(4)
	if err != nil {
		return nil, err
	}
	if string(magic) != magicGGUF {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMagic, string(magic))
	}
	version, err := d.u32()
	if err != nil {
		return nil, err
	}
	if version < 2 || version > Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupported, version)
	}
	tensorCount, err := d.u64()
	if err != nil {
		return nil, err
	}
	kvCount, err := d.u64()
	if err != nil {
		return nil, err
	}
	if kvCount > uint64(len(data)) || tensorCount > uint64(len(data)) {
		return nil, fmt.Errorf("implausible header counts kv=%d tensors=%d", kvCount, tensorCount)
	}

	keys := make([]string, 0, kvCount)
	kv := make(map[string]Value, kvCount)
	for i := range kvCount {
		key, err := d.str()
		if err != nil {
			return nil, fmt.Errorf("read key %d: %w", i, err)
		}
		vt, err := d.u32()
		if err != nil {
			return nil, fmt.Errorf("read value type for %s: %w", key, err)
		}
		val, err := d.value(ValueType(vt))
		if err != nil {
			return nil, fmt.Errorf("read value for %s: %w", key, err)
		}
		if _, dup := kv[key]; dup {
			return nil, fmt.Errorf("duplicate key %s", key)
		}
		keys = append(keys, key)
		kv[key] = Value{Type: ValueType(vt), Value: val}
	}

	tensors := make([]TensorInfo, 0, tensorCount)
	for i := range tensorCount {
		name, err := d.str()
		if err != nil {
			return nil, fmt.Errorf("read tensor name %d: %w", i, err)
		}
		nDim, err := d.u32()
		if err != nil {
			return nil, fmt.Errorf("read tensor dims %s: %w", name, err)
		}
		if nDim == 0 || nDim > MaxDims {
			return nil, fmt.Errorf("tensor %s: invalid rank %d", name, nDim)
		}
		dims := make([]uint64, nDim)
		for j := range dims {
			if dims[j], err = d.u64(); err != nil {
				return nil, fmt.Errorf("read tensor dim %s[%d]: %w", name, j, err)
			}
		}
		tt, err := d.u32()
		if err != nil {
			return nil, fmt.Errorf("read tensor type %s: %w", name, err)
		}
		offset, err := d.u64()
		if err != nil {
			return nil, fmt.Errorf("read tensor offset %s: %w", name, err)
		}
		tensors = append(tensors, TensorInfo{
			Name:   name,
			Dims:   dims,
			Type:   TensorType(tt),
			Offset: offset,
		})
	}

	alignment := DefaultAlignment
	if v, ok := kv[keyAlignment]; ok {
		if u, ok := asUint64(v.Value); ok && u > 0 {
			alignment = u
		}
	}

	return &File{
		Header:     Header{Version: version, TensorCount: tensorCount, KVCount: kvCount},
		Keys:       keys,
		KV:         kv,
		Tensors:    tensors,
		Alignment:  alignment,
		DataOffset: align(uint64(d.off), alignment),
		Data:       data,
	}, nil
}

// Close releases the mapping. Tensor payloads obtained from f must not be
// used afterwards.
func (f *File) Close() error {
	if f == nil || f.unmap == nil {
		return nil
	}
	err := f.unmap()
	f.unmap = nil
	f.Data = nil
	return err
}

// TensorByName returns the index of the named tensor.
func (f *File) TensorByName(name string) (int, bool) {
	for i, t := range f.Tensors {
		if t.Name == name {
			return i, true
		}
	}
	return -1, false
}

// Tensor returns descriptor i with its payload sliced from the mapping.
func (f *File) Tensor(i int) (Tensor, error) {
	if i < 0 || i >= len(f.Tensors) {
		return Tensor{}, fmt.Errorf("gguf: tensor index %d out of range", i)
	}
	info := f.Tensors[i]
	size, err := DataSize(info.Type, info.Dims)
	if err != nil {
		return Tensor{}, fmt.Errorf("gguf: tensor %s: %w", info.Name, err)
	}
	start := f.DataOffset + info.Offset
	if start < f.DataOffset || start > uint64(len(f.Data)) || size > uint64(len(f.Data))-start {
		return Tensor{}, fmt.Errorf("gguf: tensor %s: payload [%d, +%d) beyond end of file", info.Name, start, size)
	}
	return Tensor{
		Name: info.Name,
		Dims: info.Dims,
		Type: info.Type,
		Data: f.Data[start : start+size : start+size],
	}, nil
}
