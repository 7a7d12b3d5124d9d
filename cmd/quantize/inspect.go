package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/quantize/internal/gguf"
)

// headlineKeys are printed by inspect even without --kv.
var headlineKeys = []string{
	gguf.KeyName,
	gguf.KeyArchitecture,
	gguf.KeyFileType,
	gguf.KeyQuantVersion,
	"general.alignment",
	"tokenizer.ggml.model",
}

func inspectCmd() *cli.Command {
	var (
		showKV      bool
		tensorLimit int
		filter      string
		arrayLimit  int
	)

	return &cli.Command{
		Name:      "inspect",
		Usage:     "Print the header, metadata and tensor table of a GGUF file",
		ArgsUsage: "<path.gguf>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "kv", Usage: "show all metadata key/values", Destination: &showKV},
			&cli.IntFlag{Name: "tensors", Usage: "number of tensors to list (0 to skip, -1 for all)", Value: 20, Destination: &tensorLimit},
			&cli.StringFlag{Name: "tensor-filter", Usage: "substring filter for tensor listing", Destination: &filter},
			&cli.IntFlag{Name: "array-limit", Usage: "print arrays up to this many elements", Value: 8, Destination: &arrayLimit},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.NArg() != 1 {
				return errors.New("usage: quantize inspect [flags] <path.gguf>")
			}
			f, err := gguf.Open(c.Args().First())
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()

			return inspect(c.Root().Writer, f, inspectOptions{
				showKV:      showKV,
				tensorLimit: tensorLimit,
				filter:      filter,
				arrayLimit:  arrayLimit,
			})
		},
	}
}

type inspectOptions struct {
	showKV      bool
	tensorLimit int
	filter      string
	arrayLimit  int
}

func inspect(w io.Writer, f *gguf.File, opts inspectOptions) error {
	ew := &errWriter{w: w}
	ew.printf("File: %s\n", f.Path)
	ew.printf("GGUF v%d | tensors=%d | kv=%d | alignment=%d | data_offset=%d\n",
		f.Header.Version, f.Header.TensorCount, f.Header.KVCount, f.Alignment, f.DataOffset)

	for _, k := range headlineKeys {
		if v, ok := f.KV[k]; ok {
			ew.printf("  %-36s %s\n", k+":", gguf.FormatValue(v, opts.arrayLimit))
		}
	}

	if opts.showKV {
		ew.printf("\nAll metadata:\n")
		for _, k := range f.Keys {
			v := f.KV[k]
			ew.printf("  %s (%s) = %s\n", k, v.Type, gguf.FormatValue(v, opts.arrayLimit))
		}
	}

	ew.printf("\nTypes:\n")
	for _, tc := range typeCounts(f) {
		ew.printf("  %-8s tensors=%-5d bytes=%d\n", tc.typ, tc.count, tc.bytes)
	}

	if n := opts.tensorLimit; n != 0 {
		ew.printf("\nTensors:\n")
		shown, matched := 0, 0
		for _, t := range f.Tensors {
			if opts.filter != "" && !strings.Contains(t.Name, opts.filter) {
				continue
			}
			matched++
			if n > 0 && shown >= n {
				continue
			}
			shown++
			ew.printf("  %-40s %-6s dims=%s off=%d\n", t.Name, t.Type, formatDims(t.Dims), t.Offset)
		}
		if shown < matched {
			ew.printf("  ... (%d more)\n", matched-shown)
		}
	}
	return ew.err
}

type typeCount struct {
	typ   gguf.TensorType
	count int
	bytes uint64
}

// typeCounts groups the tensor table by type, ordered by type id.
func typeCounts(f *gguf.File) []typeCount {
	byType := map[gguf.TensorType]*typeCount{}
	for _, t := range f.Tensors {
		tc, ok := byType[t.Type]
		if !ok {
			tc = &typeCount{typ: t.Type}
			byType[t.Type] = tc
		}
		tc.count++
		if size, err := gguf.DataSize(t.Type, t.Dims); err == nil {
			tc.bytes += size
		}
	}
	out := make([]typeCount, 0, len(byType))
	for _, tc := range byType {
		out = append(out, *tc)
	}
	slices.SortFunc(out, func(a, b typeCount) int { return cmp.Compare(a.typ, b.typ) })
	return out
}

func formatDims(dims []uint64) string {
	if len(dims) == 0 {
		return "[]"
	}
	parts := make([]string, len(dims))
	for i, v := range dims {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return "[" + strings.Join(parts, "x") + "]"
}

// errWriter keeps the first write error.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
