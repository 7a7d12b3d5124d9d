package quantize

import (
	"context"
	"fmt"
	"time"

	"github.com/samcharles93/quantize/internal/gguf"
	"github.com/samcharles93/quantize/internal/logger"
	"github.com/samcharles93/quantize/internal/workerpool"
)

// Options configures Convert.
type Options struct {
	Input  string
	Output string
	Target gguf.TensorType
	// Fallback is the packed type for half precision tensors the target
	// cannot hold.
	Fallback gguf.TensorType
	Denylist []string
	// Threads is the worker count; zero or less uses GOMAXPROCS.
	Threads        int
	MaxTensorBytes uint64
	// Stats measures the error of every re-encoded tensor.
	Stats bool
	// Report names a JSON report file; empty disables the report.
	Report string
}

// DefaultOptions returns Options with the default denylist and fallback.
func DefaultOptions() Options {
	return Options{
		Target:   gguf.TypeInvalid,
		Fallback: DefaultFallback,
		Denylist: DefaultDenylist(),
	}
}

// Convert reads opts.Input, runs the pipeline and writes opts.Output. The
// output file appears only after every tensor succeeded and the container
// was fully written.
func Convert(ctx context.Context, opts Options) (Summary, error) {
	if !Encodable(opts.Target) {
		return Summary{}, fmt.Errorf("%w: target %s", ErrInvalidType, opts.Target)
	}
	if err := ValidateFallback(opts.Fallback); err != nil {
		return Summary{}, err
	}
	log := logger.FromContext(ctx)
	started := time.Now()

	in, err := gguf.Open(opts.Input)
	if err != nil {
		return Summary{}, fmt.Errorf("%w: %w", ErrContainerOpen, err)
	}
	defer func() { _ = in.Close() }()

	log.Info("loaded",
		"path", opts.Input,
		"version", in.Header.Version,
		"tensors", len(in.Tensors),
		"kv", len(in.Keys),
		"target", opts.Target.String(),
	)

	pool := workerpool.New(opts.Threads)
	defer pool.Close()
	opts.Threads = pool.NumWorkers()

	exec := Executor{MaxTensorBytes: opts.MaxTensorBytes}
	asm := &Assembler{
		Target:   opts.Target,
		Policy:   NewPolicy(opts.Denylist),
		Fallback: Fallback{Type: opts.Fallback, Exec: exec},
		Exec:     exec,
		Pool:     pool,
		Stats:    opts.Stats,
		Digest:   opts.Report != "",
	}
	tensors, sum, err := asm.Run(ctx, in)
	if err != nil {
		return Summary{}, err
	}

	w := gguf.NewWriter()
	w.CopyKV(in)
	for _, t := range tensors {
		if err := w.AddTensor(t); err != nil {
			return Summary{}, err
		}
	}
	if err := w.WriteFile(opts.Output); err != nil {
		return Summary{}, err
	}
	sum.Elapsed = time.Since(started)

	log.Info("done",
		"output", opts.Output,
		"quantized", sum.Quantized,
		"fallback", sum.Fallbacks,
		"copied", sum.Copied,
		"bytes_in", sum.BytesIn,
		"bytes_out", sum.BytesOut,
		"ratio", sum.Ratio(),
		"elapsed", sum.Elapsed,
	)

	if opts.Report != "" {
		if err := NewReport(opts, started, sum).WriteFile(opts.Report); err != nil {
			return sum, err
		}
		log.Info("report written", "path", opts.Report)
	}
	return sum, nil
}
