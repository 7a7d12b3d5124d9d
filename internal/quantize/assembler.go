package quantize

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/samcharles93/quantize/internal/gguf"
	"github.com/samcharles93/quantize/internal/logger"
	"github.com/samcharles93/quantize/internal/workerpool"
)

// Outcome is what happened to one tensor.
type Outcome string

const (
	OutcomeQuantized Outcome = "quantized"
	OutcomeFallback  Outcome = "fallback"
	OutcomeCopied    Outcome = "copied"
)

// TensorResult records the handling of one input tensor.
type TensorResult struct {
	Name     string
	Dims     []uint64
	From     gguf.TensorType
	To       gguf.TensorType
	Outcome  Outcome
	Reason   Reason
	Block    uint64
	BytesIn  uint64
	BytesOut uint64
	// Digest is the xxh3 hash of the output payload, set when the
	// assembler computes digests.
	Digest  uint64
	Stats   *ErrorStats
	Elapsed time.Duration
}

// Summary aggregates a run. Tensors is in input order.
type Summary struct {
	Target    gguf.TensorType
	Fallback  gguf.TensorType
	Tensors   []TensorResult
	Quantized int
	Fallbacks int
	Copied    int
	BytesIn   uint64
	BytesOut  uint64
	Elapsed   time.Duration
}

// Ratio is input bytes over output bytes.
func (s Summary) Ratio() float64 {
	if s.BytesOut == 0 {
		return 0
	}
	return float64(s.BytesIn) / float64(s.BytesOut)
}

// Assembler runs the per-tensor pipeline over a container.
type Assembler struct {
	Target   gguf.TensorType
	Policy   Policy
	Fallback Fallback
	Exec     Executor
	// Pool runs the tensors. A nil Pool uses a temporary pool sized to
	// GOMAXPROCS.
	Pool *workerpool.Pool
	// Stats decodes every re-encoded tensor to measure its error.
	Stats bool
	// Digest hashes every output payload.
	Digest bool
}

// Run processes every tensor of in and returns the output tensors in input
// order. Copied tensors alias the payloads of in, so in must stay open
// until the tensors have been written. Any tensor error aborts the run.
func (a *Assembler) Run(ctx context.Context, in *gguf.File) ([]gguf.Tensor, Summary, error) {
	start := time.Now()
	log := logger.FromContext(ctx)

	pool := a.Pool
	if pool == nil {
		pool = workerpool.New(0)
		defer pool.Close()
	}

	n := len(in.Tensors)
	slots := make([]gguf.Tensor, n)
	results := make([]TensorResult, n)

	var (
		mu   sync.Mutex
		done int
	)
	err := pool.ForEach(ctx, n, func(i int) error {
		t, err := in.Tensor(i)
		if err != nil {
			return err
		}
		began := time.Now()
		out, res, err := a.process(t)
		if err != nil {
			return err
		}
		res.Elapsed = time.Since(began)

		mu.Lock()
		defer mu.Unlock()
		slots[i] = out
		results[i] = res
		done++
		logResult(log, res, done, n)
		return nil
	})
	if err != nil {
		return nil, Summary{}, err
	}

	sum := Summary{
		Target:   a.Target,
		Fallback: a.Fallback.Type,
		Tensors:  results,
		Elapsed:  time.Since(start),
	}
	for _, r := range results {
		switch r.Outcome {
		case OutcomeQuantized:
			sum.Quantized++
		case OutcomeFallback:
			sum.Fallbacks++
		default:
			sum.Copied++
		}
		sum.BytesIn += r.BytesIn
		sum.BytesOut += r.BytesOut
	}
	return slots, sum, nil
}

// process runs the state machine for one tensor. It touches no shared
// state.
func (a *Assembler) process(t gguf.Tensor) (gguf.Tensor, TensorResult, error) {
	v := a.Policy.Classify(t.Name, t.Dims, a.Target)
	res := TensorResult{
		Name:    t.Name,
		Dims:    t.Dims,
		From:    t.Type,
		Reason:  v.Reason,
		Block:   v.BlockSize,
		BytesIn: uint64(len(t.Data)),
	}

	var (
		out gguf.Tensor
		src []float32
		err error
	)
	switch {
	case v.Action == ActionQuantize && t.Type == a.Target:
		out, res.Outcome, res.Reason = t, OutcomeCopied, ReasonSameType
	case v.Action == ActionQuantize && !bridgeable(t.Type):
		out, res.Outcome, res.Reason = t, OutcomeCopied, ReasonSourceType
	case v.Action == ActionQuantize:
		out, src, err = a.Exec.Execute(t, a.Target)
		res.Outcome = OutcomeQuantized
	case a.Fallback.applies(t.Type, v):
		out, src, err = a.Fallback.Apply(t)
		res.Outcome = OutcomeFallback
	default:
		out, res.Outcome = t, OutcomeCopied
	}
	if err != nil {
		return gguf.Tensor{}, TensorResult{}, err
	}

	res.To = out.Type
	res.BytesOut = uint64(len(out.Data))
	if a.Digest {
		res.Digest = xxh3.Hash(out.Data)
	}
	if a.Stats && src != nil {
		st, err := Measure(src, out.Data, out.Type)
		if err != nil {
			return gguf.Tensor{}, TensorResult{}, fmt.Errorf("quantize: measure %s: %w", t.Name, err)
		}
		res.Stats = &st
	}
	return out, res, nil
}

func logResult(log logger.Logger, r TensorResult, done, total int) {
	progress := fmt.Sprintf("%d/%d", done, total)
	if r.Reason == ReasonUnaligned {
		log.Debug("skipping", "tensor", r.Name, "shape", r.Dims, "block", r.Block, "reason", r.Reason.String())
	}
	switch r.Outcome {
	case OutcomeQuantized:
		args := []any{"tensor", r.Name, "shape", r.Dims, "from", r.From.String(), "to", r.To.String(), "progress", progress}
		if r.Stats != nil {
			args = append(args, "rmse", r.Stats.RMSE)
		}
		log.Info("quantizing", args...)
	case OutcomeFallback:
		log.Info("fallback", "tensor", r.Name, "shape", r.Dims, "from", r.From.String(), "to", r.To.String(),
			"reason", r.Reason.String(), "progress", progress)
	default:
		args := []any{"tensor", r.Name, "type", r.From.String(), "progress", progress}
		if r.Reason != ReasonNone {
			args = append(args, "reason", r.Reason.String())
		}
		log.Info("copying", args...)
	}
}
