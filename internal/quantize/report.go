package quantize

import (
	"fmt"
	"os"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Report is the JSON record of one conversion.
type Report struct {
	RunID     string         `json:"run_id"`
	Input     string         `json:"input"`
	Output    string         `json:"output"`
	Target    string         `json:"target"`
	Fallback  string         `json:"fallback"`
	Threads   int            `json:"threads"`
	Started   time.Time      `json:"started"`
	ElapsedMS int64          `json:"elapsed_ms"`
	Totals    ReportTotals   `json:"totals"`
	Tensors   []ReportTensor `json:"tensors"`
}

type ReportTotals struct {
	Tensors   int     `json:"tensors"`
	Quantized int     `json:"quantized"`
	Fallback  int     `json:"fallback"`
	Copied    int     `json:"copied"`
	BytesIn   uint64  `json:"bytes_in"`
	BytesOut  uint64  `json:"bytes_out"`
	Ratio     float64 `json:"ratio"`
}

type ReportTensor struct {
	Name     string   `json:"name"`
	Shape    []uint64 `json:"shape"`
	From     string   `json:"from"`
	To       string   `json:"to"`
	Action   Outcome  `json:"action"`
	Reason   string   `json:"reason,omitempty"`
	BytesIn  uint64   `json:"bytes_in"`
	BytesOut uint64   `json:"bytes_out"`
	XXH3     string   `json:"xxh3,omitempty"`
	RMSE     *float64 `json:"rmse,omitempty"`
	MaxAbs   *float64 `json:"max_abs_error,omitempty"`
}

// NewReport builds a report from a finished run.
func NewReport(opts Options, started time.Time, sum Summary) *Report {
	r := &Report{
		RunID:     uuid.NewString(),
		Input:     opts.Input,
		Output:    opts.Output,
		Target:    sum.Target.String(),
		Fallback:  sum.Fallback.String(),
		Threads:   opts.Threads,
		Started:   started.UTC(),
		ElapsedMS: sum.Elapsed.Milliseconds(),
		Totals: ReportTotals{
			Tensors:   len(sum.Tensors),
			Quantized: sum.Quantized,
			Fallback:  sum.Fallbacks,
			Copied:    sum.Copied,
			BytesIn:   sum.BytesIn,
			BytesOut:  sum.BytesOut,
			Ratio:     sum.Ratio(),
		},
		Tensors: make([]ReportTensor, 0, len(sum.Tensors)),
	}
	for _, t := range sum.Tensors {
		rt := ReportTensor{
			Name:     t.Name,
			Shape:    t.Dims,
			From:     t.From.String(),
			To:       t.To.String(),
			Action:   t.Outcome,
			Reason:   t.Reason.String(),
			BytesIn:  t.BytesIn,
			BytesOut: t.BytesOut,
		}
		if t.Digest != 0 {
			rt.XXH3 = fmt.Sprintf("%016x", t.Digest)
		}
		if t.Stats != nil {
			rmse, maxAbs := t.Stats.RMSE, t.Stats.MaxAbs
			rt.RMSE, rt.MaxAbs = &rmse, &maxAbs
		}
		r.Tensors = append(r.Tensors, rt)
	}
	return r
}

// WriteFile writes the report as indented JSON.
func (r *Report) WriteFile(path string) error {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("quantize: encode report: %w", err)
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("quantize: write report: %w", err)
	}
	return nil
}
