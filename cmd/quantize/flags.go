package main

import (
	"io"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/quantize/internal/gguf"
	"github.com/samcharles93/quantize/internal/logger"
	"github.com/samcharles93/quantize/internal/quantize"
)

type logFlags struct {
	level  string
	format string
	debug  bool
}

func loggingFlags(l *logFlags) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &l.level,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       logger.FormatPretty,
			Destination: &l.format,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &l.debug,
		},
	}
}

func (l logFlags) logger(w io.Writer) (logger.Logger, error) {
	level := logger.ParseLevel(l.level)
	if l.debug {
		level = slog.LevelDebug
	}
	return logger.NewFormat(l.format, w, level)
}

type convertFlags struct {
	threads        int
	fallback       string
	deny           []string
	noDefaultDeny  bool
	configPath     string
	report         string
	stats          bool
	maxTensorBytes uint64

	// denylist replaces the built-in denylist when set from the config file.
	denylist []string
	log      logFlags
}

func (o *convertFlags) flags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "threads",
			Aliases:     []string{"t"},
			Usage:       "worker count (0 = GOMAXPROCS)",
			Destination: &o.threads,
		},
		&cli.StringFlag{
			Name:        "fallback-type",
			Usage:       "packed type for half precision tensors the target cannot hold",
			Value:       quantize.DefaultFallback.String(),
			Destination: &o.fallback,
		},
		&cli.StringSliceFlag{
			Name:        "deny",
			Usage:       "extra tensor name substring kept at source precision (repeatable)",
			Destination: &o.deny,
		},
		&cli.BoolFlag{
			Name:        "no-default-deny",
			Usage:       "drop the built-in denylist (bias, norm, token_embd)",
			Destination: &o.noDefaultDeny,
		},
		&cli.StringFlag{
			Name:        "config",
			Usage:       "path to a YAML config file",
			Value:       configPath(),
			Destination: &o.configPath,
		},
		&cli.StringFlag{
			Name:        "report",
			Usage:       "write a JSON report of the run to this path",
			Destination: &o.report,
		},
		&cli.BoolFlag{
			Name:        "stats",
			Usage:       "measure the quantization error of every re-encoded tensor",
			Destination: &o.stats,
		},
		&cli.Uint64Flag{
			Name:        "max-tensor-bytes",
			Usage:       "largest output buffer a single tensor may need (0 = 64 GiB)",
			Destination: &o.maxTensorBytes,
		},
	}
}

// options resolves the flag values into conversion options.
func (o *convertFlags) options(input, output string, target gguf.TensorType) (quantize.Options, error) {
	fallback, err := quantize.ResolveType(o.fallback)
	if err != nil {
		return quantize.Options{}, err
	}
	if err := quantize.ValidateFallback(fallback); err != nil {
		return quantize.Options{}, err
	}

	deny := quantize.DefaultDenylist()
	if o.denylist != nil {
		deny = o.denylist
	}
	if o.noDefaultDeny {
		deny = nil
	}
	deny = append(deny, o.deny...)

	opts := quantize.DefaultOptions()
	opts.Input = input
	opts.Output = output
	opts.Target = target
	opts.Fallback = fallback
	opts.Denylist = deny
	opts.Threads = o.threads
	opts.MaxTensorBytes = o.maxTensorBytes
	opts.Stats = o.stats
	opts.Report = o.report
	return opts, nil
}
