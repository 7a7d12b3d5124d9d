package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/quantize/internal/logger"
	"github.com/samcharles93/quantize/internal/quantize"
	"github.com/samcharles93/quantize/internal/version"
)

const usageLine = "quantize [flags] <input.gguf> <output.gguf> <type>"

// ErrUsage reports a malformed invocation.
var ErrUsage = errors.New("usage: " + usageLine)

func main() {
	app := newApp(os.Stdout, os.Stderr)
	if err := app.Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp(stdout, stderr io.Writer) *cli.Command {
	o := &convertFlags{}
	return &cli.Command{
		Name:      "quantize",
		Usage:     "Re-encode the tensors of a GGUF model into a packed quantized type",
		UsageText: usageLine,
		Description: "Types: " + strings.Join(quantize.TypeNames(), ", ") + "\n\n" +
			"Tensors whose names match the denylist are copied unchanged. Half precision\n" +
			"tensors whose rows do not fit the target block size use the fallback type,\n" +
			"or F32 when that does not fit either.",
		Version:   version.String(),
		Writer:    stdout,
		ErrWriter: stderr,
		Flags:     append(o.flags(), loggingFlags(&o.log)...),
		Action: func(ctx context.Context, c *cli.Command) error {
			return runConvert(ctx, c, o)
		},
		Commands: []*cli.Command{
			inspectCmd(),
			renameArchCmd(),
			versionCmd(),
		},
	}
}

func runConvert(ctx context.Context, c *cli.Command, o *convertFlags) error {
	if c.NArg() < 3 {
		return ErrUsage
	}
	args := c.Args()
	target, err := quantize.ResolveType(args.Get(2))
	if err != nil {
		return err
	}

	cfg, err := loadConfig(o.configPath, c.IsSet("config"))
	if err != nil {
		return err
	}
	applyConfig(c, cfg, o)

	opts, err := o.options(args.Get(0), args.Get(1), target)
	if err != nil {
		return err
	}
	log, err := o.log.logger(c.Root().ErrWriter)
	if err != nil {
		return err
	}
	ctx = logger.WithContext(ctx, log)

	if _, err := quantize.Convert(ctx, opts); err != nil {
		return err
	}
	return nil
}
