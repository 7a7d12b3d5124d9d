package main

import (
	"context"
	"errors"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/quantize/internal/logger"
	"github.com/samcharles93/quantize/internal/quantize"
)

func renameArchCmd() *cli.Command {
	var (
		renameKeys bool
		l          logFlags
	)

	return &cli.Command{
		Name:      "rename-arch",
		Usage:     "Copy a GGUF file with a different general.architecture",
		ArgsUsage: "<input.gguf> <output.gguf> <arch>",
		Flags: append([]cli.Flag{
			&cli.BoolFlag{
				Name:        "keys",
				Usage:       "also move keys under the old architecture prefix",
				Destination: &renameKeys,
			},
		}, loggingFlags(&l)...),
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.NArg() != 3 {
				return errors.New("usage: quantize rename-arch [--keys] <input.gguf> <output.gguf> <arch>")
			}
			log, err := l.logger(c.Root().ErrWriter)
			if err != nil {
				return err
			}
			args := c.Args()
			return quantize.RenameArch(logger.WithContext(ctx, log), args.Get(0), args.Get(1), args.Get(2), renameKeys)
		},
	}
}
