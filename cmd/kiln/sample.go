package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/kiln/internal/export"
)

func sampleCmd() *cli.Command {
	var (
		input  string
		output string
		name   string
		guard  string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "input",
			Aliases:     []string{"i"},
			Usage:       "a .npy file holding a uint8 input sample",
			Required:    true,
			Destination: &input,
		},
		&cli.StringFlag{
			Name:        "output",
			Aliases:     []string{"o"},
			Usage:       "header file to write",
			Value:       "sample.h",
			Destination: &output,
		},
		&cli.StringFlag{
			Name:        "name",
			Usage:       "record name (default: derived from input name)",
			Destination: &name,
		},
		&cli.StringFlag{
			Name:        "guard",
			Usage:       "include-guard symbol (default: derived from output name)",
			Destination: &guard,
		},
	}
	flags = append(flags, commonLogFlags()...)

	return &cli.Command{
		Name:  "sample",
		Usage: "Emit a raw input sample as an unsigned-byte array header",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyLogConfig(cmd, LoadConfig())

			return export.RunSample(export.SampleOptions{
				Input:  input,
				Output: output,
				Name:   name,
				Guard:  guard,
				Logger: runLogger(),
			})
		},
	}
}
