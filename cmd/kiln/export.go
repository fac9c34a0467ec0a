package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/kiln/internal/export"
)

func exportCmd() *cli.Command {
	var (
		input      string
		output     string
		mode       string
		guard      string
		structName string
		itemType   string
		workers    int64
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "input",
			Aliases:     []string{"i"},
			Usage:       "directory of .npy files, or a .npy/.npz/.safetensors/torch checkpoint",
			Required:    true,
			Destination: &input,
		},
		&cli.StringFlag{
			Name:        "output",
			Aliases:     []string{"o"},
			Usage:       "header file to write",
			Value:       "weights.h",
			Destination: &output,
		},
		&cli.StringFlag{
			Name:        "mode",
			Aliases:     []string{"m"},
			Usage:       "coefficient representation (float, fixed)",
			Value:       "fixed",
			Destination: &mode,
		},
		&cli.StringFlag{
			Name:        "guard",
			Usage:       "include-guard symbol (default: derived from output name)",
			Destination: &guard,
		},
		&cli.StringFlag{
			Name:        "struct-name",
			Usage:       "metadata struct type name",
			Destination: &structName,
		},
		&cli.StringFlag{
			Name:        "item-type",
			Usage:       "fixed-point element type name",
			Destination: &itemType,
		},
		&cli.Int64Flag{
			Name:        "workers",
			Usage:       "concurrent record conversions (default: GOMAXPROCS)",
			Destination: &workers,
		},
	}
	flags = append(flags, commonLogFlags()...)

	return &cli.Command{
		Name:  "export",
		Usage: "Convert coefficient tensors into a C header",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyExportConfig(cmd, LoadConfig(), &mode, &structName, &itemType)

			m, err := export.ParseMode(mode)
			if err != nil {
				return err
			}

			return export.Run(ctx, export.Options{
				Input:      input,
				Output:     output,
				Mode:       m,
				Guard:      guard,
				StructName: structName,
				ItemType:   itemType,
				Workers:    int(workers),
				Logger:     runLogger(),
			})
		},
	}
}
