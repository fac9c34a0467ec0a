package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/kiln/internal/export"
	"github.com/samcharles93/kiln/pkg/layout"
)

func inspectCmd() *cli.Command {
	var input string

	return &cli.Command{
		Name:  "inspect",
		Usage: "List the coefficient tensors an input resolves to",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "input",
				Aliases:     []string{"i"},
				Usage:       "directory of .npy files, or a .npy/.npz/.safetensors/torch checkpoint",
				Required:    true,
				Destination: &input,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			sources, err := export.Discover(input)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSHAPE\tCLASS\tELEMENTS")
			for _, src := range sources {
				class := "unsupported"
				if c, err := layout.Classify(src.Tensor.Rank()); err == nil {
					switch c {
					case layout.Bias:
						class = "bias"
					case layout.Dense:
						class = "dense"
					case layout.Conv:
						class = "conv"
					}
				}
				fmt.Fprintf(w, "%s\t%v\t%s\t%d\n", src.Name, src.Tensor.Shape(), class, src.Tensor.Len())
			}
			return w.Flush()
		},
	}
}
