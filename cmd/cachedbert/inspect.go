package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/born-ml/cachedbert/internal/cachedbert"
	"github.com/born-ml/cachedbert/internal/nn"
)

func inspectCmd() *cli.Command {
	var (
		opts       modelOptions
		format     string
		showParams bool
		encoder    bool
	)

	return &cli.Command{
		Name:  "inspect",
		Usage: "Print a model config, its parameter count and parameter names",
		Flags: append(opts.flags(),
			&cli.StringFlag{
				Name:        "format",
				Usage:       "config output format (yaml, json)",
				Value:       "yaml",
				Destination: &format,
			},
			&cli.BoolFlag{
				Name:        "params",
				Usage:       "list every parameter with its shape",
				Destination: &showParams,
			},
			&cli.BoolFlag{
				Name:        "encoder",
				Usage:       "inspect the encoder layout instead of the decoder LM",
				Destination: &encoder,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := opts.config()
			if err != nil {
				return err
			}
			data, err := cachedbert.EncodeConfig(cfg, cachedbert.Format(format))
			if err != nil {
				return err
			}

			var model nn.Module
			if encoder {
				model = cachedbert.NewEncoder(cfg, opts.backend())
			} else {
				model = cachedbert.NewDecoderLM(cfg, opts.backend())
			}

			w := cmd.Root().Writer
			if _, err := w.Write(data); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(w, "\nparameters: %d (head dim %d)\n", nn.CountParameters(model), cfg.HeadDim())
			if showParams {
				return printParams(w, model.NamedParameters())
			}
			return nil
		},
	}
}

func printParams(w io.Writer, params nn.Params) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, name := range params.Names() {
		_, _ = fmt.Fprintf(tw, "%s\t%v\n", name, params[name].Shape())
	}
	return tw.Flush()
}
