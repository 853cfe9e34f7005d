package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/born-ml/cachedbert/internal/cachedbert"
	"github.com/born-ml/cachedbert/internal/generate"
	"github.com/born-ml/cachedbert/internal/tokenizer"
)

func generateCmd() *cli.Command {
	var (
		opts      modelOptions
		sampling  samplingOptions
		maxTokens int64
		encoding  string
		prompt    string
		ids       string
		eos       int64
	)

	flags := append(opts.flags(), sampling.flags()...)
	flags = append(flags,
		&cli.IntFlag{
			Name:        "max-tokens",
			Aliases:     []string{"n"},
			Usage:       "maximum number of generated tokens",
			Value:       32,
			Destination: &maxTokens,
		},
		&cli.StringFlag{
			Name:        "encoding",
			Usage:       "tiktoken encoding used for --prompt",
			Value:       tokenizer.GPT2Encoding,
			Destination: &encoding,
		},
		&cli.StringFlag{
			Name:        "prompt",
			Usage:       "prompt text (tokenized with --encoding)",
			Destination: &prompt,
		},
		&cli.StringFlag{
			Name:        "ids",
			Usage:       "comma-separated prompt token ids, bypasses the tokenizer",
			Destination: &ids,
		},
		&cli.IntFlag{
			Name:        "eos",
			Usage:       "end-of-text id for --ids (-1 = none)",
			Value:       -1,
			Destination: &eos,
		},
	)

	return &cli.Command{
		Name:  "generate",
		Usage: "Sample a continuation with a randomly initialized decoder LM",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if (prompt == "") == (ids == "") {
				return errors.New("exactly one of --prompt or --ids is required")
			}
			if err := positive("max-tokens", maxTokens); err != nil {
				return err
			}
			cfg, err := opts.config()
			if err != nil {
				return err
			}
			model := cachedbert.NewDecoderLM(cfg, opts.backend())

			genCfg := generate.DefaultConfig()
			genCfg.MaxTokens = int(maxTokens)
			genCfg.EOS = int32(eos) //nolint:gosec // ids are bounded by the vocabulary size
			genCfg.Sampling = generate.SamplingConfig{
				Temperature:   float32(sampling.temperature),
				TopK:          int(sampling.topK),
				TopP:          float32(sampling.topP),
				RepeatPenalty: float32(sampling.penalty),
				Seed:          sampling.seed,
			}

			w := cmd.Root().Writer
			if ids != "" {
				promptIDs, err := parseIDs(ids)
				if err != nil {
					return err
				}
				res, err := generate.New(model).Generate(ctx, promptIDs, genCfg)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(w, "%s\n", formatIDs(res.Tokens))
				return nil
			}

			tok, err := tokenizer.NewTikToken(encoding)
			if err != nil {
				return err
			}
			gen, err := generate.NewTextGenerator(model, tok)
			if err != nil {
				return err
			}
			text, _, err := gen.Generate(ctx, prompt, genCfg)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(w, "%s%s\n", prompt, text)
			return nil
		},
	}
}

func parseIDs(s string) ([]int32, error) {
	parts := strings.Split(s, ",")
	out := make([]int32, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseInt(p, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid token id %q: %w", p, err)
		}
		out = append(out, int32(v))
	}
	if len(out) == 0 {
		return nil, errors.New("no token ids given")
	}
	return out, nil
}

func formatIDs(ids []int32) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(int(id))
	}
	return strings.Join(parts, ",")
}
