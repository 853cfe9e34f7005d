package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/born-ml/cachedbert/internal/cachedbert"
	"github.com/born-ml/cachedbert/internal/logger"
	"github.com/born-ml/cachedbert/internal/tensor"
)

func verifyCmd() *cli.Command {
	var (
		opts      modelOptions
		length    int64
		chunk     int64
		seed      int64
		tolerance float64
	)

	return &cli.Command{
		Name:  "verify",
		Usage: "Check that cached decoding reproduces a full forward pass",
		Description: "Builds a randomly initialized decoder LM, runs a random sequence once in full " +
			"and once in cached chunks, and reports the largest logit difference.",
		Flags: append(opts.flags(),
			&cli.IntFlag{
				Name:        "length",
				Aliases:     []string{"n"},
				Usage:       "sequence length",
				Value:       16,
				Destination: &length,
			},
			&cli.IntFlag{
				Name:        "chunk",
				Usage:       "tokens per cached call",
				Value:       1,
				Destination: &chunk,
			},
			&cli.IntFlag{
				Name:        "seed",
				Usage:       "seed for the random token sequence",
				Value:       1,
				Destination: &seed,
			},
			&cli.FloatFlag{
				Name:        "tolerance",
				Usage:       "maximum accepted absolute logit difference",
				Value:       1e-3,
				Destination: &tolerance,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := positive("length", length); err != nil {
				return err
			}
			if err := positive("chunk", chunk); err != nil {
				return err
			}
			cfg, err := opts.config()
			if err != nil {
				return err
			}
			if int(length) > cfg.MaxPositionEmbeddings {
				return fmt.Errorf("--length %d exceeds max_position_embeddings %d", length, cfg.MaxPositionEmbeddings)
			}

			log := logger.FromContext(ctx)
			start := time.Now()
			model := cachedbert.NewDecoderLM(cfg, opts.backend())
			log.Info("model initialized", "layers", cfg.NumHiddenLayers, "hidden", cfg.HiddenSize, "elapsed", time.Since(start))

			rng := rand.New(rand.NewSource(seed)) //nolint:gosec // reproducible test input
			tokens := make([]int32, length)
			for i := range tokens {
				tokens[i] = int32(rng.Intn(cfg.VocabSize)) //nolint:gosec // bounded by vocabulary size
			}

			diff := compareCached(model, tokens, int(chunk))
			log.Info("verification done", "tokens", length, "chunk", chunk, "elapsed", time.Since(start))

			_, _ = fmt.Fprintf(cmd.Root().Writer, "max |full - cached| = %.3g over %d positions\n", diff, length)
			if float64(diff) > tolerance {
				return fmt.Errorf("cached decoding diverges: %.3g > tolerance %.3g", diff, tolerance)
			}
			return nil
		},
	}
}

// compareCached returns the largest absolute difference between the logits of
// one full pass and of chunked cached passes over tokens.
func compareCached(model *cachedbert.DecoderLM, tokens []int32, chunk int) float32 {
	full, _ := model.Forward(tensor.MustIDs(tokens), nil, nil)

	var (
		past  cachedbert.StackCache
		worst float32
	)
	for start := 0; start < len(tokens); start += chunk {
		end := min(start+chunk, len(tokens))
		var logits *tensor.Tensor
		logits, past = model.Forward(tensor.MustIDs(tokens[start:end]), nil, past)
		worst = max(worst, logits.MaxAbsDiff(full.Narrow(1, start, end-start)))
	}
	return worst
}
