// Package generate provides autoregressive decoding on top of the cached
// decoder language model.
//
// This package wraps the internal generate implementations and provides
// a clean public API for text generation tasks.
//
// Components:
//   - Sampler: Sampling strategies (greedy, top-k, top-p, temperature)
//   - Generator: Token-level decoding loop that reuses the key/value cache
//   - TextGenerator: String in, string out, through a tokenizer
//
// Example usage:
//
//	import (
//	    "github.com/born-ml/cachedbert/backend/cpu"
//	    "github.com/born-ml/cachedbert/cachedbert"
//	    "github.com/born-ml/cachedbert/generate"
//	)
//
//	model := cachedbert.NewDecoderLM(cachedbert.GPT2SmallConfig(), cpu.New())
//
//	cfg := generate.DefaultConfig()
//	cfg.MaxTokens = 20
//	cfg.Sampling = generate.SamplingConfig{
//	    Temperature:   0.7,
//	    TopP:          0.9,
//	    TopK:          40,
//	    RepeatPenalty: 1,
//	    Seed:          42,
//	}
//
//	res, err := generate.New(model).Generate(ctx, []int32{464, 3290}, cfg)
package generate

import (
	"github.com/born-ml/cachedbert/internal/generate"
	"github.com/born-ml/cachedbert/internal/tokenizer"
)

// Sampling Configuration

// SamplingConfig configures the sampling strategy for text generation.
//
// Parameters:
//   - Temperature: Controls randomness (0 = greedy, 1 = normal, >1 = more random)
//   - TopK: Limits sampling to top K tokens (0 = disabled)
//   - TopP: Nucleus sampling, limits to tokens with cumulative prob < P (1.0 = disabled)
//   - RepeatPenalty: Penalty for repeated tokens (1.0 = no penalty)
//   - Seed: Random seed for reproducibility (-1 = random)
type SamplingConfig = generate.SamplingConfig

// DefaultSamplingConfig returns sensible defaults for text generation.
//
// Defaults:
//   - Temperature: 1.0
//   - TopK: 0 (disabled)
//   - TopP: 1.0 (disabled)
//   - RepeatPenalty: 1.0 (no penalty)
//   - Seed: -1 (random)
func DefaultSamplingConfig() SamplingConfig {
	return generate.DefaultSamplingConfig()
}

// GreedyConfig returns a config that always picks the most likely token.
func GreedyConfig() SamplingConfig {
	return generate.GreedyConfig()
}

// Sampler selects the next token from logits.
type Sampler = generate.Sampler

// NewSampler creates a sampler.
func NewSampler(config SamplingConfig) *Sampler {
	return generate.NewSampler(config)
}

// Generation

// Model is the decoder interface the generator drives.
type Model = generate.Model

// Config controls a generation run.
type Config = generate.Config

// DefaultConfig returns 64 new tokens with default sampling and no EOS.
func DefaultConfig() Config {
	return generate.DefaultConfig()
}

// StopReason explains why generation ended.
type StopReason = generate.StopReason

// Stop reasons.
const (
	StopEOS          = generate.StopEOS
	StopToken        = generate.StopToken
	StopMaxTokens    = generate.StopMaxTokens
	StopMaxPositions = generate.StopMaxPositions
	StopCallback     = generate.StopCallback
)

// Step is a single generated token passed to a Stream callback.
type Step = generate.Step

// Result is the outcome of a generation run.
type Result = generate.Result

// Generator runs the decoding loop.
type Generator = generate.Generator

// New creates a generator for model.
func New(model Model) *Generator {
	return generate.New(model)
}

// TextGenerator decodes text through a tokenizer.
type TextGenerator = generate.TextGenerator

// NewTextGenerator pairs a model with a tokenizer. Fails if the tokenizer can
// emit ids outside the model vocabulary.
func NewTextGenerator(model Model, tok tokenizer.Tokenizer) (*TextGenerator, error) {
	return generate.NewTextGenerator(model, tok)
}

// Errors returned for invalid prompts.
var (
	ErrEmptyPrompt     = generate.ErrEmptyPrompt
	ErrPromptTooLong   = generate.ErrPromptTooLong
	ErrTokenOutOfRange = generate.ErrTokenOutOfRange
)
