package generate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/born-ml/cachedbert/internal/cachedbert"
	"github.com/born-ml/cachedbert/internal/logger"
	"github.com/born-ml/cachedbert/internal/tensor"
	"github.com/born-ml/cachedbert/internal/tokenizer"
)

// Errors returned by Generate.
var (
	ErrEmptyPrompt     = errors.New("empty prompt")
	ErrPromptTooLong   = errors.New("prompt exceeds max_position_embeddings")
	ErrTokenOutOfRange = errors.New("token id outside vocabulary")
)

// Model is the decoder interface the generator drives. *cachedbert.DecoderLM
// implements it.
type Model interface {
	Forward(ids *tensor.IDs, mask *tensor.Tensor, past cachedbert.StackCache, opts ...cachedbert.ForwardOption) (*tensor.Tensor, cachedbert.StackCache)
	Config() cachedbert.Config
}

var _ Model = (*cachedbert.DecoderLM)(nil)

// StopReason tells why generation ended.
type StopReason string

// Stop reasons.
const (
	StopEOS          StopReason = "eos"
	StopToken        StopReason = "stop_token"
	StopMaxTokens    StopReason = "max_tokens"
	StopMaxPositions StopReason = "max_positions"
	StopCallback     StopReason = "callback"
)

// Config controls a single generation run.
//
//nolint:revive // generate.Config reads fine at call sites
type Config struct {
	// MaxTokens bounds the number of generated tokens.
	MaxTokens int

	// EOS ends generation when sampled. Negative disables it.
	EOS int32

	// StopTokens also end generation when sampled.
	StopTokens []int32

	// Sampling selects the decoding strategy.
	Sampling SamplingConfig
}

// DefaultConfig returns 64 tokens of default sampling with no EOS.
func DefaultConfig() Config {
	return Config{
		MaxTokens: 64,
		EOS:       -1,
		Sampling:  DefaultSamplingConfig(),
	}
}

// Step is one generated token, handed to the callback of Stream.
type Step struct {
	Index int   // 0-based index among generated tokens
	Token int32 // sampled id
}

// Result summarizes a generation run.
type Result struct {
	ID     string                // request id used in logs
	Prompt []int32               // prompt ids
	Tokens []int32               // generated ids, stop token included
	Reason StopReason            // why generation stopped
	Cache  cachedbert.StackCache // cache covering prompt and generated tokens fed back
}

// Generator samples continuations from a Model.
type Generator struct {
	model Model
}

// New creates a generator for model.
func New(model Model) *Generator {
	return &Generator{model: model}
}

// Generate samples up to cfg.MaxTokens tokens after prompt.
func (g *Generator) Generate(ctx context.Context, prompt []int32, cfg Config) (*Result, error) {
	return g.Stream(ctx, prompt, cfg, nil)
}

// Stream is Generate with a callback invoked after every sampled token.
// Returning false from fn stops generation with StopCallback.
//
// ctx is checked between steps; on cancellation the partial result is
// returned together with the context error.
func (g *Generator) Stream(ctx context.Context, prompt []int32, cfg Config, fn func(Step) bool) (*Result, error) {
	if err := g.validate(prompt, cfg); err != nil {
		return nil, err
	}

	res := &Result{
		ID:     uuid.NewString(),
		Prompt: append([]int32(nil), prompt...),
		Tokens: make([]int32, 0, cfg.MaxTokens),
	}
	log := logger.FromContext(ctx).With("request_id", res.ID)
	start := time.Now()

	maxPositions := g.model.Config().MaxPositionEmbeddings
	sampler := NewSampler(cfg.Sampling)
	history := append([]int32(nil), prompt...)

	logits, past := g.model.Forward(tensor.MustIDs(prompt), nil, nil)
	log.Debug("prefill done", "prompt_tokens", len(prompt), "elapsed", time.Since(start))

	for step := 0; ; step++ {
		if err := ctx.Err(); err != nil {
			res.Cache = past
			log.Warn("generation cancelled", "tokens", len(res.Tokens), "error", err)
			return res, fmt.Errorf("generate: %w", err)
		}

		token := sampler.Sample(lastRow(logits), history)
		res.Tokens = append(res.Tokens, token)
		history = append(history, token)

		if fn != nil && !fn(Step{Index: step, Token: token}) {
			res.Reason = StopCallback
			break
		}
		if reason, done := g.stopReason(token, len(res.Tokens), past.PastLength(), maxPositions, cfg); done {
			res.Reason = reason
			break
		}

		logits, past = g.model.Forward(tensor.MustIDs([]int32{token}), nil, past)
	}

	res.Cache = past
	log.Info("generation finished",
		"prompt_tokens", len(prompt),
		"generated_tokens", len(res.Tokens),
		"reason", res.Reason,
		"elapsed", time.Since(start))
	return res, nil
}

func (g *Generator) validate(prompt []int32, cfg Config) error {
	model := g.model.Config()
	if len(prompt) == 0 {
		return ErrEmptyPrompt
	}
	if len(prompt) > model.MaxPositionEmbeddings {
		return fmt.Errorf("%w: %d tokens, limit %d", ErrPromptTooLong, len(prompt), model.MaxPositionEmbeddings)
	}
	for i, id := range prompt {
		if id < 0 || int(id) >= model.VocabSize {
			return fmt.Errorf("%w: prompt[%d] = %d, vocabulary size %d", ErrTokenOutOfRange, i, id, model.VocabSize)
		}
	}
	if cfg.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", cfg.MaxTokens)
	}
	if err := cfg.Sampling.Validate(); err != nil {
		return fmt.Errorf("sampling: %w", err)
	}
	return nil
}

// stopReason checks the stop conditions after a token was sampled. cached is
// the number of positions already in the cache; feeding the token back needs
// one more.
func (g *Generator) stopReason(token int32, generated, cached, maxPositions int, cfg Config) (StopReason, bool) {
	if cfg.EOS >= 0 && token == cfg.EOS {
		return StopEOS, true
	}
	for _, stop := range cfg.StopTokens {
		if token == stop {
			return StopToken, true
		}
	}
	if generated >= cfg.MaxTokens {
		return StopMaxTokens, true
	}
	if cached+1 > maxPositions {
		return StopMaxPositions, true
	}
	return "", false
}

// lastRow returns the logits of the last position of the first batch row.
func lastRow(logits *tensor.Tensor) []float32 {
	seq, vocab := logits.Dim(1), logits.Dim(2)
	start := (seq - 1) * vocab
	return logits.Data()[start : start+vocab]
}

// TextGenerator couples a Generator with a tokenizer.
type TextGenerator struct {
	gen *Generator
	tok tokenizer.Tokenizer
}

// NewTextGenerator creates a text generator. The tokenizer vocabulary must
// fit inside the model vocabulary.
func NewTextGenerator(model Model, tok tokenizer.Tokenizer) (*TextGenerator, error) {
	if err := tokenizer.CheckVocab(tok, model.Config().VocabSize); err != nil {
		return nil, err
	}
	return &TextGenerator{gen: New(model), tok: tok}, nil
}

// Generate encodes prompt, samples a continuation and decodes it. A negative
// cfg.EOS is replaced by the tokenizer's end-of-text id. The returned text
// excludes the prompt and a trailing EOS.
func (t *TextGenerator) Generate(ctx context.Context, prompt string, cfg Config) (string, *Result, error) {
	ids, err := t.tok.Encode(prompt)
	if err != nil {
		return "", nil, fmt.Errorf("encode prompt: %w", err)
	}
	if cfg.EOS < 0 {
		cfg.EOS = t.tok.EosToken()
	}

	res, err := t.gen.Generate(ctx, ids, cfg)
	if res == nil {
		return "", nil, err
	}

	tokens := res.Tokens
	if res.Reason == StopEOS {
		tokens = tokens[:len(tokens)-1]
	}
	text, decErr := t.tok.Decode(tokens)
	if decErr != nil {
		return "", res, fmt.Errorf("decode output: %w", decErr)
	}
	return text, res, err
}
