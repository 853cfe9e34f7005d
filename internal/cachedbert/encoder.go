package cachedbert

import (
	"context"
	"math/rand"

	"github.com/born-ml/cachedbert/internal/nn"
	"github.com/born-ml/cachedbert/internal/tensor"
)

// Encoder is the bidirectional (BERT/RoBERTa-style) stack: word, position
// and segment embeddings followed by NumHiddenLayers cached layers, with no
// causal masking and no output head.
//
// Cached calls let a caller append positions to a previously encoded prefix.
// The new positions see the whole prefix; the prefix does not see them.
type Encoder struct {
	Embeddings *Embeddings
	Stack      *Stack

	config  Config
	backend tensor.Backend
}

// NewEncoder builds a randomly initialized encoder. Panics if cfg is invalid.
func NewEncoder(cfg Config, backend tensor.Backend) *Encoder {
	cfg.mustValidate("NewEncoder")
	return &Encoder{
		Embeddings: NewEmbeddings(cfg, true, backend),
		Stack:      NewStack(cfg, backend),
		config:     cfg,
		backend:    backend,
	}
}

// Forward encodes ids [batch, seq] after the positions held in past.
// segments has the shape of ids (nil means all zeros); mask is
// [batch, past+seq] or nil for all valid. The past length is always taken
// from the cache.
func (e *Encoder) Forward(ids *tensor.IDs, mask *tensor.Tensor, segments *tensor.IDs, past StackCache) (*tensor.Tensor, StackCache) {
	if len(past) == 0 {
		past = NewStackCache(e.config.NumHiddenLayers)
	}
	past.Validate(e.config.NumHiddenLayers)
	pastLength := past.PastLength()

	m := prepareMask("Encoder.Forward", mask, ids, pastLength, e.backend)
	hidden := e.Embeddings.Forward(ids, pastLength, segments)
	return e.Stack.Forward(hidden, BuildMask(m, false), past)
}

// Config returns the model configuration.
func (e *Encoder) Config() Config {
	return e.config
}

// NamedParameters returns "embeddings.*" and "encoder.layer.{i}.*".
func (e *Encoder) NamedParameters() nn.Params {
	p := nn.Params{}
	p.Merge("embeddings", e.Embeddings.NamedParameters())
	p.Merge("encoder", e.Stack.NamedParameters())
	return p
}

// StateDict returns every parameter tensor under its checkpoint name.
func (e *Encoder) StateDict() StateDict {
	return exportState(e.NamedParameters())
}

// LoadStateDict copies weights into the model.
func (e *Encoder) LoadStateDict(weights map[string]*tensor.Tensor) error {
	return loadParams(e.NamedParameters(), nil, weights)
}

// LoadPretrained loads weights from loader.
func (e *Encoder) LoadPretrained(ctx context.Context, loader WeightLoader) error {
	return loadPretrained(ctx, "encoder", e, loader, e.LoadStateDict)
}

// Train enables dropout driven by rng.
func (e *Encoder) Train(rng *rand.Rand) {
	e.Embeddings.train(rng)
	e.Stack.train(rng)
}

// Eval disables dropout.
func (e *Encoder) Eval() {
	e.Train(nil)
}
