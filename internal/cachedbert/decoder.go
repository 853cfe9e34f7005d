package cachedbert

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/born-ml/cachedbert/internal/nn"
	"github.com/born-ml/cachedbert/internal/tensor"
)

// ForwardOption configures a single Decoder or DecoderLM forward call.
type ForwardOption func(*forwardOptions)

type forwardOptions struct {
	pastLength    int
	hasPastLength bool
}

// WithPastLength sets the absolute position of the first new token
// explicitly instead of inferring it from the cache.
func WithPastLength(n int) ForwardOption {
	return func(o *forwardOptions) {
		o.pastLength = n
		o.hasPastLength = true
	}
}

// Decoder is the causal (GPT-style) stack: position-only embeddings followed
// by NumHiddenLayers cached layers. It returns hidden states; DecoderLM adds
// the vocabulary projection.
//
// Example:
//
//	dec := cachedbert.NewDecoder(cfg, cpu.New())
//	hidden, past := dec.Forward(ids, nil, nil)           // cold, full prompt
//	hidden, past = dec.Forward(next, nil, past)          // one more token
type Decoder struct {
	Embeddings *Embeddings
	Stack      *Stack

	config  Config
	backend tensor.Backend
}

// NewDecoder builds a randomly initialized decoder. Panics if cfg is invalid.
func NewDecoder(cfg Config, backend tensor.Backend) *Decoder {
	cfg.mustValidate("NewDecoder")
	return &Decoder{
		Embeddings: NewEmbeddings(cfg, false, backend),
		Stack:      NewStack(cfg, backend),
		config:     cfg,
		backend:    backend,
	}
}

// Forward runs ids [batch, seq] after the positions held in past.
//
// mask is [batch, past+seq] (wider masks are accepted, the leading
// past+seq columns are used); nil means every position is valid. It is
// intersected with the causal mask. A nil or empty past is a cold start.
// The past length defaults to past.PastLength() and can be overridden with
// WithPastLength.
//
// Returns hidden states [batch, seq, hidden] and the extended cache.
func (d *Decoder) Forward(ids *tensor.IDs, mask *tensor.Tensor, past StackCache, opts ...ForwardOption) (*tensor.Tensor, StackCache) {
	var o forwardOptions
	for _, opt := range opts {
		opt(&o)
	}

	if len(past) == 0 {
		past = NewStackCache(d.config.NumHiddenLayers)
	}
	past.Validate(d.config.NumHiddenLayers)

	pastLength := past.PastLength()
	if o.hasPastLength {
		pastLength = o.pastLength
	}

	m := prepareMask("Decoder.Forward", mask, ids, past.PastLength(), d.backend)
	hidden := d.Embeddings.Forward(ids, pastLength, nil)
	return d.Stack.Forward(hidden, BuildMask(m, true), past)
}

// Config returns the model configuration.
func (d *Decoder) Config() Config {
	return d.config
}

// NamedParameters returns "embeddings.*" and "encoder.layer.{i}.*".
func (d *Decoder) NamedParameters() nn.Params {
	p := nn.Params{}
	p.Merge("embeddings", d.Embeddings.NamedParameters())
	p.Merge("encoder", d.Stack.NamedParameters())
	return p
}

// StateDict returns every parameter tensor under its checkpoint name. The
// tensors are live: writing to them changes the model.
func (d *Decoder) StateDict() StateDict {
	return exportState(d.NamedParameters())
}

// LoadStateDict copies weights into the model. See loadParams for the
// validation rules.
func (d *Decoder) LoadStateDict(weights map[string]*tensor.Tensor) error {
	return loadParams(d.NamedParameters(), nil, weights)
}

// LoadPretrained loads weights from loader.
func (d *Decoder) LoadPretrained(ctx context.Context, loader WeightLoader) error {
	return loadPretrained(ctx, "decoder", d, loader, d.LoadStateDict)
}

// Train enables dropout driven by rng; Eval disables it. Models start in
// evaluation mode.
func (d *Decoder) Train(rng *rand.Rand) {
	d.Embeddings.train(rng)
	d.Stack.train(rng)
}

// Eval disables dropout.
func (d *Decoder) Eval() {
	d.Train(nil)
}

// DecoderLM is a Decoder with an output projection onto the vocabulary whose
// weight is the word embedding table itself.
//
// The tie is a shared *nn.Parameter: in-place updates (LoadStateDict,
// optimizer steps on the tensor) are seen by both sides. Replacing the
// embedding parameter wholesale breaks the tie until Retie is called;
// SetWordEmbeddings does both.
type DecoderLM struct {
	Transformer *Decoder
	Projection  *nn.TiedLinear
}

// NewDecoderLM builds a randomly initialized decoder with a tied head.
func NewDecoderLM(cfg Config, backend tensor.Backend) *DecoderLM {
	transformer := NewDecoder(cfg, backend)
	return &DecoderLM{
		Transformer: transformer,
		Projection:  nn.NewTiedLinear(transformer.Embeddings.Word.Weight),
	}
}

// Forward returns logits [batch, seq, vocab] and the extended cache. The
// arguments are those of Decoder.Forward.
func (m *DecoderLM) Forward(ids *tensor.IDs, mask *tensor.Tensor, past StackCache, opts ...ForwardOption) (*tensor.Tensor, StackCache) {
	hidden, present := m.Transformer.Forward(ids, mask, past, opts...)
	return m.Projection.Forward(hidden), present
}

// Retie points the projection at the current word embedding parameter.
func (m *DecoderLM) Retie() {
	m.Projection.Tie(m.Transformer.Embeddings.Word.Weight)
}

// Tied reports whether the projection and the word embeddings share storage.
func (m *DecoderLM) Tied() bool {
	return m.Projection.Weight() == m.Transformer.Embeddings.Word.Weight
}

// SetWordEmbeddings replaces the word embedding table with t and re-ties
// the projection.
func (m *DecoderLM) SetWordEmbeddings(t *tensor.Tensor) error {
	if err := m.Transformer.Embeddings.Word.SetWeight(t); err != nil {
		return err
	}
	m.Retie()
	return nil
}

// Config returns the model configuration.
func (m *DecoderLM) Config() Config {
	return m.Transformer.config
}

// NamedParameters returns "transformer.*" and "projection.weight". The
// projection entry is the same *nn.Parameter as
// "transformer.embeddings.word_embeddings.weight".
func (m *DecoderLM) NamedParameters() nn.Params {
	p := nn.Params{}
	p.Merge("transformer", m.Transformer.NamedParameters())
	p.Merge("projection", m.Projection.NamedParameters())
	return p
}

// StateDict returns every parameter tensor under its checkpoint name,
// including the tied "projection.weight".
func (m *DecoderLM) StateDict() StateDict {
	return exportState(m.NamedParameters())
}

// LoadStateDict copies weights into the model and re-ties the projection.
// "projection.weight" may be omitted; when present it must have the word
// embedding shape and its values are ignored in favor of the embedding.
func (m *DecoderLM) LoadStateDict(weights map[string]*tensor.Tensor) error {
	params := nn.Params{}.Merge("transformer", m.Transformer.NamedParameters())
	aliases := nn.Params{}.Merge("projection", m.Projection.NamedParameters())
	if err := loadParams(params, aliases, weights); err != nil {
		return err
	}
	m.Retie()
	return nil
}

// LoadPretrained loads weights from loader and re-ties the projection.
func (m *DecoderLM) LoadPretrained(ctx context.Context, loader WeightLoader) error {
	return loadPretrained(ctx, "decoder_lm", m, loader, m.LoadStateDict)
}

// Train enables dropout driven by rng.
func (m *DecoderLM) Train(rng *rand.Rand) {
	m.Transformer.Train(rng)
}

// Eval disables dropout.
func (m *DecoderLM) Eval() {
	m.Transformer.Eval()
}

// prepareMask validates a [batch, L] mask against ids and the cached length,
// filling in an all-ones mask when none is given.
func prepareMask(op string, mask *tensor.Tensor, ids *tensor.IDs, cached int, backend tensor.Backend) *tensor.Tensor {
	total := cached + ids.SeqLen()
	if mask == nil {
		return OnesMask(ids.Batch(), total, backend)
	}
	if mask.Rank() != 2 || mask.Dim(0) != ids.Batch() {
		panic(fmt.Sprintf("%s: expected mask [%d, >=%d], got %v", op, ids.Batch(), total, mask.Shape()))
	}
	if mask.Dim(1) < total {
		panic(fmt.Sprintf("%s: mask covers %d positions but past+seq is %d", op, mask.Dim(1), total))
	}
	return mask
}
