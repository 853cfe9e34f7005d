package cachedbert

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/born-ml/cachedbert/internal/nn"
	"github.com/born-ml/cachedbert/internal/tensor"
)

// SelfAttention is multi-head scaled dot-product attention that extends a
// per-layer key/value cache.
//
// Architecture:
//
//	Q, K, V = query(x), key(x), value(x)        // [b, s, H] each
//	split heads                                 // [b, heads, s, head_dim]
//	K, V = cat(past.K, K), cat(past.V, V)       // along the sequence axis
//	scores = Q·Kᵀ / sqrt(num_heads)             // [b, heads, s, past+s]
//	scores = scores*m - 1e4*(1-m)
//	probs = dropout(softmax(scores))
//	context = merge heads(probs·V)              // [b, s, H]
//
// Scores are divided by sqrt(num_heads), not sqrt(head_dim). Outputs of the
// pretrained checkpoints depend on it.
type SelfAttention struct {
	Query   *nn.Linear
	Key     *nn.Linear
	Value   *nn.Linear
	Dropout *nn.Dropout

	numHeads int
	headDim  int
	scale    float32
}

// NewSelfAttention creates the Q/K/V projections for cfg.
func NewSelfAttention(cfg Config, backend tensor.Backend) *SelfAttention {
	h := cfg.HiddenSize
	return &SelfAttention{
		Query:    nn.NewLinear(h, h, backend),
		Key:      nn.NewLinear(h, h, backend),
		Value:    nn.NewLinear(h, h, backend),
		Dropout:  nn.NewDropout(cfg.AttentionDropoutProb),
		numHeads: cfg.NumAttentionHeads,
		headDim:  cfg.HeadDim(),
		scale:    float32(math.Sqrt(float64(cfg.NumAttentionHeads))),
	}
}

// Forward attends the new positions in hidden [b, s, H] to the cached and new
// keys. mask is the pairwise mask [b or 1, 1, L, L] with L >= past+s; rows
// [past, past+s) and columns [0, past+s) are used.
//
// Returns the context [b, s, H] and the extended cache (past+s positions).
func (a *SelfAttention) Forward(hidden *tensor.Tensor, past LayerCache, mask *tensor.Tensor) (*tensor.Tensor, LayerCache) {
	if hidden.Rank() != 3 {
		panic(fmt.Sprintf("SelfAttention.Forward: expected [batch, seq, hidden], got %v", hidden.Shape()))
	}
	b, s := hidden.Dim(0), hidden.Dim(1)
	if !past.IsEmpty() && past.Keys().Dim(0) != b {
		panic(fmt.Sprintf("SelfAttention.Forward: cache batch %d does not match input batch %d", past.Keys().Dim(0), b))
	}

	q := a.splitHeads(a.Query.Forward(hidden))
	k := a.splitHeads(a.Key.Forward(hidden))
	v := a.splitHeads(a.Value.Forward(hidden))

	present := past.Append(k, v)
	keys, values := present.Keys(), present.Values()

	scores := q.MatMulT(keys) // [b, heads, s, past+s]
	scores = scores.Scale(1 / a.scale)
	scores = applyMask(scores, sliceMask(mask, s, keys.Dim(2)))

	probs := a.Dropout.Forward(scores.Softmax(-1))
	context := probs.MatMul(values) // [b, heads, s, head_dim]

	return a.mergeHeads(context), present
}

// splitHeads reshapes [b, s, H] to [b, heads, s, head_dim].
func (a *SelfAttention) splitHeads(x *tensor.Tensor) *tensor.Tensor {
	return x.Reshape(x.Dim(0), x.Dim(1), a.numHeads, a.headDim).Transpose(0, 2, 1, 3)
}

// mergeHeads reshapes [b, heads, s, head_dim] to [b, s, H].
func (a *SelfAttention) mergeHeads(x *tensor.Tensor) *tensor.Tensor {
	b, s := x.Dim(0), x.Dim(2)
	return x.Transpose(0, 2, 1, 3).Reshape(b, s, a.numHeads*a.headDim)
}

// NamedParameters returns query, key and value projections.
func (a *SelfAttention) NamedParameters() nn.Params {
	p := nn.Params{}
	p.Merge("query", a.Query.NamedParameters())
	p.Merge("key", a.Key.NamedParameters())
	p.Merge("value", a.Value.NamedParameters())
	return p
}

func (a *SelfAttention) train(rng *rand.Rand) {
	a.Dropout.Train(rng)
}

// SelfOutput projects the attention context and adds the residual:
// LayerNorm(dropout(dense(context)) + input).
type SelfOutput struct {
	Dense     *nn.Linear
	LayerNorm *nn.LayerNorm
	Dropout   *nn.Dropout
}

// NewSelfOutput creates the attention output block.
func NewSelfOutput(cfg Config, backend tensor.Backend) *SelfOutput {
	return &SelfOutput{
		Dense:     nn.NewLinear(cfg.HiddenSize, cfg.HiddenSize, backend),
		LayerNorm: nn.NewLayerNorm(cfg.HiddenSize, cfg.LayerNormEps, backend),
		Dropout:   nn.NewDropout(cfg.HiddenDropoutProb),
	}
}

// Forward computes LayerNorm(dropout(dense(context)) + input).
func (o *SelfOutput) Forward(context, input *tensor.Tensor) *tensor.Tensor {
	return o.LayerNorm.Forward(o.Dropout.Forward(o.Dense.Forward(context)).Add(input))
}

// NamedParameters returns dense and LayerNorm parameters.
func (o *SelfOutput) NamedParameters() nn.Params {
	p := nn.Params{}
	p.Merge("dense", o.Dense.NamedParameters())
	p.Merge("LayerNorm", o.LayerNorm.NamedParameters())
	return p
}

func (o *SelfOutput) train(rng *rand.Rand) {
	o.Dropout.Train(rng)
}

// Attention combines SelfAttention with its output block.
type Attention struct {
	Self   *SelfAttention
	Output *SelfOutput
}

// NewAttention creates the attention sublayer.
func NewAttention(cfg Config, backend tensor.Backend) *Attention {
	return &Attention{
		Self:   NewSelfAttention(cfg, backend),
		Output: NewSelfOutput(cfg, backend),
	}
}

// Forward returns the attention sublayer output [b, s, H] and the extended
// cache.
func (a *Attention) Forward(input *tensor.Tensor, past LayerCache, mask *tensor.Tensor) (*tensor.Tensor, LayerCache) {
	context, present := a.Self.Forward(input, past, mask)
	return a.Output.Forward(context, input), present
}

// NamedParameters returns "self.*" and "output.*".
func (a *Attention) NamedParameters() nn.Params {
	p := nn.Params{}
	p.Merge("self", a.Self.NamedParameters())
	p.Merge("output", a.Output.NamedParameters())
	return p
}

func (a *Attention) train(rng *rand.Rand) {
	a.Self.train(rng)
	a.Output.train(rng)
}
