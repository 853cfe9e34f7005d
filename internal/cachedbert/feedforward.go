package cachedbert

import (
	"math/rand"

	"github.com/born-ml/cachedbert/internal/nn"
	"github.com/born-ml/cachedbert/internal/tensor"
)

// Intermediate expands the hidden state: GELU(dense(x)), [.., H] -> [.., I].
type Intermediate struct {
	Dense *nn.Linear
}

// NewIntermediate creates the expansion block.
func NewIntermediate(cfg Config, backend tensor.Backend) *Intermediate {
	return &Intermediate{Dense: nn.NewLinear(cfg.HiddenSize, cfg.IntermediateSize, backend)}
}

// Forward computes GELU(dense(x)).
func (f *Intermediate) Forward(x *tensor.Tensor) *tensor.Tensor {
	return nn.GELU(f.Dense.Forward(x))
}

// NamedParameters returns "dense.*".
func (f *Intermediate) NamedParameters() nn.Params {
	return nn.Params{}.Merge("dense", f.Dense.NamedParameters())
}

// Output contracts back to the hidden size and adds the residual:
// LayerNorm(dropout(dense(x)) + input), [.., I] -> [.., H].
type Output struct {
	Dense     *nn.Linear
	LayerNorm *nn.LayerNorm
	Dropout   *nn.Dropout
}

// NewOutput creates the contraction block.
func NewOutput(cfg Config, backend tensor.Backend) *Output {
	return &Output{
		Dense:     nn.NewLinear(cfg.IntermediateSize, cfg.HiddenSize, backend),
		LayerNorm: nn.NewLayerNorm(cfg.HiddenSize, cfg.LayerNormEps, backend),
		Dropout:   nn.NewDropout(cfg.HiddenDropoutProb),
	}
}

// Forward computes LayerNorm(dropout(dense(x)) + input).
func (o *Output) Forward(x, input *tensor.Tensor) *tensor.Tensor {
	return o.LayerNorm.Forward(o.Dropout.Forward(o.Dense.Forward(x)).Add(input))
}

// NamedParameters returns dense and LayerNorm parameters.
func (o *Output) NamedParameters() nn.Params {
	p := nn.Params{}
	p.Merge("dense", o.Dense.NamedParameters())
	p.Merge("LayerNorm", o.LayerNorm.NamedParameters())
	return p
}

func (o *Output) train(rng *rand.Rand) {
	o.Dropout.Train(rng)
}
