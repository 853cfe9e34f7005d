package nn

import (
	"fmt"

	"github.com/born-ml/cachedbert/internal/tensor"
)

// Linear implements a fully connected (dense) layer over the last axis.
//
// Performs the transformation: y = x @ W.T + b
// where:
//   - x is the input tensor with shape [..., in_features]
//   - W is the weight matrix with shape [out_features, in_features]
//   - b is the bias vector with shape [out_features] (optional)
//   - y is the output tensor with shape [..., out_features]
//
// Weights are initialized from N(0, 0.02²), biases to zeros.
//
// Example:
//
//	backend := cpu.New()
//	layer := nn.NewLinear(768, 3072, backend)
//	hidden := layer.Forward(x) // [2, 16, 768] -> [2, 16, 3072]
type Linear struct {
	inFeatures int
	weight     *Parameter // [out_features, in_features]
	bias       *Parameter // [out_features] or nil
}

// NewLinear creates a new Linear layer with a bias.
func NewLinear(inFeatures, outFeatures int, backend tensor.Backend) *Linear {
	l := NewLinearNoBias(inFeatures, outFeatures, backend)
	l.bias = NewParameter("bias", Zeros(tensor.Shape{outFeatures}, backend))
	return l
}

// NewLinearNoBias creates a new Linear layer without a bias term.
func NewLinearNoBias(inFeatures, outFeatures int, backend tensor.Backend) *Linear {
	if inFeatures <= 0 || outFeatures <= 0 {
		panic(fmt.Sprintf("Linear: features must be positive, got in=%d out=%d", inFeatures, outFeatures))
	}
	weight := Normal(tensor.Shape{outFeatures, inFeatures}, InitStd, backend)
	return &Linear{
		inFeatures: inFeatures,
		weight:     NewParameter("weight", weight),
	}
}

// Forward computes the output of the linear layer.
//
// Input shape: [..., in_features]
// Output shape: [..., out_features]
func (l *Linear) Forward(input *tensor.Tensor) *tensor.Tensor {
	if input.Rank() < 2 {
		panic(fmt.Sprintf("Linear.Forward: expected at least 2D input, got shape %v", input.Shape()))
	}
	if input.Dim(-1) != l.inFeatures {
		panic(fmt.Sprintf("Linear.Forward: expected input with %d features, got %d", l.inFeatures, input.Dim(-1)))
	}

	output := input.MatMulT(l.weight.Tensor())
	if l.bias != nil {
		output = output.Add(l.bias.Tensor())
	}
	return output
}

// NamedParameters returns "weight" and, when present, "bias".
func (l *Linear) NamedParameters() Params {
	p := Params{"weight": l.weight}
	if l.bias != nil {
		p["bias"] = l.bias
	}
	return p
}

// Weight returns the weight parameter.
func (l *Linear) Weight() *Parameter {
	return l.weight
}

// Bias returns the bias parameter (nil for bias-free layers).
func (l *Linear) Bias() *Parameter {
	return l.bias
}

// TiedLinear is a bias-free projection whose weight is owned by another
// module, typically the word embedding table [vocab, hidden]. It holds the
// owner's *Parameter, so updates through either side are visible to both.
//
// Tie must be called again whenever the owner swaps its *Parameter for a new
// one (for example after loading a replacement embedding table).
type TiedLinear struct {
	weight *Parameter // [out_features, in_features], shared
}

// NewTiedLinear creates a projection sharing weight.
func NewTiedLinear(weight *Parameter) *TiedLinear {
	return &TiedLinear{weight: weight}
}

// Tie points the projection at weight.
func (t *TiedLinear) Tie(weight *Parameter) {
	t.weight = weight
}

// Weight returns the shared weight parameter.
func (t *TiedLinear) Weight() *Parameter {
	return t.weight
}

// Forward computes input @ W.T with W read from the shared parameter at call
// time.
//
// Input shape: [..., in_features]
// Output shape: [..., out_features]
func (t *TiedLinear) Forward(input *tensor.Tensor) *tensor.Tensor {
	w := t.weight.Tensor()
	if input.Dim(-1) != w.Dim(1) {
		panic(fmt.Sprintf("TiedLinear.Forward: expected input with %d features, got %d", w.Dim(1), input.Dim(-1)))
	}
	return input.MatMulT(w)
}

// NamedParameters returns the shared weight under "weight".
func (t *TiedLinear) NamedParameters() Params {
	return Params{"weight": t.weight}
}
