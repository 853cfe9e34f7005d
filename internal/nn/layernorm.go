package nn

import (
	"math"

	"github.com/born-ml/cachedbert/internal/tensor"
)

// LayerNorm applies Layer Normalization over the last dimension.
//
// Formula: Y = gamma * (X - mean(X)) / sqrt(var(X) + eps) + beta
//
// Where:
//   - gamma is the learnable scale parameter [d_model] ("weight")
//   - beta is the learnable shift parameter [d_model] ("bias")
//   - mean and the biased variance are computed along the last dimension
//
// Statistics are accumulated in float64 and the result is stored as float32.
//
// Example:
//
//	layernorm := nn.NewLayerNorm(768, 1e-5, backend)
//	output := layernorm.Forward(hiddenStates) // [..., 768] -> [..., 768]
type LayerNorm struct {
	Gamma   *Parameter // learnable scale [d_model]
	Beta    *Parameter // learnable shift [d_model]
	Epsilon float32    // numerical stability constant
}

// NewLayerNorm creates a new LayerNorm layer.
//
// The gamma parameter is initialized to ones, beta to zeros.
func NewLayerNorm(normalizedShape int, epsilon float32, backend tensor.Backend) *LayerNorm {
	return &LayerNorm{
		Gamma:   NewParameter("weight", Ones(tensor.Shape{normalizedShape}, backend)),
		Beta:    NewParameter("bias", Zeros(tensor.Shape{normalizedShape}, backend)),
		Epsilon: epsilon,
	}
}

// Forward applies LayerNorm to the input tensor.
//
// Shapes:
//   - input: [..., d_model]
//   - output: [..., d_model]
func (l *LayerNorm) Forward(x *tensor.Tensor) *tensor.Tensor {
	gamma := l.Gamma.Tensor().Data()
	beta := l.Beta.Tensor().Data()
	d := len(gamma)
	if x.Dim(-1) != d {
		panic("LayerNorm.Forward: last dimension does not match normalized shape")
	}

	src := x.Data()
	out := make([]float32, len(src))
	for r := 0; r < len(src)/d; r++ {
		row := src[r*d : (r+1)*d]

		var mean float64
		for _, v := range row {
			mean += float64(v)
		}
		mean /= float64(d)

		var variance float64
		for _, v := range row {
			c := float64(v) - mean
			variance += c * c
		}
		variance /= float64(d)

		inv := 1 / math.Sqrt(variance+float64(l.Epsilon))
		dst := out[r*d : (r+1)*d]
		for i, v := range row {
			dst[i] = float32((float64(v)-mean)*inv)*gamma[i] + beta[i]
		}
	}

	return tensor.New(out, x.Shape(), x.Backend())
}

// NamedParameters returns "weight" (gamma) and "bias" (beta).
func (l *LayerNorm) NamedParameters() Params {
	return Params{"weight": l.Gamma, "bias": l.Beta}
}
