package nn

import (
	"math"

	"github.com/born-ml/cachedbert/internal/tensor"
)

// GELU applies the exact Gaussian Error Linear Unit element-wise:
//
//	GELU(x) = x * 0.5 * (1 + erf(x / sqrt(2)))
//
// The error function is evaluated exactly (math.Erf), not through the tanh
// approximation, so outputs match reference BERT/GPT-2 checkpoints.
//
// Example:
//
//	hidden = nn.GELU(dense.Forward(hidden))
func GELU(x *tensor.Tensor) *tensor.Tensor {
	return x.Map(gelu)
}

func gelu(x float32) float32 {
	v := float64(x)
	return float32(v * 0.5 * (1.0 + math.Erf(v*0.707106781186547461715)))
}
