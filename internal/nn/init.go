package nn

import (
	"github.com/born-ml/cachedbert/internal/tensor"
)

// InitStd is the standard deviation of the truncated-free normal
// initialization used for every dense and embedding weight (BERT/GPT-2
// "initializer_range").
const InitStd = 0.02

// Normal creates a tensor with values drawn from N(0, std²).
//
// Parameters:
//   - shape: Shape of the tensor
//   - std: Standard deviation
//   - backend: Backend to use for tensor creation
func Normal(shape tensor.Shape, std float32, backend tensor.Backend) *tensor.Tensor {
	return tensor.Randn(shape, 0, std, nil, backend)
}

// Zeros creates a tensor filled with zeros.
//
// This is commonly used for bias initialization.
func Zeros(shape tensor.Shape, backend tensor.Backend) *tensor.Tensor {
	return tensor.Zeros(shape, backend)
}

// Ones creates a tensor filled with ones.
func Ones(shape tensor.Shape, backend tensor.Backend) *tensor.Tensor {
	return tensor.Ones(shape, backend)
}
