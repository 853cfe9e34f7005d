package nn

import (
	"fmt"

	"github.com/born-ml/cachedbert/internal/tensor"
)

// Parameter represents a trainable parameter in a neural network.
//
// A *Parameter is the unit of ownership for weights: two layers that hold
// the same *Parameter see the same tensor, including after Assign replaces
// it. This is how the language-model projection shares the word embedding
// matrix.
//
// Example:
//
//	weight := nn.NewParameter("weight", weightTensor)
//	proj := nn.NewTiedLinear(weight) // same handle, no copy
type Parameter struct {
	name   string         // Parameter name (e.g., "weight", "bias")
	tensor *tensor.Tensor // The parameter tensor
}

// NewParameter creates a new trainable parameter.
func NewParameter(name string, t *tensor.Tensor) *Parameter {
	return &Parameter{
		name:   name,
		tensor: t,
	}
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter) Tensor() *tensor.Tensor {
	return p.tensor
}

// Shape returns the parameter tensor's shape.
func (p *Parameter) Shape() tensor.Shape {
	return p.tensor.Shape()
}

// Load copies src into the parameter in place.
// Returns an error naming the expected and actual shapes on mismatch.
func (p *Parameter) Load(src *tensor.Tensor) error {
	if !p.tensor.Shape().Equal(src.Shape()) {
		return fmt.Errorf("%s: expected shape %v, got %v", p.name, p.tensor.Shape(), src.Shape())
	}
	return p.tensor.CopyFrom(src)
}

// Assign replaces the parameter tensor wholesale. Every holder of this
// *Parameter observes the new tensor.
func (p *Parameter) Assign(t *tensor.Tensor) error {
	if !p.tensor.Shape().Equal(t.Shape()) {
		return fmt.Errorf("%s: expected shape %v, got %v", p.name, p.tensor.Shape(), t.Shape())
	}
	p.tensor = t
	return nil
}
