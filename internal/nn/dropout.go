package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/cachedbert/internal/tensor"
)

// Dropout zeroes elements with probability P during training and scales the
// survivors by 1/(1-P) (inverted dropout). In evaluation mode it is the
// identity.
//
// The random source is supplied by the caller through Train; seeding policy
// belongs to the caller.
type Dropout struct {
	P        float32
	training bool
	rng      *rand.Rand
}

// NewDropout creates a Dropout layer in evaluation mode.
func NewDropout(p float32) *Dropout {
	if p < 0 || p >= 1 {
		panic(fmt.Sprintf("Dropout: probability must be in [0, 1), got %v", p))
	}
	return &Dropout{P: p}
}

// Train switches to training mode with the given random source.
// A nil rng switches back to evaluation mode.
func (d *Dropout) Train(rng *rand.Rand) {
	d.rng = rng
	d.training = rng != nil
}

// Training reports whether dropout is active.
func (d *Dropout) Training() bool {
	return d.training
}

// Forward applies dropout.
func (d *Dropout) Forward(x *tensor.Tensor) *tensor.Tensor {
	if !d.training || d.P == 0 {
		return x
	}
	keep := 1 - d.P
	scale := 1 / keep
	return x.Map(func(v float32) float32 {
		if d.rng.Float32() < keep {
			return v * scale
		}
		return 0
	})
}
