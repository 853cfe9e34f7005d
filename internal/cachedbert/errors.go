package cachedbert

import (
	"errors"
	"fmt"

	"github.com/born-ml/cachedbert/internal/tensor"
)

// Sentinel errors. Use errors.Is to classify failures returned by LoadConfig,
// LoadStateDict and LoadPretrained.
var (
	ErrInvalidConfig       = errors.New("invalid config")
	ErrMissingParameter    = errors.New("missing parameter")
	ErrShapeMismatch       = errors.New("weight shape mismatch")
	ErrUnexpectedParameter = errors.New("unexpected parameter")
)

// WeightError reports a problem with a single named parameter during weight
// loading.
type WeightError struct {
	Name     string
	Expected tensor.Shape // model shape (nil for unexpected parameters)
	Actual   tensor.Shape // checkpoint shape (nil for missing parameters)
	Err      error        // one of the sentinel errors above
}

func (e *WeightError) Error() string {
	switch {
	case errors.Is(e.Err, ErrShapeMismatch):
		return fmt.Sprintf("%s: %v: expected %v, got %v", e.Name, e.Err, e.Expected, e.Actual)
	case errors.Is(e.Err, ErrMissingParameter):
		return fmt.Sprintf("%s: %v (expected shape %v)", e.Name, e.Err, e.Expected)
	default:
		return fmt.Sprintf("%s: %v", e.Name, e.Err)
	}
}

func (e *WeightError) Unwrap() error {
	return e.Err
}
