package cachedbert

import (
	"context"
	"fmt"
	"sort"

	"github.com/born-ml/cachedbert/internal/logger"
	"github.com/born-ml/cachedbert/internal/nn"
	"github.com/born-ml/cachedbert/internal/tensor"
)

// WeightLoader supplies pretrained weights as a flat name -> tensor mapping.
// How the mapping is produced (file format, download, cache) is up to the
// implementation.
type WeightLoader interface {
	Load(ctx context.Context) (map[string]*tensor.Tensor, error)
}

// StateDict is an in-memory set of named tensors. It implements WeightLoader.
type StateDict map[string]*tensor.Tensor

// Load returns s unchanged.
func (s StateDict) Load(context.Context) (map[string]*tensor.Tensor, error) {
	return s, nil
}

// Names returns the tensor names in sorted order.
func (s StateDict) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// exportState maps every parameter name to its live tensor.
func exportState(params nn.Params) StateDict {
	out := make(StateDict, len(params))
	for name, p := range params {
		out[name] = p.Tensor()
	}
	return out
}

// loadParams copies weights into params in place.
//
// Every parameter must be present with its exact shape. aliases lists names
// that are accepted and shape-checked but not copied, because they share a
// *Parameter with an entry of params. Any other name in weights is rejected.
// Nothing is modified unless the whole set validates.
func loadParams(params, aliases nn.Params, weights map[string]*tensor.Tensor) error {
	for _, name := range params.Names() {
		expected := params[name].Shape()
		w, ok := weights[name]
		if !ok || w == nil {
			return &WeightError{Name: name, Expected: expected, Err: ErrMissingParameter}
		}
		if !w.Shape().Equal(expected) {
			return &WeightError{Name: name, Expected: expected, Actual: w.Shape(), Err: ErrShapeMismatch}
		}
	}

	names := make([]string, 0, len(weights))
	for name := range weights {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, ok := params[name]; ok {
			continue
		}
		actual := shapeOf(weights[name])
		alias, ok := aliases[name]
		if !ok {
			return &WeightError{Name: name, Actual: actual, Err: ErrUnexpectedParameter}
		}
		if !actual.Equal(alias.Shape()) {
			return &WeightError{Name: name, Expected: alias.Shape(), Actual: actual, Err: ErrShapeMismatch}
		}
	}

	for _, name := range params.Names() {
		if err := params[name].Load(weights[name]); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func shapeOf(t *tensor.Tensor) tensor.Shape {
	if t == nil {
		return nil
	}
	return t.Shape()
}

// loadPretrained fetches weights from loader and hands them to load. The
// logged parameter count is taken from m after loading, so a tied matrix is
// counted once.
func loadPretrained(ctx context.Context, name string, m nn.Module, loader WeightLoader, load func(map[string]*tensor.Tensor) error) error {
	log := logger.FromContext(ctx).With("model", name)

	weights, err := loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("load pretrained weights: %w", err)
	}
	log.Debug("weights fetched", "tensors", len(weights))

	if err := load(weights); err != nil {
		return fmt.Errorf("load pretrained weights: %w", err)
	}

	log.Info("pretrained weights loaded", "tensors", len(weights), "parameters", nn.CountParameters(m))
	return nil
}
