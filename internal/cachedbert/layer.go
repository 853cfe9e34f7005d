package cachedbert

import (
	"fmt"
	"math/rand"
	"strconv"

	"github.com/born-ml/cachedbert/internal/nn"
	"github.com/born-ml/cachedbert/internal/tensor"
)

// Layer is one post-norm transformer layer: attention, then the
// intermediate/output feed-forward pair, each with its own residual and
// LayerNorm.
type Layer struct {
	Attention    *Attention
	Intermediate *Intermediate
	Output       *Output
}

// NewLayer creates a layer for cfg.
func NewLayer(cfg Config, backend tensor.Backend) *Layer {
	return &Layer{
		Attention:    NewAttention(cfg, backend),
		Intermediate: NewIntermediate(cfg, backend),
		Output:       NewOutput(cfg, backend),
	}
}

// Forward runs the layer over hidden [b, s, H] and returns the new hidden
// state together with the extended cache.
func (l *Layer) Forward(hidden *tensor.Tensor, past LayerCache, mask *tensor.Tensor) (*tensor.Tensor, LayerCache) {
	attn, present := l.Attention.Forward(hidden, past, mask)
	return l.Output.Forward(l.Intermediate.Forward(attn), attn), present
}

// NamedParameters returns attention, intermediate and output parameters.
func (l *Layer) NamedParameters() nn.Params {
	p := nn.Params{}
	p.Merge("attention", l.Attention.NamedParameters())
	p.Merge("intermediate", l.Intermediate.NamedParameters())
	p.Merge("output", l.Output.NamedParameters())
	return p
}

func (l *Layer) train(rng *rand.Rand) {
	l.Attention.train(rng)
	l.Output.train(rng)
}

// Stack applies NumHiddenLayers layers in order, threading each layer's cache.
type Stack struct {
	Layers []*Layer
}

// NewStack creates cfg.NumHiddenLayers layers.
func NewStack(cfg Config, backend tensor.Backend) *Stack {
	layers := make([]*Layer, cfg.NumHiddenLayers)
	for i := range layers {
		layers[i] = NewLayer(cfg, backend)
	}
	return &Stack{Layers: layers}
}

// Forward runs every layer. A nil past is a cold start; otherwise past must
// hold exactly one entry per layer. The returned cache has one entry per
// layer, each past+s positions long.
func (s *Stack) Forward(hidden *tensor.Tensor, mask *tensor.Tensor, past StackCache) (*tensor.Tensor, StackCache) {
	if len(past) == 0 {
		past = NewStackCache(len(s.Layers))
	}
	if len(past) != len(s.Layers) {
		panic(fmt.Sprintf("Stack.Forward: expected %d layer caches, got %d", len(s.Layers), len(past)))
	}

	present := make(StackCache, len(s.Layers))
	for i, layer := range s.Layers {
		hidden, present[i] = layer.Forward(hidden, past[i], mask)
	}
	return hidden, present
}

// NamedParameters returns "layer.{i}.*" for every layer.
func (s *Stack) NamedParameters() nn.Params {
	p := nn.Params{}
	for i, layer := range s.Layers {
		p.Merge(nn.Join("layer", strconv.Itoa(i)), layer.NamedParameters())
	}
	return p
}

func (s *Stack) train(rng *rand.Rand) {
	for _, layer := range s.Layers {
		layer.train(rng)
	}
}
