// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cachedbert provides BERT/GPT-2 style transformer stacks with an
// incremental key/value cache.
//
// Models:
//   - Decoder: causal stack returning hidden states and the updated cache
//   - DecoderLM: Decoder plus a projection tied to the word embeddings
//   - Encoder: bidirectional stack with segment embeddings
//
// Every Forward takes the previous StackCache (nil when starting cold) and
// returns the cache extended by the new positions. Feeding a sequence in one
// call or in chunks produces the same outputs.
//
// Example:
//
//	backend := cpu.New()
//	model := cachedbert.NewDecoderLM(cachedbert.GPT2SmallConfig(), backend)
//
//	logits, past := model.Forward(tensor.MustIDs([]int32{464, 3290}), nil, nil)
//	next := tensor.MustIDs([]int32{318})
//	logits, past = model.Forward(next, nil, past)
package cachedbert

import (
	"github.com/born-ml/cachedbert/internal/cachedbert"
	"github.com/born-ml/cachedbert/tensor"
)

// Config describes the shape of a transformer stack.
type Config = cachedbert.Config

// Format identifies a config file encoding.
type Format = cachedbert.Format

// Config encodings.
const (
	FormatYAML = cachedbert.FormatYAML
	FormatJSON = cachedbert.FormatJSON
)

// LayerCache holds one layer's keys and values ([batch, heads, len, head_dim]).
// The zero value is an empty cache.
type LayerCache = cachedbert.LayerCache

// StackCache holds one LayerCache per layer.
type StackCache = cachedbert.StackCache

// Decoder is the causal transformer stack.
type Decoder = cachedbert.Decoder

// DecoderLM is a Decoder with a tied language-model projection.
type DecoderLM = cachedbert.DecoderLM

// Encoder is the bidirectional transformer stack.
type Encoder = cachedbert.Encoder

// ForwardOption adjusts a decoder forward pass.
type ForwardOption = cachedbert.ForwardOption

// WeightLoader supplies pretrained weights keyed by parameter name.
type WeightLoader = cachedbert.WeightLoader

// StateDict is an in-memory WeightLoader.
type StateDict = cachedbert.StateDict

// WeightError reports a problem with one named parameter during loading.
type WeightError = cachedbert.WeightError

// Sentinel errors, matched with errors.Is.
var (
	ErrInvalidConfig       = cachedbert.ErrInvalidConfig
	ErrMissingParameter    = cachedbert.ErrMissingParameter
	ErrShapeMismatch       = cachedbert.ErrShapeMismatch
	ErrUnexpectedParameter = cachedbert.ErrUnexpectedParameter
)

// NewDecoder creates a randomly initialized decoder. Panics on an invalid config.
func NewDecoder(cfg Config, backend tensor.Backend) *Decoder {
	return cachedbert.NewDecoder(cfg, backend)
}

// NewDecoderLM creates a randomly initialized decoder with a tied projection.
func NewDecoderLM(cfg Config, backend tensor.Backend) *DecoderLM {
	return cachedbert.NewDecoderLM(cfg, backend)
}

// NewEncoder creates a randomly initialized encoder.
func NewEncoder(cfg Config, backend tensor.Backend) *Encoder {
	return cachedbert.NewEncoder(cfg, backend)
}

// NewStackCache returns a cold cache for numLayers layers.
func NewStackCache(numLayers int) StackCache {
	return cachedbert.NewStackCache(numLayers)
}

// NewLayerCache wraps existing keys and values.
func NewLayerCache(keys, values *tensor.Tensor) LayerCache {
	return cachedbert.NewLayerCache(keys, values)
}

// WithPastLength overrides the number of positions already processed.
func WithPastLength(n int) ForwardOption {
	return cachedbert.WithPastLength(n)
}

// MaskFromIDs builds a [batch, seq] attention mask that is 0 where ids equal pad.
func MaskFromIDs(ids *tensor.IDs, pad int32, backend tensor.Backend) *tensor.Tensor {
	return cachedbert.MaskFromIDs(ids, pad, backend)
}

// OnesMask returns an all-ones [batch, length] attention mask.
func OnesMask(batch, length int, backend tensor.Backend) *tensor.Tensor {
	return cachedbert.OnesMask(batch, length, backend)
}

// GPT2SmallConfig returns the 12-layer, 768-wide GPT-2 configuration.
func GPT2SmallConfig() Config {
	return cachedbert.GPT2SmallConfig()
}

// GPT2MediumConfig returns the 24-layer, 1024-wide GPT-2 configuration.
func GPT2MediumConfig() Config {
	return cachedbert.GPT2MediumConfig()
}

// GPT2DistillConfig returns the 6-layer distilled GPT-2 configuration.
func GPT2DistillConfig() Config {
	return cachedbert.GPT2DistillConfig()
}

// GPT2LargeConfig returns the 36-layer, 1280-wide GPT-2 configuration.
func GPT2LargeConfig() Config {
	return cachedbert.GPT2LargeConfig()
}

// GPT2XLConfig returns the 48-layer, 1600-wide GPT-2 configuration.
func GPT2XLConfig() Config {
	return cachedbert.GPT2XLConfig()
}

// RobertaBaseConfig returns the RoBERTa base encoder configuration.
func RobertaBaseConfig() Config {
	return cachedbert.RobertaBaseConfig()
}

// RobertaLargeConfig returns the RoBERTa large encoder configuration.
func RobertaLargeConfig() Config {
	return cachedbert.RobertaLargeConfig()
}

// Preset returns a named configuration; see PresetNames.
func Preset(name string) (Config, error) {
	return cachedbert.Preset(name)
}

// PresetNames lists the built-in configurations.
func PresetNames() []string {
	return cachedbert.PresetNames()
}

// LoadConfig reads a YAML or JSON config file, chosen by extension.
func LoadConfig(path string) (Config, error) {
	return cachedbert.LoadConfig(path)
}

// ParseConfig decodes and validates a config.
func ParseConfig(data []byte, format Format) (Config, error) {
	return cachedbert.ParseConfig(data, format)
}

// EncodeConfig serializes a config.
func EncodeConfig(cfg Config, format Format) ([]byte, error) {
	return cachedbert.EncodeConfig(cfg, format)
}
