package cachedbert

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/cachedbert/internal/backend/cpu"
	"github.com/born-ml/cachedbert/internal/nn"
	"github.com/born-ml/cachedbert/internal/tensor"
)

const tolerance = 1e-4

func tinyConfig() Config {
	return Config{
		VocabSize:             50,
		HiddenSize:            16,
		NumHiddenLayers:       2,
		NumAttentionHeads:     4,
		IntermediateSize:      32,
		MaxPositionEmbeddings: 32,
		TypeVocabSize:         2,
		HiddenDropoutProb:     0.1,
		AttentionDropoutProb:  0.1,
		LayerNormEps:          1e-5,
	}
}

// column returns position t of a [b, s, d] tensor as [b, 1, d].
func column(x *tensor.Tensor, t int) *tensor.Tensor {
	return x.Narrow(1, t, 1)
}

func TestDecoderLM_Shapes(t *testing.T) {
	cfg := tinyConfig()
	model := NewDecoderLM(cfg, cpu.New())

	ids := tensor.MustIDs([]int32{1, 2, 3, 4, 5}, []int32{6, 7, 8, 9, 10})
	logits, past := model.Forward(ids, nil, nil)

	assert.Equal(t, tensor.Shape{2, 5, cfg.VocabSize}, logits.Shape())
	require.Len(t, past, cfg.NumHiddenLayers)
	for _, c := range past {
		assert.Equal(t, tensor.Shape{2, cfg.NumAttentionHeads, 5, cfg.HeadDim()}, c.Keys().Shape())
		assert.Equal(t, tensor.Shape{2, cfg.NumAttentionHeads, 5, cfg.HeadDim()}, c.Values().Shape())
	}
}

func TestDecoderLM_CacheEquivalence(t *testing.T) {
	model := NewDecoderLM(tinyConfig(), cpu.New())
	tokens := []int32{3, 14, 15, 9, 26, 5, 35}

	full, _ := model.Forward(tensor.MustIDs(tokens), nil, nil)

	var past StackCache
	for i, tok := range tokens {
		var step *tensor.Tensor
		step, past = model.Forward(tensor.MustIDs([]int32{tok}), nil, past)
		assert.LessOrEqual(t, step.MaxAbsDiff(column(full, i)), float32(tolerance), "position %d", i)
	}
	assert.Equal(t, len(tokens), past.PastLength())
}

func TestDecoderLM_CacheEquivalenceChunked(t *testing.T) {
	model := NewDecoderLM(tinyConfig(), cpu.New())
	tokens := []int32{3, 14, 15, 9, 26, 5}

	full, _ := model.Forward(tensor.MustIDs(tokens), nil, nil)

	prefix, past := model.Forward(tensor.MustIDs(tokens[:4]), nil, nil)
	suffix, _ := model.Forward(tensor.MustIDs(tokens[4:]), nil, past)

	assert.LessOrEqual(t, prefix.MaxAbsDiff(full.Narrow(1, 0, 4)), float32(tolerance))
	assert.LessOrEqual(t, suffix.MaxAbsDiff(full.Narrow(1, 4, 2)), float32(tolerance))
}

func TestDecoderLM_Causality(t *testing.T) {
	model := NewDecoderLM(tinyConfig(), cpu.New())

	a, _ := model.Forward(tensor.MustIDs([]int32{1, 2, 3, 4, 5}), nil, nil)
	b, _ := model.Forward(tensor.MustIDs([]int32{1, 2, 3, 40, 41}), nil, nil)

	assert.LessOrEqual(t, a.Narrow(1, 0, 3).MaxAbsDiff(b.Narrow(1, 0, 3)), float32(1e-6))
	assert.Greater(t, column(a, 3).MaxAbsDiff(column(b, 3)), float32(0))
}

func TestDecoderLM_CausalityCached(t *testing.T) {
	model := NewDecoderLM(tinyConfig(), cpu.New())
	base := []int32{1, 2, 3, 4, 5}

	decode := func(tokens []int32) ([]*tensor.Tensor, StackCache) {
		var past StackCache
		steps := make([]*tensor.Tensor, len(tokens))
		for i, tok := range tokens {
			steps[i], past = model.Forward(tensor.MustIDs([]int32{tok}), nil, past)
		}
		return steps, past
	}
	want, _ := decode(base)

	for j := 1; j < len(base); j++ {
		perturbed := append([]int32(nil), base...)
		perturbed[j] = 40
		got, past := decode(perturbed)

		for i := 0; i < j; i++ {
			assert.Equal(t, want[i].Data(), got[i].Data(), "perturbing step %d changed step %d", j, i)
		}
		assert.Greater(t, want[j].MaxAbsDiff(got[j]), float32(0), "step %d", j)

		// Cached entries for earlier positions are untouched as well.
		_, prefix := model.Forward(tensor.MustIDs(base[:j]), nil, nil)
		for l, c := range past.Truncate(j) {
			assert.LessOrEqual(t, c.Keys().MaxAbsDiff(prefix[l].Keys()), float32(tolerance), "layer %d keys", l)
			assert.LessOrEqual(t, c.Values().MaxAbsDiff(prefix[l].Values()), float32(tolerance), "layer %d values", l)
		}
	}
}

func TestDecoderLM_IncrementalGrowth(t *testing.T) {
	cfg := tinyConfig()
	model := NewDecoderLM(cfg, cpu.New())

	var past StackCache
	for step, tok := range []int32{5, 9, 2} {
		assert.Equal(t, step, past.PastLength(), "inferred past length before step %d", step+1)
		_, past = model.Forward(tensor.MustIDs([]int32{tok}), nil, past)
	}

	require.Len(t, past, cfg.NumHiddenLayers)
	for i, c := range past {
		assert.Equal(t, 3, c.Len(), "layer %d", i)
	}
}

func TestDecoderLM_PaddingMask(t *testing.T) {
	model := NewDecoderLM(tinyConfig(), cpu.New())
	backend := cpu.New()

	plain, _ := model.Forward(tensor.MustIDs([]int32{5, 9, 2}), nil, nil)

	ids := tensor.MustIDs([]int32{5, 9, 2, 0, 0}, []int32{5, 9, 2, 7, 8})
	mask := tensor.New([]float32{1, 1, 1, 0, 0, 1, 1, 1, 1, 1}, tensor.Shape{2, 5}, backend)
	padded, _ := model.Forward(ids, mask, nil)

	for row := 0; row < 2; row++ {
		got := padded.Narrow(0, row, 1).Narrow(1, 0, 3)
		assert.LessOrEqual(t, got.MaxAbsDiff(plain), float32(tolerance), "row %d", row)
	}
}

func TestDecoderLM_ExplicitPastLength(t *testing.T) {
	model := NewDecoderLM(tinyConfig(), cpu.New())
	tokens := tensor.MustIDs([]int32{4, 8})

	_, past := model.Forward(tensor.MustIDs([]int32{1, 2, 3}), nil, nil)
	inferred, _ := model.Forward(tokens, nil, past)
	explicit, _ := model.Forward(tokens, nil, past, WithPastLength(3))
	shifted, _ := model.Forward(tokens, nil, past, WithPastLength(10))

	assert.Equal(t, inferred.Data(), explicit.Data())
	assert.Greater(t, inferred.MaxAbsDiff(shifted), float32(0))
}

func TestDecoderLM_Preconditions(t *testing.T) {
	cfg := tinyConfig()
	model := NewDecoderLM(cfg, cpu.New())
	backend := cpu.New()
	_, past := model.Forward(tensor.MustIDs([]int32{1, 2}), nil, nil)

	tests := []struct {
		name string
		fn   func()
	}{
		{"id outside vocabulary", func() {
			model.Forward(tensor.MustIDs([]int32{1, int32(cfg.VocabSize)}), nil, nil)
		}},
		{"negative id", func() {
			model.Forward(tensor.MustIDs([]int32{-1}), nil, nil)
		}},
		{"positions beyond max", func() {
			model.Forward(tensor.MustIDs(make([]int32, cfg.MaxPositionEmbeddings+1)), nil, nil)
		}},
		{"cache pushes positions beyond max", func() {
			model.Forward(tensor.MustIDs(make([]int32, cfg.MaxPositionEmbeddings-1)), nil, past)
		}},
		{"mask narrower than past+seq", func() {
			model.Forward(tensor.MustIDs([]int32{1}), OnesMask(1, 2, backend), past)
		}},
		{"mask batch mismatch", func() {
			model.Forward(tensor.MustIDs([]int32{1}), OnesMask(2, 3, backend), past)
		}},
		{"wrong layer count", func() {
			model.Forward(tensor.MustIDs([]int32{1}), nil, past[:1])
		}},
		{"cache batch mismatch", func() {
			model.Forward(tensor.MustIDs([]int32{1}, []int32{2}), nil, past)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Panics(t, tt.fn)
		})
	}
}

func TestEmbeddings_PositionalContinuity(t *testing.T) {
	emb := NewEmbeddings(tinyConfig(), false, cpu.New())
	tokens := []int32{7, 3, 11, 42, 0}

	full := emb.Forward(tensor.MustIDs(tokens), 0, nil)
	for p, tok := range tokens {
		single := emb.Forward(tensor.MustIDs([]int32{tok}), p, nil)
		assert.Equal(t, column(full, p).Data(), single.Data(), "position %d", p)
	}
}

func TestEmbeddings_Segments(t *testing.T) {
	cfg := tinyConfig()
	backend := cpu.New()
	ids := tensor.MustIDs([]int32{1, 2, 3})

	withSegments := NewEmbeddings(cfg, true, backend)
	zeros := withSegments.Forward(ids, 0, nil)
	explicit := withSegments.Forward(ids, 0, tensor.MustIDs([]int32{0, 0, 0}))
	ones := withSegments.Forward(ids, 0, tensor.MustIDs([]int32{1, 1, 1}))

	assert.Equal(t, zeros.Data(), explicit.Data())
	assert.Greater(t, zeros.MaxAbsDiff(ones), float32(0))
	assert.Panics(t, func() { withSegments.Forward(ids, 0, tensor.MustIDs([]int32{0, 2, 0})) })
	assert.Panics(t, func() { withSegments.Forward(ids, 0, tensor.MustIDs([]int32{0, 0})) })

	// Decoder embeddings ignore segments but still own the table.
	noSegments := NewEmbeddings(cfg, false, backend)
	assert.Equal(t,
		noSegments.Forward(ids, 0, nil).Data(),
		noSegments.Forward(ids, 0, tensor.MustIDs([]int32{1, 1, 1})).Data())
	assert.Contains(t, noSegments.NamedParameters(), "token_type_embeddings.weight")
}

func TestDecoderLM_TiedWeights(t *testing.T) {
	cfg := tinyConfig()
	model := NewDecoderLM(cfg, cpu.New())
	require.True(t, model.Tied())

	params := model.NamedParameters()
	assert.Same(t, params["projection.weight"], params["transformer.embeddings.word_embeddings.weight"])

	ids := tensor.MustIDs([]int32{1, 2, 3})
	before, _ := model.Forward(ids, nil, nil)

	// In-place update through the embedding is visible to the projection.
	model.Transformer.Embeddings.Word.Weight.Tensor().Data()[0] += 1
	assert.Same(t, model.Projection.Weight().Tensor(), model.Transformer.Embeddings.Word.Weight.Tensor())

	// Wholesale replacement breaks the alias until Retie.
	replacement := nn.Normal(tensor.Shape{cfg.VocabSize, cfg.HiddenSize}, 0.02, cpu.New())
	require.NoError(t, model.Transformer.Embeddings.Word.SetWeight(replacement))
	assert.False(t, model.Tied())
	model.Retie()
	assert.True(t, model.Tied())
	assert.Same(t, replacement, model.Projection.Weight().Tensor())

	other := nn.Normal(tensor.Shape{cfg.VocabSize, cfg.HiddenSize}, 0.02, cpu.New())
	require.NoError(t, model.SetWordEmbeddings(other))
	assert.True(t, model.Tied())
	after, _ := model.Forward(ids, nil, nil)
	assert.Greater(t, before.MaxAbsDiff(after), float32(0))

	assert.Error(t, model.SetWordEmbeddings(tensor.Zeros(tensor.Shape{cfg.VocabSize, 3}, cpu.New())))
	assert.True(t, model.Tied())
}

func TestDecoderLM_ParameterNames(t *testing.T) {
	cfg := tinyConfig()
	model := NewDecoderLM(cfg, cpu.New())
	params := model.NamedParameters()

	for _, name := range []string{
		"transformer.embeddings.word_embeddings.weight",
		"transformer.embeddings.position_embeddings.weight",
		"transformer.embeddings.token_type_embeddings.weight",
		"transformer.embeddings.LayerNorm.weight",
		"transformer.embeddings.LayerNorm.bias",
		"transformer.encoder.layer.0.attention.self.query.weight",
		"transformer.encoder.layer.0.attention.self.key.bias",
		"transformer.encoder.layer.0.attention.self.value.weight",
		"transformer.encoder.layer.0.attention.output.dense.weight",
		"transformer.encoder.layer.0.attention.output.LayerNorm.bias",
		"transformer.encoder.layer.1.intermediate.dense.weight",
		"transformer.encoder.layer.1.output.dense.bias",
		"transformer.encoder.layer.1.output.LayerNorm.weight",
		"projection.weight",
	} {
		assert.Contains(t, params, name)
	}

	// 5 embedding tensors, 16 per layer, 1 tied projection.
	assert.Len(t, params, 5+16*cfg.NumHiddenLayers+1)
	assert.Equal(t, tensor.Shape{cfg.IntermediateSize, cfg.HiddenSize},
		params["transformer.encoder.layer.0.intermediate.dense.weight"].Shape())
}

func TestDecoderLM_TrainingMode(t *testing.T) {
	model := NewDecoderLM(tinyConfig(), cpu.New())
	ids := tensor.MustIDs([]int32{1, 2, 3, 4})

	eval1, _ := model.Forward(ids, nil, nil)
	eval2, _ := model.Forward(ids, nil, nil)
	assert.Equal(t, eval1.Data(), eval2.Data(), "evaluation mode is deterministic")

	model.Train(rand.New(rand.NewSource(1))) //nolint:gosec // test determinism
	train, _ := model.Forward(ids, nil, nil)
	assert.Greater(t, train.MaxAbsDiff(eval1), float32(0))

	model.Eval()
	eval3, _ := model.Forward(ids, nil, nil)
	assert.Equal(t, eval1.Data(), eval3.Data())
}

func TestEncoder_Shapes(t *testing.T) {
	cfg := tinyConfig()
	enc := NewEncoder(cfg, cpu.New())

	ids := tensor.MustIDs([]int32{1, 2, 3}, []int32{4, 5, 6})
	hidden, past := enc.Forward(ids, nil, ids.Zeros(), nil)

	assert.Equal(t, tensor.Shape{2, 3, cfg.HiddenSize}, hidden.Shape())
	assert.Equal(t, 3, past.PastLength())
}

func TestEncoder_Bidirectional(t *testing.T) {
	enc := NewEncoder(tinyConfig(), cpu.New())

	a, _ := enc.Forward(tensor.MustIDs([]int32{1, 2, 3, 4}), nil, nil, nil)
	b, _ := enc.Forward(tensor.MustIDs([]int32{1, 2, 3, 40}), nil, nil, nil)

	// Unlike the decoder, earlier positions see later ones.
	assert.Greater(t, column(a, 0).MaxAbsDiff(column(b, 0)), float32(0))
}

func TestEncoder_CachedSuffix(t *testing.T) {
	cfg := tinyConfig()
	cfg.NumHiddenLayers = 1
	enc := NewEncoder(cfg, cpu.New())
	tokens := []int32{1, 2, 3, 4, 5}

	// With one layer the prefix keys do not depend on the suffix, so a
	// cached suffix matches the full pass exactly at the suffix positions.
	full, _ := enc.Forward(tensor.MustIDs(tokens), nil, nil, nil)
	_, past := enc.Forward(tensor.MustIDs(tokens[:3]), nil, nil, nil)
	suffix, past := enc.Forward(tensor.MustIDs(tokens[3:]), nil, nil, past)

	assert.Equal(t, 5, past.PastLength())
	assert.LessOrEqual(t, suffix.MaxAbsDiff(full.Narrow(1, 3, 2)), float32(tolerance))
}

func TestCountParameters_Tiny(t *testing.T) {
	cfg := tinyConfig()
	h, i := cfg.HiddenSize, cfg.IntermediateSize
	perLayer := 4*(h*h+h) + 2*h + (h*i + i) + (i*h + h) + 2*h
	embeddings := (cfg.VocabSize+cfg.MaxPositionEmbeddings+cfg.TypeVocabSize)*h + 2*h

	model := NewDecoderLM(cfg, cpu.New())
	assert.Equal(t, embeddings+cfg.NumHiddenLayers*perLayer, nn.CountParameters(model))
}

func TestGPT2Small_ShapeRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping GPT-2 small allocation in short mode")
	}

	cfg := GPT2SmallConfig()
	model := NewDecoderLM(cfg, cpu.New())
	assert.Equal(t, 124441344, nn.CountParameters(model))

	ids := tensor.MustIDs([]int32{464, 2068, 7586, 21831, 18045}, []int32{50256, 50256, 11, 13, 0})
	logits, past := model.Forward(ids, nil, nil)

	assert.Equal(t, tensor.Shape{2, 5, 50257}, logits.Shape())
	require.Len(t, past, 12)
	for _, c := range past {
		assert.Equal(t, tensor.Shape{2, 12, 5, 64}, c.Keys().Shape())
	}
}
