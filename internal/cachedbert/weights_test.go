package cachedbert

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/cachedbert/internal/backend/cpu"
	"github.com/born-ml/cachedbert/internal/logger"
	"github.com/born-ml/cachedbert/internal/nn"
	"github.com/born-ml/cachedbert/internal/tensor"
)

// cloneState deep-copies a state dict so that the source model stays
// independent of the copy.
func cloneState(s StateDict) StateDict {
	out := make(StateDict, len(s))
	for name, t := range s {
		out[name] = t.Clone()
	}
	return out
}

func TestDecoderLM_LoadStateDict(t *testing.T) {
	backend := cpu.New()
	src := NewDecoderLM(tinyConfig(), backend)
	dst := NewDecoderLM(tinyConfig(), backend)

	ids := tensor.MustIDs([]int32{4, 8, 15, 16})
	want, _ := src.Forward(ids, nil, nil)

	require.NoError(t, dst.LoadStateDict(cloneState(src.StateDict())))
	assert.True(t, dst.Tied())

	got, _ := dst.Forward(ids, nil, nil)
	assert.Equal(t, want.Data(), got.Data())
}

func TestDecoderLM_LoadStateDict_ProjectionOptional(t *testing.T) {
	backend := cpu.New()
	src := NewDecoderLM(tinyConfig(), backend)
	dst := NewDecoderLM(tinyConfig(), backend)

	state := cloneState(src.StateDict())
	delete(state, "projection.weight")
	require.NoError(t, dst.LoadStateDict(state))

	// The projection follows the loaded embedding table.
	assert.Equal(t,
		src.Transformer.Embeddings.Word.Weight.Tensor().Data(),
		dst.Projection.Weight().Tensor().Data())
}

func TestDecoderLM_LoadStateDict_Errors(t *testing.T) {
	cfg := tinyConfig()
	backend := cpu.New()
	wordShape := tensor.Shape{cfg.VocabSize, cfg.HiddenSize}

	tests := []struct {
		name     string
		mutate   func(StateDict)
		sentinel error
		param    string
	}{
		{
			name:     "missing parameter",
			mutate:   func(s StateDict) { delete(s, "transformer.encoder.layer.1.output.dense.bias") },
			sentinel: ErrMissingParameter,
			param:    "transformer.encoder.layer.1.output.dense.bias",
		},
		{
			name: "shape mismatch",
			mutate: func(s StateDict) {
				s["transformer.embeddings.position_embeddings.weight"] = tensor.Zeros(tensor.Shape{8, cfg.HiddenSize}, backend)
			},
			sentinel: ErrShapeMismatch,
			param:    "transformer.embeddings.position_embeddings.weight",
		},
		{
			name:     "unexpected parameter",
			mutate:   func(s StateDict) { s["transformer.pooler.dense.weight"] = tensor.Zeros(tensor.Shape{2, 2}, backend) },
			sentinel: ErrUnexpectedParameter,
			param:    "transformer.pooler.dense.weight",
		},
		{
			name:     "projection shape mismatch",
			mutate:   func(s StateDict) { s["projection.weight"] = tensor.Zeros(tensor.Shape{cfg.VocabSize, 3}, backend) },
			sentinel: ErrShapeMismatch,
			param:    "projection.weight",
		},
		{
			name: "unprefixed names",
			mutate: func(s StateDict) {
				s["embeddings.word_embeddings.weight"] = tensor.Zeros(wordShape, backend)
			},
			sentinel: ErrUnexpectedParameter,
			param:    "embeddings.word_embeddings.weight",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := NewDecoderLM(cfg, backend)
			dst := NewDecoderLM(cfg, backend)
			before := cloneState(dst.StateDict())

			state := cloneState(src.StateDict())
			tt.mutate(state)

			err := dst.LoadStateDict(state)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)

			var werr *WeightError
			require.True(t, errors.As(err, &werr))
			assert.Equal(t, tt.param, werr.Name)
			assert.Contains(t, err.Error(), tt.param)

			// A rejected state dict leaves the model untouched.
			for name, want := range before {
				assert.Equal(t, want.Data(), dst.StateDict()[name].Data(), name)
			}
		})
	}
}

func TestWeightError_Message(t *testing.T) {
	err := &WeightError{
		Name:     "embeddings.LayerNorm.weight",
		Expected: tensor.Shape{16},
		Actual:   tensor.Shape{8},
		Err:      ErrShapeMismatch,
	}
	assert.Equal(t, "embeddings.LayerNorm.weight: weight shape mismatch: expected [16], got [8]", err.Error())
}

func TestEncoder_LoadPretrained(t *testing.T) {
	backend := cpu.New()
	src := NewEncoder(tinyConfig(), backend)
	dst := NewEncoder(tinyConfig(), backend)

	var buf bytes.Buffer
	ctx := logger.WithContext(context.Background(), logger.Text(&buf, slog.LevelInfo))

	require.NoError(t, dst.LoadPretrained(ctx, cloneState(src.StateDict())))
	assert.Contains(t, buf.String(), "pretrained weights loaded")
	assert.Contains(t, buf.String(), "model=encoder")

	ids := tensor.MustIDs([]int32{1, 2, 3})
	want, _ := src.Forward(ids, nil, nil, nil)
	got, _ := dst.Forward(ids, nil, nil, nil)
	assert.Equal(t, want.Data(), got.Data())

	// Encoder checkpoints carry no projection.
	state := cloneState(src.StateDict())
	state["projection.weight"] = tensor.Zeros(tensor.Shape{50, 16}, backend)
	assert.ErrorIs(t, dst.LoadStateDict(state), ErrUnexpectedParameter)
}

func TestDecoderLM_LoadPretrained_CountsTiedOnce(t *testing.T) {
	backend := cpu.New()
	src := NewDecoderLM(tinyConfig(), backend)
	dst := NewDecoderLM(tinyConfig(), backend)

	state := cloneState(src.StateDict())
	require.Contains(t, state, "projection.weight")

	var buf bytes.Buffer
	ctx := logger.WithContext(context.Background(), logger.JSON(&buf, slog.LevelInfo))
	require.NoError(t, dst.LoadPretrained(ctx, state))

	var entry struct {
		Msg        string `json:"msg"`
		Tensors    int    `json:"tensors"`
		Parameters int    `json:"parameters"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "pretrained weights loaded", entry.Msg)
	assert.Equal(t, len(state), entry.Tensors)

	total := 0
	for _, w := range state {
		total += w.NumElements()
	}
	cfg := tinyConfig()
	assert.Equal(t, nn.CountParameters(dst), entry.Parameters)
	assert.Equal(t, total-cfg.VocabSize*cfg.HiddenSize, entry.Parameters)
}

type failingLoader struct{}

func (failingLoader) Load(context.Context) (map[string]*tensor.Tensor, error) {
	return nil, errors.New("connection reset")
}

func TestLoadPretrained_LoaderError(t *testing.T) {
	model := NewDecoderLM(tinyConfig(), cpu.New())
	ctx := logger.WithContext(context.Background(), logger.Discard())

	err := model.LoadPretrained(ctx, failingLoader{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestDecoder_StateDictNames(t *testing.T) {
	dec := NewDecoder(tinyConfig(), cpu.New())
	state := dec.StateDict()

	assert.Contains(t, state, "embeddings.word_embeddings.weight")
	assert.Contains(t, state, "encoder.layer.0.attention.self.query.weight")
	assert.NotContains(t, state, "projection.weight")

	require.NoError(t, dec.LoadStateDict(cloneState(state)))
}
