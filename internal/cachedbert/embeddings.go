package cachedbert

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/cachedbert/internal/nn"
	"github.com/born-ml/cachedbert/internal/tensor"
)

// Embeddings sums word, position and (optionally) segment embeddings, then
// applies LayerNorm and dropout.
//
// Positions are absolute: the token at column j of a call made with
// pastLength p is embedded at position p + j. This is what keeps cached
// decoding identical to a full recompute.
//
// Architecture:
//
//	word[ids] + position[p .. p+seq) (+ token_type[segments])
//	  -> LayerNorm -> Dropout
//
// The decoder never reads TokenType, but the table is always allocated so that
// checkpoints carrying token_type_embeddings load without special cases.
type Embeddings struct {
	Word      *nn.Embedding
	Position  *nn.Embedding
	TokenType *nn.Embedding
	LayerNorm *nn.LayerNorm
	Dropout   *nn.Dropout

	useSegments bool
}

// NewEmbeddings creates the embedding block. useSegments selects whether
// Forward adds token type embeddings (encoder) or not (decoder).
func NewEmbeddings(cfg Config, useSegments bool, backend tensor.Backend) *Embeddings {
	return &Embeddings{
		Word:        nn.NewEmbedding(cfg.VocabSize, cfg.HiddenSize, backend),
		Position:    nn.NewEmbedding(cfg.MaxPositionEmbeddings, cfg.HiddenSize, backend),
		TokenType:   nn.NewEmbedding(cfg.TypeVocabSize, cfg.HiddenSize, backend),
		LayerNorm:   nn.NewLayerNorm(cfg.HiddenSize, cfg.LayerNormEps, backend),
		Dropout:     nn.NewDropout(cfg.HiddenDropoutProb),
		useSegments: useSegments,
	}
}

// Forward embeds ids [batch, seq] starting at absolute position pastLength.
// segments is required (same shape as ids) when the block uses segments and
// ignored otherwise; a nil segments tensor means all-zero segment ids.
//
// Panics if pastLength+seq exceeds MaxPositionEmbeddings or any id is out of
// range.
func (e *Embeddings) Forward(ids *tensor.IDs, pastLength int, segments *tensor.IDs) *tensor.Tensor {
	seq := ids.SeqLen()
	if pastLength < 0 {
		panic(fmt.Sprintf("Embeddings.Forward: negative past length %d", pastLength))
	}
	if pastLength+seq > e.Position.NumEmbed {
		panic(fmt.Sprintf("Embeddings.Forward: positions [%d, %d) exceed max_position_embeddings %d",
			pastLength, pastLength+seq, e.Position.NumEmbed))
	}

	// [b, s, h] + [s, h]
	words := e.Word.Forward(ids)
	positions := e.Position.Weight.Tensor().Narrow(0, pastLength, seq)
	hidden := words.Add(positions)

	if e.useSegments {
		if segments == nil {
			segments = ids.Zeros()
		}
		if !segments.Shape().Equal(ids.Shape()) {
			panic(fmt.Sprintf("Embeddings.Forward: segments %v do not match ids %v", segments.Shape(), ids.Shape()))
		}
		hidden = hidden.Add(e.TokenType.Forward(segments))
	}

	return e.Dropout.Forward(e.LayerNorm.Forward(hidden))
}

// NamedParameters returns the checkpoint names of the block.
func (e *Embeddings) NamedParameters() nn.Params {
	p := nn.Params{}
	p.Merge("word_embeddings", e.Word.NamedParameters())
	p.Merge("position_embeddings", e.Position.NamedParameters())
	p.Merge("token_type_embeddings", e.TokenType.NamedParameters())
	p.Merge("LayerNorm", e.LayerNorm.NamedParameters())
	return p
}

func (e *Embeddings) train(rng *rand.Rand) {
	e.Dropout.Train(rng)
}
