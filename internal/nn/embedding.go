package nn

import (
	"fmt"

	"github.com/born-ml/cachedbert/internal/tensor"
)

// Embedding is a lookup table that maps discrete indices to dense vectors.
//
// Architecture:
//   - Weight: [NumEmbed, EmbedDim] learnable parameter
//   - Forward: indices [batch, seq] -> embeddings [batch, seq, EmbedDim]
//
// Example:
//
//	// Vocabulary of 50257 tokens, embedding dimension 768
//	embed := nn.NewEmbedding(50257, 768, backend)
//	ids := tensor.MustIDs([]int32{5, 9, 2})
//	vectors := embed.Forward(ids) // [1, 3, 768]
type Embedding struct {
	Weight   *Parameter // Embedding weight matrix [NumEmbed, EmbedDim]
	NumEmbed int        // Number of embeddings (vocabulary size)
	EmbedDim int        // Embedding dimension (vector size)
}

// NewEmbedding creates a new Embedding layer initialized from N(0, 0.02²).
func NewEmbedding(numEmbeddings, embeddingDim int, backend tensor.Backend) *Embedding {
	weight := Normal(tensor.Shape{numEmbeddings, embeddingDim}, InitStd, backend)
	return &Embedding{
		Weight:   NewParameter("weight", weight),
		NumEmbed: numEmbeddings,
		EmbedDim: embeddingDim,
	}
}

// NewEmbeddingWithWeight creates an Embedding layer with pre-initialized weights.
func NewEmbeddingWithWeight(weight *tensor.Tensor) *Embedding {
	shape := weight.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("embedding weight must be 2D, got shape %v", shape))
	}

	return &Embedding{
		Weight:   NewParameter("weight", weight),
		NumEmbed: shape[0],
		EmbedDim: shape[1],
	}
}

// Forward performs embedding lookup.
//
// Panics if any index is out of bounds [0, NumEmbed).
func (e *Embedding) Forward(indices *tensor.IDs) *tensor.Tensor {
	return e.Weight.Tensor().Embedding(indices)
}

// SetWeight replaces the weight parameter with a new one.
// Holders of the previous *Parameter (tied projections) must be re-tied.
func (e *Embedding) SetWeight(weight *tensor.Tensor) error {
	if !weight.Shape().Equal(tensor.Shape{e.NumEmbed, e.EmbedDim}) {
		return fmt.Errorf("embedding weight: expected shape %v, got %v",
			tensor.Shape{e.NumEmbed, e.EmbedDim}, weight.Shape())
	}
	e.Weight = NewParameter("weight", weight)
	return nil
}

// NamedParameters returns the table under "weight".
func (e *Embedding) NamedParameters() Params {
	return Params{"weight": e.Weight}
}
