package cachedbert

import (
	"fmt"

	"github.com/born-ml/cachedbert/internal/tensor"
)

// maskPenalty is subtracted from the scores of masked positions before the
// softmax: scores*m - maskPenalty*(1-m).
const maskPenalty = 1e4

// BuildMask expands a per-position validity mask [batch, L] (1 = attend,
// 0 = ignore) into a pairwise mask [batch, 1, L, L] with
//
//	M[b, 0, i, j] = (mask[b, i] + mask[b, j]) / 2
//
// so a pair with exactly one valid end gets 0.5. With causal set, every entry
// above the diagonal (j > i) is zeroed. The head axis has size 1 and is
// broadcast by the attention.
func BuildMask(mask *tensor.Tensor, causal bool) *tensor.Tensor {
	if mask.Rank() != 2 {
		panic(fmt.Sprintf("BuildMask: expected [batch, length] mask, got %v", mask.Shape()))
	}
	b, l := mask.Dim(0), mask.Dim(1)

	rows := mask.Reshape(b, 1, l, 1)
	cols := mask.Reshape(b, 1, 1, l)
	pair := rows.Zip(cols, func(mi, mj float32) float32 { return (mi + mj) / 2 })
	if causal {
		pair = pair.Tril()
	}
	return pair
}

// OnesMask returns an all-valid [batch, length] mask.
func OnesMask(batch, length int, backend tensor.Backend) *tensor.Tensor {
	return tensor.Ones(tensor.Shape{batch, length}, backend)
}

// MaskFromIDs marks every position whose id differs from pad as valid.
func MaskFromIDs(ids *tensor.IDs, pad int32, backend tensor.Backend) *tensor.Tensor {
	data := make([]float32, len(ids.Data()))
	for i, id := range ids.Data() {
		if id != pad {
			data[i] = 1
		}
	}
	return tensor.New(data, ids.Shape(), backend)
}

// sliceMask selects the rows of the new queries and the columns of every key:
// rows [keys-queries, keys) and columns [0, keys) of the [.., L, L] mask.
func sliceMask(mask *tensor.Tensor, queries, keys int) *tensor.Tensor {
	l := mask.Dim(-1)
	if keys > l {
		panic(fmt.Sprintf("attention mask covers %d positions but %d keys are attended", l, keys))
	}
	m := mask
	if queries != l {
		m = m.Narrow(2, keys-queries, queries)
	}
	if keys != l {
		m = m.Narrow(3, 0, keys)
	}
	return m
}

// applyMask computes scores*m - maskPenalty*(1-m) with m broadcast over heads.
func applyMask(scores, mask *tensor.Tensor) *tensor.Tensor {
	penalty := mask.Map(func(m float32) float32 { return maskPenalty * (1 - m) })
	return scores.Mul(mask).Sub(penalty)
}
