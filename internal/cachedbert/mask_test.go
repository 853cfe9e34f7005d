package cachedbert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/cachedbert/internal/backend/cpu"
	"github.com/born-ml/cachedbert/internal/tensor"
)

func TestBuildMask(t *testing.T) {
	backend := cpu.New()
	m := tensor.New([]float32{1, 1, 0, 1}, tensor.Shape{1, 4}, backend)

	full := BuildMask(m, false)
	require.Equal(t, tensor.Shape{1, 1, 4, 4}, full.Shape())

	// Symmetric, with 0.5 where exactly one end is padding.
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			assert.Equal(t, full.At(0, 0, i, j), full.At(0, 0, j, i), "(%d,%d)", i, j)
		}
	}
	assert.Equal(t, float32(1), full.At(0, 0, 0, 1))
	assert.Equal(t, float32(0.5), full.At(0, 0, 0, 2))
	assert.Equal(t, float32(0), full.At(0, 0, 2, 2))
	assert.Equal(t, float32(0.5), full.At(0, 0, 3, 2))

	causal := BuildMask(m, true)
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			if j > i {
				assert.Equal(t, float32(0), causal.At(0, 0, i, j), "(%d,%d)", i, j)
			} else {
				assert.Equal(t, full.At(0, 0, i, j), causal.At(0, 0, i, j), "(%d,%d)", i, j)
			}
		}
	}
}

func TestBuildMask_Batch(t *testing.T) {
	backend := cpu.New()
	m := tensor.New([]float32{1, 1, 1, 0}, tensor.Shape{2, 2}, backend)
	out := BuildMask(m, false)

	require.Equal(t, tensor.Shape{2, 1, 2, 2}, out.Shape())
	assert.Equal(t, float32(1), out.At(0, 0, 1, 1))
	assert.Equal(t, float32(0), out.At(1, 0, 1, 1))
	assert.Equal(t, float32(0.5), out.At(1, 0, 0, 1))

	assert.Panics(t, func() { BuildMask(tensor.Ones(tensor.Shape{4}, backend), false) })
}

func TestSliceMask(t *testing.T) {
	backend := cpu.New()
	mask := BuildMask(OnesMask(1, 5, backend), true)

	// Two new queries after three cached keys: rows 3 and 4, all five columns.
	m := sliceMask(mask, 2, 5)
	require.Equal(t, tensor.Shape{1, 1, 2, 5}, m.Shape())
	assert.Equal(t, float32(1), m.At(0, 0, 0, 3))
	assert.Equal(t, float32(0), m.At(0, 0, 0, 4))
	assert.Equal(t, float32(1), m.At(0, 0, 1, 4))

	// Wider masks are cut to the attended keys.
	m = sliceMask(mask, 1, 3)
	require.Equal(t, tensor.Shape{1, 1, 1, 3}, m.Shape())
	assert.Equal(t, float32(1), m.At(0, 0, 0, 2))

	assert.Panics(t, func() { sliceMask(mask, 1, 6) })
}

func TestApplyMask(t *testing.T) {
	backend := cpu.New()
	scores := tensor.New([]float32{2, 2, 2}, tensor.Shape{1, 1, 1, 3}, backend)
	mask := tensor.New([]float32{1, 0.5, 0}, tensor.Shape{1, 1, 1, 3}, backend)

	out := applyMask(scores, mask)
	assert.Equal(t, []float32{2, 1 - 5000, -10000}, out.Data())
}

func TestMaskFromIDs(t *testing.T) {
	backend := cpu.New()
	ids := tensor.MustIDs([]int32{5, 9, 0, 0}, []int32{1, 0, 3, 4})
	m := MaskFromIDs(ids, 0, backend)
	assert.Equal(t, tensor.Shape{2, 4}, m.Shape())
	assert.Equal(t, []float32{1, 1, 0, 0, 1, 0, 1, 1}, m.Data())
}
