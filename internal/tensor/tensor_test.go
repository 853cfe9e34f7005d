package tensor_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/cachedbert/internal/backend/cpu"
	"github.com/born-ml/cachedbert/internal/tensor"
)

func TestFromSlice(t *testing.T) {
	backend := cpu.New()
	src := []float32{1, 2, 3, 4, 5, 6}

	x, err := tensor.FromSlice(src, tensor.Shape{2, 3}, backend)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 3}, x.Shape())
	assert.Equal(t, 2, x.Rank())
	assert.Equal(t, 3, x.Dim(-1))
	assert.Equal(t, float32(6), x.At(1, 2))

	src[0] = 100
	assert.Equal(t, float32(1), x.At(0, 0), "FromSlice must copy")

	_, err = tensor.FromSlice(src, tensor.Shape{4, 2}, backend)
	assert.Error(t, err)
	_, err = tensor.FromSlice(nil, tensor.Shape{0, 2}, backend)
	assert.Error(t, err)
}

func TestNewPanicsOnSizeMismatch(t *testing.T) {
	assert.Panics(t, func() {
		tensor.New(make([]float32, 5), tensor.Shape{2, 3}, cpu.New())
	})
}

func TestCreation(t *testing.T) {
	backend := cpu.New()

	assert.Equal(t, []float32{0, 0, 0, 0}, tensor.Zeros(tensor.Shape{2, 2}, backend).Data())
	assert.Equal(t, []float32{1, 1, 1}, tensor.Ones(tensor.Shape{3}, backend).Data())
	assert.Equal(t, []float32{7, 7}, tensor.Full(tensor.Shape{2}, 7, backend).Data())
	assert.Panics(t, func() { tensor.Zeros(tensor.Shape{2, -1}, backend) })
}

func TestRandnSeeded(t *testing.T) {
	backend := cpu.New()

	a := tensor.Randn(tensor.Shape{64}, 0, 1, rand.New(rand.NewSource(3)), backend)
	b := tensor.Randn(tensor.Shape{64}, 0, 1, rand.New(rand.NewSource(3)), backend)
	assert.Equal(t, a.Data(), b.Data())

	c := tensor.Randn(tensor.Shape{4096}, 5, 0.5, rand.New(rand.NewSource(1)), backend)
	var sum float64
	for _, v := range c.Data() {
		sum += float64(v)
	}
	assert.InDelta(t, 5.0, sum/4096, 0.05)
}

func TestSetFillCopyClone(t *testing.T) {
	backend := cpu.New()
	x := tensor.Zeros(tensor.Shape{2, 2}, backend)

	x.Set(3, 1, 0)
	assert.Equal(t, float32(3), x.At(1, 0))
	assert.Panics(t, func() { x.At(2, 0) })
	assert.Panics(t, func() { x.At(0) })

	c := x.Clone()
	assert.False(t, c.SharesStorage(x))
	x.Fill(9)
	assert.Equal(t, []float32{0, 0, 3, 0}, c.Data())

	require.NoError(t, c.CopyFrom(x))
	assert.Equal(t, []float32{9, 9, 9, 9}, c.Data())
	assert.Error(t, c.CopyFrom(tensor.Zeros(tensor.Shape{4}, backend)))
}

func TestString(t *testing.T) {
	x := tensor.Zeros(tensor.Shape{2, 5}, cpu.New())
	assert.Equal(t, "Tensor[2 5]", x.String())
}

func TestShape(t *testing.T) {
	s := tensor.Shape{2, 3, 4}
	assert.Equal(t, 24, s.NumElements())
	assert.Equal(t, []int{12, 4, 1}, s.ComputeStrides())
	assert.True(t, s.Equal(tensor.Shape{2, 3, 4}))
	assert.False(t, s.Equal(tensor.Shape{2, 3}))
	assert.NoError(t, s.Validate())
	assert.Error(t, tensor.Shape{2, 0}.Validate())

	c := s.Clone()
	c[0] = 9
	assert.Equal(t, 2, s[0])
}

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		name    string
		a, b    tensor.Shape
		want    tensor.Shape
		wantErr bool
	}{
		{"same", tensor.Shape{2, 3}, tensor.Shape{2, 3}, tensor.Shape{2, 3}, false},
		{"column", tensor.Shape{3, 1}, tensor.Shape{3, 5}, tensor.Shape{3, 5}, false},
		{"missing leading", tensor.Shape{4}, tensor.Shape{2, 3, 4}, tensor.Shape{2, 3, 4}, false},
		{"mask heads", tensor.Shape{2, 1, 4, 4}, tensor.Shape{2, 12, 4, 4}, tensor.Shape{2, 12, 4, 4}, false},
		{"incompatible", tensor.Shape{3, 4}, tensor.Shape{3, 5}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tensor.BroadcastShapes(tt.a, tt.b)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIDs(t *testing.T) {
	ids, err := tensor.IDsFromRows([][]int32{{5, 9, 2}, {7, 7, 1}})
	require.NoError(t, err)
	assert.Equal(t, 2, ids.Batch())
	assert.Equal(t, 3, ids.SeqLen())
	assert.Equal(t, tensor.Shape{2, 3}, ids.Shape())
	assert.Equal(t, int32(1), ids.At(1, 2))
	assert.Equal(t, []int32{7, 7, 1}, ids.Row(1))

	tail := ids.Slice(1, 3)
	assert.Equal(t, []int32{9, 2, 7, 1}, tail.Data())
	assert.Equal(t, []int32{0, 0, 0, 0, 0, 0}, ids.Zeros().Data())

	assert.Panics(t, func() { ids.Slice(2, 2) })

	_, err = tensor.IDsFromRows([][]int32{{1, 2}, {3}})
	assert.Error(t, err)
	_, err = tensor.IDsFromRows(nil)
	assert.Error(t, err)
	_, err = tensor.NewIDs([]int32{1, 2, 3}, 2, 2)
	assert.Error(t, err)
	assert.Panics(t, func() { tensor.MustIDs([]int32{1}, []int32{1, 2}) })
}
