package tensor

import (
	"fmt"
	"math/rand"
)

// Tensor is a dense, row-major float32 tensor bound to a compute backend.
//
// Tensors are values produced by operations: every operation returns a new
// tensor and leaves its operands untouched. The only exceptions are Reshape,
// which returns a view sharing the same storage, and the explicit mutators
// Set, Fill and CopyFrom used by parameter loading.
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.Zeros(tensor.Shape{2, 3}, backend)
//	y := x.Add(tensor.Ones(tensor.Shape{3}, backend)) // broadcast over rows
type Tensor struct {
	data    []float32
	shape   Shape
	backend Backend
}

// New wraps data in a tensor without copying.
// Panics if the shape does not describe exactly len(data) elements.
func New(data []float32, shape Shape, b Backend) *Tensor {
	if shape.NumElements() != len(data) {
		panic(fmt.Sprintf("tensor.New: shape %v requires %d elements, got %d", shape, shape.NumElements(), len(data)))
	}
	return &Tensor{data: data, shape: shape.Clone(), backend: b}
}

// FromSlice creates a tensor from a Go slice.
// The slice is copied into the tensor's memory.
func FromSlice(data []float32, shape Shape, b Backend) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}

	buf := make([]float32, len(data))
	copy(buf, data)
	return &Tensor{data: buf, shape: shape.Clone(), backend: b}, nil
}

// Zeros creates a tensor filled with zeros.
func Zeros(shape Shape, b Backend) *Tensor {
	if err := shape.Validate(); err != nil {
		panic(fmt.Sprintf("tensor.Zeros: %v", err))
	}
	return &Tensor{data: make([]float32, shape.NumElements()), shape: shape.Clone(), backend: b}
}

// Ones creates a tensor filled with ones.
func Ones(shape Shape, b Backend) *Tensor {
	return Full(shape, 1, b)
}

// Full creates a tensor filled with value.
func Full(shape Shape, value float32, b Backend) *Tensor {
	t := Zeros(shape, b)
	t.Fill(value)
	return t
}

// Randn creates a tensor with values drawn from N(mean, std²) using rng.
// A nil rng uses the global math/rand source.
func Randn(shape Shape, mean, std float32, rng *rand.Rand, b Backend) *Tensor {
	t := Zeros(shape, b)
	for i := range t.data {
		var v float64
		if rng != nil {
			v = rng.NormFloat64()
		} else {
			v = rand.NormFloat64() //nolint:gosec // math/rand is appropriate for ML weight initialization
		}
		t.data[i] = mean + std*float32(v)
	}
	return t
}

// Shape returns the tensor's shape.
func (t *Tensor) Shape() Shape {
	return t.shape
}

// Rank returns the number of dimensions.
func (t *Tensor) Rank() int {
	return len(t.shape)
}

// Dim returns the size of dimension i (negative i counts from the end).
func (t *Tensor) Dim(i int) int {
	return t.shape[t.shape.normalizeDim(i)]
}

// NumElements returns the total number of elements.
func (t *Tensor) NumElements() int {
	return len(t.data)
}

// Backend returns the computation backend.
func (t *Tensor) Backend() Backend {
	return t.backend
}

// Data returns the tensor's underlying storage (zero-copy).
//
// WARNING: Modifications to the returned slice will modify the tensor.
func (t *Tensor) Data() []float32 {
	return t.data
}

// SharesStorage reports whether t and other are views of the same memory.
func (t *Tensor) SharesStorage(other *Tensor) bool {
	if t == nil || other == nil || len(t.data) == 0 || len(other.data) == 0 {
		return false
	}
	return &t.data[0] == &other.data[0]
}

// At returns the element at the given indices.
// Panics if indices are out of bounds.
func (t *Tensor) At(indices ...int) float32 {
	return t.data[t.offset(indices)]
}

// Set sets the element at the given indices.
// Panics if indices are out of bounds.
func (t *Tensor) Set(value float32, indices ...int) {
	t.data[t.offset(indices)] = value
}

// Fill overwrites every element with value.
func (t *Tensor) Fill(value float32) {
	for i := range t.data {
		t.data[i] = value
	}
}

// CopyFrom copies src into t in place. Shapes must match exactly.
func (t *Tensor) CopyFrom(src *Tensor) error {
	if !t.shape.Equal(src.shape) {
		return fmt.Errorf("shape mismatch: expected %v, got %v", t.shape, src.shape)
	}
	copy(t.data, src.data)
	return nil
}

// Clone returns a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	buf := make([]float32, len(t.data))
	copy(buf, t.data)
	return &Tensor{data: buf, shape: t.shape.Clone(), backend: t.backend}
}

// String returns a short description (shape only, data is not printed).
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor%v", []int(t.shape))
}

func (t *Tensor) offset(indices []int) int {
	if len(indices) != len(t.shape) {
		panic(fmt.Sprintf("expected %d indices, got %d", len(t.shape), len(indices)))
	}

	offset := 0
	stride := 1
	for i := len(indices) - 1; i >= 0; i-- {
		idx := indices[i]
		if idx < 0 || idx >= t.shape[i] {
			panic(fmt.Sprintf("index %d out of bounds for dimension %d (size %d)", idx, i, t.shape[i]))
		}
		offset += idx * stride
		stride *= t.shape[i]
	}
	return offset
}
