// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"math/rand"

	"github.com/born-ml/cachedbert/internal/tensor"
)

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3, 4} represents a 3D tensor with dimensions 2×3×4.
type Shape = tensor.Shape

// Device identifies where tensor data lives.
type Device = tensor.Device

// CPU is the host device.
const CPU Device = tensor.CPU

// Backend executes the compute kernels behind tensor operations.
//
// Implementations provide a single-precision GEMM and a bounded parallel
// loop; everything else runs in the tensor package itself.
type Backend = tensor.Backend

// Tensor is a dense row-major float32 tensor.
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.Zeros(tensor.Shape{2, 3}, backend)
//	y := x.Add(tensor.Ones(tensor.Shape{3}, backend))
type Tensor = tensor.Tensor

// IDs is a [batch, seq] matrix of token or segment ids.
type IDs = tensor.IDs

// New wraps data in a tensor without copying.
func New(data []float32, shape Shape, b Backend) *Tensor {
	return tensor.New(data, shape, b)
}

// FromSlice creates a tensor holding a copy of data.
func FromSlice(data []float32, shape Shape, b Backend) (*Tensor, error) {
	return tensor.FromSlice(data, shape, b)
}

// Zeros creates a tensor filled with zeros.
func Zeros(shape Shape, b Backend) *Tensor {
	return tensor.Zeros(shape, b)
}

// Ones creates a tensor filled with ones.
func Ones(shape Shape, b Backend) *Tensor {
	return tensor.Ones(shape, b)
}

// Full creates a tensor filled with value.
func Full(shape Shape, value float32, b Backend) *Tensor {
	return tensor.Full(shape, value, b)
}

// Randn creates a tensor drawn from N(mean, std²). A nil rng uses the
// global source.
func Randn(shape Shape, mean, std float32, rng *rand.Rand, b Backend) *Tensor {
	return tensor.Randn(shape, mean, std, rng, b)
}

// Cat concatenates tensors along dim.
func Cat(tensors []*Tensor, dim int) *Tensor {
	return tensor.Cat(tensors, dim)
}

// NewIDs wraps row-major ids of shape [batch, seq].
func NewIDs(data []int32, batch, seq int) (*IDs, error) {
	return tensor.NewIDs(data, batch, seq)
}

// IDsFromRows copies equally long rows into an IDs matrix.
func IDsFromRows(rows [][]int32) (*IDs, error) {
	return tensor.IDsFromRows(rows)
}

// MustIDs is IDsFromRows that panics on error.
func MustIDs(rows ...[]int32) *IDs {
	return tensor.MustIDs(rows...)
}
