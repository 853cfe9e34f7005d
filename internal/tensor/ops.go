package tensor

import (
	"fmt"
	"math"
)

// Add returns t + other with broadcasting.
func (t *Tensor) Add(other *Tensor) *Tensor {
	return t.Zip(other, func(a, b float32) float32 { return a + b })
}

// Sub returns t - other with broadcasting.
func (t *Tensor) Sub(other *Tensor) *Tensor {
	return t.Zip(other, func(a, b float32) float32 { return a - b })
}

// Mul returns the element-wise product t * other with broadcasting.
func (t *Tensor) Mul(other *Tensor) *Tensor {
	return t.Zip(other, func(a, b float32) float32 { return a * b })
}

// Scale returns t multiplied by a scalar.
func (t *Tensor) Scale(s float32) *Tensor {
	return t.Map(func(x float32) float32 { return x * s })
}

// Map applies fn element-wise and returns the result as a new tensor.
func (t *Tensor) Map(fn func(float32) float32) *Tensor {
	out := make([]float32, len(t.data))
	for i, v := range t.data {
		out[i] = fn(v)
	}
	return &Tensor{data: out, shape: t.shape.Clone(), backend: t.backend}
}

// Zip combines t and other element-wise with fn, broadcasting both operands
// to their common shape (NumPy rules, see BroadcastShapes).
//
// Panics if the shapes are not broadcast-compatible.
func (t *Tensor) Zip(other *Tensor, fn func(a, b float32) float32) *Tensor {
	if t.shape.Equal(other.shape) {
		out := make([]float32, len(t.data))
		for i := range out {
			out[i] = fn(t.data[i], other.data[i])
		}
		return &Tensor{data: out, shape: t.shape.Clone(), backend: t.backend}
	}

	outShape, err := BroadcastShapes(t.shape, other.shape)
	if err != nil {
		panic(fmt.Sprintf("tensor.Zip: %v", err))
	}

	as := broadcastStrides(t.shape, outShape)
	bs := broadcastStrides(other.shape, outShape)
	out := make([]float32, outShape.NumElements())
	idx := make([]int, len(outShape))
	ao, bo := 0, 0

	for i := range out {
		out[i] = fn(t.data[ao], other.data[bo])
		for d := len(outShape) - 1; d >= 0; d-- {
			idx[d]++
			ao += as[d]
			bo += bs[d]
			if idx[d] < outShape[d] {
				break
			}
			ao -= as[d] * outShape[d]
			bo -= bs[d] * outShape[d]
			idx[d] = 0
		}
	}

	return &Tensor{data: out, shape: outShape, backend: t.backend}
}

// broadcastStrides returns strides of shape s aligned to out, with zero
// stride on broadcast (size 1 or missing) dimensions.
func broadcastStrides(s, out Shape) []int {
	strides := make([]int, len(out))
	own := s.ComputeStrides()
	shift := len(out) - len(s)
	for i := range s {
		if s[i] != 1 {
			strides[i+shift] = own[i]
		}
	}
	return strides
}

// Reshape returns a view with a new shape sharing the same storage.
// One dimension may be -1 and is inferred.
func (t *Tensor) Reshape(dims ...int) *Tensor {
	shape := make(Shape, len(dims))
	copy(shape, dims)

	infer := -1
	known := 1
	for i, d := range shape {
		if d == -1 {
			if infer >= 0 {
				panic(fmt.Sprintf("Reshape: more than one inferred dimension in %v", dims))
			}
			infer = i
			continue
		}
		known *= d
	}
	if infer >= 0 {
		if known == 0 || len(t.data)%known != 0 {
			panic(fmt.Sprintf("Reshape: cannot infer dimension for %v from %d elements", dims, len(t.data)))
		}
		shape[infer] = len(t.data) / known
	}

	if shape.NumElements() != len(t.data) {
		panic(fmt.Sprintf("Reshape: cannot reshape %v (%d elements) to %v", t.shape, len(t.data), shape))
	}
	return &Tensor{data: t.data, shape: shape, backend: t.backend}
}

// Transpose permutes the dimensions of t according to axes and returns a
// contiguous copy. With no axes the last two dimensions are swapped.
//
// Example:
//
//	x := tensor.Zeros(tensor.Shape{2, 5, 12, 64}, backend)
//	y := x.Transpose(0, 2, 1, 3) // [2, 12, 5, 64]
func (t *Tensor) Transpose(axes ...int) *Tensor {
	rank := len(t.shape)
	if len(axes) == 0 {
		if rank < 2 {
			panic(fmt.Sprintf("Transpose: need at least 2 dimensions, got %v", t.shape))
		}
		axes = make([]int, rank)
		for i := range axes {
			axes[i] = i
		}
		axes[rank-2], axes[rank-1] = axes[rank-1], axes[rank-2]
	}
	if len(axes) != rank {
		panic(fmt.Sprintf("Transpose: expected %d axes, got %d", rank, len(axes)))
	}

	seen := make([]bool, rank)
	inStrides := t.shape.ComputeStrides()
	outShape := make(Shape, rank)
	strides := make([]int, rank)
	for i, ax := range axes {
		if ax < 0 || ax >= rank || seen[ax] {
			panic(fmt.Sprintf("Transpose: invalid permutation %v", axes))
		}
		seen[ax] = true
		outShape[i] = t.shape[ax]
		strides[i] = inStrides[ax]
	}

	out := make([]float32, len(t.data))
	idx := make([]int, rank)
	off := 0
	for i := range out {
		out[i] = t.data[off]
		for d := rank - 1; d >= 0; d-- {
			idx[d]++
			off += strides[d]
			if idx[d] < outShape[d] {
				break
			}
			off -= strides[d] * outShape[d]
			idx[d] = 0
		}
	}

	return &Tensor{data: out, shape: outShape, backend: t.backend}
}

// Cat concatenates tensors along dim. All other dimensions must match.
func Cat(tensors []*Tensor, dim int) *Tensor {
	if len(tensors) == 0 {
		panic("Cat: no tensors")
	}
	first := tensors[0]
	dim = first.shape.normalizeDim(dim)

	outShape := first.shape.Clone()
	outShape[dim] = 0
	for _, x := range tensors {
		if len(x.shape) != len(first.shape) {
			panic(fmt.Sprintf("Cat: rank mismatch %v vs %v", first.shape, x.shape))
		}
		for i := range x.shape {
			if i != dim && x.shape[i] != first.shape[i] {
				panic(fmt.Sprintf("Cat: shape mismatch %v vs %v at dimension %d", first.shape, x.shape, i))
			}
		}
		outShape[dim] += x.shape[dim]
	}

	outer := Shape(first.shape[:dim]).NumElements()
	inner := Shape(first.shape[dim+1:]).NumElements()
	out := make([]float32, 0, outShape.NumElements())
	for o := 0; o < outer; o++ {
		for _, x := range tensors {
			chunk := x.shape[dim] * inner
			out = append(out, x.data[o*chunk:(o+1)*chunk]...)
		}
	}

	return &Tensor{data: out, shape: outShape, backend: first.backend}
}

// Narrow returns a copy of the slice [start, start+length) along dim.
func (t *Tensor) Narrow(dim, start, length int) *Tensor {
	dim = t.shape.normalizeDim(dim)
	if start < 0 || length <= 0 || start+length > t.shape[dim] {
		panic(fmt.Sprintf("Narrow: range [%d, %d) out of bounds for dimension %d of %v", start, start+length, dim, t.shape))
	}

	outShape := t.shape.Clone()
	outShape[dim] = length
	outer := Shape(t.shape[:dim]).NumElements()
	inner := Shape(t.shape[dim+1:]).NumElements()
	span := t.shape[dim] * inner

	out := make([]float32, 0, outShape.NumElements())
	for o := 0; o < outer; o++ {
		base := o*span + start*inner
		out = append(out, t.data[base:base+length*inner]...)
	}

	return &Tensor{data: out, shape: outShape, backend: t.backend}
}

// Softmax normalizes along the last dimension. Only dim == -1 (or rank-1)
// is supported.
func (t *Tensor) Softmax(dim int) *Tensor {
	if t.shape.normalizeDim(dim) != len(t.shape)-1 {
		panic(fmt.Sprintf("Softmax: only the last dimension is supported, got %d for %v", dim, t.shape))
	}

	n := t.shape[len(t.shape)-1]
	out := make([]float32, len(t.data))
	for r := 0; r < len(t.data)/n; r++ {
		row := t.data[r*n : (r+1)*n]
		dst := out[r*n : (r+1)*n]

		maxVal := row[0]
		for _, v := range row[1:] {
			if v > maxVal {
				maxVal = v
			}
		}
		var sum float64
		for i, v := range row {
			e := math.Exp(float64(v - maxVal))
			dst[i] = float32(e)
			sum += e
		}
		inv := float32(1 / sum)
		for i := range dst {
			dst[i] *= inv
		}
	}

	return &Tensor{data: out, shape: t.shape.Clone(), backend: t.backend}
}

// Tril zeroes every element above the main diagonal of the last two
// dimensions (keeps column j <= row i).
func (t *Tensor) Tril() *Tensor {
	if len(t.shape) < 2 {
		panic(fmt.Sprintf("Tril: need at least 2 dimensions, got %v", t.shape))
	}
	rows, cols := t.shape[len(t.shape)-2], t.shape[len(t.shape)-1]
	out := t.Clone()
	for m := 0; m < len(out.data)/(rows*cols); m++ {
		base := m * rows * cols
		for i := 0; i < rows; i++ {
			for j := i + 1; j < cols; j++ {
				out.data[base+i*cols+j] = 0
			}
		}
	}
	return out
}

// MatMul computes the matrix product over the last two dimensions.
//
//   - t: [..., m, k]
//   - other: [..., k, n] with the same leading dimensions, or [k, n]
//     which is shared by every leading index
//   - result: [..., m, n]
func (t *Tensor) MatMul(other *Tensor) *Tensor {
	return t.matmul(other, false)
}

// MatMulT computes t · otherᵀ over the last two dimensions, where other is
// [..., n, k] (or [n, k]). This is how Linear layers multiply by their
// [out, in] weight without materializing the transpose.
func (t *Tensor) MatMulT(other *Tensor) *Tensor {
	return t.matmul(other, true)
}

func (t *Tensor) matmul(other *Tensor, transB bool) *Tensor {
	if len(t.shape) < 2 || len(other.shape) < 2 {
		panic(fmt.Sprintf("MatMul: need at least 2D operands, got %v and %v", t.shape, other.shape))
	}

	m, k := t.Dim(-2), t.Dim(-1)
	bk, n := other.Dim(-2), other.Dim(-1)
	if transB {
		bk, n = n, bk
	}
	if bk != k {
		panic(fmt.Sprintf("MatMul: inner dimensions differ: %v and %v (transB=%v)", t.shape, other.shape, transB))
	}

	lead := Shape(t.shape[:len(t.shape)-2])
	outShape := append(lead.Clone(), m, n)
	out := make([]float32, outShape.NumElements())

	if len(other.shape) == 2 {
		// Shared right operand: fold every leading index into the row count.
		t.backend.Gemm(transB, len(t.data)/k, n, k, t.data, other.data, out)
		return &Tensor{data: out, shape: outShape, backend: t.backend}
	}

	if !lead.Equal(other.shape[:len(other.shape)-2]) {
		panic(fmt.Sprintf("MatMul: batch dimensions differ: %v and %v", t.shape, other.shape))
	}

	aSize, bSize, cSize := m*k, k*n, m*n
	t.backend.ForEach(lead.NumElements(), func(i int) {
		t.backend.Gemm(transB, m, n, k,
			t.data[i*aSize:(i+1)*aSize],
			other.data[i*bSize:(i+1)*bSize],
			out[i*cSize:(i+1)*cSize])
	})

	return &Tensor{data: out, shape: outShape, backend: t.backend}
}

// Embedding looks up rows of t ([num, dim]) for every id and returns
// [batch, seq, dim]. Panics if an id is outside [0, num).
func (t *Tensor) Embedding(ids *IDs) *Tensor {
	if len(t.shape) != 2 {
		panic(fmt.Sprintf("Embedding: weight must be 2D, got %v", t.shape))
	}
	num, dim := t.shape[0], t.shape[1]

	out := make([]float32, 0, len(ids.data)*dim)
	for _, id := range ids.data {
		if id < 0 || int(id) >= num {
			panic(fmt.Sprintf("Embedding: index %d out of range [0, %d)", id, num))
		}
		out = append(out, t.data[int(id)*dim:(int(id)+1)*dim]...)
	}

	return &Tensor{data: out, shape: Shape{ids.batch, ids.seq, dim}, backend: t.backend}
}

// MaxAbsDiff returns max |t - other| over all elements. Shapes must match.
func (t *Tensor) MaxAbsDiff(other *Tensor) float32 {
	if !t.shape.Equal(other.shape) {
		panic(fmt.Sprintf("MaxAbsDiff: shape mismatch %v vs %v", t.shape, other.shape))
	}
	var worst float32
	for i, v := range t.data {
		d := v - other.data[i]
		if d < 0 {
			d = -d
		}
		if d > worst {
			worst = d
		}
	}
	return worst
}

// AllClose reports whether t and other have equal shapes and all elements
// within tol of each other.
func (t *Tensor) AllClose(other *Tensor, tol float32) bool {
	return t.shape.Equal(other.shape) && t.MaxAbsDiff(other) <= tol
}
