package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// Gemm computes c = a · b (or a · bᵀ when transB) for row-major float32
// matrices using gonum's SGEMM. c is overwritten.
//
// Shapes:
//   - a: [m, k]
//   - b: [k, n], or [n, k] when transB is true
//   - c: [m, n]
func (cpu *CPUBackend) Gemm(transB bool, m, n, k int, a, b, c []float32) {
	if len(a) < m*k || len(b) < k*n || len(c) < m*n {
		panic(fmt.Sprintf("gemm: buffers too small for [%d,%d] @ [%d,%d] (a=%d b=%d c=%d)",
			m, k, k, n, len(a), len(b), len(c)))
	}

	A := blas32.General{Rows: m, Cols: k, Stride: k, Data: a}
	C := blas32.General{Rows: m, Cols: n, Stride: n, Data: c}

	tB := blas.NoTrans
	B := blas32.General{Rows: k, Cols: n, Stride: n, Data: b}
	if transB {
		tB = blas.Trans
		B = blas32.General{Rows: n, Cols: k, Stride: k, Data: b}
	}

	blas32.Gemm(blas.NoTrans, tB, 1, A, B, 0, C)
}
