// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the float32 tensors the cached transformer runs on.
//
// # Overview
//
// This package provides:
//   - Tensor: dense row-major float32 storage with NumPy-style broadcasting
//   - IDs: int32 token and segment id matrices
//   - Backend: the compute interface (see backend/cpu)
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/cachedbert/backend/cpu"
//	    "github.com/born-ml/cachedbert/tensor"
//	)
//
//	func main() {
//	    backend := cpu.New()
//
//	    x := tensor.Randn(tensor.Shape{2, 4, 8}, 0, 1, nil, backend)
//	    w := tensor.Randn(tensor.Shape{16, 8}, 0, 0.02, nil, backend)
//
//	    y := x.MatMulT(w)    // [2, 4, 16]
//	    p := y.Softmax(-1)   // normalized over the last axis
//	}
//
// # Semantics
//
// Operations return new tensors and never modify their operands. Reshape is
// the exception: it returns a view over the same storage.
//
// Shape violations (mismatched dimensions, out-of-range indices) panic with a
// message naming the operation.
package tensor
