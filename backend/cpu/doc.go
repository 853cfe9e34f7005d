// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the CPU compute backend.
//
// Matrix products run on gonum's float32 BLAS. Batched products, such as
// the per-head score and context products of attention, are split across
// goroutines; WithWorkers bounds how many.
//
// Example:
//
//	import (
//	    "github.com/born-ml/cachedbert/backend/cpu"
//	    "github.com/born-ml/cachedbert/cachedbert"
//	)
//
//	backend := cpu.New(cpu.WithWorkers(8))
//	model := cachedbert.NewDecoderLM(cachedbert.GPT2SmallConfig(), backend)
package cpu
