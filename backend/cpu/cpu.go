// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	internalcpu "github.com/born-ml/cachedbert/internal/backend/cpu"
	"github.com/born-ml/cachedbert/tensor"
)

// Backend represents the CPU backend implementation.
//
// Matrix products go through gonum's single-precision BLAS; the independent
// products of a batched matmul are spread over a bounded set of goroutines.
type Backend = internalcpu.CPUBackend

// Option configures a Backend.
type Option = internalcpu.Option

// ParallelConfig controls the batch fan-out.
type ParallelConfig = internalcpu.Config

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a new CPU backend.
//
// Example:
//
//	backend := cpu.New(cpu.WithWorkers(4))
//	x := tensor.Zeros(tensor.Shape{2, 3}, backend)
func New(opts ...Option) *Backend {
	return internalcpu.New(opts...)
}

// WithWorkers bounds the number of goroutines used per batched matmul.
func WithWorkers(n int) Option {
	return internalcpu.WithWorkers(n)
}

// WithParallel replaces the whole parallel configuration.
func WithParallel(cfg ParallelConfig) Option {
	return internalcpu.WithParallel(cfg)
}

// DefaultParallelConfig uses one worker per CPU.
func DefaultParallelConfig() ParallelConfig {
	return internalcpu.DefaultConfig()
}
