// Package cpu implements the CPU backend with BLAS matrix multiplication.
package cpu

import (
	"runtime"

	"github.com/born-ml/cachedbert/internal/tensor"
)

// CPUBackend implements tensor kernels on CPU.
//
// Matrix multiplication goes through gonum's float32 BLAS; batched products
// (one GEMM per batch and head in attention) are fanned out across a bounded
// number of goroutines.
type CPUBackend struct {
	device   tensor.Device
	parallel Config
}

// Option configures a CPUBackend.
type Option func(*CPUBackend)

// WithParallel overrides the batch fan-out configuration.
func WithParallel(cfg Config) Option {
	return func(b *CPUBackend) {
		b.parallel = cfg
	}
}

// WithWorkers limits the number of goroutines used for batched kernels.
// A value <= 1 disables fan-out.
func WithWorkers(n int) Option {
	return func(b *CPUBackend) {
		b.parallel.NumWorkers = n
		b.parallel.Enabled = n > 1
	}
}

// New creates a new CPU backend.
func New(opts ...Option) *CPUBackend {
	b := &CPUBackend{
		device:   tensor.CPU,
		parallel: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Workers returns the configured fan-out width.
func (cpu *CPUBackend) Workers() int {
	if !cpu.parallel.Enabled {
		return 1
	}
	return cpu.parallel.NumWorkers
}

// DefaultConfig returns fan-out defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 1,
	}
}

var _ tensor.Backend = (*CPUBackend)(nil)
