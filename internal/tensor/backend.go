package tensor

// Device represents the compute device for tensor operations.
type Device int

// Supported compute devices.
const (
	CPU Device = iota
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	default:
		return "Unknown"
	}
}

// Backend executes the heavy kernels behind tensor operations.
//
// Tensors own their data as contiguous row-major float32 slices; a backend
// only has to provide the matrix multiply kernel and a way to fan a batch of
// independent kernels out. Everything element-wise stays in this package.
//
// Implementations:
//   - CPU: gonum BLAS with goroutine fan-out (internal/backend/cpu)
type Backend interface {
	// Gemm computes c = a · b for row-major matrices where a is [m, k] and
	// c is [m, n]. When transB is true, b is laid out as [n, k] and used
	// transposed, otherwise it is [k, n]. c is overwritten.
	Gemm(transB bool, m, n, k int, a, b, c []float32)

	// ForEach calls f(i) for every i in [0, n). Calls may run concurrently;
	// f must only write to memory owned by index i.
	ForEach(n int, f func(i int))

	// Name returns the backend name.
	Name() string

	// Device returns the device the backend computes on.
	Device() Device
}
