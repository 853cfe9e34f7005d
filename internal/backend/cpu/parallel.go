package cpu

import "sync"

// Config controls how batched kernels are spread over goroutines.
type Config struct {
	Enabled      bool // Whether fan-out is enabled.
	NumWorkers   int  // Maximum number of goroutines per call.
	MinChunkSize int  // Minimum items per goroutine.
}

// ForEach executes f(i) for i in [0, n), splitting the range into at most
// NumWorkers contiguous chunks. Falls back to a sequential loop when fan-out
// is disabled or there is only one chunk worth of work.
func (cpu *CPUBackend) ForEach(n int, f func(i int)) {
	cfg := cpu.parallel
	minChunk := max(cfg.MinChunkSize, 1)
	if !cfg.Enabled || cfg.NumWorkers <= 1 || n <= minChunk {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	chunk := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, minChunk)

	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				f(i)
			}
		}(start, end)
	}
	wg.Wait()
}
