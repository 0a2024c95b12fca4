// Package parallel provides chunked parallel loops for backend kernels.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Number of worker goroutines to use.
	MinChunkSize int  // Minimum items per goroutine to avoid overhead.
}

// DefaultConfig returns sensible defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 1024,
	}
}

// Sequential returns a config that always runs loops inline. Kernels use
// it when the caller is already inside a parallel region.
func Sequential() Config {
	return Config{Enabled: false}
}

// For executes f(i) for i in [0, n) with optional parallelism.
// Falls back to sequential execution if parallelism is disabled or n is
// too small to pay for goroutine startup.
func For(n int, f func(i int), cfg Config) {
	if !cfg.Enabled || n < cfg.MinChunkSize {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	var wg sync.WaitGroup
	chunkSize := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize)

	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
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

// ForRows executes f(row) for row in [0, rows), chunking whole rows so a
// goroutine always owns complete cache lines of row-major data.
func ForRows(rows, cols int, f func(row int), cfg Config) {
	rowCfg := cfg
	if cfg.MinChunkSize > 0 && cols > 0 {
		// Rescale the element threshold to rows.
		rowCfg.MinChunkSize = max(1, cfg.MinChunkSize/cols)
	}
	For(rows, f, rowCfg)
}
