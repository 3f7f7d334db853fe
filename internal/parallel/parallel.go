// Package parallel provides the data-parallel loops used by the CPU kernels.
package parallel

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/born-ml/detops/internal/envconfig"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Number of worker goroutines to use.
	MinChunkSize int  // Minimum items per goroutine to avoid overhead.
}

// DefaultConfig returns defaults based on CPU count, overridden by
// DETOPS_NUM_THREADS, DETOPS_MIN_CHUNK and DETOPS_SEQUENTIAL.
//
// Work items in this module are whole planes or (region, channel) pairs,
// so the chunk floor is far lower than for element-wise loops.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	if t := int(envconfig.NumThreads()); t > 0 {
		n = t
	}
	return Config{
		Enabled:      n > 1 && !envconfig.Sequential(),
		NumWorkers:   n,
		MinChunkSize: max(int(envconfig.MinChunk()), 1),
	}
}

// Sequential returns a config that runs every loop on the calling goroutine.
func Sequential() Config {
	return Config{Enabled: false, NumWorkers: 1, MinChunkSize: 1}
}

// String implements fmt.Stringer for log output.
func (c Config) String() string {
	if !c.Enabled {
		return "sequential"
	}
	return fmt.Sprintf("workers=%d min_chunk=%d", c.NumWorkers, c.MinChunkSize)
}

// For executes f(i) for i in [0, n) with optional parallelism.
// Falls back to sequential execution if parallelism is disabled or n is too small.
// Every index is visited exactly once; callers must not let two indices
// write the same memory.
func For(n int, f func(i int), cfg Config) {
	if !cfg.Enabled || cfg.NumWorkers <= 1 || n < 2*cfg.MinChunkSize {
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

// ForBatch iterates the (outer, inner) pairs of a flattened outer*inner
// space, e.g. (batch, channel) planes or (region, channel) pairs.
func ForBatch(outer, inner int, f func(o, i int), cfg Config) {
	if inner == 0 {
		return
	}
	For(outer*inner, func(k int) {
		f(k/inner, k%inner)
	}, cfg)
}
