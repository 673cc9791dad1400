// Package parallel splits element-wise copy and conversion work across goroutines.
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

// DefaultConfig returns defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 1 << 14, // Strided copies are memory bound; small ones are not worth a goroutine.
	}
}

// Sequential returns a config that never spawns goroutines.
func Sequential() Config {
	return Config{}
}

// chunkSize returns the number of items per goroutine for n items, or n when
// the work should run on the calling goroutine.
func (c Config) chunkSize(n int) int {
	if !c.Enabled || c.NumWorkers < 2 || n < 2*max(c.MinChunkSize, 1) {
		return n
	}
	return max((n+c.NumWorkers-1)/c.NumWorkers, c.MinChunkSize)
}

// Range executes f over disjoint half-open sub-ranges covering [0, n) and
// returns when every call has finished. Runs sequentially when parallelism is
// disabled or n is too small.
func Range(n int, f func(start, end int), cfg Config) {
	if n <= 0 {
		return
	}
	chunk := cfg.chunkSize(n)
	if chunk >= n {
		f(0, n)
		return
	}

	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			f(s, e)
		}(start, end)
	}
	wg.Wait()
}

// For executes f(i) for i in [0, n) with optional parallelism.
func For(n int, f func(i int), cfg Config) {
	Range(n, func(start, end int) {
		for i := start; i < end; i++ {
			f(i)
		}
	}, cfg)
}
