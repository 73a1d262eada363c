package dynamo

import (
	"runtime"
	"sync"
)

// ParallelFor calls fn on contiguous sub-ranges of [0, n) that together
// cover it exactly once. Each sub-range holds at least minChunk indices, so
// small n runs inline on the caller.
func ParallelFor(n, minChunk int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	parts := runtime.GOMAXPROCS(0)
	if minChunk > 0 {
		parts = min(parts, n/minChunk)
	}
	if parts <= 1 {
		fn(0, n)
		return
	}

	var wg sync.WaitGroup
	wg.Add(parts)
	for p := range parts {
		lo, hi := p*n/parts, (p+1)*n/parts
		go func() {
			defer wg.Done()
			fn(lo, hi)
		}()
	}
	wg.Wait()
}
