package optimizer

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// ---------------------------------------------------------------------------
// Executor: sequential / parallel backend for the two passes
// ---------------------------------------------------------------------------
//
// Both passes iterate over independent units of work (distinct classes,
// distinct methods). The executor hides whether that iteration is
// sequential or fanned out over worker goroutines; nothing outside this
// file observes the choice.

// executor runs n independent tasks.
type executor interface {
	forEachN(n int, fn func(i int))
}

// serialExecutor runs tasks inline, in order.
type serialExecutor struct{}

func (serialExecutor) forEachN(n int, fn func(i int)) {
	for i := 0; i < n; i++ {
		fn(i)
	}
}

// parallelExecutor fans tasks out over a fixed pool of goroutines pulling
// indices from a shared counter.
type parallelExecutor struct {
	workers int
}

func newParallelExecutor(workers int) parallelExecutor {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return parallelExecutor{workers: workers}
}

func (e parallelExecutor) forEachN(n int, fn func(i int)) {
	if n == 0 {
		return
	}
	workers := e.workers
	if workers > n {
		workers = n
	}
	if workers == 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}

	var next atomic.Int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for {
				i := int(next.Add(1) - 1)
				if i >= n {
					return
				}
				fn(i)
			}
		}()
	}
	wg.Wait()
}
