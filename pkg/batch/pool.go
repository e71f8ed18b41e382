package batch

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/ttvdevil/ttvdevil/pkg/telemetry"
)

// Result is the outcome of one item of a batch.
type Result[R any] struct {
	Value    R
	Err      error
	Duration time.Duration
}

// Pool runs independent jobs on a bounded number of workers.
type Pool struct {
	// maxParallel is the maximum number of concurrent workers
	maxParallel int
}

// NewPool creates a pool. A non-positive maxParallel means one worker per CPU.
func NewPool(maxParallel int) *Pool {
	if maxParallel <= 0 {
		maxParallel = runtime.GOMAXPROCS(0)
	}
	return &Pool{maxParallel: maxParallel}
}

// Workers returns the worker limit.
func (p *Pool) Workers() int {
	return p.maxParallel
}

// Run calls fn for every item and returns the results in item order. A
// failing item does not stop the others. Items still queued when ctx is done
// are not started and carry ctx's error.
func Run[T, R any](ctx context.Context, p *Pool, items []T, fn func(context.Context, T) (R, error)) []Result[R] {
	results := make([]Result[R], len(items))
	if len(items) == 0 {
		return results
	}

	// Determine worker count (min of maxParallel and number of items)
	workerCount := p.maxParallel
	if len(items) < workerCount {
		workerCount = len(items)
	}

	logger := telemetry.FromContext(ctx).NewComponentLogger("batch")
	logger.Debugf("running %d jobs on %d workers", len(items), workerCount)

	workQueue := make(chan int, len(items))
	for i := range items {
		workQueue <- i
	}
	close(workQueue)

	var wg sync.WaitGroup
	for w := 0; w < workerCount; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for i := range workQueue {
				if err := ctx.Err(); err != nil {
					results[i].Err = err
					continue
				}
				results[i] = runOne(ctx, items[i], fn)
			}
		}()
	}

	wg.Wait()
	return results
}

func runOne[T, R any](ctx context.Context, item T, fn func(context.Context, T) (R, error)) (res Result[R]) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("job panicked: %v", r)
		}
		res.Duration = time.Since(start)
	}()

	res.Value, res.Err = fn(ctx, item)
	return res
}

// FirstError returns the first error in item order, or nil.
func FirstError[R any](results []Result[R]) error {
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}
