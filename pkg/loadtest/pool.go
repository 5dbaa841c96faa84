// Package loadtest drives concurrent, paced and probing request loads against an
// exchange client and summarizes latency and error rates.
package loadtest

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc/pool"
)

// Task performs one unit of work.
type Task func(ctx context.Context) Result

// Pool runs tasks on a bounded number of goroutines.
type Pool struct {
	workers int
}

// NewPool creates a pool of workers goroutines; values below one mean one.
func NewPool(workers int) *Pool {
	return &Pool{workers: max(workers, 1)}
}

// Run executes every task and returns exactly one result per task, in task order. A
// panicking task yields a failed result. Tasks not started before ctx is done fail
// with the context error.
func (p *Pool) Run(ctx context.Context, tasks []Task) []Result {
	results := make([]Result, len(tasks))
	if len(tasks) == 0 {
		return results
	}

	wp := pool.New().WithMaxGoroutines(min(p.workers, len(tasks)))
	for i, task := range tasks {
		wp.Go(func() {
			defer func() {
				if r := recover(); r != nil {
					results[i] = Result{Err: fmt.Errorf("task %d panic: %v", i, r)}
				}
			}()
			if err := ctx.Err(); err != nil {
				results[i] = Result{Err: err}
				return
			}
			results[i] = task(ctx)
		})
	}
	wp.Wait()
	return results
}
