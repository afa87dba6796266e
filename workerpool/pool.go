package workerpool

import (
	"sync"

	"github.com/sourcegraph/conc/pool"
)

// Pool runs tasks concurrently with an optional goroutine limit. You must
// create a Pool with New. A Pool can't be reused once Wait returns.
type Pool struct {
	p       *pool.Pool
	mu      *sync.Mutex
	pending int
}

// New returns a Pool that runs at most maxWorkers tasks at once. A
// maxWorkers of zero or less means there is no limit.
func New(maxWorkers int) *Pool {
	p := pool.New()
	if maxWorkers > 0 {
		p = p.WithMaxGoroutines(maxWorkers)
	}
	return &Pool{
		p:  p,
		mu: &sync.Mutex{},
	}
}

// Submit schedules task. If the pool is at its limit, Submit blocks until a
// worker frees up, but never waits for task itself to finish.
func (wp *Pool) Submit(task func()) {
	wp.mu.Lock()
	wp.pending++
	wp.mu.Unlock()

	wp.p.Go(func() {
		defer func() {
			wp.mu.Lock()
			wp.pending--
			wp.mu.Unlock()
		}()
		task()
	})
}

// Pending returns the number of submitted tasks that haven't finished.
func (wp *Pool) Pending() int {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	return wp.pending
}

// Wait blocks until every submitted task has returned. A panic inside a
// task is re-raised here.
func (wp *Pool) Wait() {
	wp.p.Wait()
}
