// Package workqueue provides a bounded, named work queue backed by a fixed
// worker pool. Tasks are opaque closures; errors (and recovered panics) are
// collected and surfaced at the next Join barrier.
package workqueue

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
)

// Task is a unit of work executed on a worker goroutine.
type Task func() error

// Queue is a bounded-capacity FIFO work queue with a fixed worker pool.
//
// Enqueue blocks once the backlog reaches capacity. Join waits for
// quiescence: all enqueued tasks have finished. Errors returned by tasks
// accumulate until ReportErrors drains them.
type Queue struct {
	name    string
	tasks   chan Task
	workers int

	mu          sync.Mutex
	outstanding int
	idle        *sync.Cond
	errs        []error

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates a queue with the given diagnostic name, backlog capacity and
// worker count. A non-positive worker count defaults to the number of CPUs;
// a non-positive capacity defaults to 25000.
func New(name string, capacity, workers int) *Queue {
	if capacity <= 0 {
		capacity = 25000
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	q := &Queue{
		name:    name,
		tasks:   make(chan Task, capacity),
		workers: workers,
	}
	q.idle = sync.NewCond(&q.mu)

	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}

	return q
}

// Name returns the diagnostic name of the queue.
func (q *Queue) Name() string {
	return q.name
}

// Workers returns the size of the worker pool.
func (q *Queue) Workers() int {
	return q.workers
}

// Enqueue schedules a task for execution. It blocks while the backlog is
// full. Enqueue must not be called after Close.
func (q *Queue) Enqueue(task Task) {
	q.mu.Lock()
	q.outstanding++
	q.mu.Unlock()

	q.tasks <- task
}

// Join blocks until every task enqueued so far has finished executing.
// Tasks enqueued while Join is waiting are awaited as well.
func (q *Queue) Join() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.outstanding > 0 {
		q.idle.Wait()
	}
}

// HasErrors reports whether any task has failed since the last ReportErrors.
func (q *Queue) HasErrors() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.errs) > 0
}

// Errors returns a snapshot of the accumulated task errors.
func (q *Queue) Errors() []error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]error(nil), q.errs...)
}

// ReportErrors logs every accumulated error under the given category and
// clears the error list.
func (q *Queue) ReportErrors(logger zerolog.Logger, category string) {
	q.mu.Lock()
	errs := q.errs
	q.errs = nil
	q.mu.Unlock()

	for _, err := range errs {
		logger.Error().
			Str("category", category).
			Str("queue", q.name).
			Err(err).
			Msg("Task failed")
	}
}

// Close stops the worker pool after the backlog drains. The queue must be
// quiescent (Join returned) before calling Close.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.tasks)
	})
	q.wg.Wait()
}

func (q *Queue) worker() {
	defer q.wg.Done()

	for task := range q.tasks {
		err := runTask(task)

		q.mu.Lock()
		if err != nil {
			q.errs = append(q.errs, err)
		}
		q.outstanding--
		if q.outstanding == 0 {
			q.idle.Broadcast()
		}
		q.mu.Unlock()
	}
}

func runTask(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return task()
}
