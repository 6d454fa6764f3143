package executor

import (
	"context"
	"time"

	"github.com/vk/taskgrid/internal/ctxlog"
	"github.com/vk/taskgrid/internal/dag"
)

// GoroutinePool executes simulated work on a fixed number of worker
// goroutines sharing this process's address space.
type GoroutinePool struct {
	tasks   chan submission
	results chan Result
	unit    time.Duration
}

type submission struct {
	ctx  context.Context
	task *dag.Task
}

// NewGoroutinePool starts workers goroutines. capacity must be at least the
// number of tasks that will be submitted, so that Submit never blocks the
// engine's coordinating loop. unit scales a task's integer duration into
// wall-clock time (one second in production, shorter in tests).
func NewGoroutinePool(workers, capacity int, unit time.Duration) *GoroutinePool {
	if workers < 1 {
		workers = 1
	}
	p := &GoroutinePool{
		tasks:   make(chan submission, capacity),
		results: make(chan Result, capacity),
		unit:    unit,
	}
	for i := 0; i < workers; i++ {
		go p.worker(i)
	}
	return p
}

// worker is the processing loop for a single worker goroutine.
func (p *GoroutinePool) worker(id int) {
	for sub := range p.tasks {
		logger := ctxlog.FromContext(sub.ctx).With("workerID", id, "task", sub.task.Name)
		logger.Debug("Worker picked up task.")

		started := time.Now()
		err := sleepFor(sub.ctx, time.Duration(sub.task.Duration)*p.unit)
		finished := time.Now()

		if err != nil {
			logger.Debug("Task interrupted.", "error", err)
		} else {
			logger.Debug("Task finished.", "elapsed", finished.Sub(started))
		}
		p.results <- Result{Task: sub.task, Err: err, StartedAt: started, FinishedAt: finished}
	}
}

// Submit implements Pool.
func (p *GoroutinePool) Submit(ctx context.Context, task *dag.Task) {
	p.tasks <- submission{ctx: ctx, task: task}
}

// Completions implements Pool.
func (p *GoroutinePool) Completions() <-chan Result {
	return p.results
}

// Close implements Pool.
func (p *GoroutinePool) Close() {
	close(p.tasks)
}

// sleepFor blocks for d, the simulated workload, honoring cancellation.
func sleepFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
