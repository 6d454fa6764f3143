package executor

import (
	"context"
	"time"

	"github.com/vk/taskgrid/internal/dag"
)

// Result is one finished unit of work, reported by a pool to the engine.
type Result struct {
	Task       *dag.Task
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Pool is a bounded concurrent execution facility. Submit queues a task for
// execution and never blocks the caller; the pool size bounds in-flight work
// only. Every submitted task eventually produces exactly one Result on
// Completions. Close releases the pool's workers once no further Submit
// calls will be made.
type Pool interface {
	Submit(ctx context.Context, task *dag.Task)
	Completions() <-chan Result
	Close()
}
