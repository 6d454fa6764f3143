package executor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/vk/taskgrid/internal/ctxlog"
	"github.com/vk/taskgrid/internal/dag"
)

// Engine executes every task of a validated graph exactly once, never before
// all of its dependencies have completed. The engine's coordinating goroutine
// is the sole owner of the in-degree map and the skip set; pools only report
// completion events.
type Engine struct {
	graph *dag.Graph
	val   *dag.Validation
	pool  Pool
}

// Report summarizes one engine run.
type Report struct {
	Completed  []string
	Failed     []string
	Skipped    []string
	Elapsed    time.Duration
	StartedAt  map[string]time.Time
	FinishedAt map[string]time.Time
}

// New creates an engine over a graph that has already passed Validate.
func New(graph *dag.Graph, val *dag.Validation, pool Pool) *Engine {
	return &Engine{graph: graph, val: val, pool: pool}
}

// Run dispatches tasks as they become eligible and waits for all of them to
// finish. A failed task blocks its transitive dependents: they are marked
// skipped, never dispatched, and reported alongside the failure. Run also
// re-validates at the end that every task was either dispatched or skipped,
// failing loudly on any accounting mismatch.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	logger := ctxlog.FromContext(ctx)
	defer e.pool.Close()

	start := time.Now()
	total := e.graph.Len()
	report := &Report{
		StartedAt:  make(map[string]time.Time, total),
		FinishedAt: make(map[string]time.Time, total),
	}

	remaining := make(map[string]int, total)
	for name, deg := range e.val.InDegree {
		remaining[name] = deg
	}
	skipped := make(map[string]bool)

	dispatched := 0
	for _, name := range e.val.Order {
		if remaining[name] == 0 {
			logger.Debug("Dispatching root task.", "task", name)
			e.pool.Submit(ctx, e.graph.Task(name))
			dispatched++
		}
	}

	var firstErr error
	processed := 0
	for processed < dispatched {
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		case res := <-e.pool.Completions():
			processed++
			name := res.Task.Name
			report.StartedAt[name] = res.StartedAt
			report.FinishedAt[name] = res.FinishedAt

			if res.Err != nil {
				logger.Error("Task failed.", "task", name, "error", res.Err)
				report.Failed = append(report.Failed, name)
				if firstErr == nil {
					firstErr = res.Err
				}
				e.skipDependents(ctx, name, skipped)
				continue
			}

			logger.Debug("Task completed.", "task", name)
			report.Completed = append(report.Completed, name)
			for _, dependent := range e.val.Adjacency[name] {
				remaining[dependent]--
				if remaining[dependent] == 0 && !skipped[dependent] {
					logger.Debug("Dispatching unlocked task.", "task", dependent)
					e.pool.Submit(ctx, e.graph.Task(dependent))
					dispatched++
				}
			}
		}
	}

	for name := range skipped {
		report.Skipped = append(report.Skipped, name)
	}
	sort.Strings(report.Skipped)
	report.Elapsed = time.Since(start)

	if firstErr != nil {
		return report, fmt.Errorf("execution failed for %s: %w", strings.Join(report.Failed, ", "), firstErr)
	}

	// Defense against lost wake-ups: every task must have been dispatched,
	// since a clean run skips nothing.
	if dispatched != total {
		return report, fmt.Errorf("engine accounting mismatch: %d of %d tasks were never scheduled", total-dispatched, total)
	}

	logger.Info("All tasks completed.", "tasks", total, "elapsed", report.Elapsed)
	return report, nil
}

// skipDependents marks every transitive dependent of a failed task as
// skipped. Dependents of a failed task cannot have been dispatched yet, so
// marking them is enough to keep them out of the ready set for good.
func (e *Engine) skipDependents(ctx context.Context, name string, skipped map[string]bool) {
	logger := ctxlog.FromContext(ctx)
	for _, dependent := range e.val.Adjacency[name] {
		if skipped[dependent] {
			continue
		}
		logger.Warn("Skipping dependent task due to upstream failure.", "task", dependent, "dependency", name)
		skipped[dependent] = true
		e.skipDependents(ctx, dependent, skipped)
	}
}
