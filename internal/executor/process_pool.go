package executor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/vk/taskgrid/internal/ctxlog"
	"github.com/vk/taskgrid/internal/dag"
)

// ProcessPool executes each task in an isolated worker subprocess with no
// shared memory. At most maxProcs workers run at once; completion is read
// back from each child's stdout pipe.
type ProcessPool struct {
	results chan Result
	slots   chan struct{}
	exe     string
	unit    time.Duration
}

// NewProcessPool returns a pool bounded to maxProcs concurrent subprocesses.
// capacity must be at least the number of tasks that will be submitted. The
// worker binary is this executable re-invoked in task-worker mode; exe may
// be empty to use os.Executable.
func NewProcessPool(maxProcs, capacity int, unit time.Duration, exe string) (*ProcessPool, error) {
	if maxProcs < 1 {
		maxProcs = 1
	}
	if exe == "" {
		self, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("locating worker binary: %w", err)
		}
		exe = self
	}
	return &ProcessPool{
		results: make(chan Result, capacity),
		slots:   make(chan struct{}, maxProcs),
		exe:     exe,
		unit:    unit,
	}, nil
}

// Submit implements Pool. The spawned goroutine only shepherds the child
// process; the simulated work happens in the child.
func (p *ProcessPool) Submit(ctx context.Context, task *dag.Task) {
	go func() {
		p.slots <- struct{}{}
		defer func() { <-p.slots }()

		logger := ctxlog.FromContext(ctx).With("task", task.Name)
		started := time.Now()
		err := p.runWorker(ctx, task)
		finished := time.Now()

		if err != nil {
			logger.Debug("Worker process failed.", "error", err)
		} else {
			logger.Debug("Worker process finished.", "elapsed", finished.Sub(started))
		}
		p.results <- Result{Task: task, Err: err, StartedAt: started, FinishedAt: finished}
	}()
}

// runWorker spawns one worker subprocess and confirms its completion report.
func (p *ProcessPool) runWorker(ctx context.Context, task *dag.Task) error {
	sleep := time.Duration(task.Duration) * p.unit
	cmd := exec.CommandContext(ctx, p.exe, "task-worker",
		"--name="+task.Name,
		"--sleep-ms="+strconv.FormatInt(sleep.Milliseconds(), 10))

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("worker process for task %q: %w", task.Name, err)
	}

	// The child reports the task name it completed on its stdout pipe.
	reported := strings.TrimSpace(stdout.String())
	if reported != task.Name {
		return fmt.Errorf("worker for task %q reported completion of %q", task.Name, reported)
	}
	return nil
}

// Completions implements Pool.
func (p *ProcessPool) Completions() <-chan Result {
	return p.results
}

// Close implements Pool. Process workers are spawned per submission, so
// there is no worker loop to stop.
func (p *ProcessPool) Close() {}
