package app

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vk/taskgrid/internal/aggregate"
	"github.com/vk/taskgrid/internal/chunk"
	"github.com/vk/taskgrid/internal/ctxlog"
	"github.com/vk/taskgrid/internal/dag"
	"github.com/vk/taskgrid/internal/executor"
	"github.com/vk/taskgrid/internal/slurm"
	"github.com/vk/taskgrid/internal/submit"
	"github.com/vk/taskgrid/internal/taskfile"
)

// loadGraph parses and validates the task file shared by the validate and
// execution commands.
func (a *App) loadGraph(ctx context.Context, path string) (*dag.Graph, *dag.Validation, error) {
	logger := ctxlog.FromContext(ctx)

	graph, err := taskfile.ParseFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing task file %s: %w", path, err)
	}
	logger.Debug("Task file parsed.", "path", path, "tasks", graph.Len())

	val, err := graph.Validate()
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("Dependency graph validated.", "order", val.Order)
	return graph, val, nil
}

// runValidate checks the task file and reports the execution order and the
// minimum possible completion time.
func (a *App) runValidate(ctx context.Context) error {
	graph, val, err := a.loadGraph(ctx, a.config.Validate.TaskfilePath)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.outW, "Tasks: %d\n", graph.Len())
	fmt.Fprintf(a.outW, "Execution order: %s\n", strings.Join(val.Order, " -> "))
	fmt.Fprintf(a.outW, "Minimum completion time: %ds\n", dag.CriticalPath(graph, val.Order))
	return nil
}

// runGoroutinePool executes the task graph on a shared-memory worker pool.
func (a *App) runGoroutinePool(ctx context.Context) error {
	graph, val, err := a.loadGraph(ctx, a.config.Run.TaskfilePath)
	if err != nil {
		return err
	}

	a.logger.Info("Starting goroutine pool execution.",
		"tasks", graph.Len(), "maxWorkers", a.config.Run.MaxWorkers)
	pool := executor.NewGoroutinePool(a.config.Run.MaxWorkers, graph.Len(), time.Second)
	report, err := executor.New(graph, val, pool).Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.outW, "Completed %d tasks in %s\n", len(report.Completed), report.Elapsed.Round(time.Millisecond))
	return nil
}

// runProcessPool executes the task graph on isolated worker subprocesses.
func (a *App) runProcessPool(ctx context.Context) error {
	graph, val, err := a.loadGraph(ctx, a.config.RunHPC.TaskfilePath)
	if err != nil {
		return err
	}

	a.logger.Info("Starting process pool execution.",
		"tasks", graph.Len(), "maxProcs", a.config.RunHPC.MaxProcs)
	pool, err := executor.NewProcessPool(a.config.RunHPC.MaxProcs, graph.Len(), time.Second, "")
	if err != nil {
		return err
	}
	report, err := executor.New(graph, val, pool).Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.outW, "Completed %d tasks in %s\n", len(report.Completed), report.Elapsed.Round(time.Millisecond))
	return nil
}

// runChunkedPrimes searches the configured range, either locally with one
// worker process per chunk or by submitting a job to the resource manager.
func (a *App) runChunkedPrimes(ctx context.Context) error {
	opts := a.config.Chunked

	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()[:8]
		a.logger.Debug("Generated run identifier.", "runID", runID)
	}

	if opts.Slurm {
		return a.runSubmitted(ctx, runID)
	}
	return a.runLocalChunks(ctx, runID)
}

// runLocalChunks splits the range and runs one local worker process per chunk.
func (a *App) runLocalChunks(ctx context.Context, runID string) error {
	opts := a.config.Chunked

	parts := opts.Chunks
	if opts.Dynamic {
		parts = runtime.NumCPU()
		a.logger.Info("Dynamic chunking enabled.", "chunks", parts)
	}
	chunks, err := chunk.Split(opts.Start, opts.End, parts)
	if err != nil {
		return err
	}

	runner, err := chunk.NewRunner("", a.settings.ResultsDir, runID)
	if err != nil {
		return err
	}
	a.logger.Info("Starting chunk workers.",
		"runID", runID, "chunks", len(chunks), "start", opts.Start, "end", opts.End)
	if err := runner.Run(ctx, chunks); err != nil {
		return err
	}

	if !opts.MergeResults {
		fmt.Fprintf(a.outW, "Run %s finished, partial results left in %s\n", runID, a.settings.ResultsDir)
		return nil
	}
	merged, err := runner.Merge(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.outW, "Found %d primes in [%d..%d], report: %s\n",
		merged.Count, opts.Start, opts.End, merged.Path)
	return nil
}

// runSubmitted hands the search to the cluster resource manager and waits
// for the remote job to finish.
func (a *App) runSubmitted(ctx context.Context, runID string) error {
	opts := a.config.Chunked

	if !slurm.Available(a.settings.SocketPath) {
		return fmt.Errorf("resource manager socket %s not available; run without --slurm for local execution", a.settings.SocketPath)
	}
	client := slurm.NewClient(a.settings.SocketPath, slurm.WithAPIPrefix(a.settings.APIPrefix))
	defer client.Close()

	var agg submit.Aggregator
	if opts.MergeResults {
		agg = aggregate.New(a.settings.LogsDir, a.settings.ResultsDir)
	}

	orch := submit.New(client, agg, submit.Options{
		TemplatePath:     a.settings.TemplatePath,
		DefaultPartition: a.settings.DefaultPartition,
		PollInterval:     a.settings.PollInterval(),
		WorkCommand: func(p submit.Parameters) string {
			return fmt.Sprintf("taskgrid find-primes --logs-dir=%s", a.settings.LogsDir)
		},
	})

	outcome, err := orch.Run(ctx, opts.Start, opts.End, runID, opts.Partition)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.outW, "Job %d completed on partition %s (%d nodes, %d tasks)\n",
		outcome.JobID, outcome.Partition, outcome.NodeCount, outcome.TaskCount)
	return nil
}
