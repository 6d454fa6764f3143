package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/vk/taskgrid/internal/chunk"
	"github.com/vk/taskgrid/internal/ctxlog"
	"github.com/vk/taskgrid/internal/primes"
)

// runFindPrimes is the worker mode: search one subrange and write a single
// result record. With an explicit --result-file the subrange comes from the
// flags; otherwise rank, world size, and range come from the scheduler
// environment and each rank computes its own subrange.
func (a *App) runFindPrimes(ctx context.Context) error {
	opts := a.config.FindPrimes
	logger := ctxlog.FromContext(ctx)

	rank := opts.Rank
	start, end := opts.Start, opts.End
	resultFile := opts.ResultFile

	if resultFile == "" {
		procID, err := envInt("SLURM_PROCID")
		if err != nil {
			return fmt.Errorf("no --result-file and no scheduler environment: %w", err)
		}
		size, err := envInt("SLURM_NTASKS")
		if err != nil {
			return err
		}
		jobID := os.Getenv("SLURM_JOB_ID")
		if jobID == "" {
			return fmt.Errorf("SLURM_JOB_ID is not set")
		}
		rangeStart, err := envInt64("RANGE_START")
		if err != nil {
			return err
		}
		rangeEnd, err := envInt64("RANGE_END")
		if err != nil {
			return err
		}

		rank = procID
		sub := chunk.SplitForRank(rangeStart, rangeEnd, rank, size)
		start, end = sub.Start, sub.End
		if err := os.MkdirAll(opts.LogsDir, 0o755); err != nil {
			return fmt.Errorf("creating logs dir: %w", err)
		}
		resultFile = filepath.Join(opts.LogsDir, fmt.Sprintf("job_%s_rank_%d.log", jobID, rank))
		logger.Debug("Derived subrange from scheduler environment.",
			"rank", rank, "size", size, "start", start, "end", end)
	}

	node, err := os.Hostname()
	if err != nil {
		node = "unknown"
	}

	record := &primes.Record{
		Rank:   rank,
		Node:   node,
		Start:  start,
		End:    end,
		Primes: primes.FindInRange(start, end),
	}
	if err := os.WriteFile(resultFile, []byte(record.String()+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing result record: %w", err)
	}
	logger.Info("Subrange search finished.",
		"rank", rank, "start", start, "end", end, "found", record.Count(), "file", resultFile)
	return nil
}

// runTaskWorker simulates one task's workload in an isolated process and
// reports the completed task name on stdout for the parent to verify.
func (a *App) runTaskWorker(ctx context.Context) error {
	opts := a.config.TaskWorker

	d := time.Duration(opts.SleepMS) * time.Millisecond
	if d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	fmt.Fprintln(a.outW, opts.Name)
	return nil
}

func envInt(name string) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, fmt.Errorf("%s is not set", name)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}

func envInt64(name string) (int64, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, fmt.Errorf("%s is not set", name)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}
