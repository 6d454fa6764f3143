// Package submit drives a single remote job through the manager: discover
// partitions, select one, compute the resource request, parameterize and
// submit the job template, then poll until a terminal state.
package submit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/vk/taskgrid/internal/ctxlog"
	"github.com/vk/taskgrid/internal/slurm"
)

// ResourceClient is the slice of the cluster client the orchestrator uses.
type ResourceClient interface {
	ListPartitions(ctx context.Context) ([]slurm.Partition, error)
	SubmitJob(ctx context.Context, payload any) (int64, error)
	JobState(ctx context.Context, jobID int64) (slurm.JobState, error)
}

// Aggregator is the external collaborator that merges per-rank output files
// once the job reaches a terminal state. The orchestrator's only obligation
// is to hand it the job identifier.
type Aggregator interface {
	Aggregate(ctx context.Context, jobID int64) error
}

// Options configure one orchestrator run.
type Options struct {
	TemplatePath     string
	DefaultPartition string
	PollInterval     time.Duration
	// WorkCommand builds the embedded per-rank work invocation from the
	// final parameters. Required.
	WorkCommand func(p Parameters) string
}

// Outcome reports what the run did and how the job ended.
type Outcome struct {
	JobID     int64
	State     slurm.JobState
	Partition string
	NodeCount int
	TaskCount int
}

// Orchestrator owns the DISCOVER → SELECT → COMPUTE → SUBMIT → POLL →
// TERMINAL state machine. It performs no local parallel execution; its only
// blocking points are manager calls and the poll sleep, both cancellable
// through the context.
type Orchestrator struct {
	client ResourceClient
	agg    Aggregator
	opts   Options
}

// New creates an orchestrator. agg may be nil when no aggregation is wanted.
func New(client ResourceClient, agg Aggregator, opts Options) *Orchestrator {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	return &Orchestrator{client: client, agg: agg, opts: opts}
}

// Run executes the full state machine for the numeric range [start, end].
// selection picks the partition by ordinal (1-based) or by name; an empty
// selection falls back to the configured default partition. A non-COMPLETED
// terminal state is a failure outcome, reported alongside the Outcome.
func (o *Orchestrator) Run(ctx context.Context, start, end int64, runID, selection string) (*Outcome, error) {
	logger := ctxlog.FromContext(ctx)

	// DISCOVER
	partitions, err := o.client.ListPartitions(ctx)
	if err != nil {
		return nil, err
	}
	if len(partitions) == 0 {
		return nil, fmt.Errorf("no partitions available")
	}

	// SELECT
	partition, err := selectPartition(partitions, selection, o.opts.DefaultPartition)
	if err != nil {
		return nil, err
	}
	logger.Info("Selected partition.",
		"partition", partition.Name,
		"nodes", len(partition.Nodes),
		"idleCpus", partition.IdleCPUs)

	// COMPUTE
	tasks := partition.IdleCPUs
	if tasks < 1 {
		tasks = 1
	}
	params := Parameters{
		JobName:     "PrimeFinder_" + runID,
		Partition:   partition.Name,
		NodeCount:   len(partition.Nodes),
		TaskCount:   tasks,
		CPUsPerTask: 1,
		RunID:       runID,
		RangeStart:  start,
		RangeEnd:    end,
	}
	if o.opts.WorkCommand == nil {
		return nil, fmt.Errorf("no work command configured")
	}
	params.WorkCommand = o.opts.WorkCommand(params)

	// SUBMIT
	tmpl, err := LoadTemplate(o.opts.TemplatePath)
	if err != nil {
		return nil, err
	}
	payload, err := Render(tmpl, params)
	if err != nil {
		return nil, err
	}
	jobID, err := o.client.SubmitJob(ctx, payload)
	if err != nil {
		return nil, err
	}
	logger.Info("Job submitted.", "jobID", jobID, "tasks", tasks, "nodes", params.NodeCount)

	outcome := &Outcome{
		JobID:     jobID,
		Partition: partition.Name,
		NodeCount: params.NodeCount,
		TaskCount: tasks,
	}

	// POLL
	state, err := o.poll(ctx, jobID)
	if err != nil {
		return outcome, err
	}
	outcome.State = state

	// TERMINAL
	if o.agg != nil {
		if err := o.agg.Aggregate(ctx, jobID); err != nil {
			logger.Warn("Result aggregation failed.", "jobID", jobID, "error", err)
		}
	}
	if state != slurm.StateCompleted {
		return outcome, fmt.Errorf("job %d finished in state %s", jobID, state)
	}
	logger.Info("Job completed.", "jobID", jobID)
	return outcome, nil
}

// poll queries the job state at a fixed interval until a terminal state.
// A manager that is temporarily unreachable is retried with exponential
// backoff rather than treated as a job failure; any other error aborts.
func (o *Orchestrator) poll(ctx context.Context, jobID int64) (slurm.JobState, error) {
	logger := ctxlog.FromContext(ctx)

	for {
		var state slurm.JobState
		query := func() error {
			st, err := o.client.JobState(ctx, jobID)
			if err != nil {
				if errors.Is(err, slurm.ErrUnreachable) {
					logger.Warn("Manager unreachable while polling, retrying.", "jobID", jobID, "error", err)
					return err
				}
				return backoff.Permanent(err)
			}
			state = st
			return nil
		}
		if err := backoff.Retry(query, backoff.WithContext(backoff.NewExponentialBackOff(), ctx)); err != nil {
			return "", err
		}

		if state.Terminal() {
			logger.Info("Job reached terminal state.", "jobID", jobID, "state", state)
			return state, nil
		}
		logger.Debug("Job still in progress.", "jobID", jobID, "state", state)

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(o.opts.PollInterval):
		}
	}
}

// selectPartition resolves a selection string against the discovered
// partitions: a 1-based ordinal, a partition name, or empty for the
// configured default. Out-of-range ordinals and unmatched names fail before
// anything is submitted.
func selectPartition(partitions []slurm.Partition, selection, fallback string) (*slurm.Partition, error) {
	name := strings.TrimSpace(selection)
	if name == "" {
		name = fallback
	}
	if name == "" {
		return nil, fmt.Errorf("no partition selected and no default configured")
	}

	if ordinal, err := strconv.Atoi(name); err == nil {
		if ordinal < 1 || ordinal > len(partitions) {
			return nil, fmt.Errorf("invalid partition selection %d: expected 1..%d", ordinal, len(partitions))
		}
		return &partitions[ordinal-1], nil
	}

	for i := range partitions {
		if partitions[i].Name == name {
			return &partitions[i], nil
		}
	}
	return nil, fmt.Errorf("no partition named %q", name)
}
