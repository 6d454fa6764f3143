package submit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/taskgrid/internal/slurm"
)

// fakeResourceClient scripts the manager's answers for orchestrator tests.
type fakeResourceClient struct {
	partitions []slurm.Partition
	listErr    error

	jobID     int64
	submitErr error
	submitted any

	states      []slurm.JobState
	stateIdx    int
	unreachable int
}

func (f *fakeResourceClient) ListPartitions(ctx context.Context) ([]slurm.Partition, error) {
	return f.partitions, f.listErr
}

func (f *fakeResourceClient) SubmitJob(ctx context.Context, payload any) (int64, error) {
	f.submitted = payload
	return f.jobID, f.submitErr
}

func (f *fakeResourceClient) JobState(ctx context.Context, jobID int64) (slurm.JobState, error) {
	if f.unreachable > 0 {
		f.unreachable--
		return "", fmt.Errorf("poll: %w", slurm.ErrUnreachable)
	}
	if f.stateIdx >= len(f.states) {
		return slurm.StateUnknown, nil
	}
	s := f.states[f.stateIdx]
	f.stateIdx++
	return s, nil
}

type fakeAggregator struct {
	jobID int64
	err   error
}

func (f *fakeAggregator) Aggregate(ctx context.Context, jobID int64) error {
	f.jobID = jobID
	return f.err
}

func twoPartitions() []slurm.Partition {
	return []slurm.Partition{
		{
			Name:     "Tunninet",
			Nodes:    []slurm.Node{{Name: "w1", CPUs: 8}, {Name: "w2", CPUs: 8}},
			IdleCPUs: 16,
		},
		{
			Name:     "debug",
			Nodes:    []slurm.Node{{Name: "d1", CPUs: 4}},
			IdleCPUs: 0,
		},
	}
}

func testOrchestrator(t *testing.T, client ResourceClient, agg Aggregator) *Orchestrator {
	t.Helper()
	path := filepath.Join(t.TempDir(), "job_template.json")
	require.NoError(t, os.WriteFile(path, []byte(testTemplate), 0o644))

	return New(client, agg, Options{
		TemplatePath:     path,
		DefaultPartition: "Tunninet",
		PollInterval:     time.Millisecond,
		WorkCommand: func(p Parameters) string {
			return "taskgrid find-primes --logs-dir=logs"
		},
	})
}

func TestOrchestrator_HappyPath(t *testing.T) {
	client := &fakeResourceClient{
		partitions: twoPartitions(),
		jobID:      42,
		states:     []slurm.JobState{"PENDING", "RUNNING", slurm.StateCompleted},
	}
	agg := &fakeAggregator{}

	outcome, err := testOrchestrator(t, client, agg).Run(context.Background(), 1, 100000, "abc123", "")
	require.NoError(t, err)

	assert.Equal(t, int64(42), outcome.JobID)
	assert.Equal(t, slurm.StateCompleted, outcome.State)
	assert.Equal(t, "Tunninet", outcome.Partition)
	assert.Equal(t, 2, outcome.NodeCount)
	assert.Equal(t, 16, outcome.TaskCount, "task count follows idle cpus")
	assert.Equal(t, int64(42), agg.jobID, "aggregation runs after the terminal state")

	payload, ok := client.submitted.(map[string]any)
	require.True(t, ok)
	job := payload["job"].(map[string]any)
	assert.Equal(t, "PrimeFinder_abc123", job["name"])
	assert.Equal(t, 16, job["tasks"])
}

func TestOrchestrator_SelectByOrdinal(t *testing.T) {
	client := &fakeResourceClient{
		partitions: twoPartitions(),
		jobID:      7,
		states:     []slurm.JobState{slurm.StateCompleted},
	}

	outcome, err := testOrchestrator(t, client, nil).Run(context.Background(), 1, 10, "r1", "2")
	require.NoError(t, err)
	assert.Equal(t, "debug", outcome.Partition)
	assert.Equal(t, 1, outcome.TaskCount, "zero idle cpus still submits one task")
}

func TestOrchestrator_SelectByName(t *testing.T) {
	client := &fakeResourceClient{
		partitions: twoPartitions(),
		jobID:      7,
		states:     []slurm.JobState{slurm.StateCompleted},
	}

	outcome, err := testOrchestrator(t, client, nil).Run(context.Background(), 1, 10, "r1", "debug")
	require.NoError(t, err)
	assert.Equal(t, "debug", outcome.Partition)
}

func TestOrchestrator_InvalidSelectionNeverSubmits(t *testing.T) {
	testCases := []struct {
		name      string
		selection string
		expected  string
	}{
		{name: "ordinal too large", selection: "3", expected: "invalid partition selection 3: expected 1..2"},
		{name: "ordinal zero", selection: "0", expected: "invalid partition selection 0"},
		{name: "unknown name", selection: "gpu", expected: `no partition named "gpu"`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client := &fakeResourceClient{partitions: twoPartitions(), jobID: 9}

			_, err := testOrchestrator(t, client, nil).Run(context.Background(), 1, 10, "r1", tc.selection)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.expected)
			assert.Nil(t, client.submitted, "selection failures must fail before submission")
		})
	}
}

func TestOrchestrator_NoPartitions(t *testing.T) {
	client := &fakeResourceClient{}
	_, err := testOrchestrator(t, client, nil).Run(context.Background(), 1, 10, "r1", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no partitions")
}

func TestOrchestrator_FailedJobStillAggregates(t *testing.T) {
	client := &fakeResourceClient{
		partitions: twoPartitions(),
		jobID:      13,
		states:     []slurm.JobState{"RUNNING", slurm.StateFailed},
	}
	agg := &fakeAggregator{}

	outcome, err := testOrchestrator(t, client, agg).Run(context.Background(), 1, 10, "r1", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job 13 finished in state FAILED")
	assert.Equal(t, slurm.StateFailed, outcome.State)
	assert.Equal(t, int64(13), agg.jobID, "partial results are still merged after a failure")
}

func TestOrchestrator_NotFoundIsTerminal(t *testing.T) {
	client := &fakeResourceClient{
		partitions: twoPartitions(),
		jobID:      21,
		states:     []slurm.JobState{slurm.StateNotFound},
	}

	outcome, err := testOrchestrator(t, client, nil).Run(context.Background(), 1, 10, "r1", "")
	require.Error(t, err, "NOT_FOUND ends polling but is not a success")
	assert.Equal(t, slurm.StateNotFound, outcome.State)
}

func TestOrchestrator_RetriesUnreachableManager(t *testing.T) {
	client := &fakeResourceClient{
		partitions:  twoPartitions(),
		jobID:       5,
		states:      []slurm.JobState{slurm.StateCompleted},
		unreachable: 2,
	}

	outcome, err := testOrchestrator(t, client, nil).Run(context.Background(), 1, 10, "r1", "")
	require.NoError(t, err, "transient unreachability must not fail the run")
	assert.Equal(t, slurm.StateCompleted, outcome.State)
	assert.Zero(t, client.unreachable, "both unreachable answers were consumed")
}

func TestOrchestrator_SubmitErrorAborts(t *testing.T) {
	client := &fakeResourceClient{
		partitions: twoPartitions(),
		submitErr:  fmt.Errorf("rejected"),
	}

	_, err := testOrchestrator(t, client, nil).Run(context.Background(), 1, 10, "r1", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected")
}
