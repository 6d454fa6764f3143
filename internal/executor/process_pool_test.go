package executor

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeWorkerStub writes a shell script that mimics the task-worker mode:
// it echoes back the --name flag value, which is the completion report the
// pool verifies.
func writeWorkerStub(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("worker stub requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "worker.sh")
	script := "#!/bin/sh\n" + body
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

const echoNameStub = `for arg in "$@"; do
  case "$arg" in
    --name=*) echo "${arg#--name=}" ;;
  esac
done
`

func TestProcessPool_DiamondCompletes(t *testing.T) {
	for _, procs := range []int{1, 4} {
		exe := writeWorkerStub(t, echoNameStub)
		graph, val := diamondGraph(t)
		pool, err := NewProcessPool(procs, graph.Len(), time.Millisecond, exe)
		require.NoError(t, err)

		report, runErr := New(graph, val, pool).Run(context.Background())
		require.NoError(t, runErr, "procs=%d", procs)
		assert.Len(t, report.Completed, 4)

		dStart := report.StartedAt["D"]
		assert.False(t, dStart.Before(report.FinishedAt["B"]), "D started before B finished")
		assert.False(t, dStart.Before(report.FinishedAt["C"]), "D started before C finished")
	}
}

func TestProcessPool_WrongReportFailsTask(t *testing.T) {
	// A worker that reports the wrong task name must be treated as a failure.
	exe := writeWorkerStub(t, "echo imposter\n")
	graph, val := diamondGraph(t)
	pool, err := NewProcessPool(2, graph.Len(), time.Millisecond, exe)
	require.NoError(t, err)

	report, runErr := New(graph, val, pool).Run(context.Background())
	require.Error(t, runErr)
	assert.Contains(t, runErr.Error(), "reported completion")
	assert.Empty(t, report.Completed)
}

func TestProcessPool_ExitFailureSkipsDependents(t *testing.T) {
	exe := writeWorkerStub(t, "exit 3\n")
	graph, val := diamondGraph(t)
	pool, err := NewProcessPool(2, graph.Len(), time.Millisecond, exe)
	require.NoError(t, err)

	report, runErr := New(graph, val, pool).Run(context.Background())
	require.Error(t, runErr)
	// Only the root is ever dispatched; everything downstream is skipped.
	assert.Equal(t, []string{"A"}, report.Failed)
	assert.Equal(t, []string{"B", "C", "D"}, report.Skipped)
}
