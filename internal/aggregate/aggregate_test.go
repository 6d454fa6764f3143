package aggregate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRankLog(t *testing.T, dir string, jobID int64, rank int, line string) {
	t.Helper()
	name := filepath.Join(dir, fmt.Sprintf("job_%d_rank_%d.log", jobID, rank))
	require.NoError(t, os.WriteFile(name, []byte(line+"\n"), 0o644))
}

func TestMerge(t *testing.T) {
	logsDir := t.TempDir()
	resultsDir := t.TempDir()

	// Ranks written out of order, with an overlapping boundary value.
	writeRankLog(t, logsDir, 42, 1, "Rank=1, Node=w2, subrange=[11..20], found=4, Primes=[11, 13, 17, 19]")
	writeRankLog(t, logsDir, 42, 0, "Rank=0, Node=w1, subrange=[1..11], found=6, Primes=[2, 3, 5, 7, 11, 11]")
	writeRankLog(t, logsDir, 42, 2, "Rank=2, Node=w3, subrange=[21..30], found=2, Primes=[23, 29]")

	merger := New(logsDir, resultsDir)
	report, err := merger.Merge(context.Background(), 42)
	require.NoError(t, err)

	assert.Equal(t, int64(42), report.JobID)
	assert.Equal(t, 3, report.Ranks)
	assert.Equal(t, 12, report.Count, "count sums per-rank found values")

	values, err := os.ReadFile(report.ValuesPath)
	require.NoError(t, err)
	assert.Equal(t, "2\n3\n5\n7\n11\n13\n17\n19\n23\n29\n", string(values),
		"value list is the sorted, duplicate-free union")

	log, err := os.ReadFile(report.LogPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(log)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "Rank=0"), "records ordered by subrange start")
	assert.True(t, strings.HasPrefix(lines[2], "Rank=2"))

	summary, err := os.ReadFile(filepath.Join(resultsDir, "job_42_report.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(summary), "job=42 ranks=3 found=12")
}

func TestMerge_NoLogs(t *testing.T) {
	merger := New(t.TempDir(), t.TempDir())
	_, err := merger.Merge(context.Background(), 7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no rank logs")
}

func TestMerge_MalformedRecord(t *testing.T) {
	logsDir := t.TempDir()
	writeRankLog(t, logsDir, 9, 0, "this is not a record")

	merger := New(logsDir, t.TempDir())
	_, err := merger.Merge(context.Background(), 9)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed result record")
}

func TestAggregate_WrapsMerge(t *testing.T) {
	logsDir := t.TempDir()
	writeRankLog(t, logsDir, 5, 0, "Rank=0, Node=w1, subrange=[1..10], found=4, Primes=[2, 3, 5, 7]")

	merger := New(logsDir, t.TempDir())
	require.NoError(t, merger.Aggregate(context.Background(), 5))
}
