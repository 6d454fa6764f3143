package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/taskgrid/internal/primes"
)

// newTestApp builds an App around a buffer, failing the test on config or
// settings problems.
func newTestApp(t *testing.T, cfg Config) (*App, *bytes.Buffer) {
	t.Helper()
	cfg.LogFormat = "text"
	cfg.LogLevel = "warn"
	cfg.SettingsPath = "taskgrid.hcl"

	validated, err := NewConfig(cfg)
	require.NoError(t, err)

	out := &bytes.Buffer{}
	application, err := NewApp(out, validated)
	require.NoError(t, err)
	return application, out
}

func TestApp_FindPrimesExplicit(t *testing.T) {
	resultFile := filepath.Join(t.TempDir(), "out.log")
	application, _ := newTestApp(t, Config{
		Command: CommandFindPrimes,
		FindPrimes: FindPrimesOptions{
			Start:      1,
			End:        30,
			Rank:       2,
			ResultFile: resultFile,
		},
	})

	require.NoError(t, application.Run(context.Background()))

	data, err := os.ReadFile(resultFile)
	require.NoError(t, err)
	record, err := primes.ParseRecord(strings.TrimSpace(string(data)))
	require.NoError(t, err)

	assert.Equal(t, 2, record.Rank)
	assert.Equal(t, int64(1), record.Start)
	assert.Equal(t, int64(30), record.End)
	assert.Equal(t, []int64{2, 3, 5, 7, 11, 13, 17, 19, 23, 29}, record.Primes)
}

func TestApp_FindPrimesFromSchedulerEnv(t *testing.T) {
	logsDir := t.TempDir()
	t.Setenv("SLURM_PROCID", "1")
	t.Setenv("SLURM_NTASKS", "2")
	t.Setenv("SLURM_JOB_ID", "77")
	t.Setenv("RANGE_START", "1")
	t.Setenv("RANGE_END", "10")

	application, _ := newTestApp(t, Config{
		Command:    CommandFindPrimes,
		FindPrimes: FindPrimesOptions{LogsDir: logsDir},
	})

	require.NoError(t, application.Run(context.Background()))

	data, err := os.ReadFile(filepath.Join(logsDir, "job_77_rank_1.log"))
	require.NoError(t, err)
	record, err := primes.ParseRecord(strings.TrimSpace(string(data)))
	require.NoError(t, err)

	// Rank 1 of 2 over [1,10] covers [6,10].
	assert.Equal(t, int64(6), record.Start)
	assert.Equal(t, int64(10), record.End)
	assert.Equal(t, []int64{7}, record.Primes)
}

func TestApp_FindPrimesMissingEnv(t *testing.T) {
	t.Setenv("SLURM_PROCID", "")
	application, _ := newTestApp(t, Config{
		Command:    CommandFindPrimes,
		FindPrimes: FindPrimesOptions{LogsDir: t.TempDir()},
	})

	err := application.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no --result-file and no scheduler environment")
}

func TestApp_TaskWorker(t *testing.T) {
	application, out := newTestApp(t, Config{
		Command:    CommandTaskWorker,
		TaskWorker: TaskWorkerOptions{Name: "build", SleepMS: 1},
	})

	require.NoError(t, application.Run(context.Background()))
	assert.Equal(t, "build\n", out.String(), "the parent verifies this exact report")
}

func TestApp_ValidateReportsCriticalPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.txt")
	require.NoError(t, os.WriteFile(path, []byte("A,2\nB,3,A\nC,5,B\n"), 0o644))

	application, out := newTestApp(t, Config{
		Command:  CommandValidate,
		Validate: ValidateOptions{TaskfilePath: path},
	})

	require.NoError(t, application.Run(context.Background()))
	assert.Contains(t, out.String(), "Execution order: A -> B -> C")
	assert.Contains(t, out.String(), "Minimum completion time: 10s")
}

func TestApp_RunGoroutinePool(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.txt")
	require.NoError(t, os.WriteFile(path, []byte("A,0\nB,0,A\nC,0,A\nD,0,B C\n"), 0o644))

	application, out := newTestApp(t, Config{
		Command: CommandRun,
		Run:     RunOptions{TaskfilePath: path, MaxWorkers: 4},
	})

	require.NoError(t, application.Run(context.Background()))
	assert.Contains(t, out.String(), "Completed 4 tasks")
}

func TestApp_RunRejectsBadTaskfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.txt")
	require.NoError(t, os.WriteFile(path, []byte("A,1,ghost\n"), 0o644))

	application, _ := newTestApp(t, Config{
		Command: CommandRun,
		Run:     RunOptions{TaskfilePath: path, MaxWorkers: 2},
	})

	err := application.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown task "ghost"`)
}

func TestNewConfig_Rejections(t *testing.T) {
	testCases := []struct {
		name string
		cfg  Config
	}{
		{name: "no command", cfg: Config{}},
		{name: "run without taskfile", cfg: Config{Command: CommandRun, Run: RunOptions{MaxWorkers: 2}}},
		{name: "run with zero workers", cfg: Config{Command: CommandRun, Run: RunOptions{TaskfilePath: "t"}}},
		{name: "chunked inverted range", cfg: Config{Command: CommandChunkedPrimes, Chunked: ChunkedOptions{Start: 5, End: 1, Chunks: 2}}},
		{name: "task worker without name", cfg: Config{Command: CommandTaskWorker}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewConfig(tc.cfg)
			assert.Error(t, err)
		})
	}
}
