package app

import "errors"

// Command selects which application mode to run.
type Command string

const (
	CommandValidate      Command = "validate"
	CommandRun           Command = "run"
	CommandRunHPC        Command = "run-hpc"
	CommandChunkedPrimes Command = "chunked-primes"
	CommandFindPrimes    Command = "find-primes"
	CommandTaskWorker    Command = "task-worker"
)

// ValidateOptions configure the validate command.
type ValidateOptions struct {
	TaskfilePath string
}

// RunOptions configure goroutine-pool execution.
type RunOptions struct {
	TaskfilePath string
	MaxWorkers   int
}

// RunHPCOptions configure process-pool execution.
type RunHPCOptions struct {
	TaskfilePath string
	MaxProcs     int
}

// ChunkedOptions configure the chunked prime search, local or submitted.
type ChunkedOptions struct {
	Start        int64
	End          int64
	Chunks       int
	Dynamic      bool
	Slurm        bool
	Partition    string
	RunID        string
	MergeResults bool
}

// FindPrimesOptions configure one worker's subrange search. When ResultFile
// is empty the worker derives its rank, subrange, and output path from the
// scheduler environment.
type FindPrimesOptions struct {
	Start      int64
	End        int64
	Rank       int
	ResultFile string
	LogsDir    string
}

// TaskWorkerOptions configure the internal task-worker mode.
type TaskWorkerOptions struct {
	Name    string
	SleepMS int
}

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	Command Command

	LogFormat        string
	LogLevel         string
	SettingsPath     string
	SettingsExplicit bool

	Validate   ValidateOptions
	Run        RunOptions
	RunHPC     RunHPCOptions
	Chunked    ChunkedOptions
	FindPrimes FindPrimesOptions
	TaskWorker TaskWorkerOptions
}

// NewConfig validates a Config and returns it.
func NewConfig(cfg Config) (*Config, error) {
	switch cfg.Command {
	case CommandValidate:
		if cfg.Validate.TaskfilePath == "" {
			return nil, errors.New("validate: task file path cannot be empty")
		}
	case CommandRun:
		if cfg.Run.TaskfilePath == "" {
			return nil, errors.New("run: task file path cannot be empty")
		}
		if cfg.Run.MaxWorkers < 1 {
			return nil, errors.New("run: max-workers must be at least 1")
		}
	case CommandRunHPC:
		if cfg.RunHPC.TaskfilePath == "" {
			return nil, errors.New("run-hpc: task file path cannot be empty")
		}
		if cfg.RunHPC.MaxProcs < 1 {
			return nil, errors.New("run-hpc: max-procs must be at least 1")
		}
	case CommandChunkedPrimes:
		if cfg.Chunked.Start > cfg.Chunked.End {
			return nil, errors.New("chunked-primes: start must not exceed end")
		}
		if !cfg.Chunked.Dynamic && cfg.Chunked.Chunks < 1 {
			return nil, errors.New("chunked-primes: chunks must be at least 1")
		}
	case CommandFindPrimes:
		if cfg.FindPrimes.ResultFile != "" && cfg.FindPrimes.Start > cfg.FindPrimes.End {
			return nil, errors.New("find-primes: start must not exceed end")
		}
	case CommandTaskWorker:
		if cfg.TaskWorker.Name == "" {
			return nil, errors.New("task-worker: name cannot be empty")
		}
	default:
		return nil, errors.New("no command selected")
	}
	return &cfg, nil
}
