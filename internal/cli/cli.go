package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vk/taskgrid/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

const usageText = `
taskgrid - dependency-aware task scheduling and distributed prime finding.

Usage:
  taskgrid <command> [options] [arguments]

Commands:
  validate <taskfile>        Parse a task file, check its dependency graph,
                             and report the topological order and the
                             minimum possible completion time.
  run <taskfile>             Execute the task graph with a goroutine pool.
  run-hpc <taskfile>         Execute the task graph with a pool of isolated
                             worker processes.
  chunked-primes             Split a numeric range into chunks and search
                             each chunk for primes, locally or by submitting
                             a job to the cluster resource manager.
  find-primes                Worker mode: search one subrange and write a
                             result record. Invoked by chunked-primes and by
                             cluster job scripts.

Run 'taskgrid <command> -h' for command options.
`

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")

	if len(args) == 0 {
		fmt.Fprint(output, usageText)
		return nil, true, nil
	}
	command, rest := args[0], args[1:]
	switch command {
	case "help", "-h", "--help":
		fmt.Fprint(output, usageText)
		return nil, true, nil
	}

	var (
		cfg *app.Config
		err error
	)
	switch command {
	case "validate":
		cfg, err = parseValidate(rest, output)
	case "run":
		cfg, err = parseRun(rest, output)
	case "run-hpc":
		cfg, err = parseRunHPC(rest, output)
	case "chunked-primes":
		cfg, err = parseChunkedPrimes(rest, output)
	case "find-primes":
		cfg, err = parseFindPrimes(rest, output)
	case "task-worker":
		cfg, err = parseTaskWorker(rest, output)
	default:
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("unknown command %q, run 'taskgrid help'", command)}
	}
	if err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		if exitErr, ok := err.(*ExitError); ok {
			return nil, false, exitErr
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("CLI parser finished successfully.", "command", cfg.Command)
	return cfg, false, nil
}

// commonFlags are the flags every command accepts.
type commonFlags struct {
	logFormat *string
	logLevel  *string
	settings  *string
}

func newFlagSet(name string, output io.Writer) (*flag.FlagSet, *commonFlags) {
	flagSet := flag.NewFlagSet(name, flag.ContinueOnError)
	flagSet.SetOutput(output)
	common := &commonFlags{
		logFormat: flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'."),
		logLevel:  flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'."),
		settings:  flagSet.String("config", "", "Path to the HCL settings file. Default: taskgrid.hcl if present."),
	}
	return flagSet, common
}

// apply validates the common flag values and copies them into cfg.
func (c *commonFlags) apply(cfg *app.Config) error {
	logFormat := strings.ToLower(*c.logFormat)
	if logFormat != "text" && logFormat != "json" {
		return &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}
	logLevel := strings.ToLower(*c.logLevel)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	cfg.LogFormat = logFormat
	cfg.LogLevel = logLevel
	cfg.SettingsPath = *c.settings
	cfg.SettingsExplicit = *c.settings != ""
	if cfg.SettingsPath == "" {
		cfg.SettingsPath = "taskgrid.hcl"
	}
	return nil
}

// taskfileArg extracts the required positional task file path.
func taskfileArg(flagSet *flag.FlagSet, command string) (string, error) {
	if flagSet.NArg() < 1 {
		return "", &ExitError{Code: 2, Message: fmt.Sprintf("%s: missing task file argument", command)}
	}
	return flagSet.Arg(0), nil
}

func parseValidate(args []string, output io.Writer) (*app.Config, error) {
	flagSet, common := newFlagSet("validate", output)
	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}
	path, err := taskfileArg(flagSet, "validate")
	if err != nil {
		return nil, err
	}
	cfg := app.Config{
		Command:  app.CommandValidate,
		Validate: app.ValidateOptions{TaskfilePath: path},
	}
	if err := common.apply(&cfg); err != nil {
		return nil, err
	}
	return app.NewConfig(cfg)
}

func parseRun(args []string, output io.Writer) (*app.Config, error) {
	flagSet, common := newFlagSet("run", output)
	workers := flagSet.Int("max-workers", 4, "Maximum number of tasks running concurrently.")
	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}
	path, err := taskfileArg(flagSet, "run")
	if err != nil {
		return nil, err
	}
	cfg := app.Config{
		Command: app.CommandRun,
		Run:     app.RunOptions{TaskfilePath: path, MaxWorkers: *workers},
	}
	if err := common.apply(&cfg); err != nil {
		return nil, err
	}
	return app.NewConfig(cfg)
}

func parseRunHPC(args []string, output io.Writer) (*app.Config, error) {
	flagSet, common := newFlagSet("run-hpc", output)
	procs := flagSet.Int("max-procs", 4, "Maximum number of worker processes running concurrently.")
	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}
	path, err := taskfileArg(flagSet, "run-hpc")
	if err != nil {
		return nil, err
	}
	cfg := app.Config{
		Command: app.CommandRunHPC,
		RunHPC:  app.RunHPCOptions{TaskfilePath: path, MaxProcs: *procs},
	}
	if err := common.apply(&cfg); err != nil {
		return nil, err
	}
	return app.NewConfig(cfg)
}

func parseChunkedPrimes(args []string, output io.Writer) (*app.Config, error) {
	flagSet, common := newFlagSet("chunked-primes", output)
	start := flagSet.Int64("start", 1, "Start of the numeric range (inclusive).")
	end := flagSet.Int64("end", 1000, "End of the numeric range (inclusive).")
	chunks := flagSet.Int("chunks", 4, "Number of chunks to split the range into.")
	dynamic := flagSet.Bool("dynamic", false, "Use one chunk per available CPU core instead of --chunks.")
	useSlurm := flagSet.Bool("slurm", false, "Submit the search as a job to the cluster resource manager.")
	partition := flagSet.String("partition", "", "Partition to submit to: a 1-based ordinal or a name. Default: the configured partition.")
	runID := flagSet.String("run-id", "", "Identifier namespacing this run's result files. Default: generated.")
	merge := flagSet.Bool("merge-results", true, "Merge per-chunk result records into a final report.")
	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}
	cfg := app.Config{
		Command: app.CommandChunkedPrimes,
		Chunked: app.ChunkedOptions{
			Start:        *start,
			End:          *end,
			Chunks:       *chunks,
			Dynamic:      *dynamic,
			Slurm:        *useSlurm,
			Partition:    *partition,
			RunID:        *runID,
			MergeResults: *merge,
		},
	}
	if err := common.apply(&cfg); err != nil {
		return nil, err
	}
	return app.NewConfig(cfg)
}

func parseFindPrimes(args []string, output io.Writer) (*app.Config, error) {
	flagSet, common := newFlagSet("find-primes", output)
	start := flagSet.Int64("start", 0, "Start of the subrange (inclusive).")
	end := flagSet.Int64("end", 0, "End of the subrange (inclusive).")
	rank := flagSet.Int("rank", 0, "Worker rank, for the result record.")
	resultFile := flagSet.String("result-file", "", "Write the result record to this file. Empty: derive from scheduler environment.")
	logsDir := flagSet.String("logs-dir", "logs", "Directory for rank logs when running under the scheduler.")
	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}
	cfg := app.Config{
		Command: app.CommandFindPrimes,
		FindPrimes: app.FindPrimesOptions{
			Start:      *start,
			End:        *end,
			Rank:       *rank,
			ResultFile: *resultFile,
			LogsDir:    *logsDir,
		},
	}
	if err := common.apply(&cfg); err != nil {
		return nil, err
	}
	return app.NewConfig(cfg)
}

// parseTaskWorker handles the internal worker mode spawned by run-hpc. It is
// deliberately absent from the usage text.
func parseTaskWorker(args []string, output io.Writer) (*app.Config, error) {
	flagSet, common := newFlagSet("task-worker", output)
	name := flagSet.String("name", "", "Task name to report on completion.")
	sleepMS := flagSet.Int("sleep-ms", 0, "Simulated task duration in milliseconds.")
	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}
	cfg := app.Config{
		Command:    app.CommandTaskWorker,
		TaskWorker: app.TaskWorkerOptions{Name: *name, SleepMS: *sleepMS},
	}
	if err := common.apply(&cfg); err != nil {
		return nil, err
	}
	return app.NewConfig(cfg)
}
