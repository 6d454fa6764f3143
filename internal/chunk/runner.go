package chunk

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/vk/taskgrid/internal/ctxlog"
	"github.com/vk/taskgrid/internal/primes"
)

// Runner executes one isolated worker process per chunk. Workers share no
// state and need no cross-chunk coordination; each writes its own result
// record file under the results directory.
type Runner struct {
	exe        string
	resultsDir string
	runID      string
}

// NewRunner returns a runner writing result records under resultsDir,
// namespaced by runID. The worker binary is this executable re-invoked in
// find-primes mode; exe may be empty to use os.Executable.
func NewRunner(exe, resultsDir, runID string) (*Runner, error) {
	if exe == "" {
		self, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("locating worker binary: %w", err)
		}
		exe = self
	}
	if err := os.MkdirAll(resultsDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating results dir: %w", err)
	}
	return &Runner{exe: exe, resultsDir: resultsDir, runID: runID}, nil
}

// resultPath is the record file for the i-th chunk (1-based).
func (r *Runner) resultPath(i int) string {
	return filepath.Join(r.resultsDir, fmt.Sprintf("run_%s_chunk_%d.log", r.runID, i))
}

// Run dispatches one worker process per non-empty chunk and waits for all of
// them. Empty chunks are skipped, not treated as errors.
func (r *Runner) Run(ctx context.Context, chunks []Chunk) error {
	logger := ctxlog.FromContext(ctx)

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range chunks {
		if c.Empty() {
			logger.Debug("Skipping empty chunk.", "chunk", c.Label)
			continue
		}
		rank := i + 1
		c := c
		g.Go(func() error {
			logger.Debug("Starting chunk worker.", "chunk", c.Label, "start", c.Start, "end", c.End)
			cmd := exec.CommandContext(gctx, r.exe, "find-primes",
				"--start="+strconv.FormatInt(c.Start, 10),
				"--end="+strconv.FormatInt(c.End, 10),
				"--rank="+strconv.Itoa(rank),
				"--result-file="+r.resultPath(rank))
			cmd.Stderr = os.Stderr
			if err := cmd.Run(); err != nil {
				return fmt.Errorf("chunk worker %s: %w", c.Label, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// MergeResult is the aggregated outcome of all chunk workers.
type MergeResult struct {
	Count  int
	Primes []int64
	Path   string
}

// Merge reads back every chunk's result record, orders them by subrange
// start so the output is deterministic regardless of completion order, and
// produces the sorted, duplicate-free union of all discovered values plus
// the summed count. The merged report replaces the partial files.
func (r *Runner) Merge(ctx context.Context) (*MergeResult, error) {
	logger := ctxlog.FromContext(ctx)

	pattern := filepath.Join(r.resultsDir, fmt.Sprintf("run_%s_chunk_*.log", r.runID))
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no chunk result files matching %s", pattern)
	}

	var records []*primes.Record
	for _, name := range files {
		data, err := os.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("reading chunk result: %w", err)
		}
		rec, err := primes.ParseRecord(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Start < records[j].Start })

	count := 0
	seen := make(map[int64]bool)
	var union []int64
	for _, rec := range records {
		count += rec.Count()
		for _, p := range rec.Primes {
			if !seen[p] {
				seen[p] = true
				union = append(union, p)
			}
		}
	}
	sort.Slice(union, func(i, j int) bool { return union[i] < union[j] })

	finalPath := filepath.Join(r.resultsDir, fmt.Sprintf("final_%s.log", r.runID))
	var sb strings.Builder
	for _, rec := range records {
		sb.WriteString(rec.String())
		sb.WriteByte('\n')
	}
	vals := make([]string, len(union))
	for i, p := range union {
		vals[i] = strconv.FormatInt(p, 10)
	}
	fmt.Fprintf(&sb, "Total=%d, Primes=[%s]\n", count, strings.Join(vals, ", "))
	if err := os.WriteFile(finalPath, []byte(sb.String()), 0o644); err != nil {
		return nil, fmt.Errorf("writing merged report: %w", err)
	}

	for _, name := range files {
		if err := os.Remove(name); err != nil {
			logger.Warn("Could not remove partial result file.", "file", name, "error", err)
		}
	}
	logger.Info("Merged chunk results.", "chunks", len(records), "found", count, "path", finalPath)

	return &MergeResult{Count: count, Primes: union, Path: finalPath}, nil
}
