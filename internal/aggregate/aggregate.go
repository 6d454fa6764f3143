// Package aggregate merges the per-rank result records a remote job leaves
// behind into a single final report. It is the collaborator the submission
// orchestrator hands a job identifier to once the job reaches a terminal
// state.
package aggregate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/vk/taskgrid/internal/ctxlog"
	"github.com/vk/taskgrid/internal/primes"
)

// Merger locates rank logs under logsDir and writes the merged report files
// under resultsDir.
type Merger struct {
	logsDir    string
	resultsDir string
}

// New returns a merger reading job_<id>_rank_*.log files from logsDir.
func New(logsDir, resultsDir string) *Merger {
	return &Merger{logsDir: logsDir, resultsDir: resultsDir}
}

// Report is the final aggregated outcome of one remote job.
type Report struct {
	JobID      int64
	Ranks      int
	Count      int
	Elapsed    time.Duration
	ValuesPath string
	LogPath    string
}

// Aggregate merges every rank's record for the given job: the sorted,
// duplicate-free union of discovered values goes to one file, the per-rank
// records ordered by subrange to another, and a summary line ties them
// together. Elapsed wall time spans the earliest to the latest rank log
// write.
func (m *Merger) Aggregate(ctx context.Context, jobID int64) error {
	_, err := m.Merge(ctx, jobID)
	return err
}

// Merge does the work of Aggregate and returns the report for callers that
// want the numbers as well as the files.
func (m *Merger) Merge(ctx context.Context, jobID int64) (*Report, error) {
	logger := ctxlog.FromContext(ctx)

	pattern := filepath.Join(m.logsDir, fmt.Sprintf("job_%d_rank_*.log", jobID))
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no rank logs matching %s", pattern)
	}

	var records []*primes.Record
	var earliest, latest time.Time
	for _, name := range files {
		info, err := os.Stat(name)
		if err == nil {
			mod := info.ModTime()
			if earliest.IsZero() || mod.Before(earliest) {
				earliest = mod
			}
			if mod.After(latest) {
				latest = mod
			}
		}
		data, err := os.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("reading rank log: %w", err)
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

	if err := os.MkdirAll(m.resultsDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating results dir: %w", err)
	}

	valuesPath := filepath.Join(m.resultsDir, fmt.Sprintf("job_%d_primes.txt", jobID))
	var vb strings.Builder
	for _, p := range union {
		vb.WriteString(strconv.FormatInt(p, 10))
		vb.WriteByte('\n')
	}
	if err := os.WriteFile(valuesPath, []byte(vb.String()), 0o644); err != nil {
		return nil, fmt.Errorf("writing value list: %w", err)
	}

	logPath := filepath.Join(m.resultsDir, fmt.Sprintf("job_%d_ranks.log", jobID))
	var lb strings.Builder
	for _, rec := range records {
		lb.WriteString(rec.String())
		lb.WriteByte('\n')
	}
	if err := os.WriteFile(logPath, []byte(lb.String()), 0o644); err != nil {
		return nil, fmt.Errorf("writing aggregated log: %w", err)
	}

	report := &Report{
		JobID:      jobID,
		Ranks:      len(records),
		Count:      count,
		Elapsed:    latest.Sub(earliest),
		ValuesPath: valuesPath,
		LogPath:    logPath,
	}

	reportPath := filepath.Join(m.resultsDir, fmt.Sprintf("job_%d_report.txt", jobID))
	summary := fmt.Sprintf("job=%d ranks=%d found=%d elapsed=%s\nprimes=%s\nranklog=%s\n",
		report.JobID, report.Ranks, report.Count, report.Elapsed, valuesPath, logPath)
	if err := os.WriteFile(reportPath, []byte(summary), 0o644); err != nil {
		return nil, fmt.Errorf("writing final report: %w", err)
	}

	logger.Info("Aggregated rank results.",
		"jobID", jobID, "ranks", report.Ranks, "found", count, "report", reportPath)
	return report, nil
}
