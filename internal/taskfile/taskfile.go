// Package taskfile parses the line-oriented task description format:
//
//	name,duration[,dep1 dep2 ...]
//
// One task per line. Lines starting with '#' and blank lines are ignored.
// Everything after the second comma is a space-separated list of dependency
// names. Malformed lines fail with the offending line number.
package taskfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/vk/taskgrid/internal/dag"
)

// ParseFile reads a task file from disk and returns the parsed graph.
func ParseFile(path string) (*dag.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening task file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads task lines from r and returns the parsed graph. The graph is
// not validated here; call Validate on the result before using it.
func Parse(r io.Reader) (*dag.Graph, error) {
	graph := dag.New()
	scanner := bufio.NewScanner(r)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, ",", 3)
		if len(parts) < 2 {
			return nil, fmt.Errorf("line %d: must have at least 'name,duration'", lineNum)
		}

		name := strings.TrimSpace(parts[0])
		duration, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("line %d: duration must be an integer", lineNum)
		}
		if duration < 0 {
			return nil, fmt.Errorf("line %d: duration must be non-negative", lineNum)
		}

		var deps []string
		if len(parts) == 3 {
			deps = strings.Fields(parts[2])
		}

		if err := graph.Add(&dag.Task{Name: name, Duration: duration, Deps: deps}); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading task file: %w", err)
	}

	return graph, nil
}
