package submit

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Placeholders the job template must carry. The template is an externally
// supplied JSON document; unknown fields pass through to the manager
// untouched, so operators can carry site-specific settings.
const (
	RunIDPlaceholder       = "RUN_ID_PLACEHOLDER"
	WorkCommandPlaceholder = "WORK_CMD_PLACEHOLDER"
)

// Parameters are the computed values substituted into the job template
// before submission.
type Parameters struct {
	JobName     string
	Partition   string
	NodeCount   int
	TaskCount   int
	CPUsPerTask int
	RunID       string
	RangeStart  int64
	RangeEnd    int64
	WorkCommand string
}

// LoadTemplate reads and decodes the job template document. Structural
// problems are fatal here, before anything is submitted.
func LoadTemplate(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading job template: %w", err)
	}
	var tmpl map[string]any
	if err := json.Unmarshal(data, &tmpl); err != nil {
		return nil, fmt.Errorf("parsing job template: %w", err)
	}
	return tmpl, nil
}

// Render substitutes the computed parameters into a copy of the template.
// Missing placeholder fields are fatal: a template without a script, a job
// block, or the run-id placeholder cannot produce a correct submission.
func Render(tmpl map[string]any, p Parameters) (map[string]any, error) {
	out, err := deepCopy(tmpl)
	if err != nil {
		return nil, err
	}

	script, ok := out["script"].(string)
	if !ok {
		return nil, fmt.Errorf("job template missing 'script' field")
	}
	if !strings.Contains(script, RunIDPlaceholder) {
		return nil, fmt.Errorf("job template script missing %s", RunIDPlaceholder)
	}
	script = strings.ReplaceAll(script, RunIDPlaceholder, p.RunID)
	script = strings.ReplaceAll(script, WorkCommandPlaceholder, p.WorkCommand)
	out["script"] = script

	job, ok := out["job"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("job template missing 'job' object")
	}

	if rawEnv, ok := job["environment"].([]any); ok {
		env := make([]any, len(rawEnv))
		for i, raw := range rawEnv {
			kv, ok := raw.(string)
			if !ok {
				env[i] = raw
				continue
			}
			switch {
			case strings.HasPrefix(kv, "TOTAL_CORES"):
				env[i] = fmt.Sprintf("TOTAL_CORES=%d", p.TaskCount)
			case strings.HasPrefix(kv, "RANGE_START"):
				env[i] = fmt.Sprintf("RANGE_START=%d", p.RangeStart)
			case strings.HasPrefix(kv, "RANGE_END"):
				env[i] = fmt.Sprintf("RANGE_END=%d", p.RangeEnd)
			default:
				env[i] = strings.ReplaceAll(kv, RunIDPlaceholder, p.RunID)
			}
		}
		job["environment"] = env
	}

	job["name"] = p.JobName
	job["partition"] = p.Partition
	job["nodes"] = p.NodeCount
	job["tasks"] = p.TaskCount
	job["cpus_per_task"] = p.CPUsPerTask

	return out, nil
}

// deepCopy clones the decoded template so repeated renders never see each
// other's substitutions.
func deepCopy(tmpl map[string]any) (map[string]any, error) {
	data, err := json.Marshal(tmpl)
	if err != nil {
		return nil, fmt.Errorf("copying job template: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("copying job template: %w", err)
	}
	return out, nil
}
