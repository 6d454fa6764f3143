// Package config loads the optional taskgrid.hcl settings file: where the
// resource manager's socket lives, which partition to fall back to, where
// templates, results and logs go. Command-line flags cover the per-invocation
// knobs; this file covers the per-site ones.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

// Settings are the site-level configuration values. Every field is optional;
// zero values fall back to the defaults below.
type Settings struct {
	SocketPath       string `hcl:"socket_path,optional"`
	APIPrefix        string `hcl:"api_prefix,optional"`
	DefaultPartition string `hcl:"default_partition,optional"`
	PollSeconds      int    `hcl:"poll_interval_seconds,optional"`
	TemplatePath     string `hcl:"job_template,optional"`
	ResultsDir       string `hcl:"results_dir,optional"`
	LogsDir          string `hcl:"logs_dir,optional"`
}

// Default returns the built-in settings used when no file is present.
func Default() Settings {
	return Settings{
		SocketPath:       "/var/run/slurmrestd/slurmrestd.sock",
		APIPrefix:        "/slurm/v0.0.40",
		DefaultPartition: "Tunninet",
		PollSeconds:      5,
		TemplatePath:     "template/job_template.json",
		ResultsDir:       "results",
		LogsDir:          "logs",
	}
}

// Load reads settings from an HCL file and fills unset fields from the
// defaults. A missing file is not an error when explicit is false (the
// default path simply may not exist); a file the user named explicitly must
// exist.
func Load(path string, explicit bool) (Settings, error) {
	settings := Settings{}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !explicit {
			return Default(), nil
		}
		return Settings{}, fmt.Errorf("reading settings file: %w", err)
	}
	if err := hclsimple.DecodeFile(path, nil, &settings); err != nil {
		return Settings{}, fmt.Errorf("parsing settings file %s: %w", path, err)
	}

	defaults := Default()
	if settings.SocketPath == "" {
		settings.SocketPath = defaults.SocketPath
	}
	if settings.APIPrefix == "" {
		settings.APIPrefix = defaults.APIPrefix
	}
	if settings.DefaultPartition == "" {
		settings.DefaultPartition = defaults.DefaultPartition
	}
	if settings.PollSeconds <= 0 {
		settings.PollSeconds = defaults.PollSeconds
	}
	if settings.TemplatePath == "" {
		settings.TemplatePath = defaults.TemplatePath
	}
	if settings.ResultsDir == "" {
		settings.ResultsDir = defaults.ResultsDir
	}
	if settings.LogsDir == "" {
		settings.LogsDir = defaults.LogsDir
	}
	return settings, nil
}

// PollInterval returns the poll cadence as a duration.
func (s Settings) PollInterval() time.Duration {
	return time.Duration(s.PollSeconds) * time.Second
}
