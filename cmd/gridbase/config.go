package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// config is the optional YAML config file. Flags explicitly set on the
// command line win over file values.
type config struct {
	HTTP         string `yaml:"http"`
	LogLevel     string `yaml:"log_level"`
	PollInterval string `yaml:"poll_interval"`
	GitSnapshots bool   `yaml:"git_snapshots"`
}

// loadConfig reads a YAML config file. A missing file at the default path is
// not an error; a missing file explicitly requested is.
func loadConfig(path string, explicit bool) (*config, error) {
	contents, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the -config flag
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return &config{}, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg := &config{}
	if err := yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// pollInterval parses the configured poll interval, defaulting to zero
// (which the workspace manager maps to its own default).
func (c *config) pollInterval() (time.Duration, error) {
	if c.PollInterval == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid poll_interval %q: %w", c.PollInterval, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("poll_interval must be positive, got %q", c.PollInterval)
	}
	return d, nil
}
