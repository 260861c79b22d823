// Package config loads the per-process configuration surface: which table
// roots to manage and the checkpoint interval, isolation level and retry
// count for each. Loading does not apply these values; callers pass them
// to deltalog when opening handles and starting transactions.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"delta-go/deltaerr"
)

// TableConfig is one table root plus the log handle defaults for it.
type TableConfig struct {
	Root               string `yaml:"root"`
	CheckpointInterval int    `yaml:"checkpointInterval"`
	IsolationLevel     string `yaml:"isolationLevel"`
	MaxRetryCount      int    `yaml:"maxRetryCount"`
}

// Config is the top-level document: the list of tables this process
// manages logs for.
type Config struct {
	Tables []TableConfig `yaml:"tables"`
}

const (
	defaultCheckpointInterval = 10
	defaultIsolationLevel     = "Serializable"
	defaultMaxRetryCount      = 3
)

// LoadConfig reads and parses the YAML document at path, filling in the
// package defaults for any table that omits checkpointInterval,
// isolationLevel or maxRetryCount.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, deltaerr.Wrap(deltaerr.IoError, "config.LoadConfig", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, deltaerr.Wrap(deltaerr.CorruptLog, "config.LoadConfig", err)
	}

	for i := range cfg.Tables {
		t := &cfg.Tables[i]
		if t.Root == "" {
			return nil, deltaerr.Wrap(deltaerr.InvalidArgument, "config.LoadConfig",
				fmt.Errorf("table entry %d is missing root", i))
		}
		if t.CheckpointInterval <= 0 {
			t.CheckpointInterval = defaultCheckpointInterval
		}
		if t.IsolationLevel == "" {
			t.IsolationLevel = defaultIsolationLevel
		}
		if t.MaxRetryCount <= 0 {
			t.MaxRetryCount = defaultMaxRetryCount
		}
	}

	return &cfg, nil
}
