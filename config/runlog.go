package config

import "fmt"

// Run log backends.
const (
	RunLogNone   = "none"
	RunLogJSONL  = "jsonl"
	RunLogSQLite = "sqlite"
)

// RunLogConfig defines where solve runs are recorded.
type RunLogConfig struct {
	// Backend is "jsonl", "sqlite" or "none".
	Backend string `json:"backend"`
	// Path is the file location of the log.
	Path string `json:"path"`
	// MaxSizeMB enables rotation of the jsonl file at this size.
	MaxSizeMB int `json:"max_size_mb"`
	// MaxBackups limits the number of rotated files to keep.
	MaxBackups int `json:"max_backups"`
	// MaxAgeDays removes rotated files older than this number of days.
	MaxAgeDays int `json:"max_age_days"`
}

func (c *RunLogConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = RunLogJSONL
	}
	if c.Path == "" {
		switch c.Backend {
		case RunLogSQLite:
			c.Path = "runs.db"
		default:
			c.Path = "runs.jsonl"
		}
	}
}

func (c RunLogConfig) Validate() error {
	switch c.Backend {
	case RunLogNone, RunLogJSONL, RunLogSQLite:
	default:
		return fmt.Errorf("unknown backend %s", c.Backend)
	}
	if c.MaxSizeMB < 0 || c.MaxBackups < 0 || c.MaxAgeDays < 0 {
		return fmt.Errorf("rotation settings cannot be negative")
	}
	return nil
}
