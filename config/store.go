package config

import "fmt"

// Store backends.
const (
	StoreXLSX   = "xlsx"
	StoreMemory = "memory"
)

// StoreConfig selects where the harvesting tables live.
type StoreConfig struct {
	// Backend is "xlsx" or "memory".
	Backend string `json:"backend"`
	// Path is the workbook location for the xlsx backend.
	Path string `json:"path"`
}

func (c *StoreConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = StoreXLSX
	}
	if c.Path == "" {
		c.Path = "harvest.xlsx"
	}
}

func (c StoreConfig) Validate() error {
	switch c.Backend {
	case StoreXLSX, StoreMemory:
		return nil
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
}
