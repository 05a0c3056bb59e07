// Package config loads the application settings from a YAML or JSON file
// with environment overrides.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/keilos1/harvestplan/core/metrics"
	"github.com/keilos1/harvestplan/infra/mqtt"
)

// EnvPrefix prefixes environment overrides. Nested keys are joined with a
// double underscore, e.g. HARVEST_STORE__PATH.
const EnvPrefix = "HARVEST_"

type Config struct {
	Store   StoreConfig    `json:"store"`
	Solver  SolverConfig   `json:"solver"`
	RunLog  RunLogConfig   `json:"run_log"`
	Metrics metrics.Config `json:"metrics"`
	MQTT    mqtt.Config    `json:"mqtt"`
	HTTP    HTTPConfig     `json:"http"`
	Sentry  SentryConfig   `json:"sentry"`
	Log     LogConfig      `json:"log"`
}

// Default returns the settings used without a configuration file.
func Default() *Config {
	var cfg Config
	cfg.SetDefaults()
	return &cfg
}

// Load reads path, applies environment overrides and defaults, and
// validates the result. An empty path loads the environment only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	c.Store.SetDefaults()
	c.Solver.SetDefaults()
	c.RunLog.SetDefaults()
	c.MQTT.SetDefaults()
	c.HTTP.SetDefaults()
	c.Log.SetDefaults()
}

// Validate checks every section and reports all problems together.
func (c Config) Validate() error {
	sections := []struct {
		name string
		err  error
	}{
		{"store", c.Store.Validate()},
		{"solver", c.Solver.Validate()},
		{"run_log", c.RunLog.Validate()},
		{"mqtt", c.MQTT.Validate()},
		{"http", c.HTTP.Validate()},
		{"log", c.Log.Validate()},
	}
	var errs []error
	for _, s := range sections {
		if s.err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, s.err))
		}
	}
	return errors.Join(errs...)
}
