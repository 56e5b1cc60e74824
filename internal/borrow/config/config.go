// Package config loads borrowsan runtime configuration from YAML.
//
// The config file (conventionally borrowsan.yml) selects the
// enforcement mode and diagnostic verbosity for a session:
//
//	version: "1.0"
//	mode: lazy
//	quiet: false
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kolkov/borrowsan/internal/borrow/monitor"
)

// Config represents the top-level borrowsan.yml configuration.
type Config struct {
	Version string `yaml:"version"`
	Mode    string `yaml:"mode,omitempty"`  // "lazy" (default) or "eager"
	Quiet   bool   `yaml:"quiet,omitempty"` // suppress untracked-memory warnings
}

// Default returns the configuration used when no file is given: lazy
// enforcement with warnings on.
func Default() *Config {
	return &Config{Version: "1.0", Mode: "lazy"}
}

// Validate performs strict validation and fills in defaults.
func (c *Config) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	switch c.Mode {
	case "":
		c.Mode = "lazy"
	case "lazy", "eager":
	default:
		return fmt.Errorf("unknown mode: %s (expected: lazy or eager)", c.Mode)
	}

	return nil
}

// MonitorOptions translates the configuration into monitor options.
// Call only after Validate.
func (c *Config) MonitorOptions() monitor.Options {
	opts := monitor.Options{Quiet: c.Quiet}
	if c.Mode == "eager" {
		opts.Mode = monitor.ModeEager
	}
	return opts
}

// Load reads, parses, and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}
