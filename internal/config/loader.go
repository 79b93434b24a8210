package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v3"
)

// Load builds the effective configuration: defaults, overlaid by the YAML
// file at path (optional, skipped when empty or missing), overlaid by
// environment variables.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("read config file %s: %w", path, err)
			}
		} else {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config file %s: %w", path, err)
			}
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if cfg.Store.AnalysisDir == "" {
		cfg.Store.AnalysisDir = filepath.Join(cfg.Store.DataDir, "analysis")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration invariants. A missing webhook secret is
// deliberately not an error here: it disables the ingestion path at request
// time (500) while health and retrieval stay available.
func (c *Config) Validate() error {
	if c.Service.Port <= 0 || c.Service.Port > 65535 {
		return fmt.Errorf("service.port must be in (0, 65535], got %d", c.Service.Port)
	}
	if c.Webhook.MaxSkewSeconds <= 0 {
		return fmt.Errorf("webhook.max_skew_seconds must be positive, got %d", c.Webhook.MaxSkewSeconds)
	}
	if c.Webhook.MaxBodySize <= 0 {
		return fmt.Errorf("webhook.max_body_size must be positive, got %d", c.Webhook.MaxBodySize)
	}
	if c.Store.DataDir == "" {
		return fmt.Errorf("store.data_dir is required")
	}
	if c.Tasks.Enabled {
		if c.Tasks.Path == "" {
			return fmt.Errorf("tasks.path is required when tasks are enabled")
		}
		if c.Tasks.TickInterval <= 0 {
			return fmt.Errorf("tasks.tick_interval must be positive")
		}
		if c.Tasks.MaxAttempts <= 0 {
			return fmt.Errorf("tasks.max_attempts must be positive")
		}
	}
	return nil
}

// Listen returns the HTTP listen address for the configured port.
func (c *Config) Listen() string {
	return fmt.Sprintf(":%d", c.Service.Port)
}
