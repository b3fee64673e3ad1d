// Package config loads workspace configuration from .phio/config.json
// with environment overrides. Missing files are not an error; every
// field has a default.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// LoggingConfig mirrors the logging section of config.json.
type LoggingConfig struct {
	DebugMode  bool            `json:"debug_mode"`
	Categories map[string]bool `json:"categories,omitempty"`
	Level      string          `json:"level,omitempty"`
}

// Config is the workspace configuration.
type Config struct {
	Logging          LoggingConfig `json:"logging"`
	RenameSimilarity float64       `json:"rename_similarity,omitempty"`
	MaxWarnings      int           `json:"max_warnings,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Logging:          LoggingConfig{Level: "info"},
		RenameSimilarity: 0.5,
		MaxWarnings:      10,
	}
}

// Load reads .phio/config.json under workspace, applies defaults for
// missing fields, then environment overrides.
func Load(workspace string) (*Config, error) {
	cfg := Default()

	path := filepath.Join(workspace, ".phio", "config.json")
	data, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if cfg.RenameSimilarity <= 0 || cfg.RenameSimilarity > 1 {
		cfg.RenameSimilarity = 0.5
	}
	if cfg.MaxWarnings <= 0 {
		cfg.MaxWarnings = 10
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PHIO_RENAME_SIMILARITY"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 && f <= 1 {
			cfg.RenameSimilarity = f
		}
	}
	if v := os.Getenv("PHIO_MAX_WARNINGS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxWarnings = n
		}
	}
	if v := os.Getenv("PHIO_DEBUG"); v == "1" || v == "true" {
		cfg.Logging.DebugMode = true
	}
}
