// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package config loads the application configuration from YAML with
// sensible defaults for every field.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"docsentry/internal/observability"
	"docsentry/internal/store"
)

// Config represents the application configuration
type Config struct {
	// Default settings for CLI runs
	Defaults struct {
		Format           string  `yaml:"format"`
		ConfidenceLevels string  `yaml:"confidence_levels"`
		Categories       string  `yaml:"categories"`
		Threshold        float64 `yaml:"threshold"`
		Verbose          bool    `yaml:"verbose"`
		NoColor          bool    `yaml:"no_color"`
	} `yaml:"defaults"`

	// Custom detection patterns merged into the built-in catalog
	Patterns []PatternConfig `yaml:"patterns"`

	// Redaction settings
	Redaction struct {
		RedactText     bool    `yaml:"redact_text"`
		RedactImages   bool    `yaml:"redact_images"`
		RedactMetadata bool    `yaml:"redact_metadata"`
		Threshold      float64 `yaml:"threshold"`
		OutputDir      string  `yaml:"output_dir"`
	} `yaml:"redaction"`

	// Store selects and configures section persistence
	Store struct {
		Backend  string       `yaml:"backend"` // memory or postgres
		Postgres store.Config `yaml:"postgres"`
	} `yaml:"store"`

	// Web server settings
	Web struct {
		Port          int   `yaml:"port"`
		MaxUploadSize int64 `yaml:"max_upload_size"`
	} `yaml:"web"`

	Logging observability.LogConfig `yaml:"logging"`
}

// PatternConfig declares one user-defined detection pattern.
type PatternConfig struct {
	Name     string `yaml:"name"`
	Regex    string `yaml:"regex"`
	Severity string `yaml:"severity"`
	Category string `yaml:"category"`
}

// Load reads configuration from path. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	config := &Config{}

	config.Defaults.Format = "text"
	config.Defaults.ConfidenceLevels = "all"
	config.Defaults.Categories = "all"
	config.Defaults.Threshold = 0.7
	config.Redaction.RedactText = true
	config.Redaction.RedactImages = true
	config.Redaction.RedactMetadata = true
	config.Redaction.Threshold = 0.7
	config.Redaction.OutputDir = "./redacted"
	config.Store.Backend = "memory"
	config.Store.Postgres.MaxOpenConns = 10
	config.Store.Postgres.MaxIdleConns = 5
	config.Web.Port = 8080
	config.Web.MaxUploadSize = 50 << 20
	config.Logging.Level = "info"
	config.Logging.Format = "console"

	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	// The environment wins over the file for the database URL so deployments
	// never need credentials on disk.
	if dsn := os.Getenv("DOCSENTRY_DATABASE_URL"); dsn != "" {
		config.Store.Postgres.DatabaseURL = dsn
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case "memory", "postgres":
	default:
		return fmt.Errorf("unknown store backend: %s", c.Store.Backend)
	}
	if c.Store.Backend == "postgres" && c.Store.Postgres.DatabaseURL == "" {
		return fmt.Errorf("postgres backend requires a database URL")
	}
	if c.Defaults.Threshold < 0 || c.Defaults.Threshold > 1 {
		return fmt.Errorf("threshold must be between 0 and 1, got %v", c.Defaults.Threshold)
	}
	if c.Redaction.Threshold < 0 || c.Redaction.Threshold > 1 {
		return fmt.Errorf("redaction threshold must be between 0 and 1, got %v", c.Redaction.Threshold)
	}
	if c.Web.Port <= 0 || c.Web.Port > 65535 {
		return fmt.Errorf("invalid web port: %d", c.Web.Port)
	}
	for _, p := range c.Patterns {
		if p.Name == "" || p.Regex == "" {
			return fmt.Errorf("custom pattern needs both name and regex")
		}
	}
	return nil
}
