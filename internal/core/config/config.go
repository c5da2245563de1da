// Package config provides configuration management for cohort services.
package config

import "fmt"

// Config holds configuration for the segment registry and query tooling.
type Config struct {
	// DatabaseURL locates the registry store (sqlite:// or postgres://).
	DatabaseURL string

	// PreviewLimit caps rows returned by preview queries.
	PreviewLimit int

	// EvaluateLimit caps rows scanned when materializing membership.
	EvaluateLimit int

	// DefaultSchema qualifies dataset tables when set to anything other
	// than the PostgreSQL default.
	DefaultSchema string
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		DatabaseURL:   "sqlite://cohort.db",
		PreviewLimit:  100,
		EvaluateLimit: 10000,
		DefaultSchema: "public",
	}
}

// validateConfig checks URL presence and positive limits.
func validateConfig(cfg *Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("database.url must be set")
	}
	if cfg.PreviewLimit <= 0 {
		return fmt.Errorf("preview.limit must be positive, got %d", cfg.PreviewLimit)
	}
	if cfg.EvaluateLimit <= 0 {
		return fmt.Errorf("evaluate.limit must be positive, got %d", cfg.EvaluateLimit)
	}
	if cfg.DefaultSchema == "" {
		return fmt.Errorf("dataset.default_schema must not be empty")
	}
	return nil
}
