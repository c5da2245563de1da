package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults matching DefaultConfig
	v.SetDefault("database.url", "sqlite://cohort.db")
	v.SetDefault("preview.limit", 100)
	v.SetDefault("evaluate.limit", 10000)
	v.SetDefault("dataset.default_schema", "public")

	// Bind environment variables with COHORT_ prefix
	// (COHORT_DATABASE_URL, COHORT_PREVIEW_LIMIT, ...)
	v.SetEnvPrefix("COHORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Load config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		DatabaseURL:   v.GetString("database.url"),
		PreviewLimit:  v.GetInt("preview.limit"),
		EvaluateLimit: v.GetInt("evaluate.limit"),
		DefaultSchema: v.GetString("dataset.default_schema"),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
