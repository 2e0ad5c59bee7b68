// Package config handles process configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Config holds the process configuration. The application settings that
// survive between runs live in the database, not here.
type Config struct {
	DatabasePath string
	LogLevel     string
}

// Load reads configuration from environment variables, defaulting the
// database path to a per-user config directory.
func Load() (*Config, error) {
	dbPath := os.Getenv("ISLET_DB")
	if dbPath == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("resolve user config dir: %w", err)
		}
		dbPath = filepath.Join(dir, "islet", "islet.db")
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "warn"
	}

	return &Config{
		DatabasePath: dbPath,
		LogLevel:     logLevel,
	}, nil
}
