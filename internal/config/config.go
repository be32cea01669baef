// Package config handles process configuration, environment loading, and the
// YAML pipeline definition.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Config holds process-level settings that are not part of a pipeline file.
type Config struct {
	LogLevel        string // debug, info, warn, error (default "info")
	LogFormat       string // text or json (default "text")
	HistoryDBPath   string // SQLite run ledger; empty disables history
	DuckDBThreads   int    // 0 keeps the DuckDB default
	DuckDBMemLimit  string // e.g. "4GB"
	PostgresPassEnv string // fallback password for target.postgres when the file omits it

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel parses LogLevel. Anything slog does not recognize, other than
// the "warning" spelling, falls back to info.
func (c *Config) SlogLevel() slog.Level {
	name := strings.TrimSpace(c.LogLevel)
	if strings.EqualFold(name, "warning") {
		return slog.LevelWarn
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		LogLevel:        os.Getenv("LOG_LEVEL"),
		LogFormat:       strings.ToLower(os.Getenv("LOG_FORMAT")),
		HistoryDBPath:   os.Getenv("DUCKPIPE_HISTORY_DB"),
		DuckDBMemLimit:  os.Getenv("DUCKPIPE_MEMORY_LIMIT"),
		PostgresPassEnv: os.Getenv("PGPASSWORD"),
	}

	if v := os.Getenv("DUCKPIPE_THREADS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("DUCKPIPE_THREADS must be a non-negative integer, got %q", v)
		}
		cfg.DuckDBThreads = n
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	switch cfg.LogFormat {
	case "":
		cfg.LogFormat = "text"
	case "text", "json":
	default:
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("unknown LOG_FORMAT %q, using text", cfg.LogFormat))
		cfg.LogFormat = "text"
	}

	return cfg, nil
}
