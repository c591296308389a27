// Package config handles application configuration management.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Base directory for all Satchel data
	BaseDir string

	// Server settings
	Server ServerConfig

	// Sync settings
	Sync SyncConfig

	// Debug enables verbose logging
	Debug bool
}

// ServerConfig holds school-management server settings.
type ServerConfig struct {
	// Base URL of the server API (SATCHEL_SERVER_URL env var)
	URL string
	// Requests per minute against the server
	RateLimit int
}

// SyncConfig holds background sync settings.
type SyncConfig struct {
	// Interval between background passes while online
	Interval time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if url := os.Getenv("SATCHEL_SERVER_URL"); url != "" {
		cfg.Server.URL = url
	}

	if dir := os.Getenv("SATCHEL_DATA_DIR"); dir != "" {
		cfg.BaseDir = dir
	}

	if raw := os.Getenv("SATCHEL_SYNC_INTERVAL"); raw != "" {
		interval, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid SATCHEL_SYNC_INTERVAL %q: %w", raw, err)
		}
		cfg.Sync.Interval = interval
	}

	if raw := os.Getenv("SATCHEL_RATE_LIMIT"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return nil, fmt.Errorf("invalid SATCHEL_RATE_LIMIT %q", raw)
		}
		cfg.Server.RateLimit = limit
	}

	if raw := os.Getenv("SATCHEL_DEBUG"); raw != "" {
		cfg.Debug = raw == "1" || raw == "true"
	}

	// Ensure directories exist
	if err := ensureDirectories(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ensureDirectories creates required directories if they don't exist.
func ensureDirectories(cfg *Config) error {
	return os.MkdirAll(cfg.BaseDir, 0755)
}
