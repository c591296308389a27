package config

import "time"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BaseDir: DefaultBaseDir(),

		Server: ServerConfig{
			RateLimit: 60,
		},

		Sync: SyncConfig{
			Interval: 30 * time.Second,
		},
	}
}
