package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

// Paths contains commonly used file paths.
type Paths struct {
	Database string // Main SQLite database
	LogDir   string // Log file directory
}

// GetPaths returns all commonly used paths based on config.
func GetPaths(cfg *Config) Paths {
	return Paths{
		Database: filepath.Join(cfg.BaseDir, "satchel.db"),
		LogDir:   filepath.Join(cfg.BaseDir, "logs"),
	}
}

// DefaultBaseDir returns the default base directory under the
// platform data home (e.g. ~/.local/share/satchel).
func DefaultBaseDir() string {
	return filepath.Join(xdg.DataHome, "satchel")
}
