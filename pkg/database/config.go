package database

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LoadConfigFromEnv resolves the SQLite database path and pool settings
// from the environment, defaulting to the XDG data directory path named
// in §6.1.
func LoadConfigFromEnv() (Config, error) {
	path := os.Getenv("ANNAD_DB_PATH")
	if path == "" {
		dataHome := os.Getenv("XDG_DATA_HOME")
		if dataHome == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return Config{}, fmt.Errorf("database: resolve home directory: %w", err)
			}
			dataHome = filepath.Join(home, ".local", "share")
		}
		path = filepath.Join(dataHome, "anna", "telemetry.db")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return Config{}, fmt.Errorf("database: create data directory: %w", err)
	}

	return Config{
		Path:            path,
		MaxOpenConns:    1, // single-writer discipline, §5
		ConnMaxLifetime: time.Hour,
	}, nil
}
