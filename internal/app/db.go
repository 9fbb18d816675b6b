package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDBPath resolves the backup queue database path.
// Order of precedence:
// 1) CLI override (e.g. --db-path)
// 2) Environment variable: FAULTLINE_DB_PATH
// 3) config.yaml: db_path
// 4) Default: ~/.config/faultline/faultline.db
// Ensures the parent directory exists.
func GetDBPath() (string, error) {
	if override := getDBPathOverride(); override != "" {
		return EnsureDBDir(override)
	}

	if envPath := os.Getenv("FAULTLINE_DB_PATH"); envPath != "" {
		return EnsureDBDir(envPath)
	}

	cfg, err := LoadSettings()
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.DBPath != "" {
		return EnsureDBDir(cfg.DBPath)
	}

	configDir, err := ConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine config directory: %w", err)
	}
	return EnsureDBDir(filepath.Join(configDir, "faultline.db"))
}

// ResolveDBPathDetailed returns the resolved DB path along with the source of
// that decision. For doctor/debug output; normal code should use GetDBPath.
func ResolveDBPathDetailed() (path, source string, err error) {
	if override := getDBPathOverride(); override != "" {
		resolved, ensureErr := EnsureDBDir(override)
		return resolved, "cli(--db-path)", ensureErr
	}

	if envPath := os.Getenv("FAULTLINE_DB_PATH"); envPath != "" {
		resolved, ensureErr := EnsureDBDir(envPath)
		return resolved, "env(FAULTLINE_DB_PATH)", ensureErr
	}

	cfg, err := LoadSettings()
	if err != nil {
		return "", "", err
	}
	if cfg.DBPath != "" {
		resolved, ensureErr := EnsureDBDir(cfg.DBPath)
		return resolved, "config(db_path)", ensureErr
	}

	configDir, err := ConfigDir()
	if err != nil {
		return "", "", fmt.Errorf("failed to determine config directory: %w", err)
	}
	resolved, err := EnsureDBDir(filepath.Join(configDir, "faultline.db"))
	return resolved, "default(~/.config/faultline/faultline.db)", err
}

// EnsureDBDir creates the parent directory for a database path.
func EnsureDBDir(dbPath string) (string, error) {
	if dbPath == ":memory:" || len(dbPath) >= 5 && dbPath[:5] == "file:" {
		return dbPath, nil
	}
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create database directory: %w", err)
	}
	return dbPath, nil
}
