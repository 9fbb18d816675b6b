// Package app holds process-level configuration: the config directory,
// yaml settings, and backup database path resolution.
package app

import (
	"os"
	"path/filepath"
)

// ConfigDir returns ~/.config/faultline/ on all platforms.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "faultline"), nil
}

// EnsureConfigDir creates the config directory and default config.yaml if missing.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}

	configFile := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return os.WriteFile(configFile, []byte(defaultConfig), 0600)
	}
	return nil
}

const defaultConfig = `# faultline configuration
# Run: faultline --help

# Optional: override the backup queue database location.
# Can also be set via FAULTLINE_DB_PATH or --db-path.
# db_path: ~/.config/faultline/faultline.db

# Environment marker attached to report payloads.
# environment: production

# Minimum log level recorded by the log store: debug, info, warn, error.
# log_level: warn

# Reporting sinks. Leave empty to disable a sink.
# report_endpoint: https://errors.example.com/ingest
# report_api_key: ""
# telemetry_url: ""

# Retry policy.
# retry:
#   max_retries: 3
#   base_delay_ms: 1000
#   backoff_factor: 2.0
#   max_delay_ms: 10000
#   jitter: false
`
