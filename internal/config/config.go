// Package config loads the app configuration from a YAML file plus
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the app configuration.
type Config struct {
	// DataDir holds the local kv store. Defaults to ~/.ledgerbook.
	DataDir string `yaml:"data_dir"`
	// Backend selects the kv backend: "file" (default) or "sqlite".
	Backend string `yaml:"backend"`
	// ProjectID is the Firestore project used for sync.
	ProjectID string `yaml:"project_id"`
	// Transport selects the remote access strategy: "auto", "sdk" or "rest".
	Transport string `yaml:"transport"`
	// CredentialsFile optionally points at a service-account key for the
	// SDK transport.
	CredentialsFile string `yaml:"credentials_file"`
	// BackupBucket is the Cloud Storage bucket for snapshot exports.
	BackupBucket string `yaml:"backup_bucket"`
	// DebounceMS overrides the push debounce delay in milliseconds.
	DebounceMS int `yaml:"debounce_ms"`
}

// Debounce returns the configured debounce delay, zero meaning "use the
// engine default".
func (c Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// Load reads the config file at path (missing file is fine, all fields have
// defaults or env fallbacks) and applies environment overrides:
// LEDGERBOOK_DATA_DIR, LEDGERBOOK_PROJECT_ID, LEDGERBOOK_TRANSPORT,
// LEDGERBOOK_BACKEND, LEDGERBOOK_BACKUP_BUCKET, GOOGLE_APPLICATION_CREDENTIALS.
func Load(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %q: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("read config %q: %w", path, err)
	}

	if v := os.Getenv("LEDGERBOOK_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("LEDGERBOOK_PROJECT_ID"); v != "" {
		cfg.ProjectID = v
	}
	if v := os.Getenv("LEDGERBOOK_TRANSPORT"); v != "" {
		cfg.Transport = v
	}
	if v := os.Getenv("LEDGERBOOK_BACKEND"); v != "" {
		cfg.Backend = v
	}
	if v := os.Getenv("LEDGERBOOK_BACKUP_BUCKET"); v != "" {
		cfg.BackupBucket = v
	}

	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("resolve home dir: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".ledgerbook")
	}
	if cfg.Backend == "" {
		cfg.Backend = "file"
	}
	if cfg.Transport == "" {
		cfg.Transport = "auto"
	}
	return cfg, nil
}

// DefaultPath is the conventional config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "ledgerbook.yaml"
	}
	return filepath.Join(home, ".ledgerbook", "config.yaml")
}
