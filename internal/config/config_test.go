package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "file", cfg.Backend)
	assert.Equal(t, "auto", cfg.Transport)
	assert.NotEmpty(t, cfg.DataDir)
	assert.Empty(t, cfg.ProjectID)
	assert.Zero(t, cfg.Debounce())
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
data_dir: /var/lib/ledgerbook
backend: sqlite
project_id: my-project
transport: rest
backup_bucket: my-backups
debounce_ms: 250
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/ledgerbook", cfg.DataDir)
	assert.Equal(t, "sqlite", cfg.Backend)
	assert.Equal(t, "my-project", cfg.ProjectID)
	assert.Equal(t, "rest", cfg.Transport)
	assert.Equal(t, "my-backups", cfg.BackupBucket)
	assert.Equal(t, 250*time.Millisecond, cfg.Debounce())
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
project_id: from-file
transport: sdk
`)
	t.Setenv("LEDGERBOOK_PROJECT_ID", "from-env")
	t.Setenv("LEDGERBOOK_TRANSPORT", "rest")
	t.Setenv("LEDGERBOOK_DATA_DIR", "/tmp/lb-data")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.ProjectID)
	assert.Equal(t, "rest", cfg.Transport)
	assert.Equal(t, "/tmp/lb-data", cfg.DataDir)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "backend: [unterminated")
	_, err := Load(path)
	assert.Error(t, err)
}
