package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tillsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
db_path: /var/lib/tillsync/till.db
register:
  register_id: reg-7
  store_id: store-2
backend:
  base_url: https://pos.example.com
  api_key: k-123
sync:
  interval_seconds: 15
  max_attempts: 5
log:
  level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/tillsync/till.db", cfg.DBPath)
	assert.Equal(t, "reg-7", cfg.Register.RegisterID)
	assert.Equal(t, "https://pos.example.com", cfg.Backend.BaseURL)
	assert.Equal(t, 15, cfg.Sync.IntervalSeconds)
	assert.Equal(t, 5, cfg.Sync.MaxAttempts)
	// Unspecified settings keep their defaults.
	assert.Equal(t, 300, cfg.Sync.BackoffMaxSeconds)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tillsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte("db_path: from-file.db\n"), 0o644))

	t.Setenv("TILLSYNC_DB_PATH", "from-env.db")
	t.Setenv("TILLSYNC_API_KEY", "env-key")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env.db", cfg.DBPath)
	assert.Equal(t, "env-key", cfg.Backend.APIKey)
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "loud"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestValidateRejectsZeroInterval(t *testing.T) {
	cfg := Default()
	cfg.Sync.IntervalSeconds = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBackoffMaxBelowBase(t *testing.T) {
	cfg := Default()
	cfg.Sync.BackoffBaseSeconds = 60
	cfg.Sync.BackoffMaxSeconds = 10
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsEmptyDBPath(t *testing.T) {
	cfg := Default()
	cfg.DBPath = ""
	assert.Error(t, cfg.Validate())
}

func TestDurationHelpers(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "15m0s", cfg.SyncInterval().String())
	assert.Equal(t, "2s", cfg.BackoffBase().String())
	assert.Equal(t, "5m0s", cfg.BackoffMax().String())
	assert.Equal(t, "2m0s", cfg.LockStaleAfter().String())
	assert.Equal(t, "10s", cfg.BackendTimeout().String())
}
