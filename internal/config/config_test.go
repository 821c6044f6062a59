package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "launchpad.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[database]
url = "postgres://localhost/app"
max = 5

[database.health_check]
enabled = true
interval_ms = 15000

[migrations]
dir = "db/migrations"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/app", cfg.Database.URL)
	assert.Equal(t, 5, cfg.Database.Max)
	assert.True(t, cfg.Database.HealthCheck.Enabled)
	assert.Equal(t, 15000, cfg.Database.HealthCheck.IntervalMs)
	assert.Equal(t, "db/migrations", cfg.Migrations.Dir)
	// Unset settings fall back to defaults.
	assert.Equal(t, "lp_migrations", cfg.Migrations.LedgerTable)
	assert.Equal(t, "lp_schema_registry", cfg.Registry.Table)
}

func TestDatabaseURLEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "launchpad.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[database]
url = "postgres://file/app"
`), 0o644))

	t.Setenv("DATABASE_URL", "postgres://env/app")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://env/app", cfg.Database.URL)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
	_ = cfg

	// Empty path with no config anywhere still yields defaults.
	wd, _ := os.Getwd()
	defer func() { _ = os.Chdir(wd) }()
	require.NoError(t, os.Chdir(t.TempDir()))

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "migrations", cfg.Migrations.Dir)
}
