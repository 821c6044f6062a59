// Package config loads the launchpad.toml project file, layered under a
// .env file and LAUNCHPAD_* environment variables. The connection URL is the
// only required setting.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// DefaultFileName is the config file the loader searches for, walking up
// from the working directory.
const DefaultFileName = "launchpad.toml"

// Config is the full project configuration.
type Config struct {
	Database   DatabaseConfig   `toml:"database"`
	Migrations MigrationsConfig `toml:"migrations"`
	Registry   RegistryConfig   `toml:"registry"`
}

// DatabaseConfig maps [database].
type DatabaseConfig struct {
	// URL is the connection string; DATABASE_URL overrides it.
	URL string `toml:"url"`
	// Max bounds the connection pool.
	Max int `toml:"max"`
	// IdleTimeoutMs recycles idle connections.
	IdleTimeoutMs int `toml:"idle_timeout_ms"`
	// ConnectTimeoutMs bounds the connectivity probe at open.
	ConnectTimeoutMs int `toml:"connect_timeout_ms"`
	// HealthCheck configures the periodic probe.
	HealthCheck HealthCheckConfig `toml:"health_check"`
}

// HealthCheckConfig maps [database.health_check].
type HealthCheckConfig struct {
	Enabled    bool `toml:"enabled"`
	IntervalMs int  `toml:"interval_ms"`
	TimeoutMs  int  `toml:"timeout_ms"`
}

// MigrationsConfig maps [migrations].
type MigrationsConfig struct {
	// Dir is the base directory of per-module migration directories.
	Dir string `toml:"dir"`
	// LedgerTable overrides the ledger table name.
	LedgerTable string `toml:"ledger_table"`
	// ModuleTable overrides the module registry table name.
	ModuleTable string `toml:"module_table"`
}

// RegistryConfig maps [registry].
type RegistryConfig struct {
	// Table overrides the schema registry table name.
	Table string `toml:"table"`
}

// IdleTimeout converts the millisecond setting.
func (c DatabaseConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutMs) * time.Millisecond
}

// ConnectTimeout converts the millisecond setting.
func (c DatabaseConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutMs) * time.Millisecond
}

// Load reads the config file at path; an empty path searches for
// launchpad.toml from the working directory upward. A .env file in the
// working directory loads first, and DATABASE_URL takes precedence over the
// file's [database] url.
func Load(path string) (*Config, error) {
	// Missing .env is fine; a malformed one is not worth failing over
	// either.
	_ = godotenv.Load()

	cfg := &Config{}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %q: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode config %q: %w", path, err)
		}
	}

	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Migrations.Dir == "" {
		c.Migrations.Dir = "migrations"
	}
	if c.Migrations.LedgerTable == "" {
		c.Migrations.LedgerTable = "lp_migrations"
	}
	if c.Migrations.ModuleTable == "" {
		c.Migrations.ModuleTable = "lp_module_registry"
	}
	if c.Registry.Table == "" {
		c.Registry.Table = "lp_schema_registry"
	}
}

// findConfigFile walks from the working directory to the filesystem root
// looking for launchpad.toml.
func findConfigFile() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, DefaultFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
