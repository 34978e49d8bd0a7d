package config

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_EnvironmentOverrides(t *testing.T) {
	t.Setenv("PG_HOST", "db.internal")
	t.Setenv("PG_PORT", "6543")
	t.Setenv("LIST_DB", "false")
	t.Setenv("DATA_DIR", "/srv/data")

	cfg := New()

	assert.Equal(t, "db.internal", cfg.Host)
	assert.Equal(t, 6543, cfg.Port)
	assert.False(t, cfg.ListDB)
	assert.Equal(t, filepath.Join("/srv/data", "filestore"), cfg.FilestoreRoot())
}

func TestNew_InvalidIntFallsBack(t *testing.T) {
	t.Setenv("RETENTION_DAYS", "thirty")

	cfg := New()
	assert.Equal(t, 30, cfg.RetentionDays)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Port = 0 }, "port"},
		{"empty data dir", func(c *Config) { c.DataDir = "" }, "data-dir"},
		{"bad version", func(c *Config) { c.AppVersion = "17" }, "app-version"},
		{"bad filter", func(c *Config) { c.DBFilter = "([" }, "db-filter"},
		{"negative retention", func(c *Config) { c.RetentionDays = -1 }, "retention-days"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			cfg.DataDir = "/tmp/data"
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.field == "" {
				require.NoError(t, err)
				return
			}

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr), "expected ConfigError, got %v", err)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestExposedDatabases(t *testing.T) {
	cfg := &Config{DBName: " prod, demo ,,prod,alpha"}
	assert.Equal(t, []string{"alpha", "demo", "prod"}, cfg.ExposedDatabases())

	cfg.DBName = ""
	assert.Nil(t, cfg.ExposedDatabases())
}

func TestMajorMinor(t *testing.T) {
	tests := []struct {
		in           string
		major, minor string
		ok           bool
	}{
		{"17.0", "17", "0", true},
		{"17.0.1.3", "17", "0", true},
		{"saas~17.2", "17", "2", true},
		{"17", "", "", false},
		{"", "", "", false},
	}

	for _, tt := range tests {
		major, minor, ok := MajorMinor(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.major, major, tt.in)
		assert.Equal(t, tt.minor, minor, tt.in)
	}
}

func TestLocalConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()

	missing, err := LoadLocalConfigFrom(dir)
	require.NoError(t, err)
	assert.Nil(t, missing)

	cfg := New()
	cfg.Host = "pg.example"
	cfg.ListDB = false
	cfg.DataDir = "/srv/odoo"
	cfg.RetentionDays = 7

	require.NoError(t, SaveLocalConfigTo(dir, ConfigFromConfig(cfg)))

	local, err := LoadLocalConfigFrom(dir)
	require.NoError(t, err)
	require.NotNil(t, local)
	require.NotNil(t, local.ListDB)
	assert.False(t, *local.ListDB)

	fresh := New()
	fresh.ListDB = true
	ApplyLocalConfig(fresh, local)

	assert.Equal(t, "pg.example", fresh.Host)
	assert.False(t, fresh.ListDB)
	assert.Equal(t, "/srv/odoo", fresh.DataDir)
	assert.Equal(t, 7, fresh.RetentionDays)
}
