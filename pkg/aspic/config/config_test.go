package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/aspic/pkg/aspic/internalerr"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, "credal", cfg.Semantics)
	assert.False(t, cfg.LStable())
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
workers: 4
semantics: maxent
stability: lstable
cache_path: /tmp/aspic.db
log_level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, "maxent", cfg.Semantics)
	assert.True(t, cfg.LStable())
	assert.Equal(t, "/tmp/aspic.db", cfg.CachePath)
	assert.Equal(t, "debug", cfg.LogLevel)
	// Unset fields keep their defaults.
	assert.Equal(t, 256, cfg.GroundCacheSize)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := writeConfig(t, "semantics: fuzzy\n")
	_, err := Load(path)
	require.ErrorIs(t, err, internalerr.ErrInvalidConfig)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero workers", func(c *Config) { c.Workers = 0 }},
		{"bad semantics", func(c *Config) { c.Semantics = "exactish" }},
		{"bad stability", func(c *Config) { c.Stability = "sometimes" }},
		{"negative ground cache", func(c *Config) { c.GroundCacheSize = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			require.ErrorIs(t, cfg.Validate(), internalerr.ErrInvalidConfig)
		})
	}
}
