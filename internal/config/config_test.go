package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 15, cfg.Capture.StabilityTarget)
	assert.Equal(t, 100.0, cfg.Capture.MinLuminance)
	assert.Equal(t, 240.0, cfg.Capture.MaxLuminance)
	assert.Equal(t, 4, cfg.Recognizer.PageSegMode)
	assert.Len(t, cfg.ScanAreas, len(DefaultScanAreas))
}

func TestLoadKeepsDefaultsForOmittedKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
log_level: debug
capture:
  stability_target: 20
store:
  driver: memory
scan_areas:
  - Gate A
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 20, cfg.Capture.StabilityTarget)
	assert.Equal(t, 5.0, cfg.Capture.NoiseThreshold, "omitted key should keep its default")
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, []string{"Gate A"}, cfg.ScanAreas)
	assert.True(t, cfg.HasScanArea("Gate A"))
	assert.False(t, cfg.HasScanArea("Area Kargo"))
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := Default()
	cfg.Server.Listen = ":9090"

	require.NoError(t, Save(path, cfg))
	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", loaded.Server.Listen)
}

func TestValidateRejectsBadValues(t *testing.T) {
	testCases := []struct {
		desc   string
		mutate func(*Config)
	}{
		{"inverted luminance band", func(c *Config) { c.Capture.MinLuminance = 240; c.Capture.MaxLuminance = 100 }},
		{"zero stability target", func(c *Config) { c.Capture.StabilityTarget = 0 }},
		{"zero interval", func(c *Config) { c.Capture.UpdateInterval = 0 }},
		{"zero stride", func(c *Config) { c.Capture.DiffStride = 0 }},
		{"no languages", func(c *Config) { c.Recognizer.Languages = nil }},
		{"unknown driver", func(c *Config) { c.Store.Driver = "sqlite" }},
		{"redis without url", func(c *Config) { c.Store.Driver = "redis" }},
		{"postgres without dsn", func(c *Config) { c.Store.Driver = "postgres" }},
		{"no scan areas", func(c *Config) { c.ScanAreas = nil }},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("IDBADGE_STORE", "REDIS")
	t.Setenv("IDBADGE_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("IDBADGE_LISTEN", ":7000")

	cfg := Default()
	cfg.applyEnv()

	assert.Equal(t, "redis", cfg.Store.Driver)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Store.RedisURL)
	assert.Equal(t, ":7000", cfg.Server.Listen)
	require.NoError(t, cfg.Validate())
}
