package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLiteConfig(t *testing.T) {
	cfg := DefaultLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, 256, cfg.CacheMaxItems)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoadLiteConfig_Defaults(t *testing.T) {
	// Clear relevant env vars
	clearEnvVars(t)

	cfg := LoadLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, 256, cfg.CacheMaxItems)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadLiteConfig_EnvironmentOverrides(t *testing.T) {
	clearEnvVars(t)

	// Set environment variables
	os.Setenv("PRIORAUTH_DATA_DIR", "/tmp/test-priorauth")
	os.Setenv("PRIORAUTH_CACHE_MAX_ITEMS", "500")
	os.Setenv("PRIORAUTH_CACHE_TTL", "12h")
	os.Setenv("PRIORAUTH_LOG_LEVEL", "debug")
	os.Setenv("OPENFDA_API_KEY", "test-key")

	defer clearEnvVars(t)

	cfg := LoadLiteConfig()

	assert.Equal(t, "/tmp/test-priorauth", cfg.DataDir)
	assert.Equal(t, 500, cfg.CacheMaxItems)
	assert.Equal(t, 12*time.Hour, cfg.CacheTTL)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "test-key", cfg.OpenFDAAPIKey)
}

func TestLoadLiteConfig_InvalidValuesIgnored(t *testing.T) {
	clearEnvVars(t)

	os.Setenv("PRIORAUTH_CACHE_MAX_ITEMS", "not-a-number")
	os.Setenv("PRIORAUTH_CACHE_TTL", "eventually")

	defer clearEnvVars(t)

	cfg := LoadLiteConfig()

	assert.Equal(t, 256, cfg.CacheMaxItems)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
}

func TestLiteConfig_FormularyDBPath(t *testing.T) {
	cfg := &LiteConfig{DataDir: "/home/user/.priorauth"}

	path := cfg.FormularyDBPath()

	assert.Equal(t, "/home/user/.priorauth/formulary.db", path)
}

func TestLiteConfig_ExportDir(t *testing.T) {
	cfg := &LiteConfig{DataDir: "/home/user/.priorauth"}

	path := cfg.ExportDir()

	assert.Equal(t, "/home/user/.priorauth/exports", path)
}

func TestLiteConfig_EnsureDataDir(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "config-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	cfg := &LiteConfig{DataDir: filepath.Join(tmpDir, "priorauth")}

	err = cfg.EnsureDataDir()
	require.NoError(t, err)

	// Verify directories exist
	_, err = os.Stat(cfg.DataDir)
	assert.NoError(t, err)

	_, err = os.Stat(cfg.ExportDir())
	assert.NoError(t, err)
}

func clearEnvVars(t *testing.T) {
	t.Helper()
	vars := []string{
		"PRIORAUTH_DATA_DIR",
		"PRIORAUTH_CACHE_MAX_ITEMS",
		"PRIORAUTH_CACHE_TTL",
		"PRIORAUTH_LOG_LEVEL",
		"PRIORAUTH_LOG_FORMAT",
		"OPENFDA_API_KEY",
	}
	for _, v := range vars {
		os.Unsetenv(v)
	}
}
