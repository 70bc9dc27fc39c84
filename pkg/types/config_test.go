package types

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFrom_Defaults(t *testing.T) {
	cfg, err := LoadConfigFrom(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "6777", cfg.Server.Port)
	assert.Equal(t, ProviderSiliconFlow, cfg.Translation.PrimaryProvider)
	assert.Equal(t, 30*time.Second, cfg.Translation.RequestTimeout)
	assert.Equal(t, 20*time.Second, cfg.Translation.TestTimeout)
	assert.Equal(t, 100, cfg.SiliconFlow.RateLimit)
	assert.Equal(t, time.Minute, cfg.SiliconFlow.RateWindow)
	assert.Equal(t, 60, cfg.Dify.RateLimit)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 1000, cfg.Cache.MaxEntries)
	assert.Empty(t, cfg.Database.Driver)
}

func TestLoadConfigFrom_EnvOverrides(t *testing.T) {
	t.Setenv("PRIMARY_PROVIDER", "dify")
	t.Setenv("DIFY_API_KEY", "app-123")
	t.Setenv("DIFY_RATE_LIMIT", "5")
	t.Setenv("REQUEST_TIMEOUT", "3s")
	t.Setenv("CACHE_ENABLED", "false")

	cfg, err := LoadConfigFrom(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	settings := cfg.Settings()
	assert.Equal(t, ProviderDify, settings.PrimaryProvider)
	assert.Equal(t, ProviderSiliconFlow, settings.FallbackProvider())
	assert.Equal(t, "app-123", settings.Provider(ProviderDify).Credential)
	assert.Equal(t, 3*time.Second, settings.RequestTimeout)
	assert.False(t, settings.CacheEnabled)
	assert.Equal(t, 5, cfg.Dify.RateLimit)
}

func TestLoadConfigFrom_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SILICONFLOW_API_KEY=sk-file\nTARGET_LANGUAGE=fr\n"), 0o600))

	cfg, err := LoadConfigFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-file", cfg.SiliconFlow.APIKey)
	assert.Equal(t, "fr", cfg.Translation.TargetLanguage)
}

func TestLoadConfigFrom_Invalid(t *testing.T) {
	t.Run("unknown primary provider", func(t *testing.T) {
		t.Setenv("PRIMARY_PROVIDER", "deepl")
		_, err := LoadConfigFrom(filepath.Join(t.TempDir(), "missing.env"))
		assert.ErrorIs(t, err, ErrUnknownProvider)
	})

	t.Run("postgres without host", func(t *testing.T) {
		t.Setenv("DB_DRIVER", "postgres")
		_, err := LoadConfigFrom(filepath.Join(t.TempDir(), "missing.env"))
		assert.Error(t, err)
	})

	t.Run("unsupported driver", func(t *testing.T) {
		t.Setenv("DB_DRIVER", "mysql")
		_, err := LoadConfigFrom(filepath.Join(t.TempDir(), "missing.env"))
		assert.ErrorContains(t, err, "unsupported DB_DRIVER")
	})

	t.Run("zero rate limit", func(t *testing.T) {
		t.Setenv("SILICONFLOW_RATE_LIMIT", "0")
		_, err := LoadConfigFrom(filepath.Join(t.TempDir(), "missing.env"))
		assert.ErrorContains(t, err, "SILICONFLOW_RATE_LIMIT")
	})
}
