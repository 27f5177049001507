package config

import (
	"os"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groupcoh/internal/errors"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"GROUPCOH_WORKERS", "GROUPCOH_CACHE_DIR", "GROUPCOH_PERCENTILE", "PORT", "LOG_LEVEL", "GROUPCOH_MAX_BODY_MB"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, runtime.NumCPU(), cfg.Engine.Workers)
	assert.Equal(t, os.TempDir(), cfg.Engine.CacheDir)
	assert.Equal(t, 95.0, cfg.Engine.Percentile)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 64, cfg.Server.MaxBodyMB)
	assert.Equal(t, "INFO", cfg.Log.Level)
}

func TestLoadFromEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GROUPCOH_WORKERS", "3")
	t.Setenv("GROUPCOH_CACHE_DIR", dir)
	t.Setenv("GROUPCOH_PERCENTILE", "99.5")
	t.Setenv("PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Engine.Workers)
	assert.Equal(t, dir, cfg.Engine.CacheDir)
	assert.Equal(t, 99.5, cfg.Engine.Percentile)
	assert.Equal(t, "9090", cfg.Server.Port)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"zero workers", "GROUPCOH_WORKERS", "0"},
		{"percentile above range", "GROUPCOH_PERCENTILE", "101"},
		{"negative percentile", "GROUPCOH_PERCENTILE", "-1"},
		{"zero body limit", "GROUPCOH_MAX_BODY_MB", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
		})
	}
}

func TestUnparseableValuesFallBack(t *testing.T) {
	t.Setenv("GROUPCOH_WORKERS", "many")
	t.Setenv("GROUPCOH_PERCENTILE", "high")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, runtime.NumCPU(), cfg.Engine.Workers)
	assert.Equal(t, 95.0, cfg.Engine.Percentile)
}
