package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8090", cfg.BackendBaseURL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 50, cfg.MaxRequests)
	assert.Equal(t, 20*time.Second, cfg.Window)
	assert.Equal(t, 4, cfg.MaxConcurrent)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.RetryBackoff)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("BACKEND_BASE_URL", "https://api.example.com")
	t.Setenv("BACKEND_MAX_REQUESTS", "10")
	t.Setenv("BACKEND_WINDOW", "5s")
	t.Setenv("DEV_MODE", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com", cfg.BackendBaseURL)
	assert.Equal(t, 10, cfg.MaxRequests)
	assert.Equal(t, 5*time.Second, cfg.Window)
	assert.True(t, cfg.DevMode)
}

func TestLoad_MalformedValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("BACKEND_MAX_REQUESTS", "lots")
	t.Setenv("BACKEND_WINDOW", "soon")
	t.Setenv("DEV_MODE", "yep")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.MaxRequests)
	assert.Equal(t, 20*time.Second, cfg.Window)
	assert.False(t, cfg.DevMode)
}

func TestValidate_RejectsBadQuota(t *testing.T) {
	cfg := &Config{BackendBaseURL: "http://localhost:8090", MaxRequests: 0, MaxConcurrent: 4}
	assert.Error(t, cfg.Validate())

	cfg = &Config{BackendBaseURL: "http://localhost:8090", MaxRequests: 50, MaxConcurrent: -1}
	assert.Error(t, cfg.Validate())

	cfg = &Config{BackendBaseURL: "", MaxRequests: 50, MaxConcurrent: 4}
	assert.Error(t, cfg.Validate())

	cfg = &Config{BackendBaseURL: "http://localhost:8090", MaxRequests: 50, MaxConcurrent: 4}
	assert.NoError(t, cfg.Validate())
}
