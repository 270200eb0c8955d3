package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, time.Hour, cfg.Raffle.SessionMaxIdle)
	assert.Equal(t, 10*time.Minute, cfg.Raffle.JanitorInterval)
	assert.Equal(t, 700*time.Millisecond, cfg.Raffle.CelebrationFollowUp)
	assert.Equal(t, []string{"http://localhost:8080"}, cfg.CORSOrigins)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("CORS_ORIGINS", "https://chapter.example.org,https://staging.chapter.example.org")
	t.Setenv("CELEBRATION_FOLLOW_UP", "0s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Len(t, cfg.CORSOrigins, 2)
	assert.Zero(t, cfg.Raffle.CelebrationFollowUp)
}

func TestLoad_Invalid(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Setenv("REDIS_DB", "first")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("REDIS_DB", "0")
	t.Setenv("JANITOR_INTERVAL", "0s")
	_, err = Load()
	assert.Error(t, err)
}
