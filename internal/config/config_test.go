package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/carebook")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := FromViper(newViper())
	require.NoError(t, err)

	assert.False(t, cfg.IsProduction)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 15*time.Minute, cfg.JWTAccessTokenTTL)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.Equal(t, "", cfg.RedisAddr)
	assert.Equal(t, time.Minute, cfg.PromoteEvery)
	assert.Equal(t, 5*time.Minute, cfg.CompleteEvery)
	assert.Equal(t, 24*time.Hour, cfg.RollForwardEvery)
	assert.Equal(t, 200, cfg.RateLimitPerMin)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/carebook")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("APP_ENV", "prod")
	t.Setenv("APP_TIMEZONE", "Africa/Cairo")
	t.Setenv("PROMOTE_EVERY", "30s")
	t.Setenv("REDIS_ADDR", "redis:6379")

	cfg, err := FromViper(newViper())
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction)
	assert.Equal(t, "Africa/Cairo", cfg.Location.String())
	assert.Equal(t, 30*time.Second, cfg.PromoteEvery)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
}

func TestLoadRequiredAndInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing DSN", env: map[string]string{"JWT_SECRET": "s"}},
		{name: "missing secret", env: map[string]string{"DB_DSN": "x"}},
		{name: "bad timezone", env: map[string]string{"DB_DSN": "x", "JWT_SECRET": "s", "APP_TIMEZONE": "Mars/Base"}},
		{name: "bad interval", env: map[string]string{"DB_DSN": "x", "JWT_SECRET": "s", "COMPLETE_EVERY": "soon"}},
		{name: "non-positive interval", env: map[string]string{"DB_DSN": "x", "JWT_SECRET": "s", "ROLLFORWARD_EVERY": "0s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DB_DSN", "")
			t.Setenv("JWT_SECRET", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := FromViper(newViper())
			assert.Error(t, err)
		})
	}
}
