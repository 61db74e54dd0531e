package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ENV", "test")
	cfg := LoadConfig()

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.RefreshTTL)
	assert.Equal(t, "local", cfg.Storage.Backend)
	assert.Equal(t, "none", cfg.MQ.Backend)
	assert.Equal(t, "report-access-requests", cfg.MQ.RequestsChannel)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("ENV", "test")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_SSL", "true")
	t.Setenv("JWT_SECRET", "  s3cret ")
	t.Setenv("JWT_ACCESS_TTL", "5m")
	t.Setenv("STORAGE_BACKEND", "MinIO")
	t.Setenv("LOGIN_RATE_PER_SECOND", "0.5")

	cfg := LoadConfig()
	assert.Equal(t, 9090, cfg.ServerPort)
	assert.True(t, cfg.Database.UseSSL)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, 5*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, "minio", cfg.Storage.Backend)
	assert.InDelta(t, 0.5, cfg.Auth.LoginPerSecond, 1e-9)
}

func TestInvalidValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("ENV", "test")
	t.Setenv("SERVER_PORT", "abc")
	t.Setenv("JWT_REFRESH_TTL", "a week")
	t.Setenv("MINIO_USE_SSL", "maybe")

	cfg := LoadConfig()
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.RefreshTTL)
	assert.False(t, cfg.Storage.Minio.UseSSL)
}
