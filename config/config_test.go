package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FFMPEG_PATH", "/opt/bin/ffmpeg")

	cfg := Load()

	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, "/opt/bin/ffmpeg", cfg.FFmpegPath)
	assert.Equal(t, "/opt/bin/ffprobe", cfg.FFprobePath)
	assert.Equal(t, int64(10<<20), cfg.MaxUploadBytes)
	assert.Equal(t, time.Hour, cfg.CleanupInterval)
	assert.Equal(t, 24*time.Hour, cfg.CleanupMaxAge)
	assert.Equal(t, 7*24*time.Hour, cfg.JWTExpiry)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "none", cfg.StorageBackend)
	assert.Zero(t, cfg.FFmpegTimeout)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "8081")
	t.Setenv("DB_DRIVER", "MySQL")
	t.Setenv("CLEANUP_MAX_AGE", "2h")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("REDIS_HOST", "cache.local")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("FFPROBE_PATH", "/usr/local/bin/ffprobe")

	cfg := Load()

	assert.Equal(t, "8081", cfg.Port)
	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Equal(t, 2*time.Hour, cfg.CleanupMaxAge)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.True(t, cfg.RedisEnabled())
	assert.True(t, cfg.MinioUseSSL)
	assert.Equal(t, "/usr/local/bin/ffprobe", cfg.FFprobePath)
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("REDIS_DB", "not-a-number")
	t.Setenv("CLEANUP_INTERVAL", "soon")
	t.Setenv("MINIO_USE_SSL", "maybe")

	cfg := Load()

	assert.Equal(t, 0, cfg.RedisDB)
	assert.Equal(t, time.Hour, cfg.CleanupInterval)
	assert.False(t, cfg.MinioUseSSL)
	assert.False(t, cfg.RedisEnabled())
}

func TestLoadRejectsNonPositiveCleanupDurations(t *testing.T) {
	t.Setenv("CLEANUP_INTERVAL", "0s")
	t.Setenv("CLEANUP_MAX_AGE", "-1h")

	cfg := Load()
	assert.Equal(t, time.Hour, cfg.CleanupInterval)
	assert.Equal(t, 24*time.Hour, cfg.CleanupMaxAge)
}
