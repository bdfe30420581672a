package storage

import (
	"context"
	"testing"
	"time"

	"VoiceMorph/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNoneBackend(t *testing.T) {
	store, err := New(context.Background(), &config.Config{StorageBackend: "none"})
	require.NoError(t, err)
	assert.Nil(t, store)

	_, err = New(context.Background(), &config.Config{StorageBackend: "ftp"})
	assert.Error(t, err)
}

func TestNewS3StoreWithEndpoint(t *testing.T) {
	store, err := New(context.Background(), &config.Config{
		StorageBackend: "s3",
		S3Endpoint:     "http://127.0.0.1:9000",
		S3Region:       "us-east-1",
		S3AccessKey:    "key",
		S3SecretKey:    "secret",
		S3Bucket:       "voicemorph",
	})
	require.NoError(t, err)
	assert.Equal(t, "s3", store.Name())
}

func TestRecordingKey(t *testing.T) {
	assert.Equal(t, "recordings/processed-1-a.wav", RecordingKey("uploads/processed-1-a.wav"))
	assert.Equal(t, "recordings/x.wav", RecordingKey("../../x.wav"))
}

func TestStats(t *testing.T) {
	now := time.Now()
	stats := Stats([]ObjectInfo{
		{Size: 10, LastModified: now.Add(-time.Hour)},
		{Size: 20, LastModified: now},
	})
	assert.Equal(t, 2, stats.TotalObjects)
	assert.Equal(t, int64(30), stats.TotalSize)
	assert.Equal(t, now, stats.LastModified)
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", FormatSize(512))
	assert.Equal(t, "1.0 KB", FormatSize(1024))
	assert.Equal(t, "10.0 MB", FormatSize(10<<20))
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "audio/wav", ContentTypeFor("a.WAV"))
	assert.Equal(t, "audio/mpeg", ContentTypeFor("a.mp3"))
	assert.Equal(t, "application/octet-stream", ContentTypeFor("a"))
}
