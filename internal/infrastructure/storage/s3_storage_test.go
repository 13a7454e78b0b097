package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/erp/portal/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testStorageConfig() *config.StorageConfig {
	return &config.StorageConfig{
		Bucket:       "portal-archive",
		AccessKey:    "test-key",
		SecretKey:    "test-secret",
		Endpoint:     "http://localhost:9000",
		UsePathStyle: true,
	}
}

func TestNewS3ObjectStorage_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.StorageConfig
		wantErr string
	}{
		{name: "nil config", cfg: nil, wantErr: "configuration is required"},
		{name: "missing bucket", cfg: &config.StorageConfig{AccessKey: "k", SecretKey: "s"}, wantErr: "bucket is required"},
		{name: "missing access key", cfg: &config.StorageConfig{Bucket: "b", SecretKey: "s"}, wantErr: "access key is required"},
		{name: "missing secret key", cfg: &config.StorageConfig{Bucket: "b", AccessKey: "k"}, wantErr: "secret key is required"},
		{name: "endpoint without scheme", cfg: &config.StorageConfig{Bucket: "b", AccessKey: "k", SecretKey: "s", Endpoint: "minio:9000", UseSSL: true}},
		{name: "default endpoint", cfg: &config.StorageConfig{Bucket: "b", AccessKey: "k", SecretKey: "s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewS3ObjectStorage(tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 15*time.Minute, s.presignExpiration)
		})
	}
}

func TestS3ObjectStorageOptions(t *testing.T) {
	s, err := NewS3ObjectStorage(testStorageConfig(), WithLogger(zaptest.NewLogger(t)), WithPresignExpiration(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, time.Hour, s.presignExpiration)
	assert.Equal(t, "portal-archive", s.Bucket())
}

func TestS3ObjectStorage_PresignGet(t *testing.T) {
	s, err := NewS3ObjectStorage(testStorageConfig())
	require.NoError(t, err)
	ctx := context.Background()

	_, _, err = s.PresignGet(ctx, "", time.Minute)
	require.Error(t, err)

	url, expiresAt, err := s.PresignGet(ctx, "exports/item/2024/06/01/x-items.xlsx", 0)
	require.NoError(t, err)
	assert.True(t, strings.Contains(url, "localhost:9000"))
	assert.True(t, strings.Contains(url, "portal-archive"))
	assert.True(t, expiresAt.After(time.Now()))
	assert.True(t, expiresAt.Before(time.Now().Add(16*time.Minute)))
}

func TestS3ObjectStorage_RejectsEmptyKeys(t *testing.T) {
	s, err := NewS3ObjectStorage(testStorageConfig())
	require.NoError(t, err)
	ctx := context.Background()

	assert.ErrorIs(t, s.Put(ctx, "", []byte("x"), XLSXContentType), errKeyRequired)
	exists, err := s.Exists(ctx, "")
	assert.ErrorIs(t, err, errKeyRequired)
	assert.False(t, exists)
}

func TestArchiveEndpoint(t *testing.T) {
	got, err := archiveEndpoint("minio:9000", true)
	require.NoError(t, err)
	assert.Equal(t, "https://minio:9000", got)

	got, err = archiveEndpoint("", false)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000", got)

	got, err = archiveEndpoint("http://s3.internal:9000", true)
	require.NoError(t, err)
	assert.Equal(t, "http://s3.internal:9000", got)
}

func TestArchiveKey(t *testing.T) {
	at := time.Date(2024, 6, 1, 23, 30, 0, 0, time.FixedZone("CEST", 2*3600))

	key := ArchiveKey("imports", "item", "C:\\Users\\jdoe\\items.xlsx", at)
	assert.True(t, strings.HasPrefix(key, "imports/item/2024/06/01/"), key)
	assert.True(t, strings.HasSuffix(key, "-items.xlsx"), key)

	assert.NotEqual(t, key, ArchiveKey("imports", "item", "items.xlsx", at), "every archive gets a fresh key")
	assert.True(t, strings.HasSuffix(ArchiveKey("exports", "customer", "", at), "-workbook.xlsx"))
}

func TestNopStorage(t *testing.T) {
	s := NewNopStorage()
	ctx := context.Background()

	require.NoError(t, s.EnsureBucket(ctx))
	require.NoError(t, s.Put(ctx, "imports/a.xlsx", []byte("x"), XLSXContentType))
	assert.Error(t, s.Put(ctx, "", nil, XLSXContentType))

	exists, err := s.Exists(ctx, "imports/a.xlsx")
	require.NoError(t, err)
	assert.False(t, exists)

	_, _, err = s.PresignGet(ctx, "imports/a.xlsx", time.Minute)
	assert.ErrorIs(t, err, ErrStorageDisabled)
}
