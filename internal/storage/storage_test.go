package storage

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir(), "https://cdn.example.com/")
	require.NoError(t, err)

	data := []byte("image-bytes")
	require.NoError(t, s.Upload(ctx, "ab/abc.png", bytes.NewReader(data), int64(len(data)), "image/png"))

	ok, err := s.Exists(ctx, "ab/abc.png")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := ReadAll(ctx, s, "ab/abc.png", 0)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, "https://cdn.example.com/ab/abc.png", s.GetURL("ab/abc.png"))

	require.NoError(t, s.Delete(ctx, "ab/abc.png"))
	require.NoError(t, s.Delete(ctx, "ab/abc.png"))
	ok, err = s.Exists(ctx, "ab/abc.png")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Download(ctx, "ab/abc.png")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestLocalStorageKeepsKeysInsideRoot(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := NewLocalStorage(root, "")
	require.NoError(t, err)

	require.NoError(t, s.Upload(ctx, "../../escape.png", strings.NewReader("x"), 1, "image/png"))
	p, err := s.path("../../escape.png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p, root))

	_, err = s.path("")
	assert.Error(t, err)
}

func TestReadAllRejectsOversizedObjects(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir(), "")
	require.NoError(t, err)
	require.NoError(t, s.Upload(ctx, "big.bin", strings.NewReader("0123456789"), 10, ""))

	_, err = ReadAll(ctx, s, "big.bin", 4)
	assert.Error(t, err)

	got, err := ReadAll(ctx, s, "big.bin", 10)
	require.NoError(t, err)
	assert.Len(t, got, 10)
}

func TestNewStorageSelectsBackend(t *testing.T) {
	local, err := NewStorage(&S3Config{Type: StorageTypeLocal, LocalPath: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, local)

	_, err = NewStorage(&S3Config{Type: "ftp", Endpoint: "x"})
	assert.Error(t, err)

	_, err = NewStorage(&S3Config{})
	assert.Error(t, err)
}

func TestDetectStorageType(t *testing.T) {
	tests := []struct {
		endpoint string
		want     StorageType
	}{
		{"https://acct.r2.cloudflarestorage.com", StorageTypeR2},
		{"s3.us-west-2.amazonaws.com", StorageTypeS3},
		{"localhost:9000", StorageTypeS3Compatible},
	}
	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			assert.Equal(t, tt.want, detectStorageType(tt.endpoint))
		})
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	assert.Equal(t, "minio.local:9000", normalizeEndpoint("http://minio.local:9000/bucket/"))
	assert.Equal(t, "s3.amazonaws.com", normalizeEndpoint("https://s3.amazonaws.com"))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "image/jpeg", ContentType("jpg"))
	assert.Equal(t, "image/webp", ContentType("webp"))
	assert.Equal(t, "application/octet-stream", ContentType("bmp"))
}

func TestS3StorageURLs(t *testing.T) {
	s, err := NewS3Storage(&S3Config{
		Type:      StorageTypeS3Compatible,
		Endpoint:  "http://localhost:9000/",
		Bucket:    "media",
		AccessKey: "key",
		SecretKey: "secret",
	})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/media/ab/abcd.png", s.GetURL("ab/abcd.png"))

	cdn, err := NewS3Storage(&S3Config{Type: StorageTypeR2, Endpoint: "acct.r2.cloudflarestorage.com", Bucket: "media", UseSSL: true, PublicURL: "https://cdn.example.com/"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/ab/abcd.png", cdn.GetURL("/ab/abcd.png"))

	_, err = NewS3Storage(&S3Config{Type: StorageTypeS3})
	assert.Error(t, err)
}

func TestS3ConfigRegion(t *testing.T) {
	assert.Equal(t, "auto", (&S3Config{Type: StorageTypeR2}).region())
	assert.Equal(t, "us-east-1", (&S3Config{Type: StorageTypeS3Compatible}).region())
	assert.Equal(t, "eu-west-1", (&S3Config{Type: StorageTypeS3, Region: "eu-west-1"}).region())
	assert.Equal(t, "https://minio:9000", (&S3Config{Endpoint: "minio:9000", UseSSL: true}).endpointURL())
	assert.Empty(t, (&S3Config{}).endpointURL())
}
