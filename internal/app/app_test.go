package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/stylematch/internal/config"
	"github.com/timmy/stylematch/internal/repository"
	"github.com/timmy/stylematch/internal/source/staging"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Database: config.DatabaseConfig{
			Driver:      "sqlite",
			Path:        filepath.Join(dir, "app.db"),
			AutoMigrate: true,
		},
		Storage: config.StorageConfig{Type: "local", LocalPath: filepath.Join(dir, "media")},
		Embedding: config.EmbeddingConfig{
			Provider:        "multimodal",
			Endpoint:        "http://127.0.0.1:1/predict",
			Model:           "multimodalembedding@001",
			APIKey:          "test-key",
			ImageDimensions: 1408,
			TextDimensions:  512,
			CacheSize:       16,
		},
		Index: config.IndexConfig{StagingPath: filepath.Join(dir, "staging")},
	}
}

func TestNewWithMemoryStore(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { assert.NoError(t, a.Close()) }()

	assert.IsType(t, &repository.MemoryStore{}, a.Store)
	assert.NotNil(t, a.Inspiration)
	assert.NotNil(t, a.Index)
	assert.Equal(t, "closed", a.BreakerState())
}

func TestNewRejectsMissingEndpoint(t *testing.T) {
	cfg := testConfig(t)
	cfg.Embedding.Endpoint = ""
	_, err := New(context.Background(), cfg)
	assert.ErrorContains(t, err, "endpoint is required")
}

func TestNewRejectsBadProfiles(t *testing.T) {
	cfg := testConfig(t)
	cfg.Search.Profiles = map[string]map[string]float64{"sparkle": {"visual": 1}}
	_, err := New(context.Background(), cfg)
	assert.ErrorContains(t, err, "invalid search profiles")
}

func TestSources(t *testing.T) {
	cfg := testConfig(t)
	dir := filepath.Join(cfg.Index.StagingPath, "spring")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, staging.ManifestFileName), nil, 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.Index.StagingPath, "empty"), 0755))

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	sources, err := a.Sources()
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "staging:spring", sources["spring"].GetSourceID())
}
