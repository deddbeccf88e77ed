package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/stylematch/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "media_vectors", cfg.Qdrant.Collection)
	assert.Equal(t, 10*time.Second, cfg.Search.Timeout)
	assert.Equal(t, 20, cfg.Search.DefaultMaxResults)
	assert.Equal(t, 10, cfg.Generator.TopTags)
	assert.Equal(t, 4, cfg.Generator.MaxColors)
	assert.Equal(t, "local", cfg.Storage.Type)
	assert.True(t, cfg.Qdrant.Enabled)
	assert.Equal(t, "./data/staging", cfg.Index.StagingPath)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
search:
  timeout: 3s
  ann_prefetch: 200
  profiles:
    color:
      color: 0.7
      hybrid: 0.3
generator:
  top_tags: 6
  max_colors: 2
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Search.Timeout)
	assert.Equal(t, 200, cfg.Search.ANNPrefetch)
	assert.Equal(t, 256, cfg.Search.ScanBatchSize)
	assert.InDelta(t, 0.7, cfg.Search.Profiles["color"]["color"], 1e-9)
	assert.Equal(t, 6, cfg.Generator.TopTags)
	assert.Equal(t, 2, cfg.Generator.MaxColors)
	assert.Equal(t, 15*time.Second, cfg.Generator.SlotTimeout)
	assert.Equal(t, domain.ImageVectorDim, cfg.Embedding.ImageDimensions)
	assert.Equal(t, domain.TextVectorDim, cfg.Embedding.TextDimensions)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
}

func TestEmbeddingConfigValidate(t *testing.T) {
	valid := EmbeddingConfig{Provider: "multimodal", Model: "m", ImageDimensions: domain.ImageVectorDim, TextDimensions: domain.TextVectorDim}

	tests := []struct {
		name    string
		mutate  func(c *EmbeddingConfig)
		wantErr string
	}{
		{name: "valid", mutate: func(c *EmbeddingConfig) {}},
		{name: "unknown provider", mutate: func(c *EmbeddingConfig) { c.Provider = "jina" }, wantErr: "unknown provider"},
		{name: "missing model", mutate: func(c *EmbeddingConfig) { c.Model = "" }, wantErr: "model is required"},
		{name: "image dims", mutate: func(c *EmbeddingConfig) { c.ImageDimensions = 1024 }, wantErr: "image_dimensions must be 1408, got 1024"},
		{name: "text dims", mutate: func(c *EmbeddingConfig) { c.TextDimensions = 768 }, wantErr: "text_dimensions must be 512, got 768"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEmbeddingConfigResolveEnvVars(t *testing.T) {
	t.Setenv("TEST_EMBEDDING_KEY", "secret")

	c := EmbeddingConfig{APIKeyEnv: "TEST_EMBEDDING_KEY"}
	c.ResolveEnvVars()
	assert.Equal(t, "secret", c.APIKey)

	c = EmbeddingConfig{APIKey: "direct", APIKeyEnv: "TEST_EMBEDDING_KEY"}
	c.ResolveEnvVars()
	assert.Equal(t, "direct", c.APIKey)
}

func TestDatabaseDSN(t *testing.T) {
	pg := DatabaseConfig{Driver: "postgres", Host: "db", Port: 5432, User: "u", Password: "p", DBName: "style"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=style sslmode=disable", pg.DSN())

	lite := DatabaseConfig{Driver: "sqlite", Path: "./data/x.db"}
	assert.Equal(t, "./data/x.db", lite.DSN())
}
