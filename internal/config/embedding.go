package config

import (
	"fmt"
	"os"
	"time"

	"github.com/timmy/stylematch/internal/domain"
)

// EmbeddingConfig configures the embedding provider and the guards around it.
type EmbeddingConfig struct {
	Provider        string `mapstructure:"provider"`    // Provider type: "multimodal"
	Endpoint        string `mapstructure:"endpoint"`    // Predict endpoint URL
	Model           string `mapstructure:"model"`       // Model name/ID
	APIKey          string `mapstructure:"api_key"`     // API key (can be set directly or via env var)
	APIKeyEnv       string `mapstructure:"api_key_env"` // Environment variable name for API key
	ImageDimensions int    `mapstructure:"image_dimensions"`
	TextDimensions  int    `mapstructure:"text_dimensions"`

	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	MaxRetries        int           `mapstructure:"max_retries"`
	BreakerFailures   uint32        `mapstructure:"breaker_failures"`
	BreakerTimeout    time.Duration `mapstructure:"breaker_timeout"`
	CacheSize         int           `mapstructure:"cache_size"`
}

// ResolveEnvVars loads APIKey from APIKeyEnv when no direct value is set.
func (c *EmbeddingConfig) ResolveEnvVars() {
	if c.APIKeyEnv != "" && c.APIKey == "" {
		if val := os.Getenv(c.APIKeyEnv); val != "" {
			c.APIKey = val
		}
	}
}

// Validate checks that the embedding configuration has all required fields.
// Returns an error describing the first validation failure, or nil if valid.
func (c *EmbeddingConfig) Validate() error {
	switch c.Provider {
	case "multimodal":
	default:
		return fmt.Errorf("embedding: unknown provider %q", c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("embedding: model is required")
	}
	// Slot dimensions are fixed across all stored records.
	if c.ImageDimensions != domain.ImageVectorDim {
		return fmt.Errorf("embedding: image_dimensions must be %d, got %d", domain.ImageVectorDim, c.ImageDimensions)
	}
	if c.TextDimensions != domain.TextVectorDim {
		return fmt.Errorf("embedding: text_dimensions must be %d, got %d", domain.TextVectorDim, c.TextDimensions)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("embedding: max_retries must not be negative")
	}
	return nil
}

// ValidateWithEndpoint validates the configuration including the endpoint and
// API key. Use this when the provider will actually be called.
func (c *EmbeddingConfig) ValidateWithEndpoint() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Endpoint == "" {
		return fmt.Errorf("embedding: endpoint is required")
	}
	if c.APIKey == "" {
		return fmt.Errorf("embedding: api_key is required (set directly or via %s)", c.APIKeyEnv)
	}
	return nil
}
