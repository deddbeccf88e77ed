package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/timmy/stylematch/internal/vecmath"
)

// EmbeddingProvider turns images and text into dense vectors.
// Both calls may fail or time out; callers treat failures per slot.
type EmbeddingProvider interface {
	// EmbedImage embeds an image. A non-empty contextText is fused with the
	// image so the vector is biased toward the text.
	EmbedImage(ctx context.Context, image []byte, contextText string) ([]float32, error)
	// EmbedText embeds text into the text vector space.
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// ErrInvalidEmbeddingInput is returned for empty images or text; it is never retried.
var ErrInvalidEmbeddingInput = errors.New("invalid embedding input")

// ProviderError is a non-2xx response from the embedding or VLM API.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider returned HTTP %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether the request may succeed if repeated.
func (e *ProviderError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// EmbeddingService calls a multimodal embedding predict endpoint.
type EmbeddingService struct {
	client    *resty.Client
	endpoint  string
	model     string
	imageDims int
	textDims  int
}

// EmbeddingConfig holds configuration for the embedding service.
type EmbeddingConfig struct {
	Endpoint  string
	Model     string
	APIKey    string
	ImageDims int
	TextDims  int
	Timeout   time.Duration
}

// NewEmbeddingService creates a new embedding service.
func NewEmbeddingService(cfg *EmbeddingConfig) *EmbeddingService {
	client := resty.New()
	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}
	client.SetHeader("Content-Type", "application/json")
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	return &EmbeddingService{
		client:    client,
		endpoint:  cfg.Endpoint,
		model:     cfg.Model,
		imageDims: cfg.ImageDims,
		textDims:  cfg.TextDims,
	}
}

// GetModel returns the model name being used
func (s *EmbeddingService) GetModel() string {
	return s.model
}

// predict API request/response structures
type predictRequest struct {
	Instances  []predictInstance `json:"instances"`
	Parameters predictParameters `json:"parameters"`
}

type predictInstance struct {
	Image *predictImage `json:"image,omitempty"`
	Text  string        `json:"text,omitempty"`
}

type predictImage struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
}

type predictParameters struct {
	Dimension int `json:"dimension"`
}

type predictResponse struct {
	Predictions []struct {
		ImageEmbedding []float32 `json:"imageEmbedding"`
		TextEmbedding  []float32 `json:"textEmbedding"`
	} `json:"predictions"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// EmbedImage embeds the image alone, or fuses it with contextText by taking
// the normalized mean of the image and text embeddings.
func (s *EmbeddingService) EmbedImage(ctx context.Context, image []byte, contextText string) ([]float32, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrInvalidEmbeddingInput)
	}
	instance := predictInstance{
		Image: &predictImage{BytesBase64Encoded: base64.StdEncoding.EncodeToString(image)},
		Text:  contextText,
	}

	resp, err := s.predict(ctx, instance, s.imageDims)
	if err != nil {
		return nil, err
	}
	if len(resp.ImageEmbedding) == 0 {
		return nil, errors.New("no image embedding returned")
	}
	if contextText == "" || len(resp.TextEmbedding) == 0 {
		return resp.ImageEmbedding, nil
	}
	return fuseEmbeddings(resp.ImageEmbedding, resp.TextEmbedding)
}

// EmbedText embeds text into the text vector space.
func (s *EmbeddingService) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", ErrInvalidEmbeddingInput)
	}
	resp, err := s.predict(ctx, predictInstance{Text: text}, s.textDims)
	if err != nil {
		return nil, err
	}
	if len(resp.TextEmbedding) == 0 {
		return nil, errors.New("no text embedding returned")
	}
	return resp.TextEmbedding, nil
}

type prediction struct {
	ImageEmbedding []float32
	TextEmbedding  []float32
}

func (s *EmbeddingService) predict(ctx context.Context, instance predictInstance, dims int) (*prediction, error) {
	req := predictRequest{
		Instances:  []predictInstance{instance},
		Parameters: predictParameters{Dimension: dims},
	}

	var resp predictResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		SetError(&resp).
		Post(s.endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to call embedding API: %w", err)
	}

	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		msg := string(httpResp.Body())
		if resp.Error != nil && resp.Error.Message != "" {
			msg = resp.Error.Message
		}
		return nil, &ProviderError{StatusCode: httpResp.StatusCode(), Message: msg}
	}

	if len(resp.Predictions) == 0 {
		return nil, errors.New("no predictions in embedding response")
	}
	p := resp.Predictions[0]
	return &prediction{ImageEmbedding: p.ImageEmbedding, TextEmbedding: p.TextEmbedding}, nil
}

// fuseEmbeddings returns normalize(mean(normalize(a), normalize(b))).
func fuseEmbeddings(a, b []float32) ([]float32, error) {
	na, err := vecmath.Normalize(a)
	if err != nil {
		return nil, fmt.Errorf("fuse image embedding: %w", err)
	}
	nb, err := vecmath.Normalize(b)
	if err != nil {
		return nil, fmt.Errorf("fuse text embedding: %w", err)
	}
	mean, err := vecmath.Mean(na, nb)
	if err != nil {
		return nil, fmt.Errorf("fuse embeddings: %w", err)
	}
	return vecmath.Normalize(mean)
}
