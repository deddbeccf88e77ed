package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/timmy/stylematch/internal/domain"
	"github.com/timmy/stylematch/internal/fusion"
	"github.com/timmy/stylematch/internal/prompts"
)

// ImageAnalyzer extracts tags, a description and color information from an image.
type ImageAnalyzer interface {
	AnalyzeImage(ctx context.Context, imageData []byte, format, notes, category string) (*domain.ImageAnalysis, error)
	GetModel() string
}

// VLMService handles image analysis using Vision Language Models.
type VLMService struct {
	client   *resty.Client
	model    string
	endpoint string
}

// VLMConfig holds configuration for VLM service.
type VLMConfig struct {
	Model   string
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// NewVLMService creates a new VLM service.
// Parameters:
//   - cfg: VLM configuration including model, API key and base URL.
//
// Returns:
//   - *VLMService: initialized VLM client wrapper.
func NewVLMService(cfg *VLMConfig) *VLMService {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	client.SetTimeout(timeout)

	// Default to OpenAI compatible endpoint if not specified
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	return &VLMService{
		client:   client,
		model:    cfg.Model,
		endpoint: baseURL + "/chat/completions",
	}
}

// GetModel returns the model name being used.
func (s *VLMService) GetModel() string {
	return s.model
}

// OpenAI-compatible Chat Completion API request/response structures
type openAIRequest struct {
	Model          string          `json:"model"`
	Messages       []openAIMessage `json:"messages"`
	MaxTokens      int             `json:"max_tokens"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type openAIMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"` // string for system, []interface{} for user with images
}

type openAITextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type openAIImageContent struct {
	Type     string         `json:"type"`
	ImageURL openAIImageURL `json:"image_url"`
}

type openAIImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// AnalyzeImage asks the VLM for a structured analysis of an image.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - imageData: raw image bytes.
//   - format: image format extension (jpg, png, webp).
//   - notes: optional client notes passed as hints.
//   - category: optional category hint.
//
// Returns:
//   - *domain.ImageAnalysis: tags in detection order, description, category, moods and colors.
//   - error: non-nil if the API request fails or the reply cannot be parsed.
func (s *VLMService) AnalyzeImage(ctx context.Context, imageData []byte, format, notes, category string) (*domain.ImageAnalysis, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", getMIMEType(format), base64.StdEncoding.EncodeToString(imageData))

	req := openAIRequest{
		Model: s.model,
		Messages: []openAIMessage{
			{
				Role:    "system",
				Content: prompts.VLMSystemPrompt,
			},
			{
				Role: "user",
				Content: []interface{}{
					openAITextContent{
						Type: "text",
						Text: prompts.VLMUserPromptWithNotes(notes, category),
					},
					openAIImageContent{
						Type: "image_url",
						ImageURL: openAIImageURL{
							URL:    dataURL,
							Detail: "auto",
						},
					},
				},
			},
		},
		MaxTokens:      400,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	var resp openAIResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		SetError(&resp).
		Post(s.endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to call VLM API: %w", err)
	}

	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		msg := string(httpResp.Body())
		if resp.Error != nil {
			msg = resp.Error.Message
		}
		return nil, &ProviderError{StatusCode: httpResp.StatusCode(), Message: msg}
	}

	if resp.Error != nil {
		return nil, fmt.Errorf("VLM API error: %s", resp.Error.Message)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from VLM API (status: %d)", httpResp.StatusCode())
	}

	return parseImageAnalysis(resp.Choices[0].Message.Content)
}

type vlmAnalysis struct {
	Category       string   `json:"category"`
	Tags           []string `json:"tags"`
	Description    string   `json:"description"`
	MoodTags       []string `json:"mood_tags"`
	DominantColors []string `json:"dominant_colors"`
}

// parseImageAnalysis decodes the model reply, tolerating markdown code fences.
func parseImageAnalysis(content string) (*domain.ImageAnalysis, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errors.New("empty VLM reply")
	}

	var out vlmAnalysis
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return nil, fmt.Errorf("failed to parse VLM reply: %w", err)
	}

	tags := make([]string, 0, len(out.Tags))
	for _, t := range out.Tags {
		tags = append(tags, strings.ToLower(t))
	}

	return &domain.ImageAnalysis{
		Tags:           fusion.DedupeStrings(tags),
		Description:    strings.TrimSpace(out.Description),
		Category:       fusion.NormalizeCategory(out.Category),
		MoodTags:       fusion.DedupeStrings(out.MoodTags),
		DominantColors: fusion.DedupeStrings(out.DominantColors),
	}, nil
}

func getMIMEType(format string) string {
	switch strings.ToLower(format) {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
