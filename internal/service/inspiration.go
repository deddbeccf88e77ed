package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/timmy/stylematch/internal/domain"
	"github.com/timmy/stylematch/internal/fusion"
	"github.com/timmy/stylematch/internal/logger"
	"github.com/timmy/stylematch/internal/matching"
	"github.com/timmy/stylematch/internal/metrics"
	"github.com/timmy/stylematch/internal/palette"
	"github.com/timmy/stylematch/internal/storage"
)

// ErrInvalidImage means the request carried no decodable image.
var ErrInvalidImage = errors.New("invalid image")

// RecordStore persists one embedding record per media item and streams
// candidates for matching.
type RecordStore interface {
	matching.CandidateSource
	Put(ctx context.Context, rec *domain.MediaEmbeddingRecord) error
	Get(ctx context.Context, mediaID string) (*domain.MediaEmbeddingRecord, error)
	Delete(ctx context.Context, mediaID string) error
}

// InspirationConfig configures the InspirationService.
type InspirationConfig struct {
	SearchTimeout     time.Duration
	DefaultMaxResults int
	MaxImageBytes     int64
	MaxColors         int
	Scan              matching.ScanConfig
}

// InspirationService turns a reference image into a query vector set and
// matches it against indexed media.
type InspirationService struct {
	storage   storage.ObjectStorage
	vlm       ImageAnalyzer
	generator *MultiVectorGenerator
	scanner   *matching.Scanner
	resolver  *matching.Resolver
	metrics   *metrics.Recorder
	cfg       InspirationConfig
}

// NewInspirationService creates a new InspirationService.
// Parameters:
//   - objectStorage: storage used to resolve image references; may be nil when callers always send bytes.
//   - vlm: image analyzer; nil disables tag detection.
//   - generator: multi-vector generator shared with indexing.
//   - store: record store scanned for candidates.
//   - resolver: search-mode resolver; nil uses the canonical profiles.
//   - rec: metrics recorder; may be nil.
//   - cfg: timeouts and limits.
//
// Returns:
//   - *InspirationService: initialized service.
func NewInspirationService(
	objectStorage storage.ObjectStorage,
	vlm ImageAnalyzer,
	generator *MultiVectorGenerator,
	store matching.CandidateSource,
	resolver *matching.Resolver,
	rec *metrics.Recorder,
	cfg InspirationConfig,
) *InspirationService {
	if resolver == nil {
		resolver, _ = matching.NewResolver(nil)
	}
	if cfg.SearchTimeout <= 0 {
		cfg.SearchTimeout = 30 * time.Second
	}
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = 10 << 20
	}
	return &InspirationService{
		storage:   objectStorage,
		vlm:       vlm,
		generator: generator,
		scanner:   matching.NewScanner(store, cfg.Scan),
		resolver:  resolver,
		metrics:   rec,
		cfg:       cfg,
	}
}

// AnalyzeRequest identifies the reference image either by storage key or by bytes.
type AnalyzeRequest struct {
	ImageRef string `json:"image_ref,omitempty"`
	Image    []byte `json:"-"`
	Notes    string `json:"notes,omitempty"`
	Category string `json:"category,omitempty"`
}

// AnalyzeResponse is the analysis of one reference image.
type AnalyzeResponse struct {
	Tags           []string          `json:"tags"`
	Description    string            `json:"description,omitempty"`
	Category       string            `json:"category,omitempty"`
	DominantColors []string          `json:"dominant_colors"`
	MoodTags       []string          `json:"mood_tags,omitempty"`
	Vectors        domain.VectorSet  `json:"query_vector_set"`
	SlotFailures   map[string]string `json:"slot_failures,omitempty"`
}

// Analyze runs the reference image through tag detection and the same vector
// generation pipeline used for indexing. When neither visual nor style can be
// produced it returns an error matching domain.ErrTotalAnalysisFailure.
func (s *InspirationService) Analyze(ctx context.Context, req *AnalyzeRequest) (*AnalyzeResponse, error) {
	start := time.Now()

	image, err := s.loadImage(ctx, req)
	if err != nil {
		return nil, err
	}
	info, err := palette.Inspect(image)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	analysis := s.detect(ctx, image, info.Format, req.Notes, req.Category)

	colors := analysis.DominantColors
	if extracted, err := palette.Extract(image, s.cfg.MaxColors); err == nil {
		colors = fusion.DedupeStrings(append(append([]string{}, colors...), extracted...))
	} else {
		logger.CtxWarn(ctx, "Dominant color extraction failed: %v", err)
	}

	category := fusion.NormalizeCategory(req.Category)
	if category == "" {
		category = analysis.Category
	}
	description := analysis.Description
	if description == "" {
		description = strings.TrimSpace(req.Notes)
	}

	gen := s.generator.Generate(ctx, GenerateInput{
		Image:          image,
		Category:       category,
		Description:    description,
		Tags:           analysis.Tags,
		DominantColors: colors,
		MoodTags:       analysis.MoodTags,
	})
	if err := gen.Err(); err != nil {
		logger.With(logger.Fields{
			logger.FieldDurationMs: time.Since(start).Milliseconds(),
			"failed_slots":         gen.Failures.String(),
		}).Error(ctx, "Reference image analysis failed")
		return nil, err
	}

	tags := analysis.Tags
	if tags == nil {
		tags = []string{}
	}
	if colors == nil {
		colors = []string{}
	}

	logger.With(logger.Fields{
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
		logger.FieldCount:      len(gen.Vectors.Present()),
	}).Info(ctx, "Reference image analyzed")

	return &AnalyzeResponse{
		Tags:           tags,
		Description:    description,
		Category:       category,
		DominantColors: colors,
		MoodTags:       analysis.MoodTags,
		Vectors:        gen.Vectors,
		SlotFailures:   gen.Failures.Messages(),
	}, nil
}

// detect asks the VLM for tags. A missing or failing VLM degrades to an
// analysis carrying only the caller's category.
func (s *InspirationService) detect(ctx context.Context, image []byte, format, notes, category string) *domain.ImageAnalysis {
	if s.vlm == nil {
		return &domain.ImageAnalysis{Category: fusion.NormalizeCategory(category)}
	}
	analysis, err := s.vlm.AnalyzeImage(ctx, image, format, notes, category)
	if err != nil {
		logger.CtxWarn(ctx, "Image analysis unavailable, continuing without tags: %v", err)
		return &domain.ImageAnalysis{Category: fusion.NormalizeCategory(category)}
	}
	return analysis
}

func (s *InspirationService) loadImage(ctx context.Context, req *AnalyzeRequest) ([]byte, error) {
	if len(req.Image) > 0 {
		if int64(len(req.Image)) > s.cfg.MaxImageBytes {
			return nil, fmt.Errorf("%w: image exceeds %d bytes", ErrInvalidImage, s.cfg.MaxImageBytes)
		}
		return req.Image, nil
	}
	if req.ImageRef == "" {
		return nil, fmt.Errorf("%w: image or image_ref is required", ErrInvalidImage)
	}
	if s.storage == nil {
		return nil, fmt.Errorf("%w: image references are not supported", ErrInvalidImage)
	}
	data, err := storage.ReadAll(ctx, s.storage, req.ImageRef, s.cfg.MaxImageBytes)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
		}
		return nil, fmt.Errorf("failed to load image %s: %w", req.ImageRef, err)
	}
	return data, nil
}

// MatchRequest matches an analyzed query against indexed media.
type MatchRequest struct {
	Vectors    domain.VectorSet `json:"query_vector_set"`
	Tags       []string         `json:"tags,omitempty"`
	SearchMode string           `json:"search_mode,omitempty"`
	MaxResults int              `json:"max_results,omitempty"`
	ProviderID string           `json:"provider_id,omitempty"`
}

// MatchResponse carries the ranked matches. TotalMatches counts every
// candidate that could be scored, before truncation.
type MatchResponse struct {
	Matches      []matching.Candidate `json:"matches"`
	TotalMatches int                  `json:"total_matches"`
	SearchMode   matching.Mode        `json:"search_mode"`
	Partial      bool                 `json:"partial,omitempty"`
}

// Match scores every candidate in scope against the query vectors. Zero
// matches is a normal response. A context without a deadline gets the search
// timeout, after which the best matches scanned so far are returned.
func (s *InspirationService) Match(ctx context.Context, req *MatchRequest) (*MatchResponse, error) {
	start := time.Now()
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.SearchTimeout)
		defer cancel()
	}
	if err := req.Vectors.Validate(); err != nil {
		return nil, err
	}

	mode, profile := s.resolver.Resolve(req.SearchMode)
	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = s.cfg.DefaultMaxResults
	}

	res, err := s.scanner.Scan(ctx, matching.Request{
		Query:      req.Vectors,
		Tags:       req.Tags,
		Profile:    profile,
		MaxResults: maxResults,
		ProviderID: req.ProviderID,
	})
	if err != nil {
		s.metrics.ObserveMatch(string(mode), "error", time.Since(start), 0)
		return nil, fmt.Errorf("match failed: %w", err)
	}

	status := "ok"
	if res.Partial {
		status = "partial"
	}
	s.metrics.ObserveMatch(string(mode), status, time.Since(start), res.Scanned)

	matches := res.Matches
	if matches == nil {
		matches = []matching.Candidate{}
	}

	logger.With(logger.Fields{
		logger.FieldSearchMode: string(mode),
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
		logger.FieldCount:      len(matches),
		"total_matches":        res.TotalMatches,
		"scanned":              res.Scanned,
		"partial":              res.Partial,
	}).Info(ctx, "Match completed")

	return &MatchResponse{
		Matches:      matches,
		TotalMatches: res.TotalMatches,
		SearchMode:   mode,
		Partial:      res.Partial,
	}, nil
}

// SearchRequest analyzes an image and matches it in one call.
type SearchRequest struct {
	AnalyzeRequest
	SearchMode string `json:"search_mode,omitempty"`
	MaxResults int    `json:"max_results,omitempty"`
	ProviderID string `json:"provider_id,omitempty"`
}

// SearchResponse is the combined analysis and match outcome.
type SearchResponse struct {
	Tags           []string `json:"tags"`
	Description    string   `json:"description,omitempty"`
	Category       string   `json:"category,omitempty"`
	DominantColors []string `json:"dominant_colors"`
	MatchResponse
}

// Search runs Analyze then Match under one overall deadline.
func (s *InspirationService) Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.SearchTimeout)
	defer cancel()

	analysis, err := s.Analyze(ctx, &req.AnalyzeRequest)
	if err != nil {
		return nil, err
	}

	match, err := s.Match(ctx, &MatchRequest{
		Vectors:    analysis.Vectors,
		Tags:       analysis.Tags,
		SearchMode: req.SearchMode,
		MaxResults: req.MaxResults,
		ProviderID: req.ProviderID,
	})
	if err != nil {
		return nil, err
	}

	return &SearchResponse{
		Tags:           analysis.Tags,
		Description:    analysis.Description,
		Category:       analysis.Category,
		DominantColors: analysis.DominantColors,
		MatchResponse:  *match,
	}, nil
}

// ModeWeights describes the effective weights of one search mode.
type ModeWeights struct {
	Mode    matching.Mode           `json:"mode"`
	Weights map[domain.Slot]float64 `json:"weights"`
}

// Modes lists every search mode with its configured weights.
func (s *InspirationService) Modes() []ModeWeights {
	out := make([]ModeWeights, 0, len(matching.Modes))
	for _, m := range matching.Modes {
		_, p := s.resolver.Resolve(string(m))
		out = append(out, ModeWeights{Mode: m, Weights: p.Map()})
	}
	return out
}
