package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/timmy/stylematch/internal/domain"
	"github.com/timmy/stylematch/internal/fusion"
	"github.com/timmy/stylematch/internal/logger"
	"github.com/timmy/stylematch/internal/metrics"
	"github.com/timmy/stylematch/internal/vecmath"
)

// DefaultSlotTimeout bounds a single provider call.
const DefaultSlotTimeout = 15 * time.Second

// GeneratorConfig configures the MultiVectorGenerator.
type GeneratorConfig struct {
	SlotTimeout time.Duration
	TopTags     int
}

// GenerateInput is everything the generator needs for one media item or query.
type GenerateInput struct {
	Image          []byte
	Category       string
	Title          string
	Description    string
	Tags           []string
	DominantColors []string
	MoodTags       []string
}

// Generation is the per-slot outcome of one generator run.
type Generation struct {
	Vectors  domain.VectorSet
	Failures domain.SlotFailures
}

// Usable reports whether a hybrid vector could be derived, i.e. at least one of
// visual or style succeeded.
func (g *Generation) Usable() bool {
	return g.Vectors.Has(domain.SlotHybrid)
}

// Err returns an *domain.AnalysisError when the generation is not usable.
func (g *Generation) Err() error {
	if g.Usable() {
		return nil
	}
	return &domain.AnalysisError{Failures: g.Failures}
}

// MultiVectorGenerator produces the five slot vectors for an image and its context.
type MultiVectorGenerator struct {
	provider    EmbeddingProvider
	builder     *fusion.Builder
	slotTimeout time.Duration
	metrics     *metrics.Recorder
}

// NewMultiVectorGenerator creates a generator. rec may be nil.
func NewMultiVectorGenerator(provider EmbeddingProvider, cfg GeneratorConfig, rec *metrics.Recorder) *MultiVectorGenerator {
	timeout := cfg.SlotTimeout
	if timeout <= 0 {
		timeout = DefaultSlotTimeout
	}
	return &MultiVectorGenerator{
		provider:    provider,
		builder:     fusion.NewBuilder(cfg.TopTags),
		slotTimeout: timeout,
		metrics:     rec,
	}
}

type slotTask struct {
	slot domain.Slot
	run  func(ctx context.Context) ([]float32, error)
}

// Generate runs the four provider calls concurrently and derives hybrid.
// A failing slot never cancels the others; every failure is reported in
// Generation.Failures as a *domain.SlotError.
func (g *MultiVectorGenerator) Generate(ctx context.Context, in GenerateInput) *Generation {
	styleText := g.builder.StyleContext(fusion.StyleInput{
		Title:          in.Title,
		Description:    in.Description,
		Category:       in.Category,
		Tags:           in.Tags,
		DominantColors: in.DominantColors,
	})
	semanticText := g.builder.SemanticText(in.Title, in.Description, in.Category, in.Tags)
	colorText := g.builder.ColorText(in.DominantColors, in.MoodTags)

	tasks := []slotTask{
		{slot: domain.SlotVisual, run: g.imageTask(in.Image, "")},
		{slot: domain.SlotStyle, run: g.imageTask(in.Image, styleText)},
		{slot: domain.SlotSemantic, run: g.textTask(semanticText)},
		{slot: domain.SlotColor, run: g.textTask(colorText)},
	}

	vectors := make([][]float32, len(tasks))
	errs := make([]error, len(tasks))

	var eg errgroup.Group
	for i, task := range tasks {
		eg.Go(func() error {
			slotCtx, cancel := context.WithTimeout(ctx, g.slotTimeout)
			defer cancel()

			start := time.Now()
			vec, err := task.run(slotCtx)
			if err == nil {
				err = checkSlotVector(task.slot, vec)
			}
			g.metrics.ObserveSlot(string(task.slot), time.Since(start), err)

			if err != nil {
				errs[i] = err
				return nil
			}
			vectors[i] = vec
			return nil
		})
	}
	_ = eg.Wait()

	gen := &Generation{Failures: domain.SlotFailures{}}
	for i, task := range tasks {
		if errs[i] != nil {
			gen.Failures[task.slot] = &domain.SlotError{Slot: task.slot, Err: errs[i]}
			logger.With(logger.Fields{
				logger.FieldSlot: string(task.slot),
			}).Warn(ctx, "Slot generation failed: %v", errs[i])
			continue
		}
		gen.Vectors.Set(task.slot, vectors[i])
	}

	hybrid, err := DeriveHybrid(gen.Vectors.Visual, gen.Vectors.Style)
	if err != nil {
		gen.Failures[domain.SlotHybrid] = &domain.SlotError{Slot: domain.SlotHybrid, Err: err}
	} else {
		gen.Vectors.Hybrid = hybrid
	}
	return gen
}

func (g *MultiVectorGenerator) imageTask(image []byte, contextText string) func(context.Context) ([]float32, error) {
	return func(ctx context.Context) ([]float32, error) {
		if len(image) == 0 {
			return nil, domain.ErrEmptySlotInput
		}
		return g.provider.EmbedImage(ctx, image, contextText)
	}
}

func (g *MultiVectorGenerator) textTask(text string) func(context.Context) ([]float32, error) {
	return func(ctx context.Context) ([]float32, error) {
		if text == "" {
			return nil, domain.ErrEmptySlotInput
		}
		return g.provider.EmbedText(ctx, text)
	}
}

// checkSlotVector rejects vectors with the wrong dimension, non-finite values or no direction.
func checkSlotVector(slot domain.Slot, vec []float32) error {
	if err := domain.ValidateSlotVector(slot, vec); err != nil {
		return err
	}
	if vecmath.Norm(vec) == 0 {
		return fmt.Errorf("%w: slot %s is a zero vector", domain.ErrInvalidVector, slot)
	}
	return nil
}

// DeriveHybrid returns normalize(mean(visual, style)) when both exist, a copy
// of the survivor when only one exists, and an error when neither does.
// If visual and style cancel out exactly, a copy of visual is used.
func DeriveHybrid(visual, style []float32) ([]float32, error) {
	switch {
	case len(visual) > 0 && len(style) > 0:
		mean, err := vecmath.Mean(visual, style)
		if err != nil {
			return nil, fmt.Errorf("derive hybrid: %w", err)
		}
		if hybrid, err := vecmath.Normalize(mean); err == nil {
			return hybrid, nil
		}
		return append([]float32(nil), visual...), nil
	case len(visual) > 0:
		return append([]float32(nil), visual...), nil
	case len(style) > 0:
		return append([]float32(nil), style...), nil
	default:
		return nil, fmt.Errorf("derive hybrid: %w", domain.ErrTotalAnalysisFailure)
	}
}
