package service

import (
	"bytes"
	"context"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/timmy/stylematch/internal/domain"
)

// seededVector returns a deterministic non-zero vector for key.
func seededVector(key string, dim int) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))
	v := make([]float32, dim)
	for i := range v {
		v[i] = float32(rng.NormFloat64())
	}
	return v
}

// fakeProvider is a deterministic EmbeddingProvider. Image vectors depend on
// the image bytes and context text, text vectors on the text.
type fakeProvider struct {
	imageFn func(ctx context.Context, image []byte, contextText string) ([]float32, error)
	textFn  func(ctx context.Context, text string) ([]float32, error)

	imageCalls atomic.Int32
	textCalls  atomic.Int32

	mu    sync.Mutex
	texts []string
}

func (p *fakeProvider) EmbedImage(ctx context.Context, image []byte, contextText string) ([]float32, error) {
	p.imageCalls.Add(1)
	if p.imageFn != nil {
		return p.imageFn(ctx, image, contextText)
	}
	return seededVector(string(image)+"|"+contextText, domain.ImageVectorDim), nil
}

func (p *fakeProvider) EmbedText(ctx context.Context, text string) ([]float32, error) {
	p.textCalls.Add(1)
	p.mu.Lock()
	p.texts = append(p.texts, text)
	p.mu.Unlock()
	if p.textFn != nil {
		return p.textFn(ctx, text)
	}
	return seededVector(text, domain.TextVectorDim), nil
}

// fakeAnalyzer is an ImageAnalyzer returning a fixed analysis or error.
type fakeAnalyzer struct {
	analysis *domain.ImageAnalysis
	err      error
	calls    atomic.Int32
}

func (a *fakeAnalyzer) AnalyzeImage(ctx context.Context, imageData []byte, format, notes, category string) (*domain.ImageAnalysis, error) {
	a.calls.Add(1)
	if a.err != nil {
		return nil, a.err
	}
	cp := *a.analysis
	cp.Tags = append([]string(nil), a.analysis.Tags...)
	return &cp, nil
}

func (a *fakeAnalyzer) GetModel() string {
	return "fake-vlm"
}

func nailAnalysis() *domain.ImageAnalysis {
	return &domain.ImageAnalysis{
		Tags:           []string{"chrome", "almond", "minimalist"},
		Description:    "glossy chrome almond nails",
		Category:       "nails",
		MoodTags:       []string{"elegant"},
		DominantColors: []string{"silver"},
	}
}

// testPNG encodes a small two-tone PNG; different c values give different bytes.
func testPNG(t *testing.T, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			if x < 20 {
				img.SetNRGBA(x, y, c)
			} else {
				img.SetNRGBA(x, y, color.NRGBA{R: 245, G: 245, B: 245, A: 255})
			}
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
