package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
	"io"
	"math/rand"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/stylematch/internal/config"
	"github.com/timmy/stylematch/internal/domain"
	"github.com/timmy/stylematch/internal/metrics"
	"github.com/timmy/stylematch/internal/repository"
	"github.com/timmy/stylematch/internal/service"
	"github.com/timmy/stylematch/internal/source"
	"github.com/timmy/stylematch/internal/source/staging"
	"github.com/timmy/stylematch/internal/storage"
)

func seeded(key string, dim int) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))
	v := make([]float32, dim)
	for i := range v {
		v[i] = float32(rng.NormFloat64())
	}
	return v
}

type stubProvider struct {
	failImages bool
}

func (p *stubProvider) EmbedImage(_ context.Context, image []byte, contextText string) ([]float32, error) {
	if p.failImages {
		return nil, errors.New("image model unavailable")
	}
	return seeded(string(image)+"|"+contextText, domain.ImageVectorDim), nil
}

func (p *stubProvider) EmbedText(_ context.Context, text string) ([]float32, error) {
	return seeded(text, domain.TextVectorDim), nil
}

func pngBytes(t *testing.T, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 24, 24))
	for y := 0; y < 24; y++ {
		for x := 0; x < 24; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type testServer struct {
	router   *Router
	provider *stubProvider
	base     string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()

	db, err := repository.InitDB(&config.DatabaseConfig{
		Driver:      "sqlite",
		Path:        filepath.Join(dir, "api.db"),
		AutoMigrate: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	objects, err := storage.NewLocalStorage(filepath.Join(dir, "objects"), "")
	require.NoError(t, err)

	provider := &stubProvider{}
	store := repository.NewMemoryStore()
	rec := metrics.New(metrics.DefaultConfig())
	gen := service.NewMultiVectorGenerator(provider, service.GeneratorConfig{SlotTimeout: time.Second}, rec)

	indexService := service.NewIndexService(
		repository.NewMediaRepository(db),
		repository.NewMediaAnalysisRepository(db),
		repository.NewIndexJobRepository(db),
		store, objects, nil, gen, rec,
		service.IndexConfig{Workers: 2, BatchSize: 5},
	)
	inspiration := service.NewInspirationService(objects, nil, gen, store, nil, rec, service.InspirationConfig{})

	base := filepath.Join(dir, "staging")
	router := SetupRouter(Dependencies{
		Inspiration: inspiration,
		Index:       indexService,
		Sources: map[string]source.Source{
			"batch1": staging.NewAdapter(base, "batch1"),
		},
		Metrics:      rec,
		BreakerState: func() string { return "closed" },
	}, config.ServerConfig{
		Mode:           "test",
		MaxUploadBytes: 1 << 20,
		CORS:           config.CORSConfig{AllowedOrigins: []string{"https://app.example.com"}},
	})
	t.Cleanup(router.Admin.Close)

	return &testServer{router: router, provider: provider, base: base}
}

func (s *testServer) do(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) doJSON(t *testing.T, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}
	return s.do(t, method, path, body, "application/json")
}

func multipartForm(t *testing.T, fields map[string]string, img []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if img != nil {
		fw, err := w.CreateFormFile("image", "reference.png")
		require.NoError(t, err)
		_, err = fw.Write(img)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "closed", body["embedding_breaker"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRequestIDIsEchoed(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/inspiration/search", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestSearchEmptyIndexReturnsEmptyMatches(t *testing.T) {
	s := newTestServer(t)
	body, ct := multipartForm(t, map[string]string{"category": "hair", "search_mode": "style"}, pngBytes(t, color.NRGBA{R: 120, G: 75, B: 45, A: 255}))

	w := s.do(t, http.MethodPost, "/api/v1/inspiration/search", body, ct)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	out := decode(t, w)
	assert.Equal(t, []any{}, out["matches"])
	assert.Equal(t, float64(0), out["total_matches"])
	assert.Equal(t, "style", out["search_mode"])
	assert.Equal(t, "hair", out["category"])
}

func TestSearchTotalFailureIs422(t *testing.T) {
	s := newTestServer(t)
	s.provider.failImages = true
	body, ct := multipartForm(t, nil, pngBytes(t, color.NRGBA{R: 20, G: 20, B: 20, A: 255}))

	w := s.do(t, http.MethodPost, "/api/v1/inspiration/search", body, ct)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.JSONEq(t, `{"error":"analysis failed, please retry"}`, w.Body.String())
}

func TestAnalyzeValidation(t *testing.T) {
	s := newTestServer(t)

	w := s.doJSON(t, http.MethodPost, "/api/v1/inspiration/analyze", map[string]string{"notes": "no image"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body, ct := multipartForm(t, map[string]string{"notes": "x"}, nil)
	w = s.do(t, http.MethodPost, "/api/v1/inspiration/analyze", body, ct)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body, ct = multipartForm(t, nil, []byte("definitely not a png"))
	w = s.do(t, http.MethodPost, "/api/v1/inspiration/analyze", body, ct)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body, ct = multipartForm(t, nil, bytes.Repeat([]byte{1}, 3<<19))
	w = s.do(t, http.MethodPost, "/api/v1/inspiration/analyze", body, ct)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestAnalyzeThenMatch(t *testing.T) {
	s := newTestServer(t)
	body, ct := multipartForm(t, map[string]string{"notes": "copper balayage"}, pngBytes(t, color.NRGBA{R: 240, G: 130, B: 40, A: 255}))

	w := s.do(t, http.MethodPost, "/api/v1/inspiration/analyze", body, ct)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var analyzed service.AnalyzeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &analyzed))
	assert.Equal(t, "copper balayage", analyzed.Description)
	assert.Len(t, analyzed.Vectors.Visual, domain.ImageVectorDim)
	assert.Contains(t, analyzed.DominantColors, "orange")

	w = s.doJSON(t, http.MethodPost, "/api/v1/inspiration/match", service.MatchRequest{
		Vectors:    analyzed.Vectors,
		SearchMode: "unknown-mode",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	out := decode(t, w)
	assert.Equal(t, "balanced", out["search_mode"])
	assert.Equal(t, float64(0), out["total_matches"])
}

func TestMatchRejectsBadVectors(t *testing.T) {
	s := newTestServer(t)
	w := s.doJSON(t, http.MethodPost, "/api/v1/inspiration/match", map[string]any{
		"query_vector_set": map[string]any{"visual": []float32{1, 2, 3}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/inspiration/match", strings.NewReader("{"), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestModes(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/api/v1/inspiration/modes", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	modes := decode(t, w)["modes"].([]any)
	assert.Len(t, modes, 5)
}

func writeManifest(t *testing.T, base string, images map[string][]byte) {
	t.Helper()
	dir := filepath.Join(base, "batch1")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, staging.ImagesDir), 0755))
	var lines []string
	for id, data := range images {
		require.NoError(t, os.WriteFile(filepath.Join(dir, staging.ImagesDir, id+".png"), data, 0644))
		lines = append(lines, fmt.Sprintf(`{"media_id":%q,"service_id":"svc","provider_id":"salon-1","filename":"%s.png","category":"nails"}`, id, id))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, staging.ManifestFileName), []byte(strings.Join(lines, "\n")), 0644))
}

func TestIndexJobThenSearchAndDelete(t *testing.T) {
	s := newTestServer(t)
	red := pngBytes(t, color.NRGBA{R: 200, G: 30, B: 40, A: 255})
	writeManifest(t, s.base, map[string][]byte{
		"red":  red,
		"blue": pngBytes(t, color.NRGBA{R: 40, G: 80, B: 200, A: 255}),
	})

	w := s.doJSON(t, http.MethodPost, "/api/v1/admin/index", map[string]any{"source": "batch1"})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	jobID := decode(t, w)["id"].(string)
	require.NotEmpty(t, jobID)

	s.router.Admin.Wait()

	w = s.do(t, http.MethodGet, "/api/v1/admin/jobs/"+jobID, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	job := decode(t, w)
	assert.Equal(t, "completed", job["status"])
	assert.Equal(t, float64(2), job["indexed_items"])

	w = s.do(t, http.MethodGet, "/api/v1/admin/index/status", nil, "")
	assert.Equal(t, false, decode(t, w)["is_running"])

	w = s.do(t, http.MethodGet, "/api/v1/admin/stats", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode(t, w)["total"])

	w = s.do(t, http.MethodGet, "/api/v1/media/red", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "active", decode(t, w)["status"])

	body, ct := multipartForm(t, map[string]string{"category": "nails", "max_results": "1", "provider_id": "salon-1"}, red)
	w = s.do(t, http.MethodPost, "/api/v1/inspiration/search", body, ct)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result service.SearchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.Len(t, result.Matches, 1)
	assert.Equal(t, 2, result.TotalMatches)
	assert.Equal(t, "red", result.Matches[0].MediaID)
	assert.InDelta(t, 100.0, result.Matches[0].FinalScore, 1e-9)

	w = s.do(t, http.MethodDelete, "/api/v1/admin/media/red", nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(t, http.MethodGet, "/api/v1/media/red", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "stylematch_")
}

func TestIndexUnknownSource(t *testing.T) {
	s := newTestServer(t)
	w := s.doJSON(t, http.MethodPost, "/api/v1/admin/index", map[string]any{"source": "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/admin/jobs/missing", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRetryAndListJobs(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/admin/retry", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(0), decode(t, w)["total"])

	w = s.do(t, http.MethodGet, "/api/v1/admin/jobs?limit=5", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decode(t, w)["total"])

	w = s.do(t, http.MethodGet, "/api/v1/admin/jobs?limit=abc", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/admin/sources", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["sources"], 1)
}
