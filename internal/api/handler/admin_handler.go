package handler

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/timmy/stylematch/internal/logger"
	"github.com/timmy/stylematch/internal/service"
	"github.com/timmy/stylematch/internal/source"
)

// AdminHandler handles admin operations: indexing runs, retries and stats.
type AdminHandler struct {
	indexService *service.IndexService
	sources      map[string]source.Source

	// index job state
	mu         sync.Mutex
	runningJob string
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// NewAdminHandler creates a new admin handler.
// Parameters:
//   - indexService: index service instance.
//   - sources: map of source adapters keyed by name.
//
// Returns:
//   - *AdminHandler: initialized handler.
func NewAdminHandler(indexService *service.IndexService, sources map[string]source.Source) *AdminHandler {
	return &AdminHandler{
		indexService: indexService,
		sources:      sources,
	}
}

// IndexRequest represents the index API request.
type IndexRequest struct {
	Source string `json:"source" binding:"required"`
	Limit  int    `json:"limit" binding:"min=0,max=100000"`
	Force  bool   `json:"force"`
}

// RetryRequest represents the retry API request.
type RetryRequest struct {
	Limit int `json:"limit" binding:"min=0,max=10000"`
}

// IndexStatusResponse represents the indexing status.
type IndexStatusResponse struct {
	IsRunning    bool   `json:"is_running"`
	CurrentJobID string `json:"current_job_id,omitempty"`
}

// ListSources handles GET /api/v1/admin/sources.
func (h *AdminHandler) ListSources(c *gin.Context) {
	names := make([]string, 0, len(h.sources))
	for name := range h.sources {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]gin.H, 0, len(names))
	for _, name := range names {
		out = append(out, gin.H{
			"name":         name,
			"source_id":    h.sources[name].GetSourceID(),
			"display_name": h.sources[name].GetDisplayName(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"sources": out})
}

// TriggerIndex handles POST /api/v1/admin/index. The job runs in the
// background; the response carries its id for polling.
func (h *AdminHandler) TriggerIndex(c *gin.Context) {
	ctx := c.Request.Context()

	var req IndexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.CtxWarn(ctx, "Invalid index request: client_ip=%s, error=%v", c.ClientIP(), err)
		badRequest(c, err.Error())
		return
	}

	src, ok := h.sources[req.Source]
	if !ok {
		logger.CtxWarn(ctx, "Unknown source requested: source=%s, client_ip=%s", req.Source, c.ClientIP())
		badRequest(c, "Unknown source: "+req.Source)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.runningJob != "" {
		logger.CtxWarn(ctx, "Index request rejected: job %s already running", h.runningJob)
		c.JSON(http.StatusConflict, gin.H{"error": "Indexing is already running", "job_id": h.runningJob})
		return
	}

	job, err := h.indexService.CreateJob(ctx, src)
	if err != nil {
		respondError(c, err)
		return
	}
	snapshot := *job

	// the run outlives the HTTP request; Close cancels it
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	h.runningJob = job.ID
	h.cancel = cancel
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer cancel()
		if err := h.indexService.RunJob(runCtx, job, src, service.IndexOptions{Limit: req.Limit, Force: req.Force}); err != nil {
			logger.CtxError(runCtx, "Index job failed: %v", err)
		}
		h.mu.Lock()
		h.runningJob = ""
		h.cancel = nil
		h.mu.Unlock()
	}()

	logger.CtxInfo(ctx, "Index job started: job_id=%s, source=%s, limit=%d, force=%v",
		job.ID, req.Source, req.Limit, req.Force)
	c.JSON(http.StatusAccepted, snapshot)
}

// GetIndexStatus handles GET /api/v1/admin/index/status.
func (h *AdminHandler) GetIndexStatus(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.JSON(http.StatusOK, IndexStatusResponse{
		IsRunning:    h.runningJob != "",
		CurrentJobID: h.runningJob,
	})
}

// ListJobs handles GET /api/v1/admin/jobs.
func (h *AdminHandler) ListJobs(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 || limit > 200 {
		badRequest(c, "limit must be between 1 and 200")
		return
	}
	jobs, err := h.indexService.ListJobs(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "total": len(jobs)})
}

// GetJob handles GET /api/v1/admin/jobs/:id.
func (h *AdminHandler) GetJob(c *gin.Context) {
	job, err := h.indexService.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// RetryUnusable handles POST /api/v1/admin/retry.
func (h *AdminHandler) RetryUnusable(c *gin.Context) {
	var req RetryRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}
	if req.Limit == 0 {
		req.Limit = 100
	}

	outcomes, err := h.indexService.RetryUnusable(c.Request.Context(), req.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"outcomes": outcomes, "total": len(outcomes)})
}

// GetStats handles GET /api/v1/admin/stats.
func (h *AdminHandler) GetStats(c *gin.Context) {
	stats, err := h.indexService.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	var total int64
	for _, n := range stats {
		total += n
	}
	c.JSON(http.StatusOK, gin.H{"by_status": stats, "total": total})
}

// Close cancels a running index job and waits for it to save its state.
func (h *AdminHandler) Close() {
	h.mu.Lock()
	if h.cancel != nil {
		h.cancel()
	}
	h.mu.Unlock()
	h.wg.Wait()
}

// Wait blocks until the running index job, if any, has finished.
func (h *AdminHandler) Wait() {
	h.wg.Wait()
}
