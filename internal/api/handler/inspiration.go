package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/timmy/stylematch/internal/service"
)

// InspirationHandler serves the analyze, match and search endpoints.
type InspirationHandler struct {
	svc            *service.InspirationService
	maxUploadBytes int64
}

// NewInspirationHandler creates a new inspiration handler.
// Parameters:
//   - svc: inspiration service instance.
//   - maxUploadBytes: largest accepted image upload.
//
// Returns:
//   - *InspirationHandler: initialized handler.
func NewInspirationHandler(svc *service.InspirationService, maxUploadBytes int64) *InspirationHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 << 20
	}
	return &InspirationHandler{svc: svc, maxUploadBytes: maxUploadBytes}
}

// Analyze handles POST /api/v1/inspiration/analyze.
// Accepts a multipart "image" upload or a JSON body with image_ref.
func (h *InspirationHandler) Analyze(c *gin.Context) {
	req, ok := h.bindSearch(c)
	if !ok {
		return
	}
	resp, err := h.svc.Analyze(c.Request.Context(), &req.AnalyzeRequest)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Match handles POST /api/v1/inspiration/match with a JSON body carrying a
// query vector set from a previous analyze call.
func (h *InspirationHandler) Match(c *gin.Context) {
	var req service.MatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}
	resp, err := h.svc.Match(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Search handles POST /api/v1/inspiration/search: analyze then match.
func (h *InspirationHandler) Search(c *gin.Context) {
	req, ok := h.bindSearch(c)
	if !ok {
		return
	}
	resp, err := h.svc.Search(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Modes handles GET /api/v1/inspiration/modes.
func (h *InspirationHandler) Modes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"modes": h.svc.Modes()})
}

// bindSearch reads a search request from a multipart form or a JSON body.
// It writes the error response itself and reports false on failure.
func (h *InspirationHandler) bindSearch(c *gin.Context) (*service.SearchRequest, bool) {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		var req service.SearchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request: "+err.Error())
			return nil, false
		}
		return &req, true
	}

	// form fields and multipart framing on top of the image
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+1<<20)

	req := &service.SearchRequest{
		AnalyzeRequest: service.AnalyzeRequest{
			ImageRef: c.PostForm("image_ref"),
			Notes:    c.PostForm("notes"),
			Category: c.PostForm("category"),
		},
		SearchMode: c.PostForm("search_mode"),
		ProviderID: c.PostForm("provider_id"),
	}
	if raw := c.PostForm("max_results"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, "max_results must be an integer")
			return nil, false
		}
		req.MaxResults = n
	}

	file, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload too large"})
			return nil, false
		}
		if errors.Is(err, http.ErrMissingFile) && req.ImageRef != "" {
			return req, true
		}
		badRequest(c, "image file or image_ref is required")
		return nil, false
	}
	if file.Size > h.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("image exceeds %d bytes", h.maxUploadBytes)})
		return nil, false
	}

	f, err := file.Open()
	if err != nil {
		badRequest(c, "failed to read upload")
		return nil, false
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.maxUploadBytes+1))
	if err != nil {
		badRequest(c, "failed to read upload")
		return nil, false
	}
	req.Image = data
	return req, true
}
