package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timmy/stylematch/internal/service"
)

// MediaHandler exposes indexed media items.
type MediaHandler struct {
	indexService *service.IndexService
}

// NewMediaHandler creates a new media handler.
func NewMediaHandler(indexService *service.IndexService) *MediaHandler {
	return &MediaHandler{indexService: indexService}
}

// GetMedia handles GET /api/v1/media/:id.
func (h *MediaHandler) GetMedia(c *gin.Context) {
	item, err := h.indexService.GetMedia(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// DeleteMedia handles DELETE /api/v1/admin/media/:id.
func (h *MediaHandler) DeleteMedia(c *gin.Context) {
	if err := h.indexService.DeleteMedia(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
