package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	breakerState func() string
}

// NewHealthHandler creates a new health handler. breakerState reports the
// embedding provider's circuit breaker and may be nil.
func NewHealthHandler(breakerState func() string) *HealthHandler {
	return &HealthHandler{breakerState: breakerState}
}

// Health returns the health status of the service. An open breaker reports
// "degraded" while the process itself stays up.
func (h *HealthHandler) Health(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if h.breakerState != nil {
		state := h.breakerState()
		resp["embedding_breaker"] = state
		if state == "open" {
			resp["status"] = "degraded"
		}
	}
	c.JSON(http.StatusOK, resp)
}
