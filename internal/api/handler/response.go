package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timmy/stylematch/internal/domain"
	"github.com/timmy/stylematch/internal/service"
)

// respondError maps service errors to HTTP status codes. Total analysis
// failure is a 422 with a fixed retry message, never an empty result.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	switch {
	case errors.Is(err, domain.ErrTotalAnalysisFailure):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": domain.ErrTotalAnalysisFailure.Error()})
	case errors.Is(err, service.ErrInvalidImage), errors.Is(err, domain.ErrInvalidVector):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "request timed out"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
