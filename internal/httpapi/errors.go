package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"waasp/internal/audit"
	"waasp/internal/store"
	"waasp/internal/whitelist"
	"waasp/pkg/logger"

	"github.com/gin-gonic/gin"
)

// writeError maps service errors to status codes. Storage detail is
// logged, never returned.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, whitelist.ErrInvalidArgument):
		msg := strings.TrimPrefix(err.Error(), whitelist.ErrInvalidArgument.Error()+": ")
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
	case errors.Is(err, audit.ErrInvalidAction):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid action"})
	case errors.Is(err, whitelist.ErrAlreadyExists):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "contact already exists"})
	case errors.Is(err, whitelist.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "contact not found"})
	case errors.Is(err, store.ErrUnavailable):
		_ = c.Error(err)
		logger.FromGin(c).Error("storage unavailable", "err", err)
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "service unavailable"})
	default:
		_ = c.Error(err)
		logger.FromGin(c).Error("request failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
