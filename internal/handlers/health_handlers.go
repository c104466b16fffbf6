package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const healthTimeout = 3 * time.Second

// Ping is the handler for GET /v1/ping
func (h *Handlers) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong!"})
}

// Health is the handler for GET /v1/health
// It asks the server for the current connection id through the shared handle.
func (h *Handlers) Health(c *gin.Context) {
	if h.DB == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"error":  "database handle not configured",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	var connectionID uint64
	err := h.DB.Bun().NewRaw("SELECT CONNECTION_ID()").Scan(ctx, &connectionID)
	if err != nil {
		h.Log.Warn("Health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unavailable",
			"strategy": h.DB.Strategy(),
			"error":    err.Error(),
		})
		return
	}

	stats := h.DB.Stats()
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"strategy":     h.DB.Strategy(),
		"connectionId": connectionID,
		"stats": gin.H{
			"maxOpenConnections": stats.MaxOpenConnections,
			"openConnections":    stats.OpenConnections,
			"inUse":              stats.InUse,
			"idle":               stats.Idle,
			"waitCount":          stats.WaitCount,
		},
	})
}
