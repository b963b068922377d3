// Package handlers provides HTTP request handlers.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"fieldops/internal/infrastructure/storage/postgres"
)

// Database is the subset of *postgres.Pool the health checks need.
type Database interface {
	Ping(ctx context.Context) error
	Stats() postgres.PoolStats
}

// DropCounter reports events discarded by the event bus.
type DropCounter interface {
	Dropped() int64
}

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	db      Database
	bus     DropCounter
	version string
}

// NewHealthHandler creates a new health handler. bus may be nil.
func NewHealthHandler(db Database, bus DropCounter, version string) *HealthHandler {
	return &HealthHandler{db: db, bus: bus, version: version}
}

// Live handles liveness probe (is the process alive?).
// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Ready handles readiness probe (is the service ready to accept traffic?).
// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	if err := h.db.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "error",
			"checks": map[string]string{
				"database": "unhealthy: " + err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"checks": map[string]string{
			"database": "healthy",
		},
	})
}

// Info returns application information.
// GET /health/info
func (h *HealthHandler) Info(c *gin.Context) {
	stats := h.db.Stats()

	info := gin.H{
		"app":     "fieldops",
		"version": h.version,
		"database": map[string]any{
			"total_conns":    stats.TotalConns,
			"acquired_conns": stats.AcquiredConns,
			"idle_conns":     stats.IdleConns,
			"max_conns":      stats.MaxConns,
		},
	}
	if h.bus != nil {
		info["events_dropped"] = h.bus.Dropped()
	}
	c.JSON(http.StatusOK, info)
}
