// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"fieldops/internal/infrastructure/http/v1/handlers"
	"fieldops/internal/infrastructure/http/v1/middleware"
	"fieldops/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	// Idempotency is optional; nil disables X-Idempotency-Key handling
	Idempotency middleware.IdempotencyStore

	// Database backs the readiness and info probes
	Database handlers.Database

	// Events reports dropped bus events on /health/info; may be nil
	Events handlers.DropCounter

	Version string

	LineItems   handlers.LineItemLookup
	Assignments handlers.AssignmentService
	Status      handlers.StatusService
	History     handlers.HistorySource
	Evaluator   handlers.Evaluator
	Ledger      handlers.Ledger
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.Database, cfg.Events, cfg.Version)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	v1 := router.Group("/api/v1")
	{
		v1.Use(middleware.Auth(cfg.JWTValidator)) // 1. Validate JWT
		v1.Use(middleware.UserContext())          // 2. Acting user for audit attribution
		if cfg.Idempotency != nil {
			v1.Use(middleware.Idempotency(cfg.Idempotency))
		}

		RegisterLineItemRoutes(v1.Group("/line-items"),
			handlers.NewLineItemHandler(cfg.LineItems, cfg.Assignments, cfg.Status, cfg.History))
		RegisterOrderRoutes(v1.Group("/orders"),
			handlers.NewOrderHandler(cfg.Evaluator, cfg.Ledger))
	}

	return router
}
