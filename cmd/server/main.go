// Package main is the entry point for the fieldops API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"fieldops/internal/config"
	"fieldops/internal/domain/assignment"
	"fieldops/internal/domain/auth"
	"fieldops/internal/domain/commission"
	"fieldops/internal/domain/completion"
	"fieldops/internal/domain/itemstatus"
	"fieldops/internal/domain/lineitem"
	"fieldops/internal/domain/notification"
	"fieldops/internal/infrastructure/eventbus"
	v1 "fieldops/internal/infrastructure/http/v1"
	"fieldops/internal/infrastructure/http/v1/middleware"
	"fieldops/internal/infrastructure/storage/postgres"
	"fieldops/internal/infrastructure/storage/postgres/fulfillment_repo"
	"fieldops/pkg/logger"
)

const version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.IsDevelopment(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	log.Infow("starting fieldops server", "version", version, "env", cfg.Env)

	// --- Database ---
	poolCfg := postgres.DefaultPoolConfig(cfg.DatabaseURL)
	poolCfg.MaxConns = cfg.DBMaxConns
	poolCfg.MinConns = cfg.DBMinConns
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txm := postgres.NewTxManager(pool)

	orders := fulfillment_repo.NewOrderRepo(txm)
	items := fulfillment_repo.NewLineItemRepo(txm)
	assignments := fulfillment_repo.NewAssignmentRepo(txm)
	commissions := fulfillment_repo.NewCommissionRepo(txm)
	staff := fulfillment_repo.NewStaffRepo(txm)
	notifications := fulfillment_repo.NewNotificationRepo(txm)

	audit, err := postgres.NewAuditService(txm)
	if err != nil {
		log.Fatalw("failed to create audit service", "error", err)
	}
	defer audit.Close()

	// --- Events ---
	rule, err := notification.CompileRule(cfg.ApprovalBroadcastRule)
	if err != nil {
		log.Fatalw("invalid approval broadcast rule", "rule", cfg.ApprovalBroadcastRule, "error", err)
	}
	dispatcher := notification.NewDispatcher(notifications, staff, audit, rule)
	bus := eventbus.New(eventbus.Config{
		BufferSize: cfg.EventBufferSize,
		Workers:    cfg.EventWorkers,
	}, log, dispatcher)

	// --- Domain services ---
	resolver := lineitem.NewResolver(items)
	recorder := commission.NewRecorder(orders, commissions, assignments, staff, cfg.DefaultSalesPercent)
	evaluator := completion.NewEvaluator(orders, items, recorder, bus)
	assignmentService := assignment.NewService(resolver, items, assignments, orders, recorder, txm)
	statusService := itemstatus.NewService(resolver, items, orders, items, evaluator, bus)

	jwtService := auth.NewJWTService(auth.DefaultJWTConfig(cfg.JWTSecret))

	var idempotency middleware.IdempotencyStore
	if cfg.IdempotencyEnabled {
		idempotency = postgres.NewIdempotencyStore(txm, cfg.IdempotencyTTL)
	}

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Logger:       log,
		JWTValidator: jwtService,
		Idempotency:  idempotency,
		Database:     pool,
		Events:       bus,
		Version:      version,
		LineItems:    resolver,
		Assignments:  assignmentService,
		Status:       statusService,
		History:      audit,
		Evaluator:    evaluator,
		Ledger:       recorder,
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}
	// Drain queued notifications and audit writes before the pool closes.
	if err := bus.Close(shutdownCtx); err != nil {
		log.Warnw("event bus did not drain", "error", err, "dropped", bus.Dropped())
	}

	log.Info("server stopped")
}
