// Package main is the entry point for the fieldops background worker.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"fieldops/internal/config"
	"fieldops/internal/infrastructure/storage/postgres"
	"fieldops/pkg/logger"
)

// statsInterval is how often pool usage is logged.
const statsInterval = 5 * time.Minute

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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting fieldops worker")

	poolCfg := postgres.DefaultPoolConfig(cfg.DatabaseURL)
	poolCfg.MaxConns = 2
	poolCfg.MinConns = 1
	poolCfg.ApplicationName = "fieldops-worker"
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	worker := NewWorker(pool, postgres.NewIdempotencyStore(postgres.NewTxManager(pool), cfg.IdempotencyTTL), cfg.CleanupInterval, log)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// Worker runs periodic housekeeping.
type Worker struct {
	pool            *postgres.Pool
	idempotency     *postgres.IdempotencyStore
	cleanupInterval time.Duration
	log             *logger.Logger
}

func NewWorker(pool *postgres.Pool, idempotency *postgres.IdempotencyStore, cleanupInterval time.Duration, log *logger.Logger) *Worker {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Hour
	}
	return &Worker{
		pool:            pool,
		idempotency:     idempotency,
		cleanupInterval: cleanupInterval,
		log:             log.WithComponent("worker"),
	}
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ctx = logger.WithLogger(ctx, w.log)

	cleanupTicker := time.NewTicker(w.cleanupInterval)
	defer cleanupTicker.Stop()

	statsTicker := time.NewTicker(statsInterval)
	defer statsTicker.Stop()

	w.cleanupIdempotency(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-cleanupTicker.C:
			w.cleanupIdempotency(ctx)
		case <-statsTicker.C:
			w.pool.LogStats(ctx)
		}
	}
}

func (w *Worker) cleanupIdempotency(ctx context.Context) {
	deleted, err := w.idempotency.CleanupExpired(ctx)
	if err != nil {
		w.log.Errorw("idempotency cleanup failed", "error", err)
		return
	}
	if deleted > 0 {
		w.log.Infow("expired idempotency keys removed", "count", deleted)
	}
}
