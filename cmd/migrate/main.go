// Package main applies the embedded schema migrations.
// Usage: migrate            apply pending migrations
//        migrate list       print embedded migrations
package main

import (
	"context"
	"fmt"
	"os"

	"fieldops/db/migrations"
	"fieldops/internal/config"
	"fieldops/internal/infrastructure/storage/postgres"
	"fieldops/pkg/logger"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "list":
			listMigrations()
			return
		case "help", "--help", "-h":
			printUsage()
			return
		default:
			fmt.Printf("Unknown command: %s\n", os.Args[1])
			printUsage()
			os.Exit(1)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Development: cfg.IsDevelopment()})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.DatabaseURL))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	applied, err := migrations.Apply(logger.WithLogger(ctx, log), postgres.NewTxManager(pool))
	if err != nil {
		log.Fatalw("migration failed", "error", err)
	}
	if len(applied) == 0 {
		log.Info("schema is up to date")
		return
	}
	log.Infow("migrations applied", "count", len(applied), "versions", applied)
}

func listMigrations() {
	files, err := migrations.Load()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	for _, f := range files {
		fmt.Println(f.Version)
	}
}

func printUsage() {
	fmt.Println(`fieldops schema migrations

Usage:
  migrate           Apply pending migrations
  migrate list      List embedded migrations
  migrate help      Show this help

Environment Variables:
  DATABASE_URL      Connection string (required for apply)`)
}
