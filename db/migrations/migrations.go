// Package migrations embeds the schema and applies it in file-name order.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"fieldops/internal/infrastructure/storage/postgres"
	"fieldops/pkg/logger"
)

//go:embed *.sql
var files embed.FS

// lockID is the pg_advisory_xact_lock key serializing concurrent migrators.
const lockID = 720_112_004

// Migration is one embedded SQL file.
type Migration struct {
	Version string
	SQL     string
}

// Load returns the embedded migrations sorted by version.
func Load() ([]Migration, error) {
	return load(files)
}

func load(fsys fs.FS) ([]Migration, error) {
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)

	out := make([]Migration, 0, len(names))
	for _, name := range names {
		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		out = append(out, Migration{Version: strings.TrimSuffix(name, ".sql"), SQL: string(body)})
	}
	return out, nil
}

// Apply runs every migration not yet recorded in schema_migrations. Each file
// runs in its own transaction. Returns the versions applied.
func Apply(ctx context.Context, txm *postgres.TxManager) ([]string, error) {
	migs, err := Load()
	if err != nil {
		return nil, err
	}

	if _, err := txm.GetQuerier(ctx).Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	var applied []string
	for _, m := range migs {
		ran := false
		err := txm.RunInTransaction(ctx, func(ctx context.Context) error {
			q := txm.GetQuerier(ctx)
			if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, lockID); err != nil {
				return fmt.Errorf("lock: %w", err)
			}
			var exists bool
			if err := q.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, m.Version).Scan(&exists); err != nil {
				return fmt.Errorf("check version: %w", err)
			}
			if exists {
				return nil
			}
			if _, err := q.Exec(ctx, m.SQL); err != nil {
				return err
			}
			if _, err := q.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, m.Version); err != nil {
				return fmt.Errorf("record version: %w", err)
			}
			ran = true
			return nil
		})
		if err != nil {
			return applied, fmt.Errorf("migration %s: %w", m.Version, err)
		}
		if ran {
			logger.Info(ctx, "migration applied", "version", m.Version)
			applied = append(applied, m.Version)
		}
	}
	return applied, nil
}
