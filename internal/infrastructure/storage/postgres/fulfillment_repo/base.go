// Package fulfillment_repo provides PostgreSQL implementations of the fulfillment
// core's store interfaces. Every repository reads the active transaction from the
// context through TxManager.GetQuerier, so the same instance serves both
// transactional and standalone calls.
package fulfillment_repo

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"fieldops/internal/core/apperror"
	"fieldops/internal/infrastructure/storage/postgres"
)

// psql builds statements with PostgreSQL placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type base struct {
	txm *postgres.TxManager
}

func (b base) querier(ctx context.Context) postgres.Querier {
	return b.txm.GetQuerier(ctx)
}

// get scans exactly one row into T; a miss becomes apperror NotFound.
func get[T any](ctx context.Context, q postgres.Querier, entity, key string, stmt sq.Sqlizer) (*T, error) {
	query, args, err := stmt.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build %s query: %w", entity, err)
	}
	var out T
	if err := pgxscan.Get(ctx, q, &out, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(entity, key)
		}
		return nil, fmt.Errorf("query %s: %w", entity, err)
	}
	return &out, nil
}

func list[T any](ctx context.Context, q postgres.Querier, entity string, stmt sq.Sqlizer) ([]T, error) {
	query, args, err := stmt.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build %s query: %w", entity, err)
	}
	var out []T
	if err := pgxscan.Select(ctx, q, &out, query, args...); err != nil {
		return nil, fmt.Errorf("query %s: %w", entity, err)
	}
	return out, nil
}

// exec runs a write and returns the number of affected rows.
func exec(ctx context.Context, q postgres.Querier, op string, stmt sq.Sqlizer) (int64, error) {
	query, args, err := stmt.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build %s: %w", op, err)
	}
	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return tag.RowsAffected(), nil
}
