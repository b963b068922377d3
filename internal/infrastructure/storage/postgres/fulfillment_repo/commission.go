package fulfillment_repo

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"fieldops/internal/core/id"
	"fieldops/internal/domain/commission"
	"fieldops/internal/infrastructure/storage/postgres"
)

const commissionsTable = "commissions"

var commissionColumns = postgres.ExtractDBColumns[commission.Entry]()

// CommissionRepo implements commission.Repository on the append-only ledger table.
type CommissionRepo struct{ base }

// NewCommissionRepo creates a commission repository.
func NewCommissionRepo(txm *postgres.TxManager) *CommissionRepo {
	return &CommissionRepo{base{txm: txm}}
}

var _ commission.Repository = (*CommissionRepo)(nil)

func (r *CommissionRepo) ListByOrder(ctx context.Context, orderID id.ID) ([]commission.Entry, error) {
	return list[commission.Entry](ctx, r.querier(ctx), "commissions",
		psql.Select(commissionColumns...).
			From(commissionsTable).
			Where(sq.Eq{"order_id": orderID}).
			OrderBy("created_at", "id"))
}

// Insert appends an entry. A duplicate (order, user, type, source_reference) key is
// reported as false, not as an error.
func (r *CommissionRepo) Insert(ctx context.Context, entry *commission.Entry) (bool, error) {
	n, err := exec(ctx, r.querier(ctx), "insert commission", insertCommission(entry))
	return n > 0, err
}

func insertCommission(entry *commission.Entry) sq.InsertBuilder {
	return psql.Insert(commissionsTable).
		SetMap(postgres.StructToMap(entry)).
		Suffix("ON CONFLICT (order_id, user_id, commission_type, source_reference) DO NOTHING")
}
