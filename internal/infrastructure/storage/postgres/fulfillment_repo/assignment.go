package fulfillment_repo

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"fieldops/internal/core/id"
	"fieldops/internal/domain/assignment"
	"fieldops/internal/domain/commission"
	"fieldops/internal/domain/lineitem"
	"fieldops/internal/infrastructure/storage/postgres"
)

const assignmentsTable = "line_item_assignments"

var assignmentColumns = postgres.ExtractDBColumns[assignment.Assignment]()

// AssignmentRepo stores line-item assignments and derives commission shares from them.
type AssignmentRepo struct{ base }

// NewAssignmentRepo creates an assignment repository.
func NewAssignmentRepo(txm *postgres.TxManager) *AssignmentRepo {
	return &AssignmentRepo{base{txm: txm}}
}

var (
	_ assignment.Repository  = (*AssignmentRepo)(nil)
	_ commission.ShareSource = (*AssignmentRepo)(nil)
)

func (r *AssignmentRepo) DeleteByItemRole(ctx context.Context, itemID id.ID, role lineitem.Role) error {
	_, err := exec(ctx, r.querier(ctx), "delete assignments",
		psql.Delete(assignmentsTable).Where(sq.Eq{"line_item_id": itemID, "role": role}))
	return err
}

func (r *AssignmentRepo) InsertBatch(ctx context.Context, rows []assignment.Assignment) error {
	if len(rows) == 0 {
		return nil
	}
	_, err := exec(ctx, r.querier(ctx), "insert assignments", insertAssignments(rows))
	return err
}

func (r *AssignmentRepo) ListByItem(ctx context.Context, itemID id.ID) ([]assignment.Assignment, error) {
	return list[assignment.Assignment](ctx, r.querier(ctx), "assignments",
		psql.Select(assignmentColumns...).
			From(assignmentsTable).
			Where(sq.Eq{"line_item_id": itemID}).
			OrderBy("role", "assigned_at", "id"))
}

// ServiceShares lists every technician assignment on the nested services of an order.
func (r *AssignmentRepo) ServiceShares(ctx context.Context, orderID id.ID) ([]commission.ServiceShare, error) {
	return list[commission.ServiceShare](ctx, r.querier(ctx), "service shares", serviceSharesQuery(orderID))
}

// LegacyItemShares lists flat items carrying a precomputed technician commission.
func (r *AssignmentRepo) LegacyItemShares(ctx context.Context, orderID id.ID) ([]commission.ItemShare, error) {
	return list[commission.ItemShare](ctx, r.querier(ctx), "legacy item shares", legacySharesQuery(orderID))
}

func insertAssignments(rows []assignment.Assignment) sq.InsertBuilder {
	stmt := psql.Insert(assignmentsTable).Columns(assignmentColumns...)
	for i := range rows {
		values := postgres.StructToMap(&rows[i])
		vals := make([]any, len(assignmentColumns))
		for j, col := range assignmentColumns {
			vals[j] = values[col]
		}
		stmt = stmt.Values(vals...)
	}
	return stmt
}

func serviceSharesQuery(orderID id.ID) sq.SelectBuilder {
	return psql.Select(
		"s.id AS service_id",
		"s.service_name",
		"s.unit_price",
		"a.staff_id",
		"a.commission_percent",
	).
		From(assignmentsTable + " a").
		Join(nestedTable + " s ON s.id = a.line_item_id").
		Join(containerTable + " p ON p.id = s.order_product_id").
		Where(sq.Eq{
			"p.order_id":        orderID,
			"a.role":            lineitem.RoleTechnician,
			"a.line_item_shape": lineitem.ShapeNested,
		}).
		OrderBy("s.id", "a.assigned_at")
}

func legacySharesQuery(orderID id.ID) sq.SelectBuilder {
	return psql.Select("id", "item_name", "unit_price", "technician_id", "commission_rate", "commission_amount").
		From(flatTable).
		Where(sq.Eq{"order_id": orderID}).
		Where(sq.NotEq{"technician_id": nil}).
		Where(sq.Gt{"commission_amount": 0}).
		OrderBy("id")
}
