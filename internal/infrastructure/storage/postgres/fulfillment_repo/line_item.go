package fulfillment_repo

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"fieldops/internal/core/apperror"
	"fieldops/internal/core/id"
	"fieldops/internal/domain/lineitem"
	"fieldops/internal/infrastructure/storage/postgres"
)

const (
	flatTable      = "order_items"
	containerTable = "order_products"
	nestedTable    = "order_product_services"
	stepsTable     = "workflow_steps"
)

var (
	flatColumns      = postgres.ExtractDBColumns[lineitem.FlatItem]()
	containerColumns = postgres.ExtractDBColumns[lineitem.ProductContainer]()
	nestedColumns    = postgres.ExtractDBColumns[lineitem.NestedService]()
)

// LineItemRepo reads and writes the three line-item shapes.
type LineItemRepo struct{ base }

// NewLineItemRepo creates a line-item repository.
func NewLineItemRepo(txm *postgres.TxManager) *LineItemRepo {
	return &LineItemRepo{base{txm: txm}}
}

var (
	_ lineitem.Repository = (*LineItemRepo)(nil)
	_ lineitem.Writer     = (*LineItemRepo)(nil)
)

func (r *LineItemRepo) FindFlat(ctx context.Context, itemID id.ID) (*lineitem.FlatItem, error) {
	return get[lineitem.FlatItem](ctx, r.querier(ctx), "line item", itemID.String(),
		psql.Select(flatColumns...).From(flatTable).Where(sq.Eq{"id": itemID}))
}

func (r *LineItemRepo) FindNestedService(ctx context.Context, itemID id.ID) (*lineitem.NestedService, error) {
	return get[lineitem.NestedService](ctx, r.querier(ctx), "line item", itemID.String(),
		psql.Select(nestedColumns...).From(nestedTable).Where(sq.Eq{"id": itemID}))
}

func (r *LineItemRepo) FindContainer(ctx context.Context, itemID id.ID) (*lineitem.ProductContainer, error) {
	return get[lineitem.ProductContainer](ctx, r.querier(ctx), "line item", itemID.String(),
		psql.Select(containerColumns...).From(containerTable).Where(sq.Eq{"id": itemID}))
}

// UpdateStatus writes the status guarded by change.From and stamps the matching timestamp.
func (r *LineItemRepo) UpdateStatus(ctx context.Context, ref lineitem.Ref, change lineitem.StatusChange) (bool, error) {
	stmt, err := updateItemStatus(ref, change)
	if err != nil {
		return false, err
	}
	n, err := exec(ctx, r.querier(ctx), "update line item status", stmt)
	return n > 0, err
}

// SetPrimaryAssignee mirrors the first assignee onto the item row.
func (r *LineItemRepo) SetPrimaryAssignee(ctx context.Context, ref lineitem.Ref, p lineitem.PrimaryAssignee) error {
	stmt, err := setPrimaryAssignee(ref, p)
	if err != nil {
		return err
	}
	n, err := exec(ctx, r.querier(ctx), "set primary assignee", stmt)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperror.NewNotFound("line item", ref.ID.String())
	}
	return nil
}

// ListWorkItems returns the work gate of an order: flat service/package items
// plus every nested service, with the count of its open workflow steps.
func (r *LineItemRepo) ListWorkItems(ctx context.Context, orderID id.ID) ([]lineitem.WorkItem, error) {
	return list[lineitem.WorkItem](ctx, r.querier(ctx), "work items", workItemsQuery(orderID))
}

// CompleteOpen closes every workflow step of the service that is not completed or skipped.
func (r *LineItemRepo) CompleteOpen(ctx context.Context, serviceID id.ID, at time.Time) (int, error) {
	n, err := exec(ctx, r.querier(ctx), "complete workflow steps", completeOpenSteps(serviceID, at))
	return int(n), err
}

func tableFor(shape lineitem.Shape) (string, error) {
	switch shape {
	case lineitem.ShapeFlat:
		return flatTable, nil
	case lineitem.ShapeNested:
		return nestedTable, nil
	case lineitem.ShapeContainer:
		return containerTable, nil
	}
	return "", fmt.Errorf("unknown line item shape %q", shape)
}

func updateItemStatus(ref lineitem.Ref, ch lineitem.StatusChange) (sq.UpdateBuilder, error) {
	table, err := tableFor(ref.Shape)
	if err != nil {
		return sq.UpdateBuilder{}, err
	}
	stmt := psql.Update(table).Set("status", ch.To)

	switch ch.To {
	case lineitem.StatusCompleted:
		stmt = stmt.Set("completed_at", ch.At)
	case lineitem.StatusInProgress:
		if ref.Shape != lineitem.ShapeContainer {
			stmt = stmt.Set("started_at", ch.At)
		}
	case lineitem.StatusAssigned:
		if ref.Shape != lineitem.ShapeContainer {
			stmt = stmt.Set("assigned_at", ch.At)
		}
	}
	if ch.Notes != nil && ref.Shape != lineitem.ShapeContainer {
		stmt = stmt.Set("notes", *ch.Notes)
	}
	return stmt.Where(sq.Eq{"id": ref.ID, "status": ch.From}), nil
}

func setPrimaryAssignee(ref lineitem.Ref, p lineitem.PrimaryAssignee) (sq.UpdateBuilder, error) {
	if ref.Shape == lineitem.ShapeContainer {
		return sq.UpdateBuilder{}, fmt.Errorf("product container %s has no primary assignee", ref.ID)
	}
	table, err := tableFor(ref.Shape)
	if err != nil {
		return sq.UpdateBuilder{}, err
	}

	stmt := psql.Update(table)
	if p.Role == lineitem.RoleTechnician {
		stmt = stmt.
			Set("technician_id", p.StaffID).
			Set("commission_rate", p.Rate).
			Set("commission_amount", p.Amount)
	} else {
		stmt = stmt.
			Set("sales_id", p.StaffID).
			Set("sales_commission_rate", p.Rate)
	}
	if p.PromoteFrom != nil {
		// SET expressions see the pre-update row, so both CASEs test the old status.
		stmt = stmt.
			Set("status", sq.Expr("CASE WHEN status = ? THEN ? ELSE status END", *p.PromoteFrom, lineitem.StatusAssigned)).
			Set("assigned_at", sq.Expr("CASE WHEN status = ? THEN ? ELSE assigned_at END", *p.PromoteFrom, p.At))
	}
	return stmt.Where(sq.Eq{"id": ref.ID}), nil
}

func workItemsQuery(orderID id.ID) sq.Sqlizer {
	return sq.Expr(`
		SELECT i.id, 'flat' AS shape, i.item_name AS name, i.item_type, i.status, 0 AS open_steps
		FROM `+flatTable+` i
		WHERE i.order_id = $1 AND i.item_type IN ('service', 'package')
		UNION ALL
		SELECT s.id, 'nested_service' AS shape, s.service_name AS name, 'service' AS item_type, s.status,
			(SELECT COUNT(*) FROM `+stepsTable+` w
			 WHERE w.order_product_service_id = s.id AND w.status NOT IN ('completed', 'skipped'))::int AS open_steps
		FROM `+nestedTable+` s
		JOIN `+containerTable+` p ON p.id = s.order_product_id
		WHERE p.order_id = $1
		ORDER BY 1`, orderID)
}

func completeOpenSteps(serviceID id.ID, at time.Time) sq.UpdateBuilder {
	return psql.Update(stepsTable).
		Set("status", lineitem.StatusCompleted).
		Set("completed_at", at).
		Where(sq.Eq{"order_product_service_id": serviceID}).
		Where(sq.NotEq{"status": []lineitem.Status{lineitem.StatusCompleted, lineitem.StatusSkipped}})
}
