package fulfillment_repo

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"

	"fieldops/internal/core/id"
	"fieldops/internal/domain/order"
	"fieldops/internal/infrastructure/storage/postgres"
)

const ordersTable = "orders"

var orderColumns = postgres.ExtractDBColumns[order.Order]()

// terminalOrderStatuses are never overwritten by the core.
var terminalOrderStatuses = []order.Status{order.StatusDone, order.StatusAfterSale, order.StatusCancelled}

// OrderRepo implements order.Repository.
type OrderRepo struct{ base }

// NewOrderRepo creates an order repository.
func NewOrderRepo(txm *postgres.TxManager) *OrderRepo {
	return &OrderRepo{base{txm: txm}}
}

var _ order.Repository = (*OrderRepo)(nil)

func (r *OrderRepo) GetByID(ctx context.Context, orderID id.ID) (*order.Order, error) {
	return get[order.Order](ctx, r.querier(ctx), "order", orderID.String(), selectOrder(orderID))
}

func (r *OrderRepo) AdvanceStatus(ctx context.Context, orderID id.ID, from []order.Status, target order.Status) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}
	n, err := exec(ctx, r.querier(ctx), "advance order status", advanceOrderStatus(orderID, from, target, time.Now().UTC()))
	return n > 0, err
}

func (r *OrderRepo) MarkDone(ctx context.Context, orderID id.ID, at time.Time) (bool, error) {
	n, err := exec(ctx, r.querier(ctx), "mark order done", markOrderDone(orderID, at))
	return n > 0, err
}

func selectOrder(orderID id.ID) sq.SelectBuilder {
	return psql.Select(orderColumns...).From(ordersTable).Where(sq.Eq{"id": orderID})
}

func advanceOrderStatus(orderID id.ID, from []order.Status, target order.Status, at time.Time) sq.UpdateBuilder {
	return psql.Update(ordersTable).
		Set("status", target).
		Set("updated_at", at).
		Where(sq.Eq{"id": orderID, "status": from})
}

func markOrderDone(orderID id.ID, at time.Time) sq.UpdateBuilder {
	return psql.Update(ordersTable).
		Set("status", order.StatusDone).
		Set("completed_at", at).
		Set("updated_at", at).
		Where(sq.Eq{"id": orderID}).
		Where(sq.NotEq{"status": terminalOrderStatuses})
}
