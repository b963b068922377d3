// Package completion decides when an order has satisfied both its payment and
// work conditions and moves it to done.
package completion

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"fieldops/internal/core/apperror"
	"fieldops/internal/core/id"
	"fieldops/internal/core/security"
	"fieldops/internal/domain/commission"
	"fieldops/internal/domain/events"
	"fieldops/internal/domain/lineitem"
	"fieldops/internal/domain/order"
	"fieldops/pkg/logger"
)

var tracer = otel.Tracer("fieldops/completion")

// WorkSource lists the items that take part in the work gate: service and package
// flat items plus every nested service of every product container. Product flat
// items are never returned.
type WorkSource interface {
	ListWorkItems(ctx context.Context, orderID id.ID) ([]lineitem.WorkItem, error)
}

// CommissionRecorder appends the ledger of a completed order.
type CommissionRecorder interface {
	RecordCommissions(ctx context.Context, orderID id.ID) (*commission.Summary, error)
}

// Evaluation explains the gates of an order without changing it.
type Evaluation struct {
	OrderID  id.ID              `json:"orderId"`
	Status   order.Status       `json:"status"`
	Terminal bool               `json:"terminal"`
	Paid     bool               `json:"paid"`
	WorkDone bool               `json:"workDone"`
	Blocking []lineitem.WorkItem `json:"blocking"`
}

// Eligible reports whether Evaluate would complete the order now.
func (e *Evaluation) Eligible() bool {
	return !e.Terminal && e.Paid && e.WorkDone
}

// Evaluator runs the completion check. Safe under redundant and concurrent calls:
// the conditional update lets exactly one caller win the transition.
type Evaluator struct {
	orders    order.Repository
	work      WorkSource
	recorder  CommissionRecorder
	publisher events.Publisher
	now       func() time.Time
}

// NewEvaluator creates a new order completion evaluator.
func NewEvaluator(
	orders order.Repository,
	work WorkSource,
	recorder CommissionRecorder,
	publisher events.Publisher,
) *Evaluator {
	return &Evaluator{
		orders:    orders,
		work:      work,
		recorder:  recorder,
		publisher: publisher,
		now:       time.Now,
	}
}

// Evaluate completes the order when it is paid and all its work is absorbed.
// Returns the order status after the call.
func (e *Evaluator) Evaluate(ctx context.Context, orderID id.ID) (order.Status, error) {
	ctx, span := tracer.Start(ctx, "completion.Evaluate")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID.String()))

	ev, o, err := e.explain(ctx, orderID, false)
	if err != nil {
		return "", err
	}
	span.SetAttributes(
		attribute.Bool("order.paid", ev.Paid),
		attribute.Bool("order.work_done", ev.WorkDone),
	)
	if !ev.Eligible() {
		return o.Status, nil
	}

	at := e.now().UTC()
	won, err := e.orders.MarkDone(ctx, orderID, at)
	if err != nil {
		return "", apperror.StoreFailure("mark order done", err)
	}
	if !won {
		// Someone else moved the order on; report what is stored now.
		current, err := e.orders.GetByID(ctx, orderID)
		if err != nil {
			return "", apperror.StoreFailure("reload order", err)
		}
		return current.Status, nil
	}
	span.SetAttributes(attribute.Bool("order.completed", true))

	logger.Info(ctx, "order completed",
		"order_id", orderID,
		"code", o.Code)

	e.publisher.Publish(ctx, events.StatusChanged{
		OrderID:    orderID,
		EntityType: events.EntityOrder,
		EntityID:   orderID,
		EntityName: o.Code,
		From:       string(o.Status),
		To:         string(order.StatusDone),
		Actor:      security.Actor(ctx),
		At:         at,
	})

	if _, err := e.recorder.RecordCommissions(ctx, orderID); err != nil {
		logger.Error(ctx, "record commissions after completion failed",
			"order_id", orderID, "error", err)
	}

	if o.SalesOwnerID != nil {
		e.publisher.Publish(ctx, events.Notification{
			UserID:  *o.SalesOwnerID,
			Type:    events.NotifyOrderCompleted,
			Title:   "Order completed",
			Content: fmt.Sprintf("Order %s is paid and all work is done", o.Code),
			Data:    map[string]any{"orderId": orderID.String(), "code": o.Code},
		})
	}

	return order.StatusDone, nil
}

// Explain reports both gates and the blocking work items.
func (e *Evaluator) Explain(ctx context.Context, orderID id.ID) (*Evaluation, error) {
	ev, _, err := e.explain(ctx, orderID, true)
	return ev, err
}

// explain stops after a failed payment gate unless full is set.
func (e *Evaluator) explain(ctx context.Context, orderID id.ID, full bool) (*Evaluation, *order.Order, error) {
	o, err := e.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, nil, apperror.StoreFailure("get order", err)
	}

	ev := &Evaluation{
		OrderID:  o.ID,
		Status:   o.Status,
		Terminal: o.Status.IsTerminal(),
		Paid:     o.IsPaid(),
		Blocking: []lineitem.WorkItem{},
	}
	if ev.Terminal || (!ev.Paid && !full) {
		return ev, o, nil
	}

	items, err := e.work.ListWorkItems(ctx, orderID)
	if err != nil {
		return nil, nil, apperror.StoreFailure("list work items", err)
	}
	for _, it := range items {
		if !it.Status.IsAbsorbing() {
			ev.Blocking = append(ev.Blocking, it)
		}
	}
	ev.WorkDone = len(ev.Blocking) == 0

	return ev, o, nil
}
