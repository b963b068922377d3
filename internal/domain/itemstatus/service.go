// Package itemstatus advances line items through their lifecycle and fans the
// consequences out to the order, the audit log and notifications.
package itemstatus

import (
	"context"
	"fmt"
	"time"

	"fieldops/internal/core/apperror"
	"fieldops/internal/core/id"
	"fieldops/internal/core/security"
	"fieldops/internal/domain/events"
	"fieldops/internal/domain/lineitem"
	"fieldops/internal/domain/order"
	"fieldops/pkg/logger"
)

// Evaluator is the order completion check run after an item completes.
type Evaluator interface {
	Evaluate(ctx context.Context, orderID id.ID) (order.Status, error)
}

// WorkflowSteps closes the sub-steps of a nested service.
type WorkflowSteps interface {
	// CompleteOpen marks every step of the service that is neither completed nor
	// skipped as completed. Returns the number of steps changed.
	CompleteOpen(ctx context.Context, serviceID id.ID, at time.Time) (int, error)
}

// Result describes the outcome of a status operation.
type Result struct {
	Item     *lineitem.Descriptor `json:"item"`
	Previous lineitem.Status      `json:"previous"`
	Changed  bool                 `json:"changed"`
	// OrderStatus is set when the completion evaluator ran.
	OrderStatus order.Status `json:"orderStatus,omitempty"`
}

// Service is the item status state machine.
type Service struct {
	items     lineitem.Lookup
	writer    lineitem.Writer
	orders    order.Repository
	steps     WorkflowSteps
	evaluator Evaluator
	publisher events.Publisher
	now       func() time.Time
}

// NewService creates a new item status service.
func NewService(
	items lineitem.Lookup,
	writer lineitem.Writer,
	orders order.Repository,
	steps WorkflowSteps,
	evaluator Evaluator,
	publisher events.Publisher,
) *Service {
	return &Service{
		items:     items,
		writer:    writer,
		orders:    orders,
		steps:     steps,
		evaluator: evaluator,
		publisher: publisher,
		now:       time.Now,
	}
}

// SetStatus moves the item to the requested status.
func (s *Service) SetStatus(ctx context.Context, itemID id.ID, status string) (*Result, error) {
	to, err := lineitem.ParseSettable(status)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, itemID, to, nil)
}

// Start moves the item to in_progress.
func (s *Service) Start(ctx context.Context, itemID id.ID) (*Result, error) {
	return s.transition(ctx, itemID, lineitem.StatusInProgress, nil)
}

// Complete is the terminal transition with notes. Besides the status change it
// closes open workflow steps and always notifies the sales owner. On an already
// completed item only the evaluator is re-run.
func (s *Service) Complete(ctx context.Context, itemID id.ID, notes string) (*Result, error) {
	var n *string
	if notes != "" {
		n = &notes
	}
	return s.transition(ctx, itemID, lineitem.StatusCompleted, &completeOpts{notes: n})
}

type completeOpts struct {
	notes *string
}

func (s *Service) transition(ctx context.Context, itemID id.ID, to lineitem.Status, opts *completeOpts) (*Result, error) {
	item, err := s.items.Resolve(ctx, itemID)
	if err != nil {
		return nil, err
	}
	from := item.Status
	res := &Result{Item: item, Previous: from}

	if from == to {
		if to == lineitem.StatusCompleted {
			res.OrderStatus = s.evaluate(ctx, item.OrderID)
		}
		return res, nil
	}

	if err := lineitem.CheckTransition(from, to); err != nil {
		return nil, err
	}

	at := s.now().UTC()
	change := lineitem.StatusChange{From: from, To: to, At: at}
	if opts != nil {
		change.Notes = opts.notes
	}

	ok, err := s.writer.UpdateStatus(ctx, item.Ref, change)
	if err != nil {
		return nil, apperror.StoreFailure("update line item status", err)
	}
	if !ok {
		return nil, apperror.NewConflict("line item status changed concurrently").
			WithDetail("line_item_id", itemID.String()).
			WithDetail("expected", string(from))
	}

	item.Status = to
	stamp(item, to, at)
	res.Changed = true

	logger.Info(ctx, "line item status changed",
		"line_item_id", item.ID,
		"shape", item.Shape,
		"from", from,
		"to", to)

	s.publisher.Publish(ctx, events.StatusChanged{
		OrderID:    item.OrderID,
		EntityType: string(item.Shape),
		EntityID:   item.ID,
		EntityName: item.Name,
		From:       string(from),
		To:         string(to),
		Actor:      security.Actor(ctx),
		At:         at,
	})

	switch to {
	case lineitem.StatusInProgress:
		s.promoteOrder(ctx, item.OrderID, at)
	case lineitem.StatusCompleted:
		if opts != nil {
			s.closeSteps(ctx, item, at)
		}
		if opts != nil || item.Shape == lineitem.ShapeNested {
			s.notifySalesOwner(ctx, item)
		}
		res.OrderStatus = s.evaluate(ctx, item.OrderID)
	}

	return res, nil
}

// promoteOrder moves a draft or confirmed order to in_progress. Never demotes.
func (s *Service) promoteOrder(ctx context.Context, orderID id.ID, at time.Time) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		logger.Warn(ctx, "order promotion skipped: load order failed",
			"order_id", orderID, "error", err)
		return
	}
	if !order.CanAdvance(o.Status, order.StatusInProgress) {
		return
	}

	advanced, err := s.orders.AdvanceStatus(ctx, orderID, order.StatusesBefore(order.StatusInProgress), order.StatusInProgress)
	if err != nil {
		logger.Warn(ctx, "order promotion failed",
			"order_id", orderID, "error", err)
		return
	}
	if !advanced {
		return
	}

	s.publisher.Publish(ctx, events.StatusChanged{
		OrderID:    orderID,
		EntityType: events.EntityOrder,
		EntityID:   orderID,
		EntityName: o.Code,
		From:       string(o.Status),
		To:         string(order.StatusInProgress),
		Actor:      security.Actor(ctx),
		At:         at,
	})
}

func (s *Service) closeSteps(ctx context.Context, item *lineitem.Descriptor, at time.Time) {
	if item.Shape != lineitem.ShapeNested {
		return
	}
	n, err := s.steps.CompleteOpen(ctx, item.ID, at)
	if err != nil {
		logger.Warn(ctx, "workflow steps not closed",
			"line_item_id", item.ID,
			"error", apperror.NewSideEffectFailure("complete workflow steps", err))
		return
	}
	if n > 0 {
		logger.Debug(ctx, "workflow steps closed", "line_item_id", item.ID, "count", n)
	}
}

func (s *Service) notifySalesOwner(ctx context.Context, item *lineitem.Descriptor) {
	o, err := s.orders.GetByID(ctx, item.OrderID)
	if err != nil {
		logger.Warn(ctx, "sales owner not notified: load order failed",
			"order_id", item.OrderID, "error", err)
		return
	}
	if o.SalesOwnerID == nil {
		return
	}
	s.publisher.Publish(ctx, events.Notification{
		UserID:  *o.SalesOwnerID,
		Type:    events.NotifyItemCompleted,
		Title:   "Work completed",
		Content: fmt.Sprintf("%s on order %s is completed", item.Name, o.Code),
		Data: map[string]any{
			"orderId":    o.ID.String(),
			"lineItemId": item.ID.String(),
		},
	})
}

// evaluate runs the completion check. The item write already committed, so a
// failure here is logged and the caller still sees the item change.
func (s *Service) evaluate(ctx context.Context, orderID id.ID) order.Status {
	st, err := s.evaluator.Evaluate(ctx, orderID)
	if err != nil {
		logger.Error(ctx, "order evaluation after item completion failed",
			"order_id", orderID, "error", err)
		return ""
	}
	return st
}

func stamp(item *lineitem.Descriptor, to lineitem.Status, at time.Time) {
	switch to {
	case lineitem.StatusAssigned:
		item.AssignedAt = &at
	case lineitem.StatusInProgress:
		item.StartedAt = &at
	case lineitem.StatusCompleted:
		item.CompletedAt = &at
	}
}
