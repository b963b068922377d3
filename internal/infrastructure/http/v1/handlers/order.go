package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"fieldops/internal/core/id"
	"fieldops/internal/domain/commission"
	"fieldops/internal/domain/completion"
	"fieldops/internal/domain/order"
)

// Evaluator decides order completion.
type Evaluator interface {
	Evaluate(ctx context.Context, orderID id.ID) (order.Status, error)
	Explain(ctx context.Context, orderID id.ID) (*completion.Evaluation, error)
}

// Ledger records and lists commissions of an order.
type Ledger interface {
	RecordCommissions(ctx context.Context, orderID id.ID) (*commission.Summary, error)
	ListByOrder(ctx context.Context, orderID id.ID) ([]commission.Entry, error)
}

// OrderHandler serves /orders endpoints.
type OrderHandler struct {
	BaseHandler
	evaluator Evaluator
	ledger    Ledger
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(evaluator Evaluator, ledger Ledger) *OrderHandler {
	return &OrderHandler{evaluator: evaluator, ledger: ledger}
}

// Evaluate runs the completion evaluator.
// POST /orders/:id/evaluate
func (h *OrderHandler) Evaluate(c *gin.Context) {
	orderID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	status, err := h.evaluator.Evaluate(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"orderId": orderID, "status": status}, "")
}

// Completion explains which gates hold the order open.
// GET /orders/:id/completion
func (h *OrderHandler) Completion(c *gin.Context) {
	orderID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	ev, err := h.evaluator.Explain(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"evaluation": ev, "eligible": ev.Eligible()}, "")
}

// RecordCommissions writes missing ledger rows for the order.
// POST /orders/:id/commissions
func (h *OrderHandler) RecordCommissions(c *gin.Context) {
	orderID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	sum, err := h.ledger.RecordCommissions(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, sum, "Commissions recorded")
}

// ListCommissions returns the ledger rows of the order.
// GET /orders/:id/commissions
func (h *OrderHandler) ListCommissions(c *gin.Context) {
	orderID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	entries, err := h.ledger.ListByOrder(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, entries, "")
}
