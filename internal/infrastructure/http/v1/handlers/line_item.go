package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"fieldops/internal/core/id"
	"fieldops/internal/domain/assignment"
	"fieldops/internal/domain/itemstatus"
	"fieldops/internal/domain/lineitem"
	"fieldops/internal/infrastructure/http/v1/dto"
	"fieldops/internal/infrastructure/storage/postgres"
)

// LineItemLookup resolves a line item id to its descriptor.
type LineItemLookup interface {
	Resolve(ctx context.Context, itemID id.ID) (*lineitem.Descriptor, error)
}

// AssignmentService manages technician and sales assignments.
type AssignmentService interface {
	AssignTechnicians(ctx context.Context, itemID id.ID, inputs []assignment.Input) (*assignment.Result, error)
	AssignSales(ctx context.Context, itemID id.ID, inputs []assignment.Input) (*assignment.Result, error)
	ListByItem(ctx context.Context, itemID id.ID) ([]assignment.Assignment, error)
}

// StatusService drives item status transitions.
type StatusService interface {
	SetStatus(ctx context.Context, itemID id.ID, status string) (*itemstatus.Result, error)
	Start(ctx context.Context, itemID id.ID) (*itemstatus.Result, error)
	Complete(ctx context.Context, itemID id.ID, notes string) (*itemstatus.Result, error)
}

// HistorySource returns audited transitions of an entity.
type HistorySource interface {
	GetEntityHistory(ctx context.Context, entityID id.ID, limit int) ([]postgres.AuditEntry, error)
}

// LineItemHandler serves /line-items endpoints.
type LineItemHandler struct {
	BaseHandler
	items       LineItemLookup
	assignments AssignmentService
	status      StatusService
	history     HistorySource
}

// NewLineItemHandler creates a new line item handler.
func NewLineItemHandler(items LineItemLookup, assignments AssignmentService, status StatusService, history HistorySource) *LineItemHandler {
	return &LineItemHandler{items: items, assignments: assignments, status: status, history: history}
}

// Get returns the resolved line item.
// GET /line-items/:id
func (h *LineItemHandler) Get(c *gin.Context) {
	itemID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	item, err := h.items.Resolve(c.Request.Context(), itemID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, item, "")
}

// Assignments lists assignment rows of the item.
// GET /line-items/:id/assignments
func (h *LineItemHandler) Assignments(c *gin.Context) {
	itemID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	rows, err := h.assignments.ListByItem(c.Request.Context(), itemID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, rows, "")
}

// History lists audited status transitions of the item.
// GET /line-items/:id/history
func (h *LineItemHandler) History(c *gin.Context) {
	itemID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var q dto.HistoryQuery
	if !h.BindQuery(c, &q) {
		return
	}
	entries, err := h.history.GetEntityHistory(c.Request.Context(), itemID, q.Limit)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, entries, "")
}

// AssignTechnicians replaces the technician set of the item.
// PATCH /line-items/:id/assign
func (h *LineItemHandler) AssignTechnicians(c *gin.Context) {
	itemID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.AssignTechniciansRequest
	if !h.BindJSON(c, &req) {
		return
	}
	inputs, err := req.Inputs()
	if err != nil {
		h.Error(c, err)
		return
	}
	res, err := h.assignments.AssignTechnicians(c.Request.Context(), itemID, inputs)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res, "Technicians assigned")
}

// AssignSales replaces the sales set of the item.
// PATCH /line-items/:id/assign-sale
func (h *LineItemHandler) AssignSales(c *gin.Context) {
	itemID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.AssignSalesRequest
	if !h.BindJSON(c, &req) {
		return
	}
	inputs, err := req.Inputs()
	if err != nil {
		h.Error(c, err)
		return
	}
	res, err := h.assignments.AssignSales(c.Request.Context(), itemID, inputs)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res, "Sales assigned")
}

// SetStatus moves the item to the requested status.
// PATCH /line-items/:id/status
func (h *LineItemHandler) SetStatus(c *gin.Context) {
	itemID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.StatusRequest
	if !h.BindJSON(c, &req) {
		return
	}
	res, err := h.status.SetStatus(c.Request.Context(), itemID, req.Status)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res, statusMessage(res))
}

// Start moves the item to in_progress.
// PATCH /line-items/:id/start
func (h *LineItemHandler) Start(c *gin.Context) {
	itemID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	res, err := h.status.Start(c.Request.Context(), itemID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res, statusMessage(res))
}

// Complete finishes the item and re-evaluates its order.
// PATCH /line-items/:id/complete
func (h *LineItemHandler) Complete(c *gin.Context) {
	itemID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.CompleteRequest
	if !h.BindOptionalJSON(c, &req) {
		return
	}
	res, err := h.status.Complete(c.Request.Context(), itemID, req.Notes)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res, statusMessage(res))
}

func statusMessage(res *itemstatus.Result) string {
	if !res.Changed {
		return "Status unchanged"
	}
	return "Status updated"
}
