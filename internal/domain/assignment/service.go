package assignment

import (
	"context"
	"fmt"
	"time"

	"fieldops/internal/core/apperror"
	"fieldops/internal/core/id"
	"fieldops/internal/core/security"
	"fieldops/internal/core/tx"
	"fieldops/internal/core/types"
	"fieldops/internal/domain/commission"
	"fieldops/internal/domain/lineitem"
	"fieldops/internal/domain/order"
	"fieldops/pkg/logger"
)

// CommissionRecorder re-runs the ledger of an order.
type CommissionRecorder interface {
	RecordCommissions(ctx context.Context, orderID id.ID) (*commission.Summary, error)
}

// Service provides the assignment operations.
type Service struct {
	items    lineitem.Lookup
	writer   lineitem.Writer
	repo     Repository
	orders   order.Repository
	recorder CommissionRecorder
	txm      tx.Manager
	now      func() time.Time
}

// NewService creates a new assignment service.
func NewService(
	items lineitem.Lookup,
	writer lineitem.Writer,
	repo Repository,
	orders order.Repository,
	recorder CommissionRecorder,
	txm tx.Manager,
) *Service {
	return &Service{
		items:    items,
		writer:   writer,
		repo:     repo,
		orders:   orders,
		recorder: recorder,
		txm:      txm,
		now:      time.Now,
	}
}

// AssignTechnicians replaces the technician set of a line item.
func (s *Service) AssignTechnicians(ctx context.Context, itemID id.ID, inputs []Input) (*Result, error) {
	return s.assign(ctx, itemID, lineitem.RoleTechnician, inputs)
}

// AssignSales replaces the sales set of a line item.
func (s *Service) AssignSales(ctx context.Context, itemID id.ID, inputs []Input) (*Result, error) {
	return s.assign(ctx, itemID, lineitem.RoleSales, inputs)
}

// ListByItem returns the current assignments of a line item.
func (s *Service) ListByItem(ctx context.Context, itemID id.ID) ([]Assignment, error) {
	if _, err := s.items.Resolve(ctx, itemID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListByItem(ctx, itemID)
	if err != nil {
		return nil, apperror.StoreFailure("list assignments", err)
	}
	return rows, nil
}

func (s *Service) assign(ctx context.Context, itemID id.ID, role lineitem.Role, inputs []Input) (*Result, error) {
	inputs, err := Normalize(inputs, nil)
	if err != nil {
		return nil, err
	}

	item, err := s.items.Resolve(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if role == lineitem.RoleTechnician && !item.HasPrimaryFields() {
		return nil, apperror.NewInvalidAssignment("product containers carry no service work").
			WithDetail("line_item_id", itemID.String())
	}

	now := s.now().UTC()

	if item.HasPrimaryFields() {
		if err := s.mirrorPrimary(ctx, item, role, inputs[0], now); err != nil {
			return nil, err
		}
	}

	actor := security.Actor(ctx)
	rows := make([]Assignment, 0, len(inputs))
	for _, in := range inputs {
		rows = append(rows, Assignment{
			ID:                id.New(),
			LineItemID:        item.ID,
			LineItemShape:     item.Shape,
			Role:              role,
			StaffID:           in.StaffID,
			CommissionPercent: in.CommissionPercent,
			AssignedBy:        actor,
			AssignedAt:        now,
		})
	}

	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.DeleteByItemRole(ctx, item.ID, role); err != nil {
			return fmt.Errorf("delete assignments: %w", err)
		}
		if err := s.repo.InsertBatch(ctx, rows); err != nil {
			return fmt.Errorf("insert assignments: %w", err)
		}
		return nil
	})
	if err != nil {
		// The mirrored primary fields stay; single-assignee readers remain consistent.
		logger.Warn(ctx, "assignment rows not replaced",
			"line_item_id", item.ID,
			"role", role,
			"error", apperror.NewSideEffectFailure("replace assignments", err))
	}

	logger.Info(ctx, "line item assigned",
		"line_item_id", item.ID,
		"shape", item.Shape,
		"role", role,
		"assignees", len(rows))

	s.correctLedger(ctx, item.OrderID)

	return &Result{Item: item, Assignments: rows}, nil
}

// mirrorPrimary copies the first assignee onto the item's own columns and, for
// technicians, promotes a pending item to assigned. It updates item in place.
func (s *Service) mirrorPrimary(ctx context.Context, item *lineitem.Descriptor, role lineitem.Role, primary Input, now time.Time) error {
	p := lineitem.PrimaryAssignee{
		Role:    role,
		StaffID: primary.StaffID,
		Rate:    primary.CommissionPercent,
		Amount:  types.Zero(),
		At:      now,
	}
	if role == lineitem.RoleTechnician {
		p.Amount = types.FloorPercent(item.Price, primary.CommissionPercent)
		if item.Status == lineitem.StatusPending {
			pending := lineitem.StatusPending
			p.PromoteFrom = &pending
		}
	}

	if err := s.writer.SetPrimaryAssignee(ctx, item.Ref, p); err != nil {
		return apperror.StoreFailure("mirror primary assignee", err)
	}

	if role == lineitem.RoleTechnician {
		staffID := primary.StaffID
		item.TechnicianID = &staffID
		item.CommissionRate = primary.CommissionPercent
		if p.PromoteFrom != nil {
			item.Status = lineitem.StatusAssigned
			item.AssignedAt = &now
		}
	}
	return nil
}

// correctLedger re-records commissions when staff change after the order completed.
func (s *Service) correctLedger(ctx context.Context, orderID id.ID) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		logger.Warn(ctx, "ledger correction skipped: load order failed",
			"order_id", orderID, "error", err)
		return
	}
	if !o.Status.IsPostCompletion() {
		return
	}
	if _, err := s.recorder.RecordCommissions(ctx, orderID); err != nil {
		logger.Warn(ctx, "ledger correction failed",
			"order_id", orderID, "error", err)
	}
}
