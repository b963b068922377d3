// Package assignment attaches technicians and sales staff to line items with
// individual commission percentages.
package assignment

import (
	"context"
	"time"

	"fieldops/internal/core/apperror"
	"fieldops/internal/core/id"
	"fieldops/internal/core/types"
	"fieldops/internal/domain/lineitem"
)

// Input is one requested assignee.
type Input struct {
	StaffID           id.ID         `json:"staffId"`
	CommissionPercent types.Percent `json:"commissionPercent"`
}

// Normalize folds the legacy single-assignee shorthand into the list form and
// validates the result.
func Normalize(list []Input, legacy *Input) ([]Input, error) {
	if len(list) == 0 && legacy != nil {
		list = []Input{*legacy}
	}
	if len(list) == 0 {
		return nil, apperror.NewInvalidAssignment("at least one assignee is required")
	}

	seen := make(map[id.ID]struct{}, len(list))
	for i, in := range list {
		if id.IsNil(in.StaffID) {
			return nil, apperror.NewInvalidAssignment("assignee id is required").WithDetail("index", i)
		}
		if !types.ValidPercent(in.CommissionPercent) {
			return nil, apperror.NewInvalidAssignment("commission percent must be within 0..100").
				WithDetail("index", i).
				WithDetail("commission_percent", in.CommissionPercent.String())
		}
		if _, dup := seen[in.StaffID]; dup {
			return nil, apperror.NewInvalidAssignment("assignee listed twice").
				WithDetail("staff_id", in.StaffID.String())
		}
		seen[in.StaffID] = struct{}{}
	}
	return list, nil
}

// Assignment is a stored join row between a line item and a staff member.
type Assignment struct {
	ID                id.ID          `db:"id" json:"id"`
	LineItemID        id.ID          `db:"line_item_id" json:"lineItemId"`
	LineItemShape     lineitem.Shape `db:"line_item_shape" json:"lineItemShape"`
	Role              lineitem.Role  `db:"role" json:"role"`
	StaffID           id.ID          `db:"staff_id" json:"staffId"`
	CommissionPercent types.Percent  `db:"commission_percent" json:"commissionPercent"`
	AssignedBy        string         `db:"assigned_by" json:"assignedBy"`
	AssignedAt        time.Time      `db:"assigned_at" json:"assignedAt"`
}

// Result is returned by the assign operations.
type Result struct {
	Item        *lineitem.Descriptor `json:"item"`
	Assignments []Assignment         `json:"assignments"`
}

// Repository stores assignment rows.
type Repository interface {
	// DeleteByItemRole removes every assignment of role on the item.
	DeleteByItemRole(ctx context.Context, itemID id.ID, role lineitem.Role) error
	InsertBatch(ctx context.Context, rows []Assignment) error
	ListByItem(ctx context.Context, itemID id.ID) ([]Assignment, error)
}
