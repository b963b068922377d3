// Package order provides the Order aggregate as seen by the fulfillment core.
// Payment fields are maintained by an external payment subsystem; the core only reads them.
package order

import (
	"context"
	"time"

	"fieldops/internal/core/id"
	"fieldops/internal/core/types"
)

// Status is the order lifecycle status.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusAfterSale  Status = "after_sale"
	StatusCancelled  Status = "cancelled"
)

// rank orders the forward path. Cancelled sits outside it.
var rank = map[Status]int{
	StatusDraft:      0,
	StatusConfirmed:  1,
	StatusInProgress: 2,
	StatusDone:       3,
	StatusAfterSale:  4,
}

// IsValid reports whether s is a known order status.
func (s Status) IsValid() bool {
	_, ok := rank[s]
	return ok || s == StatusCancelled
}

// IsTerminal reports whether the core must never change an order in this status.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusAfterSale || s == StatusCancelled
}

// IsPostCompletion reports whether commissions of the order are already on the ledger.
func (s Status) IsPostCompletion() bool {
	return s == StatusDone || s == StatusAfterSale
}

// CanAdvance reports whether from -> to moves strictly forward and leaves a
// non-terminal status. Every order status write in the core goes through it.
func CanAdvance(from, to Status) bool {
	if from.IsTerminal() || !to.IsValid() {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	return rank[to] > rank[from]
}

// StatusesBefore returns every status from which the order may advance to target.
func StatusesBefore(target Status) []Status {
	out := make([]Status, 0, len(rank))
	for _, s := range []Status{StatusDraft, StatusConfirmed, StatusInProgress, StatusDone, StatusAfterSale, StatusCancelled} {
		if CanAdvance(s, target) {
			out = append(out, s)
		}
	}
	return out
}

// Order is the aggregate root owning line items and, transitively, commission entries.
type Order struct {
	ID            id.ID       `db:"id" json:"id"`
	Code          string      `db:"code" json:"code"`
	TotalAmount   types.Money `db:"total_amount" json:"totalAmount"`
	PaidAmount    types.Money `db:"paid_amount" json:"paidAmount"`
	RemainingDebt types.Money `db:"remaining_debt" json:"remainingDebt"`
	Status        Status      `db:"status" json:"status"`
	SalesOwnerID  *id.ID      `db:"sales_owner_id" json:"salesOwnerId,omitempty"`
	CompletedAt   *time.Time  `db:"completed_at" json:"completedAt,omitempty"`
	CreatedAt     time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time   `db:"updated_at" json:"updatedAt"`
}

// IsPaid is the payment gate. Either condition suffices so a stale debt snapshot
// does not hold back a fully paid order.
func (o *Order) IsPaid() bool {
	return !o.RemainingDebt.IsPositive() || o.PaidAmount.GreaterThanOrEqual(o.TotalAmount)
}

// Repository is the order store used by the fulfillment core.
type Repository interface {
	// GetByID returns apperror NotFound when the order does not exist.
	GetByID(ctx context.Context, orderID id.ID) (*Order, error)

	// AdvanceStatus sets status to target only if the current status is one of from.
	// Returns false when no row matched (order moved on concurrently).
	AdvanceStatus(ctx context.Context, orderID id.ID, from []Status, target Status) (bool, error)

	// MarkDone sets status done and completed_at only if the order is not terminal.
	// Returns false when another caller completed (or cancelled) the order first.
	MarkDone(ctx context.Context, orderID id.ID, at time.Time) (bool, error)
}
