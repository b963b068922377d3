// Package notification consumes side-channel events: it appends transition
// records to the audit log and writes user notifications.
package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fieldops/internal/core/id"
	"fieldops/internal/core/security"
	"fieldops/internal/domain/events"
	"fieldops/pkg/logger"
)

// Notification is a stored message for one user.
type Notification struct {
	ID        id.ID          `db:"id" json:"id"`
	UserID    id.ID          `db:"user_id" json:"userId"`
	Type      string         `db:"type" json:"type"`
	Title     string         `db:"title" json:"title"`
	Content   string         `db:"content" json:"content"`
	Data      map[string]any `db:"data" json:"data,omitempty"`
	IsRead    bool           `db:"is_read" json:"isRead"`
	CreatedAt time.Time      `db:"created_at" json:"createdAt"`
}

// Repository stores notifications.
type Repository interface {
	InsertBatch(ctx context.Context, items []Notification) error
}

// StaffDirectory resolves broadcast audiences.
type StaffDirectory interface {
	ListActiveByRoles(ctx context.Context, roles []string) ([]id.ID, error)
}

// AuditLog appends transition records.
type AuditLog interface {
	RecordTransition(ctx context.Context, change events.StatusChanged) error
}

// BroadcastRoles receive approval requests.
var BroadcastRoles = []string{security.RoleManager, security.RoleAdmin}

// Dispatcher implements events.Handler.
type Dispatcher struct {
	repo  Repository
	staff StaffDirectory
	audit AuditLog
	rule  *Rule
	now   func() time.Time
}

// NewDispatcher creates a new dispatcher.
func NewDispatcher(repo Repository, staff StaffDirectory, audit AuditLog, rule *Rule) *Dispatcher {
	return &Dispatcher{
		repo:  repo,
		staff: staff,
		audit: audit,
		rule:  rule,
		now:   time.Now,
	}
}

// Handle processes one event. Every failure is returned for the bus to log.
func (d *Dispatcher) Handle(ctx context.Context, event events.Event) error {
	switch ev := event.(type) {
	case events.StatusChanged:
		return d.handleStatusChanged(ctx, ev)
	case events.Notification:
		return d.deliver(ctx, []events.Notification{ev})
	default:
		logger.Debug(ctx, "notification: ignoring event", "event", event.EventName())
		return nil
	}
}

func (d *Dispatcher) handleStatusChanged(ctx context.Context, ev events.StatusChanged) error {
	if ev.From == ev.To {
		return nil
	}

	var errs []error
	if err := d.audit.RecordTransition(ctx, ev); err != nil {
		errs = append(errs, fmt.Errorf("record transition: %w", err))
	}

	if ev.EntityType != events.EntityOrder && d.rule != nil {
		matched, err := d.rule.Match(ev)
		switch {
		case err != nil:
			errs = append(errs, err)
		case matched:
			if err := d.broadcastApproval(ctx, ev); err != nil {
				errs = append(errs, err)
			}
		}
	}

	return errors.Join(errs...)
}

func (d *Dispatcher) broadcastApproval(ctx context.Context, ev events.StatusChanged) error {
	recipients, err := d.staff.ListActiveByRoles(ctx, BroadcastRoles)
	if err != nil {
		return fmt.Errorf("list approvers: %w", err)
	}
	if len(recipients) == 0 {
		logger.Warn(ctx, "approval requested but no active manager or admin",
			"line_item_id", ev.EntityID)
		return nil
	}

	batch := make([]events.Notification, 0, len(recipients))
	for _, uid := range recipients {
		batch = append(batch, events.Notification{
			UserID:  uid,
			Type:    events.NotifyApprovalRequired,
			Title:   "Approval required",
			Content: fmt.Sprintf("%s is awaiting manager approval", ev.EntityName),
			Data: map[string]any{
				"orderId":    ev.OrderID.String(),
				"lineItemId": ev.EntityID.String(),
				"status":     ev.To,
			},
		})
	}
	return d.deliver(ctx, batch)
}

func (d *Dispatcher) deliver(ctx context.Context, batch []events.Notification) error {
	now := d.now().UTC()
	rows := make([]Notification, 0, len(batch))
	for _, n := range batch {
		rows = append(rows, Notification{
			ID:        id.New(),
			UserID:    n.UserID,
			Type:      n.Type,
			Title:     n.Title,
			Content:   n.Content,
			Data:      n.Data,
			CreatedAt: now,
		})
	}
	if err := d.repo.InsertBatch(ctx, rows); err != nil {
		return fmt.Errorf("insert notifications: %w", err)
	}
	return nil
}
