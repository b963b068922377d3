// Package events defines the fire-and-forget side-channel events emitted by the
// fulfillment core. Delivery is at-most-once; publishers never wait for handlers.
package events

import (
	"context"
	"time"

	"fieldops/internal/core/id"
)

// Event is anything that can travel over the side channel.
type Event interface {
	EventName() string
}

// Entity types recorded in transition logs.
const (
	EntityOrder = "order"
)

// StatusChanged is a transition record for the audit log. Published only when From != To.
type StatusChanged struct {
	OrderID    id.ID     `json:"orderId"`
	EntityType string    `json:"entityType"`
	EntityID   id.ID     `json:"entityId"`
	EntityName string    `json:"entityName,omitempty"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Actor      string    `json:"actor"`
	At         time.Time `json:"at"`
}

func (StatusChanged) EventName() string { return "status.changed" }

// Notification types.
const (
	NotifyItemCompleted    = "line_item_completed"
	NotifyOrderCompleted   = "order_completed"
	NotifyApprovalRequired = "approval_required"
)

// Notification is addressed to a single user.
type Notification struct {
	UserID  id.ID          `json:"userId"`
	Type    string         `json:"type"`
	Title   string         `json:"title"`
	Content string         `json:"content"`
	Data    map[string]any `json:"data,omitempty"`
}

func (Notification) EventName() string { return "notification" }

// Publisher accepts events without blocking the caller.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, event Event)

// Publish implements Publisher.
func (f PublisherFunc) Publish(ctx context.Context, event Event) {
	f(ctx, event)
}

// Nop discards every event.
var Nop Publisher = PublisherFunc(func(context.Context, Event) {})

// Handler consumes an event. Errors are logged by the bus, never retried.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}
