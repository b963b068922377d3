// Package commission records the append-only commission ledger of an order.
package commission

import (
	"fmt"
	"strings"
	"time"

	"fieldops/internal/core/id"
	"fieldops/internal/core/types"
)

// Type is the ledger entry kind.
type Type string

const (
	// TypeProduct is the sales commission of an order.
	TypeProduct Type = "product"
	// TypeService is a technician commission for one piece of service work.
	TypeService Type = "service"
)

// Status of a ledger entry. Approval and payout happen outside the core.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
)

// SalesReference is the source reference of the per-order sales entry.
const SalesReference = "sales"

// ServiceReference returns the source reference of a nested-service technician entry.
func ServiceReference(serviceID id.ID) string {
	return "service:" + serviceID.String()
}

// ItemReference returns the source reference of a legacy flat-item technician entry.
func ItemReference(itemID id.ID) string {
	return "item:" + itemID.String()
}

// SalesNote is the human-readable note of the sales entry.
func SalesNote(orderCode string) string {
	return fmt.Sprintf("Sales commission for order %s", orderCode)
}

// TechnicianNote is the human-readable note of a technician entry.
func TechnicianNote(itemName, orderCode string) string {
	return fmt.Sprintf("Technician commission for %s - order %s", itemName, orderCode)
}

// Entry is a single ledger row. Never updated in place by the core.
type Entry struct {
	ID              id.ID         `db:"id" json:"id"`
	OrderID         id.ID         `db:"order_id" json:"orderId"`
	UserID          id.ID         `db:"user_id" json:"userId"`
	Type            Type          `db:"commission_type" json:"type"`
	Amount          types.Money   `db:"amount" json:"amount"`
	Percentage      types.Percent `db:"percentage" json:"percentage"`
	BaseAmount      types.Money   `db:"base_amount" json:"baseAmount"`
	Status          Status        `db:"status" json:"status"`
	Note            string        `db:"note" json:"note"`
	SourceReference *string       `db:"source_reference" json:"sourceReference,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"createdAt"`
}

// Summary reports the outcome of one recording run.
type Summary struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// ServiceShare is one technician assignment on a nested service.
type ServiceShare struct {
	ServiceID    id.ID         `db:"service_id"`
	ServiceName  string        `db:"service_name"`
	Price        types.Money   `db:"unit_price"`
	TechnicianID id.ID         `db:"staff_id"`
	Percent      types.Percent `db:"commission_percent"`
}

// ItemShare is the legacy technician reference of a flat item with its precomputed amount.
type ItemShare struct {
	ItemID       id.ID         `db:"id"`
	ItemName     string        `db:"item_name"`
	Price        types.Money   `db:"unit_price"`
	TechnicianID id.ID         `db:"technician_id"`
	Rate         types.Percent `db:"commission_rate"`
	Amount       types.Money   `db:"commission_amount"`
}

type entryKey struct {
	user id.ID
	typ  Type
	ref  string
}

type userType struct {
	user id.ID
	typ  Type
}

// ledger is the in-memory view of the order's existing entries used to skip duplicates.
// Rows written before source references existed are matched by note substring.
type ledger struct {
	byRef  map[entryKey]struct{}
	byNote map[userType][]string
}

func newLedger(existing []Entry) *ledger {
	l := &ledger{
		byRef:  make(map[entryKey]struct{}, len(existing)),
		byNote: make(map[userType][]string),
	}
	for i := range existing {
		l.add(&existing[i])
	}
	return l
}

func (l *ledger) add(e *Entry) {
	if e.SourceReference != nil && *e.SourceReference != "" {
		l.byRef[entryKey{user: e.UserID, typ: e.Type, ref: *e.SourceReference}] = struct{}{}
		return
	}
	ut := userType{user: e.UserID, typ: e.Type}
	l.byNote[ut] = append(l.byNote[ut], e.Note)
}

func (l *ledger) has(user id.ID, typ Type, ref, fingerprint string) bool {
	if _, ok := l.byRef[entryKey{user: user, typ: typ, ref: ref}]; ok {
		return true
	}
	for _, note := range l.byNote[userType{user: user, typ: typ}] {
		if strings.Contains(note, fingerprint) {
			return true
		}
	}
	return false
}
