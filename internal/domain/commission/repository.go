package commission

import (
	"context"

	"fieldops/internal/core/id"
	"fieldops/internal/core/types"
)

// Repository persists ledger entries.
type Repository interface {
	ListByOrder(ctx context.Context, orderID id.ID) ([]Entry, error)

	// Insert appends an entry. Returns false when the
	// (order, user, type, source_reference) key already exists.
	Insert(ctx context.Context, entry *Entry) (bool, error)
}

// ShareSource lists the technician participation of an order in both storage shapes.
type ShareSource interface {
	ServiceShares(ctx context.Context, orderID id.ID) ([]ServiceShare, error)
	LegacyItemShares(ctx context.Context, orderID id.ID) ([]ItemShare, error)
}

// StaffDirectory exposes staff profile defaults.
type StaffDirectory interface {
	// CommissionPercents returns the profile percent of every user that has one set.
	CommissionPercents(ctx context.Context, userIDs []id.ID) (map[id.ID]types.Percent, error)
}
