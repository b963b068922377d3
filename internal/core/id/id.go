// Package id provides UUIDv7 identifiers for orders, line items, staff and ledger rows.
// Line-item ids are globally unique across the flat, container and nested-service
// tables, which is what makes first-match shape resolution safe.
package id

import (
	"fmt"

	"github.com/google/uuid"
)

// ID is a type alias for UUID, used across all entities.
type ID = uuid.UUID

// New generates a new time-ordered UUIDv7.
func New() ID {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to V4 if V7 fails (should never happen)
		return uuid.New()
	}
	return id
}

// Parse converts string to ID with validation.
func Parse(s string) (ID, error) {
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse id %q: %w", s, err)
	}
	return parsed, nil
}

// MustParse converts string to ID, panics on error.
// Use only for constants and tests.
func MustParse(s string) ID {
	return uuid.MustParse(s)
}

// IsNil checks if ID is zero-value.
func IsNil(id ID) bool {
	return id == uuid.Nil
}

// Ptr returns nil for the zero ID, otherwise a pointer to a copy.
func Ptr(id ID) *ID {
	if IsNil(id) {
		return nil
	}
	return &id
}
