// Package security carries the acting user through the request chain.
package security

import "context"

// Staff roles known to the fulfillment core.
const (
	RoleAdmin      = "admin"
	RoleManager    = "manager"
	RoleSales      = "sales"
	RoleTechnician = "technician"
)

// SystemActor is recorded when no authenticated user is present (worker, CLI).
const SystemActor = "system"

type userIDKey struct{}

// WithUserID adds the acting user ID to context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// GetUserID retrieves the acting user ID from context.
// Returns empty string if not found.
func GetUserID(ctx context.Context) string {
	if uid, ok := ctx.Value(userIDKey{}).(string); ok {
		return uid
	}
	return ""
}

// Actor returns the acting user for audit attribution, falling back to SystemActor.
func Actor(ctx context.Context) string {
	if uid := GetUserID(ctx); uid != "" {
		return uid
	}
	return SystemActor
}
