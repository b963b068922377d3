// Package tx provides transaction management abstractions.
// Domain services depend on Manager, never on a concrete driver.
package tx

import (
	"context"
)

// Manager runs a unit of work inside a database transaction.
//
// The fulfillment core uses it only where a write must be atomic per line item
// (assignment replacement). Every other store call commits on its own.
type Manager interface {
	// RunInTransaction executes fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	// Nested calls reuse the existing transaction from context.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ManagerFunc adapts a function to Manager.
type ManagerFunc func(ctx context.Context, fn func(ctx context.Context) error) error

// RunInTransaction implements Manager.
func (f ManagerFunc) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return f(ctx, fn)
}

// Passthrough runs fn without a transaction. Useful for tests and in-memory stores.
var Passthrough Manager = ManagerFunc(func(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
})
