package lineitem

import (
	"context"
	"fmt"

	"fieldops/internal/core/apperror"
	"fieldops/internal/core/id"
)

// Resolver probes the storage shapes in a fixed priority order:
// flat item, nested service, product container. Identifiers are unique across
// shapes, so the first match wins. Worst case is three sequential lookups.
type Resolver struct {
	repo Repository
}

// NewResolver creates a new shape resolver.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve returns the normalized descriptor of itemID.
func (r *Resolver) Resolve(ctx context.Context, itemID id.ID) (*Descriptor, error) {
	flat, err := r.repo.FindFlat(ctx, itemID)
	switch {
	case err == nil:
		return flat.Descriptor(), nil
	case !apperror.IsNotFound(err):
		return nil, apperror.StoreFailure("find flat item", err)
	}

	nested, err := r.repo.FindNestedService(ctx, itemID)
	switch {
	case err == nil:
		container, err := r.repo.FindContainer(ctx, nested.ContainerID)
		if err != nil {
			if apperror.IsNotFound(err) {
				// Orphaned service: the container row is gone.
				return nil, apperror.NewNotFound("line item", itemID.String()).
					WithDetail("container_id", nested.ContainerID.String())
			}
			return nil, apperror.StoreFailure("find service container", err)
		}
		return nested.Descriptor(container.OrderID), nil
	case !apperror.IsNotFound(err):
		return nil, apperror.StoreFailure("find nested service", err)
	}

	container, err := r.repo.FindContainer(ctx, itemID)
	switch {
	case err == nil:
		return container.Descriptor(), nil
	case apperror.IsNotFound(err):
		return nil, apperror.NewNotFound("line item", itemID.String())
	default:
		return nil, apperror.StoreFailure("find product container", fmt.Errorf("item %s: %w", itemID, err))
	}
}
