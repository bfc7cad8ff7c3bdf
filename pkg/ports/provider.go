package ports

import (
	"context"

	"github.com/aretw0/cartkeeper/pkg/domain"
)

// ContextProvider is the backend that owns expiring contexts.
//
// Every context-scoped call first validates the context: if it is unknown, or the
// current instant is at or past its expiry horizon, the call fails with
// domain.ErrContextExpired and mutates nothing. Mutating calls return the full
// cart of the context on success, with the cart ID set to the context ID.
type ContextProvider interface {
	// CreateContext returns a new, empty context expiring a fixed horizon from now.
	CreateContext(ctx context.Context) (*domain.BackendContext, error)

	// GetCart returns the items of the context.
	GetCart(ctx context.Context, contextID string) (*domain.Cart, error)

	// AddItem appends an item under a freshly assigned, context-scoped ID.
	AddItem(ctx context.Context, contextID string, input domain.ItemInput) (*domain.Cart, error)

	// RemoveItem deletes the item. Returns domain.ErrItemNotFound if the ID is not in the context.
	RemoveItem(ctx context.Context, contextID, itemID string) (*domain.Cart, error)

	// UpdateItem sets the quantity of the item. Returns domain.ErrItemNotFound if the ID is not in the context.
	UpdateItem(ctx context.Context, contextID, itemID string, quantity int) (*domain.Cart, error)
}

// ContextReleaser is implemented by providers that can drop abandoned contexts.
// Releasing an unknown context is not an error.
type ContextReleaser interface {
	Release(ctx context.Context, contextID string) error
}

// ContextExpirer is implemented by providers that can expire a context on demand.
type ContextExpirer interface {
	Expire(ctx context.Context, contextID string) error
}
