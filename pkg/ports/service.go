package ports

import (
	"context"

	"github.com/aretw0/cartkeeper/pkg/domain"
)

// CartService is the caller-facing cart API consumed by transports (HTTP, MCP).
// Errors are classified with domain.KindOf.
type CartService interface {
	CreateCart(ctx context.Context) (*domain.Cart, error)
	GetCart(ctx context.Context, sessionID string) (*domain.Cart, error)
	AddItem(ctx context.Context, sessionID string, input domain.ItemInput) (*domain.Cart, error)
	RemoveItem(ctx context.Context, sessionID, itemID string) (*domain.Cart, error)
	UpdateItem(ctx context.Context, sessionID, itemID string, quantity int) (*domain.Cart, error)
}

// ExpiryTrigger is implemented by services that can force a session's context to expire.
type ExpiryTrigger interface {
	ForceExpiry(ctx context.Context, sessionID string) error
}
