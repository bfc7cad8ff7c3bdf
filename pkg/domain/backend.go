package domain

import "time"

// BackendContext is an ephemeral provider resource.
// ExpiresAt is fixed at creation and never extended.
type BackendContext struct {
	ID        string    `json:"id"`
	ExpiresAt time.Time `json:"expires_at"`
	Items     []Item    `json:"items"`
}

// Expired reports whether the context is unusable at now.
// The boundary is inclusive: a context expiring exactly at now is expired.
func (c *BackendContext) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Cart returns the view of this context's items.
func (c *BackendContext) Cart() *Cart {
	return NewCart(c.ID, c.Items)
}
