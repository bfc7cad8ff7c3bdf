package domain

import "time"

// Session is the durable client-facing identity of a cart.
//
// Items is the single source of truth: it is the only state guaranteed to
// survive the replacement of ContextID.
type Session struct {
	ID             string    `json:"id"`
	ContextID      string    `json:"context_id"`
	Items          []Item    `json:"items"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
}

// NewSession creates an empty session bound to contextID.
func NewSession(id, contextID string, now time.Time) *Session {
	return &Session{
		ID:             id,
		ContextID:      contextID,
		Items:          []Item{},
		CreatedAt:      now,
		LastAccessedAt: now,
	}
}

// Snapshot creates a deep copy of the session.
func (s *Session) Snapshot() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Items = CloneItems(s.Items)
	return &cp
}

// Cart returns the caller-facing view computed from the authoritative items.
func (s *Session) Cart() *Cart {
	return NewCart(s.ID, s.Items)
}
