package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventOperation      EventType = "operation"
	EventContextExpired EventType = "context_expired"
	EventRecovered      EventType = "recovered"
	EventRecoveryFailed EventType = "recovery_failed"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
}

// OperationEvent describes one completed caller-visible operation.
type OperationEvent struct {
	EventBase
	Op        string        `json:"op"`
	Duration  time.Duration `json:"duration"`
	Recovered bool          `json:"recovered,omitempty"`
	Kind      ErrorKind     `json:"kind,omitempty"`
}

// RecoveryEvent describes a recovery attempt.
type RecoveryEvent struct {
	EventBase
	Op            string        `json:"op"`
	OldContextID  string        `json:"old_context_id"`
	NewContextID  string        `json:"new_context_id,omitempty"`
	ReplayedItems int           `json:"replayed_items"`
	Duration      time.Duration `json:"duration,omitempty"`
	Err           error         `json:"-"`
}

// LifecycleHooks defines callbacks for coordinator observability.
type LifecycleHooks struct {
	OnOperation      func(context.Context, *OperationEvent)
	OnContextExpired func(context.Context, *RecoveryEvent)
	OnRecovered      func(context.Context, *RecoveryEvent)
	OnRecoveryFailed func(context.Context, *RecoveryEvent)
}
