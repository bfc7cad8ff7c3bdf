package domain

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrItemNotFound is returned when an item ID does not exist in the addressed cart.
var ErrItemNotFound = errors.New("item not found")

// ErrContextExpired is returned by providers when a context is unknown or past its expiry horizon.
// The Coordinator absorbs it; callers of the Coordinator never see it bare.
var ErrContextExpired = errors.New("context expired")

// ErrRecoveryFailed matches every *RecoveryError.
var ErrRecoveryFailed = errors.New("recovery failed")

// ErrUnsupported is returned when a provider lacks an optional capability.
var ErrUnsupported = errors.New("operation not supported by provider")

// RecoveryError reports that a session could not be moved onto a fresh context,
// or that the operation retried against the fresh context failed with an expiry again.
// The session is rebound to NewContextID only in the latter case.
type RecoveryError struct {
	SessionID    string
	ContextID    string // context that was found expired
	NewContextID string // context created by the recovery; empty if creation failed
	Op           string
	Cause        error
}

func (e *RecoveryError) Error() string {
	return fmt.Sprintf("recovery of session %s failed during %s: %v", e.SessionID, e.Op, e.Cause)
}

func (e *RecoveryError) Unwrap() error { return e.Cause }

// Is makes errors.Is(err, ErrRecoveryFailed) hold for any RecoveryError.
func (e *RecoveryError) Is(target error) bool { return target == ErrRecoveryFailed }

// ErrorKind is the closed set of error categories surfaced by the Coordinator.
type ErrorKind string

const (
	KindNone            ErrorKind = ""
	KindSessionNotFound ErrorKind = "session_not_found"
	KindItemNotFound    ErrorKind = "item_not_found"
	KindContextExpired  ErrorKind = "context_expired"
	KindRecoveryFailed  ErrorKind = "recovery_failed"
	KindUnsupported     ErrorKind = "unsupported"
	KindInternal        ErrorKind = "internal"
)

// KindOf classifies err. Recovery failures win over their causes.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrRecoveryFailed):
		return KindRecoveryFailed
	case errors.Is(err, ErrSessionNotFound):
		return KindSessionNotFound
	case errors.Is(err, ErrItemNotFound):
		return KindItemNotFound
	case errors.Is(err, ErrContextExpired):
		return KindContextExpired
	case errors.Is(err, ErrUnsupported):
		return KindUnsupported
	default:
		return KindInternal
	}
}
