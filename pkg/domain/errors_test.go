package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	recovery := &RecoveryError{SessionID: "s1", Op: "get_cart", Cause: ErrContextExpired}

	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, KindNone},
		{"session", ErrSessionNotFound, KindSessionNotFound},
		{"wrapped item", fmt.Errorf("remove: %w", ErrItemNotFound), KindItemNotFound},
		{"expired", ErrContextExpired, KindContextExpired},
		{"recovery wins over its cause", recovery, KindRecoveryFailed},
		{"unsupported", ErrUnsupported, KindUnsupported},
		{"other", errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestRecoveryError_Unwrap(t *testing.T) {
	cause := errors.New("provider unavailable")
	err := error(&RecoveryError{SessionID: "s1", Op: "add_item", Cause: cause})

	assert.ErrorIs(t, err, ErrRecoveryFailed)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "s1")

	var re *RecoveryError
	assert.True(t, errors.As(err, &re))
	assert.Equal(t, "add_item", re.Op)
}
