package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNotFoundError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil error", err: nil, expected: false},
		{name: "generic error", err: errors.New("some error"), expected: false},
		{name: "ErrNotFound", err: ErrNotFound, expected: true},
		{name: "ErrJobNotFound", err: ErrJobNotFound, expected: true},
		{name: "wrapped ErrJobNotFound", err: fmt.Errorf("get: %w", ErrJobNotFound), expected: true},
		{name: "ErrDuplicateJob", err: ErrDuplicateJob, expected: false},
		{name: "ErrStatusConflict", err: ErrStatusConflict, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsNotFoundError(tt.err))
		})
	}
}

func TestIsDuplicateError(t *testing.T) {
	assert.True(t, IsDuplicateError(ErrDuplicateJob))
	assert.True(t, IsDuplicateError(fmt.Errorf("create: %w", ErrDuplicate)))
	assert.False(t, IsDuplicateError(ErrJobNotFound))
	assert.False(t, IsDuplicateError(nil))
}

func TestStoreError(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewStoreError("job", "complete", "status update failed", cause)

	assert.Equal(t, "complete operation on job failed: status update failed: connection reset", err.Error())
	assert.ErrorIs(t, err, cause)

	bare := NewStoreError("job", "delete", "no rows", nil)
	assert.Equal(t, "delete operation on job failed: no rows", bare.Error())

	var target *StoreError
	assert.True(t, errors.As(fmt.Errorf("wrapped: %w", err), &target))
	assert.Equal(t, "job", target.Entity)
}
