package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("driver 7: %w", ErrNotFound), "not_found"},
		{ErrInvalidCategory, "invalid_category"},
		{fmt.Errorf("stale token: %w", ErrInvalidTransition), "invalid_transition"},
		{ErrPrerequisiteMissing, "prerequisite_missing"},
		{ErrValidation, "validation_error"},
		{ErrUnauthorized, "unauthorized"},
		{ErrForbidden, "forbidden"},
		{fmt.Errorf("head object: %w", ErrStorageUnavailable), "storage_unavailable"},
		{errors.New("boom"), "internal"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Kind(tt.err))
	}
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(fmt.Errorf("put: %w", ErrStorageUnavailable)))
	assert.False(t, Retryable(ErrValidation))
	assert.False(t, Retryable(ErrPrerequisiteMissing))
	assert.False(t, Retryable(nil))
}
