package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		message  string
	}{
		{"not found", NotFound("identity %s", "abc"), ErrNotFound, "identity abc: not found"},
		{"validation", Validation("career type mismatch"), ErrValidation, "career type mismatch: validation failed"},
		{"conflict", Conflict("duplicate %d", 3), ErrConflict, "duplicate 3: conflict"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.sentinel)
			assert.Equal(t, tt.message, tt.err.Error())
			assert.True(t, IsRejection(tt.err))
		})
	}
}

func TestIsRejection_Wrapped(t *testing.T) {
	wrapped := fmt.Errorf("adding knowledge: %w", Validation("edge exists"))
	assert.True(t, IsRejection(wrapped))
	assert.False(t, IsRejection(errors.New("disk full")))
	assert.False(t, IsRejection(nil))
}
