package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	notFound := New(NotFound, "order not found")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"direct", notFound, NotFound},
		{"wrapped", fmt.Errorf("load order: %w", notFound), NotFound},
		{"formatted validation", Validationf("quantity must be at least %d", 1), Validation},
		{"plain error", errors.New("connection reset"), Internal},
		{"nil", nil, Internal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestIs(t *testing.T) {
	err := fmt.Errorf("cancel: %w", Forbiddenf("order %d belongs to another customer", 7))

	assert.True(t, Is(err, Forbidden))
	assert.False(t, Is(err, NotFound))
	assert.False(t, Is(nil, Internal))
	assert.Equal(t, "order 7 belongs to another customer", errors.Unwrap(err).Error())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "invalid_state", InvalidState.String())
	assert.Equal(t, "internal", Kind(99).String())
}
