package router

import (
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	ierr "github.com/flexprice/ispledger/internal/errors"
	"github.com/flexprice/ispledger/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldRetry(t *testing.T) {
	log := logger.NewNopLogger()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"validation", ierr.NewError("bad").Mark(ierr.ErrValidation), false},
		{"not_found", ierr.NewError("missing").Mark(ierr.ErrNotFound), false},
		{"duplicate", ierr.NewError("dup").Mark(ierr.ErrAlreadyExists), false},
		{"invariant", ierr.NewError("over").Mark(ierr.ErrInvariantViolation), false},
		{"invalid_operation", ierr.NewError("twice").Mark(ierr.ErrInvalidOperation), false},
		{"version_conflict", ierr.NewError("race").Mark(ierr.ErrVersionConflict), true},
		{"database", ierr.NewError("down").Mark(ierr.ErrDatabase), true},
		{"unknown", errors.New("boom"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shouldRetry(log, tt.err))
		})
	}
}

func TestRetryMiddleware(t *testing.T) {
	log := logger.NewNopLogger()
	mw := retryMiddleware(log, 3, time.Millisecond)

	t.Run("retries_conflicts_until_success", func(t *testing.T) {
		calls := 0
		h := mw(func(msg *message.Message) ([]*message.Message, error) {
			calls++
			if calls < 3 {
				return nil, ierr.NewError("race").Mark(ierr.ErrVersionConflict)
			}
			return nil, nil
		})

		_, err := h(message.NewMessage(watermill.NewUUID(), nil))
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops_on_permanent_error", func(t *testing.T) {
		calls := 0
		h := mw(func(msg *message.Message) ([]*message.Message, error) {
			calls++
			return nil, ierr.NewError("bad").Mark(ierr.ErrValidation)
		})

		_, err := h(message.NewMessage(watermill.NewUUID(), nil))
		require.Error(t, err)
		assert.True(t, ierr.IsValidation(err))
		assert.Equal(t, 1, calls)
	})

	t.Run("gives_up_after_max_retries", func(t *testing.T) {
		calls := 0
		h := mw(func(msg *message.Message) ([]*message.Message, error) {
			calls++
			return nil, ierr.NewError("race").Mark(ierr.ErrVersionConflict)
		})

		_, err := h(message.NewMessage(watermill.NewUUID(), nil))
		require.Error(t, err)
		assert.True(t, ierr.IsVersionConflict(err))
		assert.Equal(t, 4, calls)
	})
}
