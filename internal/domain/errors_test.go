package domain

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsVersionConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "version conflict error", err: ErrOrderVersionConflict, want: true},
		{name: "wrapped version conflict error", err: errors.Join(ErrOrderVersionConflict, errors.New("additional context")), want: true},
		{name: "other error", err: ErrOrderNotFound, want: false},
		{name: "nil error", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsVersionConflict(tt.err); got != tt.want {
				t.Errorf("IsVersionConflict() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsIdempotencyConflict(t *testing.T) {
	assert.True(t, IsIdempotencyConflict(ErrIdempotencyKeyAlreadyExists))
	assert.True(t, IsIdempotencyConflict(errors.Join(ErrIdempotencyHashMismatch, errors.New("extra"))))
	assert.False(t, IsIdempotencyConflict(ErrOrderVersionConflict))
	assert.False(t, IsIdempotencyConflict(nil))
}

func TestShortageError(t *testing.T) {
	err := error(&ShortageError{Shortages: []Shortage{
		{ProductID: "sku-a", Requested: 3, Available: 1},
		{ProductID: "sku-b", Requested: 2, Available: 0},
	}})

	assert.True(t, IsShortage(err))
	assert.False(t, IsRetryable(err))
	assert.Contains(t, err.Error(), "sku-a requested 3 available 1")

	shortage, ok := AsShortage(errors.Join(errors.New("create order"), err))
	require.True(t, ok)
	assert.Len(t, shortage.Shortages, 2)
}

func TestTransitionError(t *testing.T) {
	err := ValidateTransition("o-1", OrderStatusCompleted, OrderStatusCancelled)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Contains(t, err.Error(), "completed -> cancelled")
}

func TestRemoteErrorCategories(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{status: http.StatusUnprocessableEntity, want: ErrValidation},
		{status: http.StatusForbidden, want: ErrPermissionDenied},
		{status: http.StatusNotFound, want: ErrNotFound},
		{status: http.StatusConflict, want: ErrInvalidTransition},
		{status: http.StatusBadGateway, want: ErrTransport},
		{status: http.StatusInternalServerError, want: ErrTransport},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := NewRemoteError("orders.complete", tt.status, "boom")
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.want == ErrTransport, IsRetryable(err))
		})
	}
}

func TestNewTransportError(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewTransportError("orders.list", cause)

	assert.True(t, IsRetryable(err))
	assert.ErrorIs(t, err, cause)
	assert.False(t, IsNotFound(err))
}

func TestJoinErrors(t *testing.T) {
	assert.NoError(t, JoinErrors(nil))

	err := JoinErrors([]error{ErrCustomerNameRequired, ErrLinesRequired})
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, ErrCustomerNameRequired)
	assert.ErrorIs(t, err, ErrLinesRequired)
}
