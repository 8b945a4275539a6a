package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestLocks_AcquireIsExclusivePerKey(t *testing.T) {
	locks := NewLocks()
	orderKey := EntityLockKey(domain.EntityKindOrder, "o-1")

	release, err := locks.Acquire(orderKey)
	require.NoError(t, err)
	assert.True(t, locks.Held(orderKey))

	_, err = locks.Acquire(orderKey)
	require.ErrorIs(t, err, domain.ErrMutationInFlight)

	other, err := locks.Acquire(EntityLockKey(domain.EntityKindProduct, "o-1"))
	require.NoError(t, err)
	other()

	release()
	release()
	assert.False(t, locks.Held(orderKey))

	again, err := locks.Acquire(orderKey)
	require.NoError(t, err)
	again()
}
