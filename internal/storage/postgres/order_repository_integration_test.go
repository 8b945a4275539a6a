package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func sampleOrder(id, number string, createdAt time.Time) domain.Order {
	first := domain.NewLine("sku-1", "Mug", 1250, 2)
	second := domain.NewLine("sku-2", "Tea", 399, 1)
	subtotal := first.SubtotalMinor + second.SubtotalMinor
	return domain.Order{
		ID:              id,
		OrderNumber:     number,
		Type:            domain.OrderTypeOnline,
		Status:          domain.OrderStatusPending,
		Lines:           []domain.OrderLine{first, second},
		SubtotalMinor:   subtotal,
		ShippingMinor:   500,
		TotalMinor:      subtotal + 500,
		Customer:        domain.Customer{Name: "Ana", Phone: "+1 555 0100"},
		DeliveryOption:  domain.DeliveryDelivery,
		ShippingAddress: "1 Main St",
		PaymentMethod:   "card",
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
}

func TestOrderRepository_PostgresCreateGetAndSave(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)

	createdAt := time.Now().UTC().Round(time.Microsecond)
	order := sampleOrder("order-pg-1", "ORD-000001", createdAt)
	require.NoError(t, repo.Create(order))
	require.ErrorIs(t, repo.Create(order), domain.ErrOrderVersionConflict)

	stored, err := repo.Get(order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.OrderNumber, stored.OrderNumber)
	assert.Equal(t, order.Customer, stored.Customer)
	assert.Equal(t, order.TotalMinor, stored.TotalMinor)
	require.Len(t, stored.Lines, 2)
	assert.Equal(t, "sku-1", stored.Lines[0].ProductID, "lines keep insertion order")
	assert.Empty(t, stored.ValidateInvariants())

	stored.Status = domain.OrderStatusCompleted
	stored.UpdatedAt = createdAt.Add(time.Minute)
	require.NoError(t, repo.Save(stored))

	stale := stored
	stale.Status = domain.OrderStatusCancelled
	require.ErrorIs(t, repo.Save(stale), domain.ErrOrderVersionConflict)

	again, err := repo.Get(order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCompleted, again.Status)
	assert.Equal(t, stored.Version+1, again.Version)

	missing := sampleOrder("missing", "ORD-999999", createdAt)
	require.ErrorIs(t, repo.Save(missing), domain.ErrOrderNotFound)
	_, err = repo.Get("missing")
	require.True(t, errors.Is(err, domain.ErrOrderNotFound))
}

func TestOrderRepository_PostgresListFiltersAndPaginates(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)

	base := time.Now().UTC().Add(-time.Hour).Round(time.Microsecond)
	for i := 1; i <= 5; i++ {
		order := sampleOrder(fmt.Sprintf("order-%d", i), fmt.Sprintf("ORD-%06d", i), base.Add(time.Duration(i)*time.Minute))
		if i%2 == 0 {
			order.Status = domain.OrderStatusCancelled
		}
		if i == 5 {
			order.Type = domain.OrderTypeInStore
		}
		require.NoError(t, repo.Create(order))
	}

	page, err := repo.List(domain.OrderFilter{Page: 1, PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 3, page.LastPage)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "order-5", page.Items[0].ID, "newest first")

	pending, err := repo.List(domain.OrderFilter{Status: domain.OrderStatusPending})
	require.NoError(t, err)
	assert.Equal(t, 3, pending.Total)

	inStore, err := repo.List(domain.OrderFilter{Type: domain.OrderTypeInStore})
	require.NoError(t, err)
	require.Len(t, inStore.Items, 1)
	assert.Equal(t, "order-5", inStore.Items[0].ID)

	last, err := LastOrderNumber(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, int64(5), last)
}

func TestOrderRepository_PostgresTrashAndPurge(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)

	createdAt := time.Now().UTC().Round(time.Microsecond)
	order := sampleOrder("order-trash", "ORD-000010", createdAt)
	require.NoError(t, repo.Create(order))

	deletedAt := createdAt.Add(time.Minute)
	order.DeletedAt = &deletedAt
	require.NoError(t, repo.Save(order))

	live, err := repo.List(domain.OrderFilter{})
	require.NoError(t, err)
	assert.Zero(t, live.Total)

	trashed, err := repo.ListTrashed()
	require.NoError(t, err)
	require.Len(t, trashed, 1)
	require.NotNil(t, trashed[0].DeletedAt)
	assert.True(t, trashed[0].DeletedAt.Equal(deletedAt))

	require.NoError(t, repo.Purge(order.ID))
	require.ErrorIs(t, repo.Purge(order.ID), domain.ErrOrderNotFound)
	_, err = repo.Get(order.ID)
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}
