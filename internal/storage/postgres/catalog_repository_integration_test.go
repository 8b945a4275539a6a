package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/inventory"
)

func TestCatalogRepository_PostgresSaveListAndPurge(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewCatalogRepository(store)

	require.NoError(t, repo.SaveCategory(domain.Category{ID: "drinks", Name: "Drinks"}))
	require.NoError(t, repo.SaveProduct(domain.Product{
		ID:         "tea",
		Name:       "Green tea",
		PriceMinor: 399,
		CategoryID: "drinks",
	}))
	require.ErrorIs(t, repo.SaveCategory(domain.Category{Name: "no id"}), domain.ErrValidation)

	product, err := repo.GetProduct("tea")
	require.NoError(t, err)
	assert.Equal(t, int64(399), product.PriceMinor)
	assert.Nil(t, product.DeletedAt)

	deletedAt := time.Now().UTC().Round(time.Microsecond)
	product.DeletedAt = &deletedAt
	require.NoError(t, repo.SaveProduct(product))

	live, err := repo.ListProducts(false)
	require.NoError(t, err)
	assert.Empty(t, live)
	trashed, err := repo.ListProducts(true)
	require.NoError(t, err)
	require.Len(t, trashed, 1)
	assert.True(t, trashed[0].DeletedAt.Equal(deletedAt))

	require.NoError(t, repo.PurgeProduct("tea"))
	require.ErrorIs(t, repo.PurgeProduct("tea"), domain.ErrEntityNotFound)
	_, err = repo.GetCategory("missing")
	require.ErrorIs(t, err, domain.ErrEntityNotFound)
}

func TestCatalogRepository_PostgresCategoryRecycleFlow(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewCatalogRepository(store)
	ledger := inventory.NewLedger(nil)
	require.NoError(t, ledger.SetOnHand("mug", 4))

	svc := catalog.NewService(repo, ledger, nil)
	ctx := context.Background()

	require.NoError(t, svc.SaveCategory(ctx, domain.Category{ID: domain.FallbackCategoryID, Name: "Uncategorized"}))
	require.NoError(t, svc.SaveCategory(ctx, domain.Category{ID: "kitchen", Name: "Kitchen"}))
	require.NoError(t, svc.SaveProduct(ctx, domain.Product{ID: "mug", Name: "Mug", PriceMinor: 1250, CategoryID: "kitchen"}))

	require.NoError(t, svc.SoftDelete(ctx, domain.EntityKindCategory, "kitchen"))

	category, err := repo.GetCategory("kitchen")
	require.NoError(t, err)
	assert.Equal(t, 1, category.RestorableProductsCount)

	product, err := repo.GetProduct("mug")
	require.NoError(t, err)
	assert.Equal(t, domain.FallbackCategoryID, product.CategoryID)
	assert.Equal(t, "kitchen", product.DetachedFromCategoryID)

	products, err := svc.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, int32(4), products[0].Stock)

	require.NoError(t, svc.Restore(ctx, domain.EntityKindCategory, "kitchen"))
	product, err = repo.GetProduct("mug")
	require.NoError(t, err)
	assert.Equal(t, "kitchen", product.CategoryID)
	assert.Empty(t, product.DetachedFromCategoryID)

	count, err := svc.TrashCount(ctx, domain.EntityKindCategory)
	require.NoError(t, err)
	assert.Zero(t, count)
}
