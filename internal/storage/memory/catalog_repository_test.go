package memory_test

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func TestCatalogRepository_Categories(t *testing.T) {
	repo := memory.NewCatalogRepository()
	deletedAt := time.Now().UTC()

	if err := repo.SaveCategory(domain.Category{ID: "drinks", Name: "Drinks"}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := repo.SaveCategory(domain.Category{ID: "snacks", Name: "Snacks", DeletedAt: &deletedAt}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := repo.SaveCategory(domain.Category{}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	live, _ := repo.ListCategories(false)
	trashed, _ := repo.ListCategories(true)
	if len(live) != 1 || live[0].ID != "drinks" {
		t.Fatalf("unexpected live categories %+v", live)
	}
	if len(trashed) != 1 || trashed[0].ID != "snacks" {
		t.Fatalf("unexpected trashed categories %+v", trashed)
	}

	if err := repo.PurgeCategory("snacks"); err != nil {
		t.Fatalf("purge failed: %v", err)
	}
	if _, err := repo.GetCategory("snacks"); !errors.Is(err, domain.ErrEntityNotFound) {
		t.Fatalf("expected ErrEntityNotFound, got %v", err)
	}
}

func TestCatalogRepository_Products(t *testing.T) {
	repo := memory.NewCatalogRepository()

	for _, product := range []domain.Product{
		{ID: "p-2", Name: "Water", Stock: 3, CategoryID: "drinks"},
		{ID: "p-1", Name: "Cola", Stock: 10, CategoryID: "drinks"},
	} {
		if err := repo.SaveProduct(product); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	products, _ := repo.ListProducts(false)
	if len(products) != 2 || products[0].Name != "Cola" {
		t.Fatalf("expected products sorted by name, got %+v", products)
	}

	product, err := repo.GetProduct("p-2")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	now := time.Now().UTC()
	product.DeletedAt = &now
	if err := repo.SaveProduct(product); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	trashed, _ := repo.ListProducts(true)
	if len(trashed) != 1 || trashed[0].ID != "p-2" {
		t.Fatalf("unexpected trashed products %+v", trashed)
	}
	if err := repo.PurgeProduct("missing"); !errors.Is(err, domain.ErrEntityNotFound) {
		t.Fatalf("expected ErrEntityNotFound, got %v", err)
	}
}
