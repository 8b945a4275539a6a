package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// catalogRepositoryInMemory хранит категории и товары эталонного сервиса.
type catalogRepositoryInMemory struct {
	mu         sync.RWMutex
	categories map[string]domain.Category
	products   map[string]domain.Product
}

// NewCatalogRepository создаёт in-memory каталог.
func NewCatalogRepository() domain.CatalogRepository {
	return &catalogRepositoryInMemory{
		categories: make(map[string]domain.Category),
		products:   make(map[string]domain.Product),
	}
}

func (r *catalogRepositoryInMemory) GetCategory(id string) (domain.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	category, ok := r.categories[id]
	if !ok {
		return domain.Category{}, domain.ErrEntityNotFound
	}
	return cloneCategory(category), nil
}

func (r *catalogRepositoryInMemory) SaveCategory(category domain.Category) error {
	if category.ID == "" {
		return domain.ErrValidation
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.categories[category.ID] = cloneCategory(category)
	return nil
}

func (r *catalogRepositoryInMemory) PurgeCategory(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.categories[id]; !ok {
		return domain.ErrEntityNotFound
	}
	delete(r.categories, id)
	return nil
}

// ListCategories возвращает живые (trashed=false) или удалённые категории по имени.
func (r *catalogRepositoryInMemory) ListCategories(trashed bool) ([]domain.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Category, 0, len(r.categories))
	for _, category := range r.categories {
		if (category.DeletedAt != nil) == trashed {
			result = append(result, cloneCategory(category))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (r *catalogRepositoryInMemory) GetProduct(id string) (domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.products[id]
	if !ok {
		return domain.Product{}, domain.ErrEntityNotFound
	}
	return cloneProduct(product), nil
}

func (r *catalogRepositoryInMemory) SaveProduct(product domain.Product) error {
	if product.ID == "" {
		return domain.ErrProductIDRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[product.ID] = cloneProduct(product)
	return nil
}

func (r *catalogRepositoryInMemory) PurgeProduct(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.products[id]; !ok {
		return domain.ErrEntityNotFound
	}
	delete(r.products, id)
	return nil
}

// ListProducts возвращает живые или удалённые товары по имени.
func (r *catalogRepositoryInMemory) ListProducts(trashed bool) ([]domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Product, 0, len(r.products))
	for _, product := range r.products {
		if (product.DeletedAt != nil) == trashed {
			result = append(result, cloneProduct(product))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func cloneCategory(src domain.Category) domain.Category {
	dst := src
	if src.DeletedAt != nil {
		t := *src.DeletedAt
		dst.DeletedAt = &t
	}
	return dst
}

func cloneProduct(src domain.Product) domain.Product {
	dst := src
	if src.DeletedAt != nil {
		t := *src.DeletedAt
		dst.DeletedAt = &t
	}
	return dst
}

var _ domain.CatalogRepository = (*catalogRepositoryInMemory)(nil)
