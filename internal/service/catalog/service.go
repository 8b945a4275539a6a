package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/inventory"
)

// StockView отдаёт текущие остатки товара.
type StockView interface {
	Level(productID string) inventory.StockLevel
}

// Service ведёт товары, категории и их корзину на стороне сервера.
// Удаление категории переносит её живые товары в FallbackCategoryID и
// запоминает, откуда они пришли; восстановление возвращает их обратно.
type Service struct {
	mu     sync.Mutex
	repo   domain.CatalogRepository
	stock  StockView
	logger *log.Entry
	now    func() time.Time
}

// NewService конструирует каталог.
func NewService(repo domain.CatalogRepository, stock StockView, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "catalog-service")
	}
	return &Service{
		repo:   repo,
		stock:  stock,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetClock подменяет источник времени.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// ListProducts возвращает живые товары с актуальным доступным остатком.
func (s *Service) ListProducts(context.Context) ([]domain.Product, error) {
	products, err := s.repo.ListProducts(false)
	if err != nil {
		return nil, err
	}
	if s.stock != nil {
		for i := range products {
			products[i].Stock = s.stock.Level(products[i].ID).Available()
		}
	}
	return products, nil
}

// SaveCategory создаёт или обновляет категорию.
func (s *Service) SaveCategory(_ context.Context, category domain.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.SaveCategory(category)
}

// SaveProduct создаёт или обновляет товар; пустая категория означает резервную.
func (s *Service) SaveProduct(_ context.Context, product domain.Product) error {
	if product.CategoryID == "" {
		product.CategoryID = domain.FallbackCategoryID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.SaveProduct(product)
}

// SoftDelete переносит категорию или товар в корзину.
func (s *Service) SoftDelete(_ context.Context, kind domain.EntityKind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch kind {
	case domain.EntityKindCategory:
		return s.deleteCategory(id)
	case domain.EntityKindProduct:
		product, err := s.repo.GetProduct(id)
		if err != nil {
			return err
		}
		if product.DeletedAt != nil {
			return domain.ErrEntityAlreadyTrashed
		}
		now := s.now()
		product.DeletedAt = &now
		return s.repo.SaveProduct(product)
	default:
		return domain.ErrEntityKindInvalid
	}
}

// Restore возвращает категорию или товар из корзины.
func (s *Service) Restore(_ context.Context, kind domain.EntityKind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch kind {
	case domain.EntityKindCategory:
		return s.restoreCategory(id)
	case domain.EntityKindProduct:
		return s.restoreProduct(id)
	default:
		return domain.ErrEntityKindInvalid
	}
}

// ForceDelete безвозвратно удаляет сущность из корзины.
func (s *Service) ForceDelete(_ context.Context, kind domain.EntityKind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch kind {
	case domain.EntityKindCategory:
		category, err := s.repo.GetCategory(id)
		if err != nil {
			return err
		}
		if category.DeletedAt == nil {
			return domain.ErrEntityNotTrashed
		}
		if err := s.eachProduct(func(p domain.Product) (domain.Product, bool) {
			if p.DetachedFromCategoryID != id {
				return p, false
			}
			p.DetachedFromCategoryID = ""
			return p, true
		}); err != nil {
			return err
		}
		if err := s.repo.PurgeCategory(id); err != nil {
			return err
		}
	case domain.EntityKindProduct:
		product, err := s.repo.GetProduct(id)
		if err != nil {
			return err
		}
		if product.DeletedAt == nil {
			return domain.ErrEntityNotTrashed
		}
		if err := s.repo.PurgeProduct(id); err != nil {
			return err
		}
	default:
		return domain.ErrEntityKindInvalid
	}

	s.logger.WithFields(log.Fields{"kind": kind, "id": id}).Info("entity purged")
	return nil
}

// ListTrashed возвращает содержимое корзины указанного типа.
func (s *Service) ListTrashed(_ context.Context, kind domain.EntityKind) ([]domain.RecyclableEntity, error) {
	switch kind {
	case domain.EntityKindCategory:
		categories, err := s.repo.ListCategories(true)
		if err != nil {
			return nil, err
		}
		out := make([]domain.RecyclableEntity, 0, len(categories))
		for _, c := range categories {
			out = append(out, domain.CategoryToRecyclable(c))
		}
		return out, nil
	case domain.EntityKindProduct:
		products, err := s.repo.ListProducts(true)
		if err != nil {
			return nil, err
		}
		out := make([]domain.RecyclableEntity, 0, len(products))
		for _, p := range products {
			out = append(out, domain.ProductToRecyclable(p))
		}
		return out, nil
	default:
		return nil, domain.ErrEntityKindInvalid
	}
}

// TrashCount возвращает размер корзины указанного типа.
func (s *Service) TrashCount(ctx context.Context, kind domain.EntityKind) (int, error) {
	trashed, err := s.ListTrashed(ctx, kind)
	if err != nil {
		return 0, err
	}
	return len(trashed), nil
}

func (s *Service) deleteCategory(id string) error {
	if id == domain.FallbackCategoryID {
		return fmt.Errorf("%w: fallback category cannot be deleted", domain.ErrPermissionDenied)
	}
	category, err := s.repo.GetCategory(id)
	if err != nil {
		return err
	}
	if category.DeletedAt != nil {
		return domain.ErrEntityAlreadyTrashed
	}

	moved := 0
	if err := s.eachProduct(func(p domain.Product) (domain.Product, bool) {
		if p.CategoryID != id || p.DeletedAt != nil {
			return p, false
		}
		p.CategoryID = domain.FallbackCategoryID
		p.DetachedFromCategoryID = id
		moved++
		return p, true
	}); err != nil {
		return err
	}

	now := s.now()
	category.DeletedAt = &now
	category.RestorableProductsCount = moved
	if err := s.repo.SaveCategory(category); err != nil {
		return err
	}

	s.logger.WithFields(log.Fields{
		"category_id":    id,
		"moved_products": moved,
	}).Info("category moved to recycle bin")
	return nil
}

func (s *Service) restoreCategory(id string) error {
	category, err := s.repo.GetCategory(id)
	if err != nil {
		return err
	}
	if category.DeletedAt == nil {
		return domain.ErrEntityNotTrashed
	}

	if err := s.eachProduct(func(p domain.Product) (domain.Product, bool) {
		if p.DetachedFromCategoryID != id {
			return p, false
		}
		p.CategoryID = id
		p.DetachedFromCategoryID = ""
		return p, true
	}); err != nil {
		return err
	}

	category.DeletedAt = nil
	category.RestorableProductsCount = 0
	return s.repo.SaveCategory(category)
}

// restoreProduct возвращает товар; если его категория всё ещё в корзине,
// товар попадает в резервную категорию и считается восстановимым вместе с ней.
func (s *Service) restoreProduct(id string) error {
	product, err := s.repo.GetProduct(id)
	if err != nil {
		return err
	}
	if product.DeletedAt == nil {
		return domain.ErrEntityNotTrashed
	}
	product.DeletedAt = nil

	if product.CategoryID != domain.FallbackCategoryID {
		category, err := s.repo.GetCategory(product.CategoryID)
		switch {
		case domain.IsNotFound(err):
			product.CategoryID = domain.FallbackCategoryID
		case err != nil:
			return err
		case category.DeletedAt != nil:
			product.DetachedFromCategoryID = category.ID
			product.CategoryID = domain.FallbackCategoryID
			category.RestorableProductsCount++
			if err := s.repo.SaveCategory(category); err != nil {
				return err
			}
		}
	}
	return s.repo.SaveProduct(product)
}

func (s *Service) eachProduct(update func(domain.Product) (domain.Product, bool)) error {
	for _, trashed := range []bool{false, true} {
		products, err := s.repo.ListProducts(trashed)
		if err != nil {
			return err
		}
		for _, p := range products {
			next, changed := update(p)
			if !changed {
				continue
			}
			if err := s.repo.SaveProduct(next); err != nil {
				return err
			}
		}
	}
	return nil
}
