package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type catalogRepository struct {
	db *sql.DB
}

// NewCatalogRepository создаёт PostgreSQL-реализацию CatalogRepository.
func NewCatalogRepository(store *Store) domain.CatalogRepository {
	return &catalogRepository{db: store.DB()}
}

func (r *catalogRepository) GetCategory(id string) (domain.Category, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	category, err := scanCategory(r.db.QueryRowContext(ctx, `
		SELECT id, name, restorable_products_count, deleted_at
		FROM categories WHERE id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Category{}, domain.ErrEntityNotFound
	}
	if err != nil {
		return domain.Category{}, fmt.Errorf("select category: %w", err)
	}
	return category, nil
}

func (r *catalogRepository) SaveCategory(category domain.Category) error {
	if category.ID == "" {
		return domain.ErrValidation
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, restorable_products_count, deleted_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    restorable_products_count = EXCLUDED.restorable_products_count,
		    deleted_at = EXCLUDED.deleted_at
	`, category.ID, category.Name, category.RestorableProductsCount, category.DeletedAt); err != nil {
		return fmt.Errorf("save category: %w", err)
	}
	return nil
}

func (r *catalogRepository) PurgeCategory(id string) error {
	return r.purge(`DELETE FROM categories WHERE id = $1`, id)
}

// ListCategories возвращает живые (trashed=false) или удалённые категории по имени.
func (r *catalogRepository) ListCategories(trashed bool) ([]domain.Category, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, restorable_products_count, deleted_at
		FROM categories
		WHERE (deleted_at IS NOT NULL) = $1
		ORDER BY name ASC, id ASC
	`, trashed)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := make([]domain.Category, 0)
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return categories, nil
}

func (r *catalogRepository) GetProduct(id string) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	product, err := scanProduct(r.db.QueryRowContext(ctx, `
		SELECT id, name, image, price_minor, category_id, detached_from_category_id, deleted_at
		FROM products WHERE id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, domain.ErrEntityNotFound
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}
	return product, nil
}

func (r *catalogRepository) SaveProduct(product domain.Product) error {
	if product.ID == "" {
		return domain.ErrProductIDRequired
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO products (id, name, image, price_minor, category_id, detached_from_category_id, deleted_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    image = EXCLUDED.image,
		    price_minor = EXCLUDED.price_minor,
		    category_id = EXCLUDED.category_id,
		    detached_from_category_id = EXCLUDED.detached_from_category_id,
		    deleted_at = EXCLUDED.deleted_at
	`, product.ID, product.Name, product.Image, product.PriceMinor,
		product.CategoryID, product.DetachedFromCategoryID, product.DeletedAt,
	); err != nil {
		return fmt.Errorf("save product: %w", err)
	}
	return nil
}

func (r *catalogRepository) PurgeProduct(id string) error {
	return r.purge(`DELETE FROM products WHERE id = $1`, id)
}

// ListProducts возвращает живые (trashed=false) или удалённые товары по имени.
// Остаток здесь не хранится: его подставляет складской учёт.
func (r *catalogRepository) ListProducts(trashed bool) ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, image, price_minor, category_id, detached_from_category_id, deleted_at
		FROM products
		WHERE (deleted_at IS NOT NULL) = $1
		ORDER BY name ASC, id ASC
	`, trashed)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

func (r *catalogRepository) purge(query, id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("purge catalog entity: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrEntityNotFound
	}
	return nil
}

func scanCategory(row rowScanner) (domain.Category, error) {
	var (
		category  domain.Category
		deletedAt sql.NullTime
	)
	if err := row.Scan(&category.ID, &category.Name, &category.RestorableProductsCount, &deletedAt); err != nil {
		return domain.Category{}, err
	}
	category.DeletedAt = nullTime(deletedAt)
	return category, nil
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var (
		product   domain.Product
		deletedAt sql.NullTime
	)
	if err := row.Scan(
		&product.ID, &product.Name, &product.Image, &product.PriceMinor,
		&product.CategoryID, &product.DetachedFromCategoryID, &deletedAt,
	); err != nil {
		return domain.Product{}, err
	}
	product.DeletedAt = nullTime(deletedAt)
	return product, nil
}

func nullTime(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time.UTC()
	return &t
}

var _ domain.CatalogRepository = (*catalogRepository)(nil)
