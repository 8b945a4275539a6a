package app

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Seed описывает стартовое наполнение каталога и склада.
type Seed struct {
	Categories []SeedCategory `yaml:"categories"`
	Products   []SeedProduct  `yaml:"products"`
}

// SeedCategory описывает категорию в файле наполнения.
type SeedCategory struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// SeedProduct описывает товар и его остаток на складе.
type SeedProduct struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	Image      string `yaml:"image"`
	PriceMinor int64  `yaml:"price_minor"`
	CategoryID string `yaml:"category"`
	OnHand     int32  `yaml:"on_hand"`
}

type catalogWriter interface {
	SaveCategory(ctx context.Context, category domain.Category) error
	SaveProduct(ctx context.Context, product domain.Product) error
}

type stockWriter interface {
	SetOnHand(productID string, onHand int32) error
}

// LoadSeed читает YAML-файл наполнения.
func LoadSeed(path string) (Seed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(raw)
}

// ParseSeed разбирает YAML наполнения и проверяет ссылки на категории.
func ParseSeed(raw []byte) (Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return Seed{}, fmt.Errorf("decode seed: %w", err)
	}

	known := map[string]bool{domain.FallbackCategoryID: true}
	for _, category := range seed.Categories {
		if category.ID == "" {
			return Seed{}, fmt.Errorf("%w: seed category without id", domain.ErrValidation)
		}
		known[category.ID] = true
	}
	for _, product := range seed.Products {
		switch {
		case product.ID == "":
			return Seed{}, fmt.Errorf("%w: seed product without id", domain.ErrValidation)
		case product.PriceMinor < 0:
			return Seed{}, fmt.Errorf("%w: product %s has negative price", domain.ErrValidation, product.ID)
		case product.OnHand < 0:
			return Seed{}, fmt.Errorf("%w: product %s has negative stock", domain.ErrValidation, product.ID)
		case product.CategoryID != "" && !known[product.CategoryID]:
			return Seed{}, fmt.Errorf("%w: product %s references unknown category %s", domain.ErrValidation, product.ID, product.CategoryID)
		}
	}
	return seed, nil
}

// ApplyCatalog записывает категории и товары. Резервная категория создаётся всегда.
func (s Seed) ApplyCatalog(ctx context.Context, catalog catalogWriter) error {
	if err := catalog.SaveCategory(ctx, domain.Category{
		ID:   domain.FallbackCategoryID,
		Name: "Uncategorized",
	}); err != nil {
		return fmt.Errorf("seed fallback category: %w", err)
	}

	for _, category := range s.Categories {
		if category.ID == domain.FallbackCategoryID {
			continue
		}
		if err := catalog.SaveCategory(ctx, domain.Category{ID: category.ID, Name: category.Name}); err != nil {
			return fmt.Errorf("seed category %s: %w", category.ID, err)
		}
	}
	for _, product := range s.Products {
		if err := catalog.SaveProduct(ctx, domain.Product{
			ID:         product.ID,
			Name:       product.Name,
			Image:      product.Image,
			PriceMinor: product.PriceMinor,
			CategoryID: product.CategoryID,
		}); err != nil {
			return fmt.Errorf("seed product %s: %w", product.ID, err)
		}
	}
	return nil
}

// ApplyStock выставляет остатки на складе. Склад живёт в памяти, поэтому вызывается при каждом старте.
func (s Seed) ApplyStock(stock stockWriter) error {
	for _, product := range s.Products {
		if err := stock.SetOnHand(product.ID, product.OnHand); err != nil {
			return fmt.Errorf("seed stock %s: %w", product.ID, err)
		}
	}
	return nil
}
