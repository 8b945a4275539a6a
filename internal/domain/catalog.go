package domain

import "time"

// Product — снимок товара, каким его видит клиент.
type Product struct {
	ID         string
	Name       string
	Image      string
	PriceMinor int64
	// Доступный остаток на момент загрузки, только для подсказки.
	Stock      int32
	CategoryID string
	// DetachedFromCategoryID хранит исходную категорию, пока та лежит в корзине.
	DetachedFromCategoryID string
	DeletedAt              *time.Time
}

// Category — категория каталога.
type Category struct {
	ID                      string
	Name                    string
	RestorableProductsCount int
	DeletedAt               *time.Time
}

// В FallbackCategoryID переносятся товары удалённой категории.
const FallbackCategoryID = "uncategorized"

// CartLine живёт только на клиенте.
type CartLine struct {
	ProductID      string
	Name           string
	Image          string
	UnitPriceMinor int64
	Qty            int32
	// Снимок остатка для проверки границ, не авторитетен.
	StockCeiling int32
}

// SubtotalMinor = UnitPriceMinor × Qty.
func (l CartLine) SubtotalMinor() int64 {
	return l.UnitPriceMinor * int64(l.Qty)
}

// OrderLine переводит позицию корзины в позицию заказа.
func (l CartLine) OrderLine() OrderLine {
	return NewLine(l.ProductID, l.Name, l.UnitPriceMinor, l.Qty)
}
