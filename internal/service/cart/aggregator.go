package cart

import (
	"fmt"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Aggregator накапливает позиции корзины до оформления одного заказа.
// Со складом не общается: граница берётся из последнего снимка товара,
// авторитетная проверка выполняется при создании заказа.
type Aggregator struct {
	mu    sync.Mutex
	lines []domain.CartLine
}

// NewAggregator создаёт пустую корзину.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Add добавляет товар или увеличивает количество уже добавленного.
// Если current + qty превышает остаток снимка, корзина не меняется.
func (a *Aggregator) Add(product domain.Product, qty int32) error {
	if product.ID == "" {
		return domain.ErrProductIDRequired
	}
	if qty <= 0 {
		return domain.ErrCartQtyInvalid
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	idx := a.indexOf(product.ID)
	var current int32
	if idx >= 0 {
		current = a.lines[idx].Qty
	}
	if int64(current)+int64(qty) > int64(product.Stock) {
		return fmt.Errorf("%w: product %s in cart %d, adding %d, stock %d",
			domain.ErrCartStockExceeded, product.ID, current, qty, product.Stock)
	}

	line := domain.CartLine{
		ProductID:      product.ID,
		Name:           product.Name,
		Image:          product.Image,
		UnitPriceMinor: product.PriceMinor,
		Qty:            current + qty,
		StockCeiling:   product.Stock,
	}
	if idx >= 0 {
		a.lines[idx] = line
		return nil
	}
	a.lines = append(a.lines, line)
	return nil
}

// UpdateQuantity задаёт количество, прижимая его к [0, StockCeiling]. Ноль удаляет позицию.
// Возвращает итоговое количество.
func (a *Aggregator) UpdateQuantity(productID string, qty int32) (int32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	idx := a.indexOf(productID)
	if idx < 0 {
		return 0, domain.ErrCartLineNotFound
	}

	ceiling := a.lines[idx].StockCeiling
	switch {
	case qty < 0:
		qty = 0
	case qty > ceiling:
		qty = ceiling
	}

	if qty == 0 {
		a.removeAt(idx)
		return 0, nil
	}
	a.lines[idx].Qty = qty
	return qty, nil
}

// Remove удаляет позицию.
func (a *Aggregator) Remove(productID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	idx := a.indexOf(productID)
	if idx < 0 {
		return domain.ErrCartLineNotFound
	}
	a.removeAt(idx)
	return nil
}

// Clear очищает корзину.
func (a *Aggregator) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lines = nil
}

// Total пересчитывается при каждом вызове.
func (a *Aggregator) Total() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	var total int64
	for _, line := range a.lines {
		total += line.SubtotalMinor()
	}
	return total
}

// Lines возвращает копию позиций в порядке добавления.
func (a *Aggregator) Lines() []domain.CartLine {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.CartLine(nil), a.lines...)
}

// Len возвращает число позиций.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.lines)
}

// Intent дополняет base позициями корзины. По умолчанию тип заказа in-store.
func (a *Aggregator) Intent(base domain.OrderIntent) domain.OrderIntent {
	a.mu.Lock()
	defer a.mu.Unlock()

	intent := base
	if intent.Type == "" {
		intent.Type = domain.OrderTypeInStore
	}
	intent.Lines = make([]domain.OrderLine, 0, len(a.lines))
	for _, line := range a.lines {
		intent.Lines = append(intent.Lines, line.OrderLine())
	}
	return intent
}

func (a *Aggregator) indexOf(productID string) int {
	for i, line := range a.lines {
		if line.ProductID == productID {
			return i
		}
	}
	return -1
}

func (a *Aggregator) removeAt(idx int) {
	a.lines = append(a.lines[:idx], a.lines[idx+1:]...)
}
