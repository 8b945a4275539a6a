package history

import (
	"strings"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Refinement фильтрует только уже загруженную страницу.
type Refinement struct {
	// Text ищется без учёта регистра в имени, телефоне и номере заказа.
	Text string
	Type domain.OrderType
	// From и To задают границы по календарной дате created_at, обе включительно. Нулевое значение не ограничивает.
	From time.Time
	To   time.Time
}

// Empty сообщает, что фильтр ничего не отсекает.
func (r Refinement) Empty() bool {
	return strings.TrimSpace(r.Text) == "" && r.Type == "" && r.From.IsZero() && r.To.IsZero()
}

// Match проверяет заказ.
func (r Refinement) Match(order domain.Order) bool {
	if r.Type != "" && order.Type != r.Type {
		return false
	}
	if text := strings.ToLower(strings.TrimSpace(r.Text)); text != "" {
		haystack := []string{order.Customer.Name, order.Customer.Phone, order.OrderNumber}
		found := false
		for _, field := range haystack {
			if strings.Contains(strings.ToLower(field), text) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	created := dateOf(order.CreatedAt)
	if !r.From.IsZero() && created.Before(dateOf(r.From)) {
		return false
	}
	if !r.To.IsZero() && created.After(dateOf(r.To)) {
		return false
	}
	return true
}

// Apply возвращает подходящие заказы, сохраняя порядок.
func (r Refinement) Apply(orders []domain.Order) []domain.Order {
	if r.Empty() {
		return orders
	}
	result := make([]domain.Order, 0, len(orders))
	for _, order := range orders {
		if r.Match(order) {
			result = append(result, order)
		}
	}
	return result
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
