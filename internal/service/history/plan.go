package history

import (
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Tab — вкладка истории заказов.
type Tab string

const (
	TabPending   Tab = "pending"
	TabCompleted Tab = "completed"
	TabCancelled Tab = "cancelled"
	TabAll       Tab = "all"
	TabDeleted   Tab = "deleted"
)

// Tabs перечисляет вкладки в порядке отображения.
func Tabs() []Tab {
	return []Tab{TabPending, TabCompleted, TabCancelled, TabAll, TabDeleted}
}

// Valid проверяет, что вкладка известна.
func (t Tab) Valid() bool {
	switch t {
	case TabPending, TabCompleted, TabCancelled, TabAll, TabDeleted:
		return true
	default:
		return false
	}
}

// QueryPlan определяет, как получить данные вкладки: LocalPlan, PaginatedPlan или FullScanPlan.
type QueryPlan interface {
	isQueryPlan()
}

// LocalPlan читает активный набор заказов без обращения к серверу.
type LocalPlan struct {
	Status  domain.OrderStatus
	Page    int
	PerPage int
}

// PaginatedPlan читает страницу статуса с сервера.
// Несколько статусов сливаются по created_at, страница режется уже из слияния.
type PaginatedPlan struct {
	Statuses []domain.OrderStatus
	Page     int
	PerPage  int
}

// FullScanPlan одним запросом получает все мягко удалённые заказы.
type FullScanPlan struct{}

func (LocalPlan) isQueryPlan()     {}
func (PaginatedPlan) isQueryPlan() {}
func (FullScanPlan) isQueryPlan()  {}

// ErrUnknownTab возвращается для неподдерживаемой вкладки.
var ErrUnknownTab = errors.New("unknown history tab")

// PlanFor строит план запроса для вкладки.
// Вкладка all объединяет completed и cancelled; pending в неё не входит.
func PlanFor(tab Tab, page, perPage int) (QueryPlan, error) {
	page, perPage = domain.NormalizePage(page, perPage)

	switch tab {
	case TabPending:
		return LocalPlan{Status: domain.OrderStatusPending, Page: page, PerPage: perPage}, nil
	case TabCompleted:
		return PaginatedPlan{Statuses: []domain.OrderStatus{domain.OrderStatusCompleted}, Page: page, PerPage: perPage}, nil
	case TabCancelled:
		return PaginatedPlan{Statuses: []domain.OrderStatus{domain.OrderStatusCancelled}, Page: page, PerPage: perPage}, nil
	case TabAll:
		return PaginatedPlan{
			Statuses: []domain.OrderStatus{domain.OrderStatusCompleted, domain.OrderStatusCancelled},
			Page:     page,
			PerPage:  perPage,
		}, nil
	case TabDeleted:
		return FullScanPlan{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTab, tab)
	}
}
