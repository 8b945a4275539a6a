package inventory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// MockService подменяет StockReservationGateway в тестах.
type MockService struct {
	mu sync.Mutex

	CheckResult domain.Availability
	CheckErr    error
	ReserveErr  error
	ConfirmErr  error
	ReleaseErr  error

	CheckCalls   int
	ReserveCalls map[string]int
	ConfirmCalls map[string]int
	ReleaseCalls map[string]int
}

// NewMockService возвращает mock с успешным сценарием по умолчанию.
func NewMockService() *MockService {
	return &MockService{
		CheckResult:  domain.Availability{Available: true},
		ReserveCalls: make(map[string]int),
		ConfirmCalls: make(map[string]int),
		ReleaseCalls: make(map[string]int),
	}
}

// CheckAvailability возвращает заранее настроенный результат.
func (m *MockService) CheckAvailability(_ context.Context, _ []domain.StockItem) (domain.Availability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CheckCalls++
	return m.CheckResult, m.CheckErr
}

// Reserve считает вызовы по заказу.
func (m *MockService) Reserve(_ context.Context, orderID string, _ []domain.StockItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReserveCalls[orderID]++
	return m.ReserveErr
}

// ConfirmSale считает вызовы по заказу.
func (m *MockService) ConfirmSale(_ context.Context, orderID string, _ []domain.StockItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ConfirmCalls[orderID]++
	return m.ConfirmErr
}

// Release считает вызовы по заказу.
func (m *MockService) Release(_ context.Context, orderID string, _ []domain.StockItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReleaseCalls[orderID]++
	return m.ReleaseErr
}

// Calls возвращает число вызовов reserve/confirm/release по заказу.
func (m *MockService) Calls(orderID string) (reserve, confirm, release int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ReserveCalls[orderID], m.ConfirmCalls[orderID], m.ReleaseCalls[orderID]
}

var _ domain.StockReservationGateway = (*MockService)(nil)
