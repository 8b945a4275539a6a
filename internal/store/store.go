package store

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Snapshot — неизменяемый срез общего состояния сессии.
type Snapshot struct {
	// Version растёт на единицу при каждой мутации.
	Version uint64
	// Активные заказы, новые первыми.
	Orders      []domain.Order
	TrashCounts map[domain.EntityKind]int
}

// Pending возвращает заказы в статусе pending.
func (s Snapshot) Pending() []domain.Order {
	result := make([]domain.Order, 0, len(s.Orders))
	for _, order := range s.Orders {
		if order.Status == domain.OrderStatusPending {
			result = append(result, order)
		}
	}
	return result
}

// Reader читают наблюдатели и движок истории.
type Reader interface {
	Snapshot() Snapshot
	ActiveOrder(id string) (domain.Order, bool)
	PendingOrders() []domain.Order
	TrashCount(kind domain.EntityKind) int
	Subscribe() (<-chan Snapshot, func())
}

// OrderWriter меняет активный набор. Пишет только координатор.
type OrderWriter interface {
	ReplaceActive(orders []domain.Order)
	PutOrder(order domain.Order)
	RemoveOrder(id string) (domain.Order, bool)
}

// TrashCounterWriter меняет счётчики корзины. Пишет только корзина.
type TrashCounterWriter interface {
	SetTrashCount(kind domain.EntityKind, count int)
	// AddTrashCount применяет дельту и возвращает значение до мутации.
	AddTrashCount(kind domain.EntityKind, delta int) int
}

// Store хранит активные заказы и счётчики корзины одной пользовательской сессии.
type Store struct {
	mu          sync.RWMutex
	version     uint64
	orders      map[string]domain.Order
	trashCounts map[domain.EntityKind]int
	subscribers map[int]chan Snapshot
	nextSubID   int
}

// New создаёт пустое хранилище.
func New() *Store {
	return &Store{
		orders:      make(map[string]domain.Order),
		trashCounts: make(map[domain.EntityKind]int),
		subscribers: make(map[int]chan Snapshot),
	}
}

// ReplaceActive заменяет активный набор целиком (после перезагрузки с сервера).
func (s *Store) ReplaceActive(orders []domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders = make(map[string]domain.Order, len(orders))
	for _, order := range orders {
		if order.IsDeleted() {
			continue
		}
		s.orders[order.ID] = order.Clone()
	}
	s.commitLocked()
}

// PutOrder вставляет или заменяет заказ в активном наборе.
func (s *Store) PutOrder(order domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders[order.ID] = order.Clone()
	s.commitLocked()
}

// RemoveOrder убирает заказ из активного набора.
func (s *Store) RemoveOrder(id string) (domain.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return domain.Order{}, false
	}
	delete(s.orders, id)
	s.commitLocked()
	return order, true
}

// SetTrashCount записывает авторитетное значение счётчика.
func (s *Store) SetTrashCount(kind domain.EntityKind, count int) {
	if count < 0 {
		count = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trashCounts[kind] = count
	s.commitLocked()
}

// AddTrashCount применяет дельту, не опуская счётчик ниже нуля.
func (s *Store) AddTrashCount(kind domain.EntityKind, delta int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.trashCounts[kind]
	next := prev + delta
	if next < 0 {
		next = 0
	}
	s.trashCounts[kind] = next
	s.commitLocked()
	return prev
}

// ActiveOrder возвращает копию активного заказа.
func (s *Store) ActiveOrder(id string) (domain.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[id]
	if !ok {
		return domain.Order{}, false
	}
	return order.Clone(), true
}

// PendingOrders возвращает pending-заказы, новые первыми.
func (s *Store) PendingOrders() []domain.Order {
	return s.Snapshot().Pending()
}

// TrashCount возвращает текущее значение счётчика корзины.
func (s *Store) TrashCount(kind domain.EntityKind) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trashCounts[kind]
}

// Snapshot возвращает копию состояния.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Subscribe возвращает канал снимков и функцию отписки.
// Канал держит только последний снимок: медленный читатель пропускает промежуточные.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	ch := make(chan Snapshot, 1)
	s.subscribers[id] = ch
	ch <- s.snapshotLocked()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subscribers, id)
			close(ch)
		})
	}
}

func (s *Store) commitLocked() {
	s.version++
	if len(s.subscribers) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for _, ch := range s.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

func (s *Store) snapshotLocked() Snapshot {
	orders := make([]domain.Order, 0, len(s.orders))
	for _, order := range s.orders {
		orders = append(orders, order.Clone())
	}
	sortNewestFirst(orders)

	counts := make(map[domain.EntityKind]int, len(s.trashCounts))
	for kind, count := range s.trashCounts {
		counts[kind] = count
	}

	return Snapshot{Version: s.version, Orders: orders, TrashCounts: counts}
}

func sortNewestFirst(orders []domain.Order) {
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return orders[i].ID > orders[j].ID
	})
}

var (
	_ Reader             = (*Store)(nil)
	_ OrderWriter        = (*Store)(nil)
	_ TrashCounterWriter = (*Store)(nil)
)
