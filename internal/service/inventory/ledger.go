package inventory

import (
	"context"
	"errors"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

var (
	// Подтверждение или возврат по заказу без резерва.
	ErrReservationNotFound = errors.New("reservation not found")
	// Подтверждённый резерв вернуть нельзя.
	ErrReservationSettled = errors.New("reservation already confirmed")
	// Физический остаток не бывает отрицательным.
	ErrNegativeStock = errors.New("stock must be non-negative")
)

type reservationState string

const (
	reservationReserved  reservationState = "reserved"
	reservationConfirmed reservationState = "confirmed"
	reservationReleased  reservationState = "released"
)

type reservation struct {
	items []domain.StockItem
	state reservationState
}

// StockLevel — состояние остатков по одному товару.
type StockLevel struct {
	ProductID string
	OnHand    int32
	Reserved  int32
}

// Available возвращает физический остаток за вычетом резерва.
func (l StockLevel) Available() int32 {
	return l.OnHand - l.Reserved
}

// Ledger ведёт складской учёт в памяти процесса.
// Все операции атомарны под одним мьютексом и идемпотентны по order_id:
// повторный reserve/confirm/release того же заказа не меняет остатки второй раз.
type Ledger struct {
	mu           sync.Mutex
	levels       map[string]*StockLevel
	reservations map[string]*reservation
	logger       *log.Entry
}

// NewLedger создаёт пустой учёт.
func NewLedger(logger *log.Entry) *Ledger {
	if logger == nil {
		logger = log.New().WithField("component", "inventory-ledger")
	}
	return &Ledger{
		levels:       make(map[string]*StockLevel),
		reservations: make(map[string]*reservation),
		logger:       logger,
	}
}

// SetOnHand задаёт физический остаток товара.
func (l *Ledger) SetOnHand(productID string, onHand int32) error {
	if onHand < 0 {
		return ErrNegativeStock
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level(productID).OnHand = onHand
	return nil
}

// Level возвращает копию остатков товара.
func (l *Ledger) Level(productID string) StockLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level, ok := l.levels[productID]; ok {
		return *level
	}
	return StockLevel{ProductID: productID}
}

// CheckAvailability сверяет запрошенное количество с доступным остатком.
func (l *Ledger) CheckAvailability(_ context.Context, items []domain.StockItem) (domain.Availability, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.availabilityLocked(items), nil
}

// Reserve атомарно резервирует все позиции или ни одной.
func (l *Ledger) Reserve(_ context.Context, orderID string, items []domain.StockItem) error {
	if orderID == "" {
		return domain.ErrOrderIDRequired
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if existing, ok := l.reservations[orderID]; ok && existing.state != reservationReleased {
		l.logger.WithField("order_id", orderID).Debug("reservation already exists, skipping")
		return nil
	}

	availability := l.availabilityLocked(items)
	if err := availability.Err(); err != nil {
		return err
	}

	merged := domain.MergeStockItems(items)
	for _, item := range merged {
		l.level(item.ProductID).Reserved += item.Qty
	}
	l.reservations[orderID] = &reservation{items: merged, state: reservationReserved}

	l.logger.WithFields(log.Fields{
		"order_id": orderID,
		"lines":    len(merged),
	}).Info("stock reserved")
	return nil
}

// ConfirmSale списывает зарезервированное количество с физического остатка.
func (l *Ledger) ConfirmSale(_ context.Context, orderID string, _ []domain.StockItem) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	res, ok := l.reservations[orderID]
	if !ok || res.state == reservationReleased {
		return ErrReservationNotFound
	}
	if res.state == reservationConfirmed {
		return nil
	}

	for _, item := range res.items {
		level := l.level(item.ProductID)
		level.Reserved -= item.Qty
		level.OnHand -= item.Qty
	}
	res.state = reservationConfirmed

	l.logger.WithField("order_id", orderID).Info("sale confirmed")
	return nil
}

// Release возвращает резерв в доступный остаток.
func (l *Ledger) Release(_ context.Context, orderID string, _ []domain.StockItem) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	res, ok := l.reservations[orderID]
	if !ok {
		return ErrReservationNotFound
	}
	switch res.state {
	case reservationReleased:
		return nil
	case reservationConfirmed:
		return ErrReservationSettled
	}

	for _, item := range res.items {
		l.level(item.ProductID).Reserved -= item.Qty
	}
	res.state = reservationReleased

	l.logger.WithField("order_id", orderID).Info("reservation released")
	return nil
}

// Levels возвращает остатки всех известных товаров, отсортированные по ID.
func (l *Ledger) Levels() []StockLevel {
	l.mu.Lock()
	defer l.mu.Unlock()

	result := make([]StockLevel, 0, len(l.levels))
	for _, level := range l.levels {
		result = append(result, *level)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ProductID < result[j].ProductID })
	return result
}

func (l *Ledger) availabilityLocked(items []domain.StockItem) domain.Availability {
	result := domain.Availability{Available: true}
	for _, item := range domain.MergeStockItems(items) {
		available := int32(0)
		if level, ok := l.levels[item.ProductID]; ok {
			available = level.Available()
		}
		if item.Qty > available {
			result.Available = false
			result.Shortages = append(result.Shortages, domain.Shortage{
				ProductID: item.ProductID,
				Requested: item.Qty,
				Available: available,
			})
		}
	}
	return result
}

func (l *Ledger) level(productID string) *StockLevel {
	level, ok := l.levels[productID]
	if !ok {
		level = &StockLevel{ProductID: productID}
		l.levels[productID] = level
	}
	return level
}

var _ domain.StockReservationGateway = (*Ledger)(nil)
