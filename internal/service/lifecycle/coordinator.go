package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/store"
)

// Названия операций для логов и метрик.
const (
	OpCreate   = "create"
	OpComplete = "complete"
	OpCancel   = "cancel"
	OpDelete   = "delete"
	OpRefresh  = "refresh"
)

// Одновременно выполняется не больше одного создания заказа.
const createLockKey = "\x00create"

const refreshPageSize = 100

// ActiveSet принадлежит координатору.
type ActiveSet interface {
	ActiveOrder(id string) (domain.Order, bool)
	ReplaceActive(orders []domain.Order)
	PutOrder(order domain.Order)
	RemoveOrder(id string) (domain.Order, bool)
}

// TrashCounter увеличивает счётчик корзины после удаления заказа.
type TrashCounter interface {
	AddTrashCount(kind domain.EntityKind, delta int) int
}

// Coordinator управляет жизненным циклом заказа на стороне клиента.
// Локальный статус меняется только после подтверждения сервера; автоматических повторов нет.
type Coordinator struct {
	remote   domain.OrderRemote
	checker  domain.AvailabilityChecker
	active   ActiveSet
	logger   *log.Entry
	metrics  *metrics.LifecycleMetrics
	timeline domain.TimelineRepository
	trash    TrashCounter
	newKey   func() string
	now      func() time.Time
	locks    *store.Locks
}

// Option настраивает Coordinator.
type Option func(*Coordinator)

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics включает метрики операций.
func WithMetrics(m *metrics.LifecycleMetrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// WithTimeline включает запись событий сессии в хронологию заказа.
func WithTimeline(timeline domain.TimelineRepository) Option {
	return func(c *Coordinator) {
		c.timeline = timeline
	}
}

// WithTrashCounter подключает счётчик корзины заказов.
func WithTrashCounter(counter TrashCounter) Option {
	return func(c *Coordinator) {
		c.trash = counter
	}
}

// WithLocks подключает реестр блокировок, общий с корзиной.
func WithLocks(locks *store.Locks) Option {
	return func(c *Coordinator) {
		if locks != nil {
			c.locks = locks
		}
	}
}

// WithIdempotencyKeyGenerator подменяет генератор ключей идемпотентности.
func WithIdempotencyKeyGenerator(fn func() string) Option {
	return func(c *Coordinator) {
		if fn != nil {
			c.newKey = fn
		}
	}
}

// NewCoordinator создаёт координатор.
func NewCoordinator(remote domain.OrderRemote, checker domain.AvailabilityChecker, active ActiveSet, opts ...Option) *Coordinator {
	c := &Coordinator{
		remote:  remote,
		checker: checker,
		active:  active,
		logger:  log.New().WithField("component", "order-lifecycle"),
		newKey:  uuid.NewString,
		now:     time.Now,
		locks:   store.NewLocks(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// InFlight сообщает, ждёт ли заказ ответа сервера. Интерфейс блокирует по нему кнопки.
func (c *Coordinator) InFlight(orderID string) bool {
	return c.locks.Held(orderLockKey(orderID))
}

// Creating сообщает, выполняется ли сейчас создание заказа.
func (c *Coordinator) Creating() bool {
	return c.locks.Held(createLockKey)
}

// Create проверяет намерение и доступность, затем создаёт заказ на сервере.
// При нехватке остатков сервер не вызывается, и возвращается *domain.ShortageError.
func (c *Coordinator) Create(ctx context.Context, intent domain.OrderIntent) (domain.Order, error) {
	logger := c.logger.WithField("operation", OpCreate)

	if errs := intent.Validate(); len(errs) > 0 {
		c.metrics.RecordOperation(OpCreate, metrics.ResultError)
		return domain.Order{}, domain.JoinErrors(errs)
	}

	release, err := c.acquire(createLockKey)
	if err != nil {
		c.metrics.RecordOperation(OpCreate, metrics.ResultInFlight)
		return domain.Order{}, err
	}
	defer release()

	availability, err := c.checker.CheckAvailability(ctx, intent.StockItems())
	if err != nil {
		logger.WithError(err).Warn("availability check failed")
		c.metrics.RecordOperation(OpCreate, metrics.ResultError)
		return domain.Order{}, fmt.Errorf("check availability: %w", err)
	}
	if err := availability.Err(); err != nil {
		logger.WithField("shortages", len(availability.Shortages)).Info("order rejected by availability check")
		c.metrics.RecordOperation(OpCreate, metrics.ResultShortage)
		return domain.Order{}, err
	}

	key := c.newKey()
	start := c.now()
	order, err := c.remote.Create(ctx, intent, key)
	c.metrics.ObserveDuration(OpCreate, time.Since(start))
	if err != nil {
		logger.WithError(err).WithField("idempotency_key", key).Warn("remote create failed")
		c.metrics.RecordOperation(OpCreate, resultFor(err))
		return domain.Order{}, fmt.Errorf("create order: %w", err)
	}
	if order.Status == "" {
		order.Status = domain.OrderStatusPending
	}

	c.active.PutOrder(order)
	c.appendTimeline(order.ID, domain.OrderEventCreated, order.Status)
	c.metrics.RecordOperation(OpCreate, metrics.ResultOK)
	logger.WithFields(log.Fields{
		"order_id":    order.ID,
		"total_minor": order.TotalMinor,
	}).Info("order created")
	return order, nil
}

// Complete переводит pending-заказ в completed.
func (c *Coordinator) Complete(ctx context.Context, orderID string) (domain.Order, error) {
	return c.transition(ctx, OpComplete, orderID, domain.OrderStatusCompleted, c.remote.Complete)
}

// Cancel переводит pending-заказ в cancelled.
func (c *Coordinator) Cancel(ctx context.Context, orderID string) (domain.Order, error) {
	return c.transition(ctx, OpCancel, orderID, domain.OrderStatusCancelled, c.remote.Cancel)
}

func (c *Coordinator) transition(
	ctx context.Context,
	op, orderID string,
	to domain.OrderStatus,
	call func(context.Context, string) (domain.Order, error),
) (domain.Order, error) {
	logger := c.logger.WithFields(log.Fields{"operation": op, "order_id": orderID})

	if orderID == "" {
		return domain.Order{}, domain.ErrOrderIDRequired
	}

	release, err := c.acquire(orderLockKey(orderID))
	if err != nil {
		c.metrics.RecordOperation(op, metrics.ResultInFlight)
		return domain.Order{}, err
	}
	defer release()

	current, ok := c.active.ActiveOrder(orderID)
	if !ok {
		c.metrics.RecordOperation(op, metrics.ResultNotFound)
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err := domain.ValidateTransition(orderID, current.Status, to); err != nil {
		logger.WithField("status", current.Status).Debug("transition rejected locally")
		c.metrics.RecordOperation(op, metrics.ResultInvalidTransition)
		return domain.Order{}, err
	}

	start := c.now()
	updated, err := call(ctx, orderID)
	c.metrics.ObserveDuration(op, time.Since(start))
	if err != nil {
		if domain.IsNotFound(err) {
			c.active.RemoveOrder(orderID)
			logger.Info("order vanished remotely, dropped from active set")
		}
		logger.WithError(err).Warn("remote transition failed")
		c.metrics.RecordOperation(op, resultFor(err))
		return domain.Order{}, fmt.Errorf("%s order %s: %w", op, orderID, err)
	}

	if updated.ID == "" {
		updated = current
	}
	updated.Status = to
	c.active.PutOrder(updated)
	c.appendTimeline(orderID, eventForStatus(to), to)
	c.metrics.RecordOperation(op, metrics.ResultOK)
	logger.WithField("status", to).Info("order transitioned")
	return updated, nil
}

// Delete мягко удаляет заказ. Для pending-заказа сервер снимает резерв.
func (c *Coordinator) Delete(ctx context.Context, orderID string) error {
	logger := c.logger.WithFields(log.Fields{"operation": OpDelete, "order_id": orderID})

	if orderID == "" {
		return domain.ErrOrderIDRequired
	}

	release, err := c.acquire(orderLockKey(orderID))
	if err != nil {
		c.metrics.RecordOperation(OpDelete, metrics.ResultInFlight)
		return err
	}
	defer release()

	start := c.now()
	err = c.remote.Delete(ctx, orderID)
	c.metrics.ObserveDuration(OpDelete, time.Since(start))
	if err != nil {
		if domain.IsNotFound(err) {
			c.active.RemoveOrder(orderID)
		}
		logger.WithError(err).Warn("remote delete failed")
		c.metrics.RecordOperation(OpDelete, resultFor(err))
		return fmt.Errorf("delete order %s: %w", orderID, err)
	}

	removed, _ := c.active.RemoveOrder(orderID)
	if c.trash != nil {
		c.trash.AddTrashCount(domain.EntityKindOrder, 1)
	}
	c.appendTimeline(orderID, domain.OrderEventDeleted, removed.Status)
	c.metrics.RecordOperation(OpDelete, metrics.ResultOK)
	logger.Info("order moved to recycle bin")
	return nil
}

// Refresh перезагружает активный набор pending-заказов с сервера.
func (c *Coordinator) Refresh(ctx context.Context) error {
	var orders []domain.Order
	page := 1
	for {
		result, err := c.remote.List(ctx, domain.OrderQuery{
			Status:  domain.OrderStatusPending,
			Page:    page,
			PerPage: refreshPageSize,
		})
		if err != nil {
			c.metrics.RecordOperation(OpRefresh, resultFor(err))
			return fmt.Errorf("refresh pending orders: %w", err)
		}
		orders = append(orders, result.Items...)
		if result.LastPage <= page || len(result.Items) == 0 {
			break
		}
		page++
	}

	c.active.ReplaceActive(orders)
	c.metrics.RecordOperation(OpRefresh, metrics.ResultOK)
	c.logger.WithField("orders", len(orders)).Debug("active set refreshed")
	return nil
}

func (c *Coordinator) acquire(key string) (func(), error) {
	release, err := c.locks.Acquire(key)
	if err != nil {
		return nil, err
	}
	c.metrics.InFlightStarted()

	return func() {
		release()
		c.metrics.InFlightFinished()
	}, nil
}

func orderLockKey(orderID string) string {
	return store.EntityLockKey(domain.EntityKindOrder, orderID)
}

func (c *Coordinator) appendTimeline(orderID, eventType string, status domain.OrderStatus) {
	if c.timeline == nil {
		return
	}
	event := domain.TimelineEvent{
		OrderID:  orderID,
		Type:     eventType,
		Status:   status,
		Occurred: c.now().UTC(),
	}
	if err := c.timeline.Append(event); err != nil {
		c.logger.WithError(err).WithField("order_id", orderID).Warn("failed to append timeline event")
	}
}

func eventForStatus(status domain.OrderStatus) string {
	if status == domain.OrderStatusCompleted {
		return domain.OrderEventCompleted
	}
	return domain.OrderEventCancelled
}

func resultFor(err error) string {
	switch {
	case err == nil:
		return metrics.ResultOK
	case domain.IsShortage(err):
		return metrics.ResultShortage
	case domain.IsNotFound(err):
		return metrics.ResultNotFound
	case domain.IsInvalidTransition(err):
		return metrics.ResultInvalidTransition
	default:
		return metrics.ResultError
	}
}
