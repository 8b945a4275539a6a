package domain

import (
	"context"
	"time"
)

// AvailabilityChecker читает доступность без побочных эффектов.
// Результат используется только для предварительной проверки: сервер повторяет её атомарно при резерве.
type AvailabilityChecker interface {
	CheckAvailability(ctx context.Context, items []StockItem) (Availability, error)
}

// StockReservationGateway резервирует товар на складе.
type StockReservationGateway interface {
	AvailabilityChecker
	// Reserve уменьшает доступный к продаже остаток, не трогая физический.
	Reserve(ctx context.Context, orderID string, items []StockItem) error
	// ConfirmSale превращает резерв в списание; вызывается один раз при pending → completed.
	ConfirmSale(ctx context.Context, orderID string, items []StockItem) error
	// Release возвращает резерв; вызывается один раз при отмене или удалении pending-заказа.
	Release(ctx context.Context, orderID string, items []StockItem) error
}

// OrderQuery — параметры постраничного запроса заказов.
type OrderQuery struct {
	Status  OrderStatus
	Type    OrderType
	Page    int
	PerPage int
}

// OrderPage — страница заказов с серверной пагинацией.
type OrderPage struct {
	Items       []Order
	CurrentPage int
	LastPage    int
	PerPage     int
	Total       int
}

// OrderRemote — удалённое хранилище заказов. Резерв, подтверждение и возврат
// выполняются сервером внутри соответствующих вызовов.
type OrderRemote interface {
	Create(ctx context.Context, intent OrderIntent, idempotencyKey string) (Order, error)
	Complete(ctx context.Context, orderID string) (Order, error)
	Cancel(ctx context.Context, orderID string) (Order, error)
	// Мягкое удаление. Для pending-заказа сервер снимает резерв.
	Delete(ctx context.Context, orderID string) error
	List(ctx context.Context, query OrderQuery) (OrderPage, error)
	ListTrashed(ctx context.Context) ([]Order, error)
}

// RecycleBinRemote выполняет операции корзины на сервере.
type RecycleBinRemote interface {
	SoftDelete(ctx context.Context, kind EntityKind, id string) error
	Restore(ctx context.Context, kind EntityKind, id string) error
	ForceDelete(ctx context.Context, kind EntityKind, id string) error
	ListTrashed(ctx context.Context, kind EntityKind) ([]RecyclableEntity, error)
	TrashCount(ctx context.Context, kind EntityKind) (int, error)
}

// ProductCatalog отдаёт актуальные снимки товаров. Обновлять их после
// операций с заказами обязан вызывающий код.
type ProductCatalog interface {
	ListProducts(ctx context.Context) ([]Product, error)
}

// OrderEventPublisher публикует события жизненного цикла заказа; должен быть идемпотентным.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	List(orderID string) ([]TimelineEvent, error)
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(key string) (IdempotencyRecord, error)
	MarkDone(key string, responseBody []byte, httpStatus int) error
	MarkFailed(key string, responseBody []byte, httpStatus int) error
	DeleteExpired(before time.Time, limit int) (int, error)
}

// OrderEvent уходит внешним подписчикам.
type OrderEvent struct {
	Type        string
	OrderID     string
	OrderNumber string
	Status      OrderStatus
	TotalMinor  int64
	Occurred    time.Time
}

// Типы событий заказа.
const (
	OrderEventCreated   = "order.created"
	OrderEventCompleted = "order.completed"
	OrderEventCancelled = "order.cancelled"
	OrderEventDeleted   = "order.deleted"
	OrderEventRestored  = "order.restored"
	OrderEventPurged    = "order.purged"
)
