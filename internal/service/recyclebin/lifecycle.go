package recyclebin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/store"
)

// Названия операций для логов и метрик.
const (
	OpSoftDelete  = "soft_delete"
	OpRestore     = "restore"
	OpForceDelete = "force_delete"
)

// Confirmation открывает безвозвратное удаление и показывается пользователю с именем сущности.
type Confirmation struct {
	Token              string
	Kind               domain.EntityKind
	ID                 string
	Name               string
	RestorableChildren int
	IssuedAt           time.Time
}

// OrderLifecycle нужен корзине, чтобы менять заказы через координатор.
// Так удаление и восстановление заказа обновляют активный набор и делят с координатором блокировки.
type OrderLifecycle interface {
	Delete(ctx context.Context, orderID string) error
	Refresh(ctx context.Context) error
}

type entityKey struct {
	kind domain.EntityKind
	id   string
}

// Lifecycle управляет корзиной категорий, товаров и заказов.
// Счётчик корзины меняется оптимистично; при ошибке применяется обратная дельта.
type Lifecycle struct {
	remote   domain.RecycleBinRemote
	counters store.TrashCounterWriter
	logger   *log.Entry
	metrics  *metrics.LifecycleMetrics
	now      func() time.Time
	locks    *store.Locks
	orders   OrderLifecycle

	mu      sync.Mutex
	purged  map[entityKey]struct{}
	pending map[string]Confirmation
}

// Option настраивает Lifecycle.
type Option func(*Lifecycle)

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(l *Lifecycle) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithMetrics включает метрики.
func WithMetrics(m *metrics.LifecycleMetrics) Option {
	return func(l *Lifecycle) {
		l.metrics = m
	}
}

// WithClock подменяет часы.
func WithClock(now func() time.Time) Option {
	return func(l *Lifecycle) {
		if now != nil {
			l.now = now
		}
	}
}

// WithLocks подключает реестр блокировок, общий с координатором заказов.
func WithLocks(locks *store.Locks) Option {
	return func(l *Lifecycle) {
		if locks != nil {
			l.locks = locks
		}
	}
}

// WithOrders направляет удаление и восстановление заказов через координатор.
func WithOrders(orders OrderLifecycle) Option {
	return func(l *Lifecycle) {
		l.orders = orders
	}
}

// New создаёт жизненный цикл корзины.
func New(remote domain.RecycleBinRemote, counters store.TrashCounterWriter, opts ...Option) *Lifecycle {
	l := &Lifecycle{
		remote:   remote,
		counters: counters,
		logger:   log.New().WithField("component", "recycle-bin"),
		now:      time.Now,
		locks:    store.NewLocks(),
		purged:   make(map[entityKey]struct{}),
		pending:  make(map[string]Confirmation),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// InFlight сообщает, ждёт ли сущность ответа сервера.
func (l *Lifecycle) InFlight(kind domain.EntityKind, id string) bool {
	return l.locks.Held(store.EntityLockKey(kind, id))
}

// SoftDelete переносит сущность в корзину.
// Заказ удаляется координатором: он снимает заказ с активного набора и считает корзину сам.
func (l *Lifecycle) SoftDelete(ctx context.Context, kind domain.EntityKind, id string) error {
	if kind == domain.EntityKindOrder && l.orders != nil {
		return l.orders.Delete(ctx, id)
	}
	return l.mutate(ctx, OpSoftDelete, kind, id, +1, l.remote.SoftDelete)
}

// Restore возвращает сущность из корзины. Дочерние сущности переприкрепляет сервер.
// Безвозвратно удалённая в этой сессии сущность не восстанавливается.
func (l *Lifecycle) Restore(ctx context.Context, kind domain.EntityKind, id string) error {
	if l.isPurged(kind, id) {
		return fmt.Errorf("restore %s %s: %w", kind, id, domain.ErrEntityPurged)
	}
	if err := l.mutate(ctx, OpRestore, kind, id, -1, l.remote.Restore); err != nil {
		return err
	}
	if kind == domain.EntityKindOrder && l.orders != nil {
		// Восстановленный pending-заказ возвращается в активный набор только с сервера.
		if err := l.orders.Refresh(ctx); err != nil {
			l.logger.WithError(err).WithField("id", id).Warn("active orders refresh after restore failed")
		}
	}
	return nil
}

// RequestForceDelete открывает подтверждение безвозвратного удаления.
func (l *Lifecycle) RequestForceDelete(entity domain.RecyclableEntity) (Confirmation, error) {
	if !entity.Kind.Valid() {
		return Confirmation{}, domain.ErrEntityKindInvalid
	}
	if !entity.IsTrashed() {
		return Confirmation{}, fmt.Errorf("force delete %s %s: %w", entity.Kind, entity.ID, domain.ErrEntityNotTrashed)
	}
	if l.isPurged(entity.Kind, entity.ID) {
		return Confirmation{}, fmt.Errorf("force delete %s %s: %w", entity.Kind, entity.ID, domain.ErrEntityPurged)
	}

	confirmation := Confirmation{
		Token:              uuid.NewString(),
		Kind:               entity.Kind,
		ID:                 entity.ID,
		Name:               entity.Name,
		RestorableChildren: entity.RestorableChildren,
		IssuedAt:           l.now().UTC(),
	}

	l.mu.Lock()
	l.pending[confirmation.Token] = confirmation
	l.mu.Unlock()
	return confirmation, nil
}

// DismissForceDelete закрывает подтверждение. После отправки запроса закрыть его нельзя:
// возвращается domain.ErrMutationInFlight.
func (l *Lifecycle) DismissForceDelete(token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if issued, ok := l.pending[token]; ok && l.locks.Held(store.EntityLockKey(issued.Kind, issued.ID)) {
		return domain.ErrMutationInFlight
	}
	delete(l.pending, token)
	return nil
}

// ConfirmForceDelete выполняет безвозвратное удаление по выданному подтверждению.
func (l *Lifecycle) ConfirmForceDelete(ctx context.Context, confirmation Confirmation) error {
	l.mu.Lock()
	issued, ok := l.pending[confirmation.Token]
	l.mu.Unlock()
	if !ok || issued.Kind != confirmation.Kind || issued.ID != confirmation.ID {
		return domain.ErrConfirmationMismatch
	}

	err := l.mutate(ctx, OpForceDelete, issued.Kind, issued.ID, -1, l.remote.ForceDelete)

	l.mu.Lock()
	defer l.mu.Unlock()
	if err == nil {
		delete(l.pending, issued.Token)
		l.purged[entityKey{issued.Kind, issued.ID}] = struct{}{}
	}
	return err
}

// List возвращает содержимое корзины и обновляет счётчик авторитетным значением.
func (l *Lifecycle) List(ctx context.Context, kind domain.EntityKind) ([]domain.RecyclableEntity, error) {
	if !kind.Valid() {
		return nil, domain.ErrEntityKindInvalid
	}
	entities, err := l.remote.ListTrashed(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("list %s recycle bin: %w", kind, err)
	}

	l.mu.Lock()
	visible := make([]domain.RecyclableEntity, 0, len(entities))
	for _, entity := range entities {
		if _, gone := l.purged[entityKey{kind, entity.ID}]; gone {
			continue
		}
		entity.Kind = kind
		visible = append(visible, entity)
	}
	l.mu.Unlock()

	l.counters.SetTrashCount(kind, len(visible))
	return visible, nil
}

// SyncCount перечитывает счётчик корзины с сервера.
func (l *Lifecycle) SyncCount(ctx context.Context, kind domain.EntityKind) (int, error) {
	if !kind.Valid() {
		return 0, domain.ErrEntityKindInvalid
	}
	count, err := l.remote.TrashCount(ctx, kind)
	if err != nil {
		return 0, fmt.Errorf("sync %s trash count: %w", kind, err)
	}
	l.counters.SetTrashCount(kind, count)
	return count, nil
}

// Expiring отбирает сущности, удалённые не менее thresholdDays суток назад.
func (l *Lifecycle) Expiring(entities []domain.RecyclableEntity, thresholdDays int) []domain.RecyclableEntity {
	return Expiring(l.now(), entities, thresholdDays)
}

// Expiring только предупреждает и ничего не удаляет.
func Expiring(now time.Time, entities []domain.RecyclableEntity, thresholdDays int) []domain.RecyclableEntity {
	result := make([]domain.RecyclableEntity, 0)
	for _, entity := range entities {
		if entity.IsExpiring(now, thresholdDays) {
			result = append(result, entity)
		}
	}
	return result
}

func (l *Lifecycle) mutate(
	ctx context.Context,
	op string,
	kind domain.EntityKind,
	id string,
	delta int,
	call func(context.Context, domain.EntityKind, string) error,
) error {
	if !kind.Valid() {
		return domain.ErrEntityKindInvalid
	}
	if id == "" {
		return domain.ErrEntityNotFound
	}
	logger := l.logger.WithFields(log.Fields{"operation": op, "kind": kind, "id": id})

	release, err := l.acquire(kind, id)
	if err != nil {
		l.metrics.RecordOperation(op, metrics.ResultInFlight)
		return err
	}
	defer release()

	prev := l.counters.AddTrashCount(kind, delta)
	// Счётчик не опускается ниже нуля, поэтому обратная дельта считается от фактически применённой.
	applied := max(prev+delta, 0) - prev

	if err := call(ctx, kind, id); err != nil {
		l.counters.AddTrashCount(kind, -applied)
		l.metrics.RecordTrashCompensation(string(kind))
		logger.WithError(err).WithField("trash_count", prev).Warn("recycle bin mutation failed, counter compensated")

		if domain.IsNotFound(err) {
			// Сущность исчезла на сервере: локальный счётчик перечитывается целиком.
			l.metrics.RecordOperation(op, metrics.ResultNotFound)
			if _, syncErr := l.SyncCount(ctx, kind); syncErr != nil {
				logger.WithError(syncErr).Warn("trash count resync failed")
			}
		} else {
			l.metrics.RecordOperation(op, metrics.ResultError)
		}
		return fmt.Errorf("%s %s %s: %w", op, kind, id, err)
	}

	l.metrics.RecordOperation(op, metrics.ResultOK)
	logger.Info("recycle bin mutation applied")
	return nil
}

func (l *Lifecycle) acquire(kind domain.EntityKind, id string) (func(), error) {
	release, err := l.locks.Acquire(store.EntityLockKey(kind, id))
	if err != nil {
		return nil, err
	}
	l.metrics.InFlightStarted()

	return func() {
		release()
		l.metrics.InFlightFinished()
	}, nil
}

func (l *Lifecycle) isPurged(kind domain.EntityKind, id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.purged[entityKey{kind, id}]
	return ok
}
