package orders

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/inventory"
)

// Service проводит заказ по жизненному циклу на стороне сервера.
// Резерв, подтверждение и возврат остатков выполняются здесь, внутри
// соответствующих операций, ровно по одному разу на заказ.
type Service struct {
	repo      domain.OrderRepository
	timeline  domain.TimelineRepository
	stock     domain.StockReservationGateway
	publisher domain.OrderEventPublisher
	logger    *log.Entry
	now       func() time.Time
	newID     func() string
	seq       atomic.Int64
}

// Option настраивает Service.
type Option func(*Service)

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPublisher включает публикацию событий заказа.
func WithPublisher(publisher domain.OrderEventPublisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator подменяет генератор идентификаторов заказов.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// WithOrderNumberStart задаёт номер, после которого продолжается нумерация ORD-NNNNNN.
func WithOrderNumberStart(last int64) Option {
	return func(s *Service) { s.seq.Store(last) }
}

// NewService конструирует сервис заказов.
func NewService(
	repo domain.OrderRepository,
	timeline domain.TimelineRepository,
	stock domain.StockReservationGateway,
	opts ...Option,
) *Service {
	s := &Service{
		repo:     repo,
		timeline: timeline,
		stock:    stock,
		logger:   log.New().WithField("component", "order-service"),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckAvailability проверяет наличие без побочных эффектов.
func (s *Service) CheckAvailability(ctx context.Context, items []domain.StockItem) (domain.Availability, error) {
	return s.stock.CheckAvailability(ctx, items)
}

// Create проверяет намерение, атомарно резервирует остатки и сохраняет заказ как pending.
func (s *Service) Create(ctx context.Context, intent domain.OrderIntent) (domain.Order, error) {
	if err := domain.JoinErrors(intent.Validate()); err != nil {
		return domain.Order{}, err
	}

	now := s.now()
	order := domain.Order{
		ID:              s.newID(),
		OrderNumber:     fmt.Sprintf("ORD-%06d", s.seq.Add(1)),
		Type:            intent.Type,
		Status:          domain.OrderStatusPending,
		Lines:           append([]domain.OrderLine(nil), intent.Lines...),
		SubtotalMinor:   intent.SubtotalMinor(),
		ShippingMinor:   intent.ShippingMinor,
		TotalMinor:      intent.TotalMinor(),
		Customer:        intent.Customer,
		DeliveryOption:  intent.DeliveryOption,
		ShippingAddress: intent.ShippingAddress,
		PaymentMethod:   intent.PaymentMethod,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := domain.JoinErrors(order.ValidateInvariants()); err != nil {
		return domain.Order{}, err
	}

	if err := s.stock.Reserve(ctx, order.ID, order.StockItems()); err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("reserve failed")
		return domain.Order{}, err
	}

	if err := s.repo.Create(order); err != nil {
		if releaseErr := s.stock.Release(ctx, order.ID, order.StockItems()); releaseErr != nil {
			s.logger.WithError(releaseErr).WithField("order_id", order.ID).Error("failed to release reservation after create failure")
		}
		return domain.Order{}, fmt.Errorf("create order: %w", err)
	}

	s.record(ctx, order, domain.OrderEventCreated, "")
	return order, nil
}

// Complete переводит pending-заказ в completed и списывает резерв.
func (s *Service) Complete(ctx context.Context, id string) (domain.Order, error) {
	return s.transition(ctx, id, domain.OrderStatusCompleted, s.stock.ConfirmSale)
}

// Cancel переводит pending-заказ в cancelled и возвращает резерв.
func (s *Service) Cancel(ctx context.Context, id string) (domain.Order, error) {
	return s.transition(ctx, id, domain.OrderStatusCancelled, s.stock.Release)
}

type stockStep func(ctx context.Context, orderID string, items []domain.StockItem) error

func (s *Service) transition(ctx context.Context, id string, to domain.OrderStatus, step stockStep) (domain.Order, error) {
	order, err := s.live(id)
	if err != nil {
		return domain.Order{}, err
	}
	if err := domain.ValidateTransition(order.ID, order.Status, to); err != nil {
		return domain.Order{}, err
	}
	if err := step(ctx, order.ID, order.StockItems()); err != nil {
		return domain.Order{}, fmt.Errorf("%s order %s: %w", to, order.ID, err)
	}

	order.Status = to
	order.UpdatedAt = s.now()
	if err := s.repo.Save(order); err != nil {
		return domain.Order{}, fmt.Errorf("save order %s: %w", order.ID, err)
	}
	order.Version++

	eventType := domain.OrderEventCompleted
	if to == domain.OrderStatusCancelled {
		eventType = domain.OrderEventCancelled
	}
	s.record(ctx, order, eventType, "")
	return order, nil
}

// Delete мягко удаляет заказ в любом статусе; резерв pending-заказа возвращается.
func (s *Service) Delete(ctx context.Context, id string) error {
	order, err := s.live(id)
	if err != nil {
		return err
	}
	if order.Status == domain.OrderStatusPending {
		if err := s.release(ctx, order); err != nil {
			return err
		}
	}

	now := s.now()
	order.DeletedAt = &now
	order.UpdatedAt = now
	if err := s.repo.Save(order); err != nil {
		return fmt.Errorf("delete order %s: %w", order.ID, err)
	}
	s.record(ctx, order, domain.OrderEventDeleted, "")
	return nil
}

// Restore возвращает заказ из корзины. Для pending-заказа резерв берётся заново,
// поэтому при нехватке восстановление отклоняется.
func (s *Service) Restore(ctx context.Context, id string) (domain.Order, error) {
	order, err := s.trashed(id)
	if err != nil {
		return domain.Order{}, err
	}
	if order.Status == domain.OrderStatusPending {
		if err := s.stock.Reserve(ctx, order.ID, order.StockItems()); err != nil {
			return domain.Order{}, err
		}
	}

	order.DeletedAt = nil
	order.UpdatedAt = s.now()
	if err := s.repo.Save(order); err != nil {
		return domain.Order{}, fmt.Errorf("restore order %s: %w", order.ID, err)
	}
	order.Version++
	s.record(ctx, order, domain.OrderEventRestored, "")
	return order, nil
}

// ForceDelete безвозвратно удаляет заказ, находящийся в корзине.
func (s *Service) ForceDelete(ctx context.Context, id string) error {
	order, err := s.trashed(id)
	if err != nil {
		return err
	}
	if err := s.repo.Purge(order.ID); err != nil {
		return fmt.Errorf("purge order %s: %w", order.ID, err)
	}
	s.record(ctx, order, domain.OrderEventPurged, "")
	return nil
}

// List возвращает страницу живых заказов.
func (s *Service) List(_ context.Context, query domain.OrderQuery) (domain.OrderPage, error) {
	if query.Status != "" && !query.Status.Valid() {
		return domain.OrderPage{}, fmt.Errorf("%w: %w", domain.ErrValidation, domain.ErrOrderStatusInvalid)
	}
	if query.Type != "" && !query.Type.Valid() {
		return domain.OrderPage{}, fmt.Errorf("%w: %w", domain.ErrValidation, domain.ErrOrderTypeInvalid)
	}
	return s.repo.List(domain.OrderFilter{
		Status:  query.Status,
		Type:    query.Type,
		Page:    query.Page,
		PerPage: query.PerPage,
	})
}

// ListTrashed возвращает заказы из корзины.
func (s *Service) ListTrashed(context.Context) ([]domain.Order, error) {
	return s.repo.ListTrashed()
}

// TrashCount возвращает число заказов в корзине.
func (s *Service) TrashCount(ctx context.Context) (int, error) {
	trashed, err := s.ListTrashed(ctx)
	if err != nil {
		return 0, err
	}
	return len(trashed), nil
}

// Timeline возвращает историю событий заказа.
func (s *Service) Timeline(_ context.Context, id string) ([]domain.TimelineEvent, error) {
	if _, err := s.repo.Get(id); err != nil {
		return nil, err
	}
	if s.timeline == nil {
		return nil, nil
	}
	return s.timeline.List(id)
}

func (s *Service) live(id string) (domain.Order, error) {
	if id == "" {
		return domain.Order{}, domain.ErrOrderIDRequired
	}
	order, err := s.repo.Get(id)
	if err != nil {
		return domain.Order{}, err
	}
	if order.IsDeleted() {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order, nil
}

func (s *Service) trashed(id string) (domain.Order, error) {
	if id == "" {
		return domain.Order{}, domain.ErrOrderIDRequired
	}
	order, err := s.repo.Get(id)
	if err != nil {
		return domain.Order{}, err
	}
	if !order.IsDeleted() {
		return domain.Order{}, domain.ErrEntityNotTrashed
	}
	return order, nil
}

// release возвращает резерв pending-заказа. Отсутствующий резерв (например,
// после перезапуска с in-memory учётом) не мешает удалению.
func (s *Service) release(ctx context.Context, order domain.Order) error {
	err := s.stock.Release(ctx, order.ID, order.StockItems())
	if errors.Is(err, inventory.ErrReservationNotFound) {
		s.logger.WithField("order_id", order.ID).Warn("no reservation to release on delete")
		return nil
	}
	if err != nil {
		return fmt.Errorf("release order %s: %w", order.ID, err)
	}
	return nil
}

func (s *Service) record(ctx context.Context, order domain.Order, eventType, reason string) {
	occurred := s.now()
	if s.timeline != nil {
		if err := s.timeline.Append(domain.TimelineEvent{
			OrderID:  order.ID,
			Type:     eventType,
			Status:   order.Status,
			Reason:   reason,
			Occurred: occurred,
		}); err != nil {
			s.logger.WithError(err).WithField("order_id", order.ID).Warn("failed to append timeline event")
		}
	}

	s.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"event":    eventType,
		"status":   order.Status,
	}).Info("order event")

	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishOrderEvent(ctx, domain.OrderEvent{
		Type:        eventType,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      order.Status,
		TotalMinor:  order.TotalMinor,
		Occurred:    occurred,
	}); err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("failed to publish order event")
	}
}
