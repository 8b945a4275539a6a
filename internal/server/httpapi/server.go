package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/propagation"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

// OrderService описывает серверные операции над заказами.
type OrderService interface {
	CheckAvailability(ctx context.Context, items []domain.StockItem) (domain.Availability, error)
	Create(ctx context.Context, intent domain.OrderIntent) (domain.Order, error)
	Complete(ctx context.Context, id string) (domain.Order, error)
	Cancel(ctx context.Context, id string) (domain.Order, error)
	Delete(ctx context.Context, id string) error
	Restore(ctx context.Context, id string) (domain.Order, error)
	ForceDelete(ctx context.Context, id string) error
	List(ctx context.Context, query domain.OrderQuery) (domain.OrderPage, error)
	ListTrashed(ctx context.Context) ([]domain.Order, error)
	TrashCount(ctx context.Context) (int, error)
	Timeline(ctx context.Context, id string) ([]domain.TimelineEvent, error)
}

// CatalogService описывает серверные операции над каталогом и его корзиной.
type CatalogService interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	SoftDelete(ctx context.Context, kind domain.EntityKind, id string) error
	Restore(ctx context.Context, kind domain.EntityKind, id string) error
	ForceDelete(ctx context.Context, kind domain.EntityKind, id string) error
	ListTrashed(ctx context.Context, kind domain.EntityKind) ([]domain.RecyclableEntity, error)
	TrashCount(ctx context.Context, kind domain.EntityKind) (int, error)
}

// Server обслуживает REST API эталонного сервиса.
type Server struct {
	orders   OrderService
	catalog  CatalogService
	idemRepo domain.IdempotencyRepository
	logger   *log.Entry
	metrics  *metrics.HTTPMetrics
	now      func() time.Time
}

// Option настраивает Server.
type Option func(*Server)

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics включает метрики запросов.
func WithMetrics(m *metrics.HTTPMetrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithIdempotency включает дедупликацию POST /orders по Idempotency-Key.
func WithIdempotency(repo domain.IdempotencyRepository) Option {
	return func(s *Server) { s.idemRepo = repo }
}

// WithClock подменяет источник времени для поля timestamp и TTL ключей.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// NewServer конструирует сервер.
func NewServer(orders OrderService, catalog CatalogService, opts ...Option) *Server {
	s := &Server{
		orders:  orders,
		catalog: catalog,
		logger:  log.New().WithField("component", "http-api"),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler собирает маршруты.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Post("/inventory/check-availability", s.handle(s.checkAvailability))

	r.Route("/orders", func(r chi.Router) {
		r.Get("/", s.handle(s.listOrders))
		r.Post("/", s.handle(s.withIdempotency(s.createOrder)))
		r.Get("/trashed", s.handle(s.listTrashedOrders))
		r.Get("/recycle-bin/count", s.handle(s.countTrashedOrders))
		r.Patch("/{id}/complete", s.handle(s.completeOrder))
		r.Patch("/{id}/cancel", s.handle(s.cancelOrder))
		r.Delete("/{id}", s.handle(s.deleteOrder))
		r.Post("/{id}/restore", s.handle(s.restoreOrder))
		r.Delete("/{id}/force", s.handle(s.forceDeleteOrder))
		r.Get("/{id}/timeline", s.handle(s.orderTimeline))
	})

	r.Get("/products", s.handle(s.listProducts))
	for _, kind := range []domain.EntityKind{domain.EntityKindCategory, domain.EntityKindProduct} {
		r.Route("/"+kind.Collection(), func(r chi.Router) {
			r.Get("/recycle-bin", s.handle(s.listTrashed(kind)))
			r.Get("/recycle-bin/count", s.handle(s.countTrashed(kind)))
			r.Delete("/{id}", s.handle(s.softDelete(kind)))
			r.Post("/{id}/restore", s.handle(s.restore(kind)))
			r.Delete("/{id}/force", s.handle(s.forceDelete(kind)))
		})
	}

	return otelhttp.NewHandler(r, "storefront-api",
		otelhttp.WithPropagators(propagation.TraceContext{}),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "HTTP " + r.Method + " " + r.URL.Path
		}),
	)
}

// observe пишет метрики и access-лог по шаблону маршрута.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.ObserveRequest(r.Method, route, status, time.Since(start))
		s.logger.WithFields(log.Fields{
			"method":     r.Method,
			"route":      route,
			"status":     status,
			"request_id": middleware.GetReqID(r.Context()),
			"duration":   time.Since(start).String(),
		}).Debug("request handled")
	})
}
