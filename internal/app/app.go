// Package app собирает эталонный сервис витрины: хранилища, склад, HTTP API, метрики и фоновые воркеры.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/server/httpapi"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/idempotency"
	"github.com/vladislavdragonenkov/storefront/internal/service/inventory"
	"github.com/vladislavdragonenkov/storefront/internal/service/orders"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

// Run запускает сервис и блокируется до отмены ctx или ошибки HTTP-сервера.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")
	if err := cfg.Validate(); err != nil {
		return err
	}

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.close(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	ledger := inventory.NewLedger(logger.WithField("component", "inventory"))
	catalogSvc := catalog.NewService(deps.catalogRepo, ledger, logger.WithField("component", "catalog"))
	if err := applySeed(ctx, cfg.SeedFile, deps, catalogSvc, ledger, logger); err != nil {
		return err
	}

	producer := initKafkaProducer(cfg, logger)
	defer closeKafkaProducer(producer, logger)

	orderOpts := []orders.Option{
		orders.WithLogger(logger.WithField("component", "orders")),
		orders.WithOrderNumberStart(deps.lastOrderNumber),
	}
	if producer != nil {
		orderOpts = append(orderOpts, orders.WithPublisher(producer))
	}
	orderSvc := orders.NewService(deps.orderRepo, deps.timelineRepo, ledger, orderOpts...)

	api := httpapi.NewServer(orderSvc, catalogSvc,
		httpapi.WithLogger(logger.WithField("component", "httpapi")),
		httpapi.WithMetrics(metrics.NewHTTPMetrics()),
		httpapi.WithIdempotency(deps.idempotencyRepo),
	)

	v, _, _ := version.Info()
	healthHandler := healthcheck.NewHandler(v)
	for name, ping := range deps.checks {
		healthHandler.Register(name, ping)
	}
	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)
	defer shutdownHTTP(metricsSrv, cfg.ShutdownTimeout, logger)

	stopCleanup := startCleanupWorker(cfg, deps, logger)
	defer stopCleanup()

	lis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.HTTPAddr, err)
	}
	httpSrv := &http.Server{
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", lis.Addr().String()).Info("storefront api is listening")
		errCh <- httpSrv.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping http server")
		shutdownHTTP(httpSrv, cfg.ShutdownTimeout, logger)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// applySeed наполняет пустой каталог и при каждом старте выставляет остатки склада.
func applySeed(ctx context.Context, path string, deps *runtimeDependencies, catalogSvc *catalog.Service, ledger *inventory.Ledger, logger *log.Entry) error {
	if path == "" {
		return nil
	}
	seed, err := LoadSeed(path)
	if err != nil {
		return err
	}

	empty, err := catalogIsEmpty(deps)
	if err != nil {
		return err
	}
	if empty {
		if err := seed.ApplyCatalog(ctx, catalogSvc); err != nil {
			return err
		}
	}
	if err := seed.ApplyStock(ledger); err != nil {
		return err
	}

	logger.WithFields(log.Fields{
		"file":           path,
		"catalog_seeded": empty,
		"products":       len(seed.Products),
	}).Info("seed applied")
	return nil
}

func catalogIsEmpty(deps *runtimeDependencies) (bool, error) {
	for _, trashed := range []bool{false, true} {
		categories, err := deps.catalogRepo.ListCategories(trashed)
		if err != nil {
			return false, err
		}
		if len(categories) > 0 {
			return false, nil
		}
	}
	return true, nil
}

// initKafkaProducer создаёт producer, если заданы брокеры. Недоступная Kafka не мешает старту.
func initKafkaProducer(cfg Config, logger *log.Entry) *kafka.Producer {
	brokers := cfg.kafkaBrokers()
	if len(brokers) == 0 {
		return nil
	}

	producer, err := kafka.NewProducer(brokers, cfg.KafkaTopic, logger.WithField("component", "kafka-producer"))
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without events")
		return nil
	}
	logger.WithFields(log.Fields{"brokers": brokers, "topic": cfg.KafkaTopic}).Info("kafka producer initialized")
	return producer
}

func closeKafkaProducer(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
		return
	}
	logger.Info("kafka producer closed")
}

// startCleanupWorker запускает очистку ключей идемпотентности; возвращённая функция дожидается остановки.
func startCleanupWorker(cfg Config, deps *runtimeDependencies, logger *log.Entry) func() {
	worker := idempotency.NewCleanupWorker(deps.idempotencyRepo,
		idempotency.WithLogger(logger.WithField("component", "idempotency-cleanup")),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
		idempotency.WithMetrics(metrics.NewCleanupMetrics()),
	)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	return func() {
		cancel()
		wg.Wait()
	}
}

// startMetricsServer запускает /metrics и health-эндпоинты.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	healthHandler.Mount(mux)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.WithField("addr", addr).Info("metrics and health endpoints are listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, 5*time.Second, logger)
	}()

	return srv
}

// shutdownHTTP останавливает HTTP-сервер, дожидаясь активных запросов не дольше timeout.
func shutdownHTTP(srv *http.Server, timeout time.Duration, logger *log.Entry) {
	if srv == nil {
		return
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
