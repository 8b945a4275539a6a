package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
	"github.com/vladislavdragonenkov/storefront/internal/storage/redisstore"
)

// runtimeDependencies собирает хранилища, выбранные конфигурацией.
type runtimeDependencies struct {
	orderRepo       domain.OrderRepository
	timelineRepo    domain.TimelineRepository
	catalogRepo     domain.CatalogRepository
	idempotencyRepo domain.IdempotencyRepository

	// последний выданный номер ORD-NNNNNN
	lastOrderNumber int64
	checks          map[string]healthcheck.PingFunc
	closers         []func() error
}

func (d *runtimeDependencies) close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	deps := &runtimeDependencies{checks: make(map[string]healthcheck.PingFunc)}

	switch strings.ToLower(strings.TrimSpace(cfg.StorageDriver)) {
	case StorageDriverMemory:
		deps.orderRepo = memory.NewOrderRepository()
		deps.timelineRepo = memory.NewTimelineRepository()
		deps.catalogRepo = memory.NewCatalogRepository()
		deps.idempotencyRepo = memory.NewIdempotencyRepository()
		logger.Info("using in-memory storage")
	case StorageDriverPostgres:
		if err := initPostgres(ctx, cfg, logger, deps); err != nil {
			_ = deps.close()
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}

	if strings.EqualFold(strings.TrimSpace(cfg.IdempotencyBackend), IdempotencyBackendRedis) {
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			_ = deps.close()
			return nil, fmt.Errorf("redis idempotency backend requires redis address")
		}
		client := redisstore.NewClient(cfg.RedisAddr)
		repo := redisstore.NewIdempotencyRepository(client)
		if err := repo.Ping(ctx); err != nil {
			_ = client.Close()
			_ = deps.close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		deps.idempotencyRepo = repo
		deps.checks["redis"] = repo.Ping
		deps.closers = append(deps.closers, client.Close)
		logger.WithField("addr", cfg.RedisAddr).Info("idempotency keys stored in redis")
	}

	return deps, nil
}

func initPostgres(ctx context.Context, cfg Config, logger *log.Entry, deps *runtimeDependencies) error {
	dsn := strings.TrimSpace(cfg.PostgresDSN)
	if dsn == "" {
		return fmt.Errorf("postgres storage driver requires dsn")
	}

	store, err := postgres.OpenWithPool(ctx, dsn, postgres.PoolConfig{
		MaxOpenConns:    cfg.PostgresMaxConns,
		MaxIdleConns:    cfg.PostgresMaxConns,
		ConnMaxLifetime: cfg.PostgresConnMaxLife,
	})
	if err != nil {
		return err
	}
	deps.closers = append(deps.closers, store.Close)

	if cfg.PostgresAutoMigrate {
		if err := store.MigrateUp(ctx, 0); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		version, applied, err := store.MigrationStatus(ctx)
		if err != nil {
			return err
		}
		logger.WithFields(log.Fields{"version": version, "applied": applied}).Info("postgres schema is up to date")
	}

	last, err := postgres.LastOrderNumber(ctx, store)
	if err != nil {
		return err
	}

	deps.orderRepo = postgres.NewOrderRepository(store)
	deps.timelineRepo = postgres.NewTimelineRepository(store)
	deps.catalogRepo = postgres.NewCatalogRepository(store)
	deps.idempotencyRepo = postgres.NewIdempotencyRepository(store)
	deps.lastOrderNumber = last
	deps.checks["postgres"] = store.Ping
	logger.WithField("last_order_number", last).Info("using postgres storage")
	return nil
}
