package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
)

const (
	// StorageDriverMemory хранит данные эталонного сервиса в памяти процесса.
	StorageDriverMemory = "memory"
	// StorageDriverPostgres хранит данные в PostgreSQL.
	StorageDriverPostgres = "postgres"

	// IdempotencyBackendStorage кладёт ключи идемпотентности туда же, куда и заказы.
	IdempotencyBackendStorage = "storage"
	// IdempotencyBackendRedis кладёт ключи идемпотентности в Redis.
	IdempotencyBackendRedis = "redis"

	envPrefix = "STOREFRONT"
)

// Config описывает настройки эталонного сервиса витрины.
type Config struct {
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	StorageDriver       string        `envconfig:"STORAGE_DRIVER" default:"memory"`
	PostgresDSN         string        `envconfig:"POSTGRES_DSN"`
	PostgresAutoMigrate bool          `envconfig:"POSTGRES_AUTO_MIGRATE" default:"true"`
	PostgresMaxConns    int           `envconfig:"POSTGRES_MAX_CONNS" default:"25"`
	PostgresConnMaxLife time.Duration `envconfig:"POSTGRES_CONN_MAX_LIFETIME" default:"30m"`

	IdempotencyBackend          string        `envconfig:"IDEMPOTENCY_BACKEND" default:"storage"`
	RedisAddr                   string        `envconfig:"REDIS_ADDR"`
	IdempotencyCleanupInterval  time.Duration `envconfig:"IDEMPOTENCY_CLEANUP_INTERVAL" default:"10m"`
	IdempotencyCleanupBatchSize int           `envconfig:"IDEMPOTENCY_CLEANUP_BATCH_SIZE" default:"500"`

	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"storefront.order.events"`

	// YAML с категориями, товарами и остатками для старта.
	SeedFile string `envconfig:"SEED_FILE"`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"5s"`
}

// DefaultConfig возвращает конфигурацию для локального запуска без внешних зависимостей.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:                    ":8080",
		MetricsAddr:                 ":9090",
		LogLevel:                    "info",
		StorageDriver:               StorageDriverMemory,
		PostgresAutoMigrate:         true,
		PostgresMaxConns:            25,
		PostgresConnMaxLife:         30 * time.Minute,
		IdempotencyBackend:          IdempotencyBackendStorage,
		IdempotencyCleanupInterval:  10 * time.Minute,
		IdempotencyCleanupBatchSize: 500,
		KafkaTopic:                  kafka.TopicOrderEvents,
		ShutdownTimeout:             5 * time.Second,
	}
}

// LoadConfig читает переменные окружения STOREFRONT_* поверх значений по умолчанию.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.StorageDriver)) {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return fmt.Errorf("postgres storage driver requires %s_POSTGRES_DSN", envPrefix)
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", c.StorageDriver)
	}

	switch strings.ToLower(strings.TrimSpace(c.IdempotencyBackend)) {
	case "", IdempotencyBackendStorage:
	case IdempotencyBackendRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			return fmt.Errorf("redis idempotency backend requires %s_REDIS_ADDR", envPrefix)
		}
	default:
		return fmt.Errorf("unsupported idempotency backend %q", c.IdempotencyBackend)
	}

	if len(c.kafkaBrokers()) > 0 && strings.TrimSpace(c.KafkaTopic) == "" {
		return fmt.Errorf("kafka brokers are set but topic is empty")
	}
	return nil
}

func (c Config) kafkaBrokers() []string {
	brokers := make([]string, 0, len(c.KafkaBrokers))
	for _, broker := range c.KafkaBrokers {
		if broker = strings.TrimSpace(broker); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}
