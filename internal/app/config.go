package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "ORDERAPI"

const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"

	IdempotencyBackendMemory = "memory"
	IdempotencyBackendRedis  = "redis"

	// IdempotencyBackendPostgres хранит ключи в той же базе, что и заказы.
	IdempotencyBackendPostgres = "postgres"
)

// Config описывает настройки запуска. Значения читаются из переменных окружения ORDERAPI_*.
type Config struct {
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`
	GRPCAddr    string `envconfig:"GRPC_ADDR" default:":50051"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	StorageDriver string `envconfig:"STORAGE_DRIVER" default:"memory"`
	PostgresDSN   string `envconfig:"POSTGRES_DSN"`
	AutoMigrate   bool   `envconfig:"AUTO_MIGRATE" default:"true"`

	KafkaBrokers  []string `envconfig:"KAFKA_BROKERS"`
	KafkaClientID string   `envconfig:"KAFKA_CLIENT_ID" default:"orderapi"`
	KafkaTopic    string   `envconfig:"KAFKA_TOPIC" default:"orderapi.events"`
	KafkaDLQTopic string   `envconfig:"KAFKA_DLQ_TOPIC" default:"orderapi.events.dlq"`

	OutboxPollInterval   time.Duration `envconfig:"OUTBOX_POLL_INTERVAL" default:"1s"`
	OutboxBatchSize      int           `envconfig:"OUTBOX_BATCH_SIZE" default:"100"`
	OutboxMaxAttempts    int           `envconfig:"OUTBOX_MAX_ATTEMPTS" default:"3"`
	OutboxRetryBaseDelay time.Duration `envconfig:"OUTBOX_RETRY_BASE_DELAY" default:"50ms"`

	// OutboxBacklogLimit — возраст самого старого события, после которого /healthz отвечает degraded.
	OutboxBacklogLimit time.Duration `envconfig:"OUTBOX_BACKLOG_LIMIT" default:"5m"`

	IdempotencyBackend          string        `envconfig:"IDEMPOTENCY_BACKEND" default:"memory"`
	RedisURL                    string        `envconfig:"REDIS_URL"`
	IdempotencyTTL              time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`
	IdempotencyCleanupInterval  time.Duration `envconfig:"IDEMPOTENCY_CLEANUP_INTERVAL" default:"1m"`
	IdempotencyCleanupBatchSize int           `envconfig:"IDEMPOTENCY_CLEANUP_BATCH_SIZE" default:"500"`

	AuthEnabled   bool          `envconfig:"AUTH_ENABLED" default:"true"`
	JWTSecret     string        `envconfig:"JWT_SECRET"`
	JWTIssuer     string        `envconfig:"JWT_ISSUER" default:"orderapi"`
	JWTAudience   string        `envconfig:"JWT_AUDIENCE" default:"orderapi-clients"`
	JWTExpiration time.Duration `envconfig:"JWT_EXPIRATION" default:"24h"`
	AuthUsername  string        `envconfig:"AUTH_USERNAME" default:"admin"`
	AuthPassword  string        `envconfig:"AUTH_PASSWORD" default:"admin123"`

	// CORSAllowedOrigins — источники браузерных клиентов; "*" разрешает любой, пустой список выключает CORS.
	CORSAllowedOrigins   []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	CORSAllowCredentials bool          `envconfig:"CORS_ALLOW_CREDENTIALS" default:"true"`
	CORSMaxAge           time.Duration `envconfig:"CORS_MAX_AGE" default:"10m"`

	// LockPaidOrders запрещает добавлять позиции в оплаченный заказ.
	LockPaidOrders bool          `envconfig:"LOCK_PAID_ORDERS" default:"true"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"15s"`
	ShutdownBudget time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"5s"`
}

// DefaultConfig возвращает настройки по умолчанию: память, без Kafka и без авторизации.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:                    ":8080",
		GRPCAddr:                    ":50051",
		MetricsAddr:                 ":9090",
		StorageDriver:               StorageDriverMemory,
		AutoMigrate:                 true,
		KafkaClientID:               "orderapi",
		KafkaTopic:                  "orderapi.events",
		KafkaDLQTopic:               "orderapi.events.dlq",
		OutboxPollInterval:          time.Second,
		OutboxBatchSize:             100,
		OutboxMaxAttempts:           3,
		OutboxRetryBaseDelay:        50 * time.Millisecond,
		OutboxBacklogLimit:          5 * time.Minute,
		IdempotencyBackend:          IdempotencyBackendMemory,
		IdempotencyTTL:              24 * time.Hour,
		IdempotencyCleanupInterval:  time.Minute,
		IdempotencyCleanupBatchSize: 500,
		JWTIssuer:                   "orderapi",
		JWTAudience:                 "orderapi-clients",
		JWTExpiration:               24 * time.Hour,
		AuthUsername:                "admin",
		AuthPassword:                "admin123",
		CORSAllowedOrigins:          []string{"*"},
		CORSAllowCredentials:        true,
		CORSMaxAge:                  10 * time.Minute,
		LockPaidOrders:              true,
		RequestTimeout:              15 * time.Second,
		ShutdownBudget:              5 * time.Second,
	}
}

// LoadConfig читает конфигурацию из окружения и проверяет её.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	cfg.KafkaBrokers = cleanList(cfg.KafkaBrokers)
	cfg.CORSAllowedOrigins = cleanList(cfg.CORSAllowedOrigins)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	var errs []error

	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, errors.New("postgres storage requires ORDERAPI_POSTGRES_DSN"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q", c.StorageDriver))
	}

	switch c.IdempotencyBackend {
	case IdempotencyBackendMemory:
	case IdempotencyBackendRedis:
		if strings.TrimSpace(c.RedisURL) == "" {
			errs = append(errs, errors.New("redis idempotency backend requires ORDERAPI_REDIS_URL"))
		}
	case IdempotencyBackendPostgres:
		if c.StorageDriver != StorageDriverPostgres {
			errs = append(errs, errors.New("postgres idempotency backend requires the postgres storage driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported idempotency backend %q", c.IdempotencyBackend))
	}

	if c.AuthEnabled && strings.TrimSpace(c.JWTSecret) == "" {
		errs = append(errs, errors.New("auth is enabled but ORDERAPI_JWT_SECRET is empty"))
	}
	if c.CORSMaxAge < 0 {
		errs = append(errs, errors.New("cors max age must not be negative"))
	}
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("http address is required"))
	}
	return errors.Join(errs...)
}

// KafkaEnabled сообщает, настроены ли брокеры.
func (c Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
