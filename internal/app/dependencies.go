package app

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderapi/internal/domain"
	"github.com/vladislavdragonenkov/orderapi/internal/storage/memory"
	"github.com/vladislavdragonenkov/orderapi/internal/storage/postgres"
	redisstore "github.com/vladislavdragonenkov/orderapi/internal/storage/redis"
)

// runtimeDependencies — хранилища, выбранные конфигурацией.
type runtimeDependencies struct {
	store           domain.EntityStore
	idempotencyRepo domain.IdempotencyRepository
	// idempotencyPing проверяет внешний backend идемпотентности; nil для памяти.
	idempotencyPing func(ctx context.Context) error
	// idempotencyNeedsCleanup — false для Redis, где ключи истекают сами.
	idempotencyNeedsCleanup bool
	closers                 []func() error
}

func (d *runtimeDependencies) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// initRuntimeDependencies открывает хранилище сущностей и backend идемпотентности.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	deps := &runtimeDependencies{}
	var pgStore *postgres.Store

	switch cfg.StorageDriver {
	case StorageDriverMemory, "":
		deps.store = memory.NewStore()
		logger.Info("using in-memory storage")
	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, errors.New("postgres storage requires a DSN")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		deps.closers = append(deps.closers, store.Close)
		if cfg.AutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = deps.Close()
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
		}
		deps.store, pgStore = store, store
		logger.Info("using postgres storage")
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}

	switch cfg.IdempotencyBackend {
	case IdempotencyBackendMemory, "":
		deps.idempotencyRepo = memory.NewIdempotencyRepository()
		deps.idempotencyNeedsCleanup = true
	case IdempotencyBackendRedis:
		client, err := redisstore.Connect(ctx, cfg.RedisURL)
		if err != nil {
			_ = deps.Close()
			return nil, err
		}
		deps.closers = append(deps.closers, client.Close)
		repo := redisstore.NewIdempotencyRepository(client)
		deps.idempotencyRepo = repo
		deps.idempotencyPing = repo.Ping
		logger.Info("using redis idempotency backend")
	case IdempotencyBackendPostgres:
		if pgStore == nil {
			_ = deps.Close()
			return nil, errors.New("postgres idempotency backend requires the postgres storage driver")
		}
		deps.idempotencyRepo = postgres.NewIdempotencyRepository(pgStore)
		deps.idempotencyNeedsCleanup = true
		logger.Info("using postgres idempotency backend")
	default:
		_ = deps.Close()
		return nil, fmt.Errorf("unsupported idempotency backend %q", cfg.IdempotencyBackend)
	}

	return deps, nil
}
