package app

import (
	"context"
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestInitRuntimeDependencies_Memory(t *testing.T) {
	t.Parallel()

	deps, err := initRuntimeDependencies(context.Background(), Config{
		StorageDriver:      StorageDriverMemory,
		IdempotencyBackend: IdempotencyBackendMemory,
	}, log.WithField("test", "memory-storage"))
	if err != nil {
		t.Fatalf("initRuntimeDependencies(memory) failed: %v", err)
	}
	defer func() { _ = deps.Close() }()

	if deps.store == nil {
		t.Fatal("store should not be nil for memory storage")
	}
	if deps.idempotencyRepo == nil {
		t.Fatal("idempotencyRepo should not be nil for memory storage")
	}
	if !deps.idempotencyNeedsCleanup {
		t.Fatal("memory idempotency backend needs the cleanup worker")
	}
	if deps.idempotencyPing != nil {
		t.Fatal("memory idempotency backend has no external ping")
	}
	if err := deps.store.Ping(context.Background()); err != nil {
		t.Fatalf("memory store ping failed: %v", err)
	}
}

func TestInitRuntimeDependencies_PostgresRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := initRuntimeDependencies(context.Background(), Config{
		StorageDriver: StorageDriverPostgres,
	}, log.WithField("test", "postgres-missing-dsn"))
	if err == nil {
		t.Fatal("expected error when postgres driver is selected without DSN")
	}
}

func TestInitRuntimeDependencies_UnsupportedDriver(t *testing.T) {
	t.Parallel()

	_, err := initRuntimeDependencies(context.Background(), Config{
		StorageDriver: "sqlite",
	}, log.WithField("test", "unsupported-driver"))
	if err == nil {
		t.Fatal("expected error for unsupported storage driver")
	}
}

func TestInitRuntimeDependencies_UnsupportedIdempotencyBackend(t *testing.T) {
	t.Parallel()

	_, err := initRuntimeDependencies(context.Background(), Config{
		StorageDriver:      StorageDriverMemory,
		IdempotencyBackend: "etcd",
	}, log.WithField("test", "unsupported-backend"))
	if err == nil {
		t.Fatal("expected error for unsupported idempotency backend")
	}
}

func TestRuntimeDependencies_CloseRunsInReverseOrder(t *testing.T) {
	t.Parallel()

	var order []int
	deps := &runtimeDependencies{closers: []func() error{
		func() error { order = append(order, 1); return nil },
		func() error { order = append(order, 2); return nil },
	}}
	if err := deps.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if len(order) != 2 || order[0] != 2 || order[1] != 1 {
		t.Fatalf("unexpected close order: %v", order)
	}
}

func TestInitRuntimeDependencies_PostgresIdempotencyNeedsPostgresStorage(t *testing.T) {
	t.Parallel()

	_, err := initRuntimeDependencies(context.Background(), Config{
		StorageDriver:      StorageDriverMemory,
		IdempotencyBackend: IdempotencyBackendPostgres,
	}, log.WithField("test", "postgres-idempotency"))
	if err == nil {
		t.Fatal("expected error for postgres idempotency on memory storage")
	}
}
