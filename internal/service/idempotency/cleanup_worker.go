// Package idempotency обслуживает ключи идемпотентности POST-запросов.
package idempotency

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderapi/internal/domain"
	"github.com/vladislavdragonenkov/orderapi/internal/metrics"
)

const (
	defaultCleanupInterval  = 10 * time.Minute
	defaultCleanupBatchSize = 500
)

// CleanupOption настраивает CleanupWorker.
type CleanupOption func(*CleanupWorker)

// WithLogger задает logger для воркера.
func WithLogger(logger *log.Entry) CleanupOption {
	return func(w *CleanupWorker) {
		w.logger = logger
	}
}

// WithInterval задает интервал между циклами очистки.
func WithInterval(interval time.Duration) CleanupOption {
	return func(w *CleanupWorker) {
		if interval > 0 {
			w.interval = interval
		}
	}
}

// WithBatchSize задает размер одной порции удаления.
func WithBatchSize(batchSize int) CleanupOption {
	return func(w *CleanupWorker) {
		if batchSize > 0 {
			w.batchSize = batchSize
		}
	}
}

// WithMetrics задает метрики воркера.
func WithMetrics(m *metrics.CleanupMetrics) CleanupOption {
	return func(w *CleanupWorker) {
		w.metrics = m
	}
}

// CleanupWorker периодически удаляет просроченные ключи идемпотентности.
// Для Redis удаление выполняет сам Redis, и воркер не запускается.
type CleanupWorker struct {
	repo      domain.IdempotencyRepository
	logger    *log.Entry
	metrics   *metrics.CleanupMetrics
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

// NewCleanupWorker создает воркер очистки.
func NewCleanupWorker(repo domain.IdempotencyRepository, options ...CleanupOption) *CleanupWorker {
	w := &CleanupWorker{
		repo:      repo,
		interval:  defaultCleanupInterval,
		batchSize: defaultCleanupBatchSize,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, option := range options {
		option(w)
	}
	if w.logger == nil {
		w.logger = log.WithField("component", "idempotency-cleanup-worker")
	}
	return w
}

// Run запускает периодическую очистку до отмены ctx.
func (w *CleanupWorker) Run(ctx context.Context) {
	if w.repo == nil {
		w.logger.Warn("idempotency cleanup worker is disabled: repo is nil")
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.cleanup(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.cleanup(ctx)
		}
	}
}

func (w *CleanupWorker) cleanup(ctx context.Context) {
	deleted, err := w.DeleteExpired(ctx, w.now())
	if errors.Is(err, context.Canceled) {
		return
	}
	w.metrics.ObserveRun(deleted, err)
	if err != nil {
		w.logger.WithError(err).Warn("idempotency cleanup run failed")
		return
	}
	if deleted > 0 {
		w.logger.WithField("deleted", deleted).Info("idempotency cleanup completed")
	}
}

// DeleteExpired удаляет все записи с ttl <= before порциями batchSize.
func (w *CleanupWorker) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	if before.IsZero() {
		before = w.now()
	}

	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		deleted, err := w.repo.DeleteExpired(ctx, before, w.batchSize)
		if err != nil {
			return total, err
		}
		total += deleted
		if deleted < w.batchSize {
			return total, nil
		}
	}
}
