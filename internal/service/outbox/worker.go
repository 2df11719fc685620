// Package outbox переносит события из transactional outbox в брокер.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderapi/internal/domain"
	"github.com/vladislavdragonenkov/orderapi/internal/metrics"
)

const (
	defaultPollInterval   = 1 * time.Second
	defaultBatchSize      = 100
	defaultMaxAttempts    = 3
	defaultRetryBaseDelay = 50 * time.Millisecond
	maxRetryDelay         = 30 * time.Second
)

// Результаты попыток публикации (метка result).
const (
	resultSent       = "sent"
	resultRetryError = "retry_error"
	resultFailed     = "failed"
	resultDLQ        = "dlq"
	resultDLQFailed  = "dlq_failed"
)

// Config задаёт параметры Worker.
type Config struct {
	PollInterval   time.Duration
	BatchSize      int
	MaxAttempts    int
	RetryBaseDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.RetryBaseDelay < 0 {
		c.RetryBaseDelay = 0
	}
	return c
}

// Option настраивает Worker.
type Option func(*Worker)

// WithLogger задаёт logger для воркера.
func WithLogger(logger *log.Entry) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

// WithDLQPublisher задаёт publisher для отправки в DLQ после исчерпания retry.
func WithDLQPublisher(publisher domain.OutboxPublisher) Option {
	return func(w *Worker) {
		w.dlqPublisher = publisher
	}
}

// WithMetrics задаёт метрики воркера.
func WithMetrics(m *metrics.OutboxMetrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

// Worker публикует pending-сообщения из outbox в брокер.
// Сообщение помечается sent только после подтверждения брокера, поэтому доставка at-least-once.
type Worker struct {
	repo         domain.OutboxRepository
	publisher    domain.OutboxPublisher
	dlqPublisher domain.OutboxPublisher
	logger       *log.Entry
	metrics      *metrics.OutboxMetrics
	cfg          Config
	now          func() time.Time
}

// NewWorker создаёт outbox worker.
func NewWorker(repo domain.OutboxRepository, publisher domain.OutboxPublisher, cfg Config, options ...Option) *Worker {
	w := &Worker{
		repo:      repo,
		publisher: publisher,
		cfg:       cfg.withDefaults(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, option := range options {
		option(w)
	}
	if w.logger == nil {
		w.logger = log.WithField("component", "outbox-worker")
	}
	return w
}

// Run опрашивает outbox до отмены ctx.
func (w *Worker) Run(ctx context.Context) {
	if w.repo == nil || w.publisher == nil {
		w.logger.Warn("outbox worker is disabled: repo or publisher is nil")
		return
	}

	w.logger.WithFields(log.Fields{
		"poll_interval": w.cfg.PollInterval.String(),
		"batch_size":    w.cfg.BatchSize,
		"max_attempts":  w.cfg.MaxAttempts,
	}).Info("outbox worker started")
	defer w.logger.Info("outbox worker stopped")

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	w.ProcessOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.ProcessOnce(ctx)
		}
	}
}

// WatchBacklog только обновляет метрики очереди до отмены ctx. Используется, когда брокер не настроен
// и события копятся в outbox.
func (w *Worker) WatchBacklog(ctx context.Context) {
	if w.repo == nil {
		return
	}

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	w.refreshBacklog(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.refreshBacklog(ctx)
		}
	}
}

// ProcessOnce выполняет один цикл и возвращает число обработанных сообщений.
func (w *Worker) ProcessOnce(ctx context.Context) int {
	if ctx.Err() != nil {
		return 0
	}

	events, err := w.repo.PullPending(ctx, w.cfg.BatchSize)
	if err != nil {
		w.logger.WithError(err).Warn("failed to pull pending outbox messages")
		return 0
	}

	processed := 0
	for _, event := range events {
		if ctx.Err() != nil {
			break
		}
		w.handle(ctx, event)
		processed++
	}

	w.refreshBacklog(ctx)
	return processed
}

func (w *Worker) handle(ctx context.Context, event domain.OutboxMessage) {
	entry := w.logger.WithFields(log.Fields{
		"outbox_id":  event.ID,
		"event_type": event.EventType,
	})

	err := w.publishWithRetry(ctx, event)
	if err == nil {
		if markErr := w.repo.MarkSent(ctx, event.ID); markErr != nil {
			entry.WithError(markErr).Warn("failed to mark outbox as sent")
		}
		return
	}
	if ctx.Err() != nil {
		// Сообщение остаётся pending и будет отправлено после рестарта.
		return
	}

	entry.WithError(err).Error("outbox publish failed after retries")
	w.metrics.RecordAttempt(resultFailed)

	if dlqErr := w.publishToDLQ(event, err); dlqErr != nil {
		entry.WithError(dlqErr).Warn("failed to publish to DLQ")
		w.metrics.RecordAttempt(resultDLQFailed)
	}
	if markErr := w.repo.MarkFailed(ctx, event.ID); markErr != nil {
		entry.WithError(markErr).Warn("failed to mark outbox as failed")
	}
}

func (w *Worker) publishWithRetry(ctx context.Context, event domain.OutboxMessage) error {
	var lastErr error
	for attempt := 1; attempt <= w.cfg.MaxAttempts; attempt++ {
		err := w.publisher.Publish(event)
		if err == nil {
			w.metrics.RecordAttempt(resultSent)
			return nil
		}
		lastErr = err
		w.metrics.RecordAttempt(resultRetryError)

		if attempt == w.cfg.MaxAttempts {
			break
		}
		delay := retryBackoff(w.cfg.RetryBaseDelay, attempt)
		if delay <= 0 {
			continue
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("publish failed after %d attempts: %w", w.cfg.MaxAttempts, lastErr)
}

func (w *Worker) refreshBacklog(ctx context.Context) {
	if w.metrics == nil {
		return
	}
	stats, err := w.repo.Stats(ctx)
	if err != nil {
		w.logger.WithError(err).Warn("failed to collect outbox backlog stats")
		return
	}

	var age time.Duration
	if stats.PendingCount > 0 && !stats.OldestPendingAt.IsZero() {
		age = w.now().Sub(stats.OldestPendingAt)
	}
	w.metrics.SetBacklog(stats.PendingCount, age)
}

// retryBackoff удваивает base на каждую попытку, не превышая maxRetryDelay.
func retryBackoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	delay := base
	for i := 1; i < attempt; i++ {
		if delay >= maxRetryDelay/2 {
			return maxRetryDelay
		}
		delay *= 2
	}
	return min(delay, maxRetryDelay)
}

// dlqPayload — полезная нагрузка сообщения в DLQ.
type dlqPayload struct {
	OutboxID      string          `json:"outbox_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishError  string          `json:"publish_error"`
	FailedAt      time.Time       `json:"failed_at"`
}

func (w *Worker) publishToDLQ(event domain.OutboxMessage, publishErr error) error {
	if w.dlqPublisher == nil {
		return nil
	}

	payload, err := json.Marshal(dlqPayload{
		OutboxID:      event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       json.RawMessage(event.Payload),
		PublishError:  publishErr.Error(),
		FailedAt:      w.now(),
	})
	if err != nil {
		return fmt.Errorf("marshal dlq payload: %w", err)
	}

	dlqEvent := event
	dlqEvent.Payload = payload
	if err := w.dlqPublisher.Publish(dlqEvent); err != nil {
		return fmt.Errorf("publish to dlq: %w", err)
	}
	w.metrics.RecordAttempt(resultDLQ)
	return nil
}
