// Package redis хранит ключи идемпотентности в Redis: TTL записи совпадает с TTL ключа,
// поэтому просроченные записи исчезают без участия cleanup-воркера.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/orderapi/internal/domain"
)

const (
	defaultKeyPrefix = "orderapi:idempotency:"
	pingTimeout      = 5 * time.Second
)

// IdempotencyRepository — реализация domain.IdempotencyRepository поверх Redis.
type IdempotencyRepository struct {
	client *goredis.Client
	prefix string
	now    func() time.Time
}

// Option настраивает IdempotencyRepository.
type Option func(*IdempotencyRepository)

// WithKeyPrefix меняет префикс ключей (нужен, чтобы тесты не пересекались).
func WithKeyPrefix(prefix string) Option {
	return func(r *IdempotencyRepository) {
		r.prefix = prefix
	}
}

// Connect разбирает redis URL, открывает клиент и проверяет соединение.
func Connect(ctx context.Context, redisURL string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewIdempotencyRepository создаёт репозиторий поверх готового клиента.
func NewIdempotencyRepository(client *goredis.Client, opts ...Option) *IdempotencyRepository {
	r := &IdempotencyRepository{
		client: client,
		prefix: defaultKeyPrefix,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Ping проверяет доступность Redis (используется readiness-проверкой).
func (r *IdempotencyRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// CreateProcessing атомарно занимает ключ через SET NX.
func (r *IdempotencyRepository) CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (domain.IdempotencyRecord, error) {
	key, requestHash = strings.TrimSpace(key), strings.TrimSpace(requestHash)
	switch {
	case key == "":
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyRequired
	case requestHash == "":
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyRequestHashRequired
	}

	now := r.now()
	if ttlAt.IsZero() {
		ttlAt = now.Add(domain.DefaultIdempotencyTTL)
	}
	ttl := ttlAt.Sub(now)
	if ttl <= 0 {
		return domain.IdempotencyRecord{}, fmt.Errorf("idempotency ttl must be in the future")
	}

	record := domain.IdempotencyRecord{
		Key:         key,
		RequestHash: requestHash,
		Status:      domain.IdempotencyStatusProcessing,
		TTLAt:       ttlAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	data, err := json.Marshal(record)
	if err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("marshal idempotency record: %w", err)
	}

	created, err := r.client.SetNX(ctx, r.prefix+key, data, ttl).Result()
	if err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("create idempotency key: %w", err)
	}
	if created {
		return record, nil
	}

	existing, err := r.Get(ctx, key)
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}
	if existing.RequestHash != requestHash {
		return existing, domain.ErrIdempotencyHashMismatch
	}
	return existing, domain.ErrIdempotencyKeyAlreadyExists
}

func (r *IdempotencyRepository) Get(ctx context.Context, key string) (domain.IdempotencyRecord, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyRequired
	}

	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyNotFound
		}
		return domain.IdempotencyRecord{}, fmt.Errorf("get idempotency key: %w", err)
	}

	var record domain.IdempotencyRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("unmarshal idempotency record: %w", err)
	}
	return record, nil
}

func (r *IdempotencyRepository) MarkDone(ctx context.Context, key string, responseBody []byte, httpStatus int) error {
	return r.complete(ctx, key, domain.IdempotencyStatusDone, responseBody, httpStatus)
}

func (r *IdempotencyRepository) MarkFailed(ctx context.Context, key string, responseBody []byte, httpStatus int) error {
	return r.complete(ctx, key, domain.IdempotencyStatusFailed, responseBody, httpStatus)
}

// DeleteExpired ничего не делает: Redis сам удаляет ключи по TTL.
func (r *IdempotencyRepository) DeleteExpired(context.Context, time.Time, int) (int, error) {
	return 0, nil
}

// complete перезаписывает существующую запись, сохраняя её TTL (SET XX KEEPTTL).
func (r *IdempotencyRepository) complete(ctx context.Context, key string, status domain.IdempotencyStatus, responseBody []byte, httpStatus int) error {
	record, err := r.Get(ctx, key)
	if err != nil {
		return err
	}
	record.Status = status
	record.ResponseBody = append([]byte(nil), responseBody...)
	record.HTTPStatus = httpStatus
	record.UpdatedAt = r.now()

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal idempotency record: %w", err)
	}

	err = r.client.SetArgs(ctx, r.prefix+record.Key, data, goredis.SetArgs{Mode: "XX", KeepTTL: true}).Err()
	if errors.Is(err, goredis.Nil) {
		return domain.ErrIdempotencyKeyNotFound
	}
	if err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	return nil
}

var _ domain.IdempotencyRepository = (*IdempotencyRepository)(nil)
