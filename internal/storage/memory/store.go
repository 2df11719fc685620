package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/orderapi/internal/domain"
)

// Store — in-memory EntityStore для локальной разработки и тестов.
// Все сущности живут под одним RWMutex; WithinTx держит блокировку на запись до конца fn,
// поэтому проверка остатка и списание выполняются строго последовательно.
type Store struct {
	mu       sync.RWMutex
	products map[int64]domain.Product
	orders   map[int64]domain.Order

	lastProductID int64
	lastOrderID   int64
	lastItemID    int64

	outbox *outboxRepositoryInMemory
	now    func() time.Time
}

// NewStore создаёт пустое хранилище.
func NewStore() *Store {
	return &Store{
		products: make(map[int64]domain.Product),
		orders:   make(map[int64]domain.Order),
		outbox:   NewOutboxRepository(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Products возвращает репозиторий товаров вне транзакции.
func (s *Store) Products() domain.ProductRepository {
	return &productRepositoryInMemory{store: s}
}

// Orders возвращает репозиторий заказов вне транзакции.
func (s *Store) Orders() domain.OrderRepository {
	return &orderRepositoryInMemory{store: s}
}

// Outbox возвращает общий outbox-репозиторий.
func (s *Store) Outbox() domain.OutboxRepository {
	return s.outbox
}

// OutboxRepository отдаёт конкретную реализацию outbox (нужна тестам и воркеру).
func (s *Store) OutboxRepository() *outboxRepositoryInMemory {
	return s.outbox
}

// WithinTx выполняет fn под эксклюзивной блокировкой. При ошибке или панике изменения
// откатываются по журналу, а накопленные outbox-сообщения отбрасываются.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, uow domain.UnitOfWork) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tx, err := s.runLocked(ctx, fn)
	if err != nil {
		return err
	}

	for _, msg := range tx.outbox {
		if _, err := s.outbox.Enqueue(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

// runLocked держит блокировку на запись до выхода из fn, в том числе по панике.
func (s *Store) runLocked(ctx context.Context, fn func(ctx context.Context, uow domain.UnitOfWork) error) (*txJournal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &txJournal{}
	applied := false
	defer func() {
		if !applied {
			tx.rollback()
		}
	}()

	if err := fn(ctx, &txUnitOfWork{store: s, tx: tx}); err != nil {
		return nil, err
	}
	applied = true
	return tx, nil
}

// Ping всегда успешен.
func (s *Store) Ping(context.Context) error { return nil }

// Close ничего не освобождает.
func (s *Store) Close() error { return nil }

// txJournal копит компенсирующие действия текущей транзакции.
type txJournal struct {
	undo   []func()
	outbox []domain.OutboxMessage
}

func (tx *txJournal) record(undo func()) {
	if tx == nil {
		return
	}
	tx.undo = append(tx.undo, undo)
}

func (tx *txJournal) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
	tx.outbox = nil
}

type txUnitOfWork struct {
	store *Store
	tx    *txJournal
}

func (u *txUnitOfWork) Products() domain.ProductRepository {
	return &productRepositoryInMemory{store: u.store, tx: u.tx}
}

func (u *txUnitOfWork) Orders() domain.OrderRepository {
	return &orderRepositoryInMemory{store: u.store, tx: u.tx}
}

func (u *txUnitOfWork) Outbox() domain.OutboxRepository {
	return &txOutbox{base: u.store.outbox, tx: u.tx}
}

// txOutbox откладывает Enqueue до фиксации транзакции.
type txOutbox struct {
	base *outboxRepositoryInMemory
	tx   *txJournal
}

func (o *txOutbox) Enqueue(_ context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	msg = prepareOutboxMessage(msg)
	o.tx.outbox = append(o.tx.outbox, msg)
	return msg, nil
}

func (o *txOutbox) PullPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	return o.base.PullPending(ctx, limit)
}

func (o *txOutbox) Stats(ctx context.Context) (domain.OutboxStats, error) {
	return o.base.Stats(ctx)
}

func (o *txOutbox) MarkSent(ctx context.Context, id string) error {
	return o.base.MarkSent(ctx, id)
}

func (o *txOutbox) MarkFailed(ctx context.Context, id string) error {
	return o.base.MarkFailed(ctx, id)
}

// lockFor возвращает функцию освобождения: внутри транзакции блокировка уже удерживается.
func (s *Store) lockFor(tx *txJournal, write bool) func() {
	switch {
	case tx != nil:
		return func() {}
	case write:
		s.mu.Lock()
		return s.mu.Unlock
	default:
		s.mu.RLock()
		return s.mu.RUnlock
	}
}

func sortedIDs[T any](items map[int64]T) []int64 {
	ids := make([]int64, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

var (
	_ domain.EntityStore = (*Store)(nil)
	_ domain.UnitOfWork  = (*txUnitOfWork)(nil)
)
