package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderapi/internal/domain"
)

const (
	defaultConnTimeout     = 5 * time.Second
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 5 * time.Minute

	opTimeout = 5 * time.Second
)

// Коды ошибок PostgreSQL, которые переводятся в доменные.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// querier — общее подмножество *sql.DB и *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store оборачивает SQL-подключение к PostgreSQL и реализует domain.EntityStore.
type Store struct {
	db     *sql.DB
	logger *log.Entry
}

// Open открывает подключение к PostgreSQL и проверяет доступность базы.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Store{db: db, logger: log.WithField("component", "postgres-store")}, nil
}

// DB возвращает raw SQL DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Products возвращает репозиторий товаров вне транзакции.
func (s *Store) Products() domain.ProductRepository {
	return &productRepository{q: s.db}
}

// Orders возвращает репозиторий заказов вне транзакции.
func (s *Store) Orders() domain.OrderRepository {
	return &orderRepository{q: s.db}
}

// Outbox возвращает outbox-репозиторий вне транзакции.
func (s *Store) Outbox() domain.OutboxRepository {
	return &outboxRepository{q: s.db}
}

// WithinTx выполняет fn в одной транзакции READ COMMITTED.
// Конкурирующие операции сериализуются блокировками строк (SELECT ... FOR UPDATE).
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, uow domain.UnitOfWork) error) (err error) {
	if s == nil || s.db == nil {
		return errors.New("postgres store is not initialized")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.WithError(rbErr).Warn("rollback failed")
		}
	}()

	if err = fn(ctx, &unitOfWork{q: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Ping проверяет доступность подключения.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("postgres store is not initialized")
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	return s.db.PingContext(pingCtx)
}

// EnsureSchema применяет все up-миграции.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.MigrateUp(ctx, 0)
}

// Close закрывает подключение к БД.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type unitOfWork struct {
	q querier
}

func (u *unitOfWork) Products() domain.ProductRepository { return &productRepository{q: u.q} }
func (u *unitOfWork) Orders() domain.OrderRepository     { return &orderRepository{q: u.q} }
func (u *unitOfWork) Outbox() domain.OutboxRepository    { return &outboxRepository{q: u.q} }

// pgError возвращает *pgconn.PgError с указанным кодом, если err его содержит.
func pgError(err error, code string) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == code {
		return pgErr, true
	}
	return nil, false
}

func rowsAffected(res sql.Result) (int64, error) {
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}

var (
	_ domain.EntityStore = (*Store)(nil)
	_ domain.UnitOfWork  = (*unitOfWork)(nil)
)
