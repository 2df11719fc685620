package orders

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderapi/internal/domain"
	"github.com/vladislavdragonenkov/orderapi/internal/metrics"
)

// Имена операций для метрик и логов.
const (
	opCreateOrder     = "create_order"
	opGetOrder        = "get_order"
	opListOrders      = "list_orders"
	opListOrdersPaged = "list_orders_paged"
	opAddItem         = "add_item"
	opSetOrderState   = "set_order_state"
	opDeleteOrder     = "delete_order"
	opCreateProduct   = "create_product"
	opUpdateProduct   = "update_product"
	opDeleteProduct   = "delete_product"
	opGetProduct      = "get_product"
	opListProducts    = "list_products"
	opListProductsPg  = "list_products_paged"
)

// Engine — движок правил заказов и остатков. Состояния не хранит: каждая операция
// читает сущности из EntityStore, а изменения нескольких сущностей выполняет в WithinTx.
type Engine struct {
	store          domain.EntityStore
	logger         *log.Entry
	metrics        *metrics.EngineMetrics
	lockPaidOrders bool
	now            func() time.Time
}

// Option настраивает Engine.
type Option func(*Engine)

// WithLogger задаёт logger движка.
func WithLogger(logger *log.Entry) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics задаёт метрики движка.
func WithMetrics(m *metrics.EngineMetrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithPaidOrderLock включает запрет добавления позиций в оплаченный заказ.
func WithPaidOrderLock(enabled bool) Option {
	return func(e *Engine) {
		e.lockPaidOrders = enabled
	}
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine создаёт движок поверх store. По умолчанию оплаченные заказы закрыты для новых позиций.
func NewEngine(store domain.EntityStore, options ...Option) *Engine {
	e := &Engine{
		store:          store,
		lockPaidOrders: true,
		now:            func() time.Time { return time.Now().UTC() },
	}
	for _, option := range options {
		option(e)
	}
	if e.logger == nil {
		e.logger = log.WithField("component", "orders-engine")
	}
	return e
}

// observe фиксирует результат операции в метриках; вызывается через defer с указателем на err.
func (e *Engine) observe(operation string, started time.Time, err *error) {
	var opErr error
	if err != nil {
		opErr = *err
	}

	result := resultOf(opErr)
	e.metrics.ObserveOperation(operation, result, time.Since(started))
	if result == metrics.ResultRejected {
		e.metrics.RecordRuleViolation(violationReason(opErr))
	}

	entry := e.logger.WithField("operation", operation)
	switch result {
	case metrics.ResultError:
		entry.WithError(opErr).Error("operation failed")
	case metrics.ResultRejected, metrics.ResultNotFound:
		entry.WithError(opErr).Debug("operation rejected")
	}
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return metrics.ResultOK
	case domain.IsNotFound(err):
		return metrics.ResultNotFound
	case domain.IsInvalidOperation(err), domain.IsInvalidArgument(err):
		return metrics.ResultRejected
	default:
		return metrics.ResultError
	}
}

var violationReasons = []struct {
	err    error
	reason string
}{
	{domain.ErrOrderAlreadyShipped, "order_shipped"},
	{domain.ErrOrderAlreadyPaid, "order_paid"},
	{domain.ErrProductAlreadyInOrder, "duplicate_line"},
	{domain.ErrInsufficientStock, "insufficient_stock"},
	{domain.ErrProductNameDuplicate, "duplicate_name"},
	{domain.ErrProductInOrders, "product_in_orders"},
}

func violationReason(err error) string {
	for _, v := range violationReasons {
		if errors.Is(err, v.err) {
			return v.reason
		}
	}
	return "invalid_argument"
}

// enqueue кладёт событие в outbox текущей транзакции.
func enqueue(ctx context.Context, uow domain.UnitOfWork, event interface {
	OutboxMessage() (domain.OutboxMessage, error)
}) error {
	msg, err := event.OutboxMessage()
	if err != nil {
		return err
	}
	if _, err := uow.Outbox().Enqueue(ctx, msg); err != nil {
		return err
	}
	return nil
}

func validateID(id int64) error {
	if id <= 0 {
		return domain.ErrIDInvalid
	}
	return nil
}
