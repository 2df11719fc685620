package domain

import "errors"

// Базовые виды ошибок. Каждая бизнес-ошибка ниже сопоставляется с одним из них через errors.Is.
var (
	// ErrNotFound — запрошенный заказ или товар отсутствует.
	ErrNotFound = errors.New("not found")
	// ErrInvalidOperation — нарушение бизнес-правила.
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrInvalidArgument — некорректные входные данные.
	ErrInvalidArgument = errors.New("invalid argument")
)

// kindError — ошибка с собственным сообщением, принадлежащая одному из базовых видов.
type kindError struct {
	msg  string
	kind error
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

func newKindError(kind error, msg string) error {
	return &kindError{msg: msg, kind: kind}
}

// NewInvalidArgument создаёт ошибку валидации с произвольным текстом.
func NewInvalidArgument(msg string) error {
	return newKindError(ErrInvalidArgument, msg)
}

var (
	// ErrOrderNotFound возвращается, если заказ не найден в хранилище.
	ErrOrderNotFound = newKindError(ErrNotFound, "order not found")
	// ErrProductNotFound возвращается, если товар не найден в хранилище.
	ErrProductNotFound = newKindError(ErrNotFound, "product not found")

	// ErrOrderAlreadyShipped — отправленный заказ неизменяем.
	ErrOrderAlreadyShipped = newKindError(ErrInvalidOperation, "order already shipped")
	// ErrOrderAlreadyPaid — в оплаченный заказ нельзя добавлять позиции.
	ErrOrderAlreadyPaid = newKindError(ErrInvalidOperation, "order already paid")
	// ErrProductAlreadyInOrder — в заказе уже есть строка с этим товаром.
	ErrProductAlreadyInOrder = newKindError(ErrInvalidOperation, "product already in order")
	// ErrInsufficientStock — остатка товара не хватает на запрошенное количество.
	ErrInsufficientStock = newKindError(ErrInvalidOperation, "insufficient stock")
	// ErrProductNameDuplicate — имя товара уже занято (без учёта регистра).
	ErrProductNameDuplicate = newKindError(ErrInvalidOperation, "product name already exists")
	// ErrProductInOrders — товар используется в позициях заказов и не может быть удалён.
	ErrProductInOrders = newKindError(ErrInvalidOperation, "product is referenced by orders")

	// ErrInvalidOrderState — неизвестное имя состояния заказа.
	ErrInvalidOrderState = newKindError(ErrInvalidArgument, "invalid order state")
	// ErrQuantityInvalid — количество в позиции вне диапазона 1..999.
	ErrQuantityInvalid = newKindError(ErrInvalidArgument, "quantity must be between 1 and 999")
	// ErrPageInvalid — номер или размер страницы вне допустимых границ.
	ErrPageInvalid = newKindError(ErrInvalidArgument, "invalid pagination parameters")
	// ErrIDInvalid — идентификатор не положительный.
	ErrIDInvalid = newKindError(ErrInvalidArgument, "id must be greater than zero")
)

var (
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
	// ErrOutboxMessageNotFound — сообщение outbox отсутствует.
	ErrOutboxMessageNotFound = errors.New("outbox message not found")

	// ErrIdempotencyKeyRequired — пустой ключ идемпотентности.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// ErrIdempotencyRequestHashRequired — запись создаётся без хэша запроса.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyKeyNotFound — ключа нет или срок его жизни истёк.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
	// ErrIdempotencyKeyAlreadyExists — ключ уже зарегистрирован с тем же телом запроса.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyHashMismatch — ключ переиспользован с другим телом запроса.
	ErrIdempotencyHashMismatch = errors.New("idempotency key reused with different request")
)

// IsNotFound проверяет, относится ли ошибка к виду ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidOperation проверяет, является ли ошибка нарушением бизнес-правила.
func IsInvalidOperation(err error) bool {
	return errors.Is(err, ErrInvalidOperation)
}

// IsInvalidArgument проверяет, является ли ошибка ошибкой входных данных.
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

// IsIdempotencyConflict проверяет конфликт по idempotency-key.
func IsIdempotencyConflict(err error) bool {
	return errors.Is(err, ErrIdempotencyKeyAlreadyExists) || errors.Is(err, ErrIdempotencyHashMismatch)
}
