package domain

import "time"

// IdempotencyStatus описывает жизненный цикл ключа идемпотентности.
type IdempotencyStatus string

const (
	// IdempotencyStatusProcessing означает, что запрос принят и ещё обрабатывается.
	IdempotencyStatusProcessing IdempotencyStatus = "processing"
	// IdempotencyStatusDone означает, что запрос завершён успешно и ответ сохранён.
	IdempotencyStatusDone IdempotencyStatus = "done"
	// IdempotencyStatusFailed означает, что запрос завершился ответом 4xx/5xx.
	IdempotencyStatusFailed IdempotencyStatus = "failed"
)

// DefaultIdempotencyTTL — срок хранения ключа, если он не задан явно.
const DefaultIdempotencyTTL = 24 * time.Hour

// IdempotencyRecord хранит состояние обработки POST-запроса с заголовком Idempotency-Key.
type IdempotencyRecord struct {
	Key          string            `json:"key"`
	RequestHash  string            `json:"request_hash"`
	ResponseBody []byte            `json:"response_body,omitempty"`
	HTTPStatus   int               `json:"http_status,omitempty"`
	Status       IdempotencyStatus `json:"status"`
	TTLAt        time.Time         `json:"ttl_at"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s IdempotencyStatus) Valid() bool {
	switch s {
	case IdempotencyStatusProcessing, IdempotencyStatusDone, IdempotencyStatusFailed:
		return true
	default:
		return false
	}
}

// Completed сообщает, что ответ сохранён и его можно отдать повторно.
func (r IdempotencyRecord) Completed() bool {
	return r.Status == IdempotencyStatusDone || r.Status == IdempotencyStatusFailed
}

// Expired сообщает, истёк ли срок жизни записи к моменту now.
func (r IdempotencyRecord) Expired(now time.Time) bool {
	return !r.TTLAt.After(now)
}
