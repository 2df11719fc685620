package kafka

// Topics для Kafka.
const (
	TopicEvents          = "orderapi.events"
	TopicDeadLetterQueue = "orderapi.events.dlq"
)

// Заголовки сообщений. Потребители фильтруют события по ним без разбора payload.
const (
	HeaderEventType     = "x-event-type"
	HeaderAggregateType = "x-aggregate-type"
	HeaderMessageID     = "x-message-id"
)
