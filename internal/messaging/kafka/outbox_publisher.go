package kafka

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/vladislavdragonenkov/orderapi/internal/domain"
)

// Envelope — формат сообщения в топике событий.
type Envelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurred_at"`
	PublishedAt   time.Time       `json:"published_at"`
}

// OutboxTopicPublisher публикует outbox-сообщения в заданный Kafka topic.
type OutboxTopicPublisher struct {
	producer *Producer
	topic    string
}

// NewOutboxPublisher создаёт Kafka-паблишер для transactional outbox.
func NewOutboxPublisher(producer *Producer, topic string) *OutboxTopicPublisher {
	if topic == "" {
		topic = TopicEvents
	}
	return &OutboxTopicPublisher{producer: producer, topic: topic}
}

// Publish отправляет событие с ключом aggregate_id.
func (p *OutboxTopicPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return errors.New("kafka outbox publisher is not initialized")
	}

	payload := json.RawMessage(event.Payload)
	if !json.Valid(payload) {
		return errors.New("outbox payload is not valid json")
	}

	envelope := Envelope{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       payload,
		OccurredAt:    event.CreatedAt.UTC(),
		PublishedAt:   p.producer.now().UTC(),
	}

	return p.producer.PublishEvent(p.topic, MessageKey(event.AggregateType, event.AggregateID, event.ID), envelope, map[string]string{
		HeaderEventType:     event.EventType,
		HeaderAggregateType: event.AggregateType,
		HeaderMessageID:     event.ID,
	})
}

// MessageKey возвращает ключ партиционирования: события одного агрегата попадают в одну партицию.
func MessageKey(aggregateType, aggregateID, messageID string) string {
	if aggregateID == "" {
		return messageID
	}
	return aggregateType + ":" + aggregateID
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)
