package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// EventType определяет тип доменного события.
type EventType string

const (
	EventTypeOrderCreated      EventType = "order.created"
	EventTypeOrderItemAdded    EventType = "order.item_added"
	EventTypeOrderStateChanged EventType = "order.state_changed"
	EventTypeOrderDeleted      EventType = "order.deleted"

	EventTypeProductCreated EventType = "product.created"
	EventTypeProductUpdated EventType = "product.updated"
	EventTypeProductDeleted EventType = "product.deleted"
)

const (
	AggregateOrder   = "order"
	AggregateProduct = "product"
)

// OrderEventItem — позиция заказа в полезной нагрузке события.
type OrderEventItem struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// OrderEvent — полезная нагрузка событий заказа.
type OrderEvent struct {
	EventType     EventType        `json:"event_type"`
	OrderID       int64            `json:"order_id"`
	State         OrderState       `json:"state"`
	PreviousState OrderState       `json:"previous_state,omitempty"`
	Total         decimal.Decimal  `json:"total"`
	Items         []OrderEventItem `json:"items,omitempty"`
	Timestamp     time.Time        `json:"timestamp"`
}

// ProductEvent — полезная нагрузка событий товара.
type ProductEvent struct {
	EventType     EventType       `json:"event_type"`
	ProductID     int64           `json:"product_id"`
	Name          string          `json:"name,omitempty"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	Timestamp     time.Time       `json:"timestamp"`
}

// NewOrderEvent формирует событие заказа; items попадают в payload целиком.
func NewOrderEvent(eventType EventType, order Order, previous OrderState, now time.Time) OrderEvent {
	items := make([]OrderEventItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderEventItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Subtotal:  item.Subtotal,
		})
	}
	return OrderEvent{
		EventType:     eventType,
		OrderID:       order.ID,
		State:         order.State,
		PreviousState: previous,
		Total:         order.Total(),
		Items:         items,
		Timestamp:     now.UTC(),
	}
}

// NewProductEvent формирует событие товара.
func NewProductEvent(eventType EventType, product Product, now time.Time) ProductEvent {
	return ProductEvent{
		EventType:     eventType,
		ProductID:     product.ID,
		Name:          product.Name,
		Price:         product.Price,
		StockQuantity: product.StockQuantity,
		Timestamp:     now.UTC(),
	}
}

// OutboxMessage упаковывает событие заказа в сообщение outbox.
func (e OrderEvent) OutboxMessage() (OutboxMessage, error) {
	return newOutboxMessage(AggregateOrder, e.OrderID, e.EventType, e, e.Timestamp)
}

// OutboxMessage упаковывает событие товара в сообщение outbox.
func (e ProductEvent) OutboxMessage() (OutboxMessage, error) {
	return newOutboxMessage(AggregateProduct, e.ProductID, e.EventType, e, e.Timestamp)
}

func newOutboxMessage(aggregate string, id int64, eventType EventType, payload any, at time.Time) (OutboxMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return OutboxMessage{}, fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	return OutboxMessage{
		AggregateType: aggregate,
		AggregateID:   strconv.FormatInt(id, 10),
		EventType:     string(eventType),
		Payload:       body,
		CreatedAt:     at,
	}, nil
}
