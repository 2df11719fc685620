package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestOrderEventOutboxMessage(t *testing.T) {
	now := time.Date(2025, 7, 4, 0, 45, 41, 0, time.UTC)
	order := Order{ID: 12, State: OrderStatePaid}
	order.Items = []OrderItem{NewOrderItem(12, Product{ID: 3, Price: decimal.RequireFromString("4.50")}, 2)}

	msg, err := NewOrderEvent(EventTypeOrderStateChanged, order, OrderStatePending, now).OutboxMessage()
	if err != nil {
		t.Fatalf("OutboxMessage failed: %v", err)
	}
	if msg.AggregateType != AggregateOrder || msg.AggregateID != "12" || msg.EventType != "order.state_changed" {
		t.Fatalf("unexpected message: %+v", msg)
	}

	var decoded struct {
		State         string `json:"state"`
		PreviousState string `json:"previous_state"`
		Total         string `json:"total"`
	}
	if err := json.Unmarshal(msg.Payload, &decoded); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if decoded.State != "Pagado" || decoded.PreviousState != "Pendiente" || decoded.Total != "9" {
		t.Fatalf("unexpected payload: %s", msg.Payload)
	}
}
