package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/orderapi/internal/domain"
)

func makeProduct() domain.Product {
	return domain.Product{
		ID:            1,
		Name:          "Teclado",
		Price:         decimal.RequireFromString("10.00"),
		StockQuantity: 5,
	}
}

func TestParseOrderState(t *testing.T) {
	cases := map[string]domain.OrderState{
		"Pendiente":  domain.OrderStatePending,
		"pagado":     domain.OrderStatePaid,
		" ENVIADO ":  domain.OrderStateShipped,
		"eNvIaDo":    domain.OrderStateShipped,
		"pendiente ": domain.OrderStatePending,
	}
	for in, want := range cases {
		got, err := domain.ParseOrderState(in)
		if err != nil {
			t.Fatalf("ParseOrderState(%q) failed: %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseOrderState(%q) = %q, want %q", in, got, want)
		}
	}

	for _, in := range []string{"", "Shipped", "cancelado"} {
		if _, err := domain.ParseOrderState(in); !errors.Is(err, domain.ErrInvalidOrderState) {
			t.Fatalf("ParseOrderState(%q) expected ErrInvalidOrderState, got %v", in, err)
		}
	}
}

func TestOrderStateTerminal(t *testing.T) {
	if !domain.OrderStateShipped.IsTerminal() {
		t.Fatal("shipped must be terminal")
	}
	if domain.OrderStatePaid.IsTerminal() || domain.OrderStatePending.IsTerminal() {
		t.Fatal("only shipped is terminal")
	}
	if domain.OrderState("x").Valid() {
		t.Fatal("unknown state must be invalid")
	}
}

func TestNewOrderItemSnapshotsPrice(t *testing.T) {
	product := makeProduct()
	item := domain.NewOrderItem(7, product, 3)

	if !item.UnitPrice.Equal(decimal.RequireFromString("10.00")) {
		t.Fatalf("unexpected unit price %s", item.UnitPrice)
	}
	if !item.Subtotal.Equal(decimal.RequireFromString("30.00")) {
		t.Fatalf("unexpected subtotal %s", item.Subtotal)
	}

	product.Price = decimal.RequireFromString("99.99")
	if !item.UnitPrice.Equal(decimal.RequireFromString("10.00")) {
		t.Fatal("unit price must not follow product price")
	}
}

func TestOrderTotalIsDerived(t *testing.T) {
	order := domain.NewOrder(time.Now())
	if !order.Total().IsZero() {
		t.Fatalf("new order total must be zero, got %s", order.Total())
	}
	if order.State != domain.OrderStatePending || len(order.Items) != 0 {
		t.Fatalf("unexpected new order: %+v", order)
	}

	p1 := makeProduct()
	p2 := makeProduct()
	p2.ID = 2
	p2.Price = decimal.RequireFromString("2.50")
	order.Items = append(order.Items, domain.NewOrderItem(1, p1, 3), domain.NewOrderItem(1, p2, 2))

	if !order.Total().Equal(decimal.RequireFromString("35.00")) {
		t.Fatalf("unexpected total %s", order.Total())
	}
	if !order.HasProduct(2) || order.HasProduct(3) {
		t.Fatal("HasProduct mismatch")
	}
}

func TestOrderCloneIsIndependent(t *testing.T) {
	order := domain.NewOrder(time.Now())
	order.Items = append(order.Items, domain.NewOrderItem(1, makeProduct(), 1))

	clone := order.Clone()
	clone.Items[0].Quantity = 42
	if order.Items[0].Quantity != 1 {
		t.Fatal("clone must not share items backing array")
	}
}
