package orders_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"

	"github.com/vladislavdragonenkov/orderapi/internal/domain"
	"github.com/vladislavdragonenkov/orderapi/internal/service/orders"
	"github.com/vladislavdragonenkov/orderapi/internal/storage/memory"
)

var stateNames = []string{"Pendiente", "Pagado", "Enviado", "pagado", "Desconocido"}

// Случайная последовательность операций не должна нарушать инварианты остатков и заказов.
func TestEngine_RandomOperationsKeepInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		engine := orders.NewEngine(memory.NewStore(), orders.WithPaidOrderLock(rapid.Bool().Draw(t, "lock-paid")))

		productCount := rapid.IntRange(1, 4).Draw(t, "products")
		initialStock := make(map[int64]int, productCount)
		for i := 0; i < productCount; i++ {
			stock := rapid.IntRange(0, 20).Draw(t, fmt.Sprintf("stock-%d", i))
			cents := rapid.IntRange(1, 100000).Draw(t, fmt.Sprintf("price-%d", i))
			product, err := engine.CreateProduct(ctx, domain.ProductInput{
				Name:          fmt.Sprintf("Producto %d", i),
				Description:   "Producto generado para la prueba",
				Price:         decimal.New(int64(cents), -2),
				StockQuantity: stock,
			})
			if err != nil {
				t.Fatalf("create product: %v", err)
			}
			initialStock[product.ID] = stock
		}

		shipped := map[int64]domain.Order{}
		var orderIDs []int64

		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for step := 0; step < steps; step++ {
			switch rapid.IntRange(0, 3).Draw(t, "op") {
			case 0:
				order, err := engine.CreateOrder(ctx)
				if err != nil {
					t.Fatalf("create order: %v", err)
				}
				orderIDs = append(orderIDs, order.ID)
			case 1:
				if len(orderIDs) == 0 {
					continue
				}
				orderID := rapid.SampledFrom(orderIDs).Draw(t, "order")
				productID := int64(rapid.IntRange(1, productCount+1).Draw(t, "product"))
				qty := rapid.IntRange(1, 8).Draw(t, "qty")
				_, err := engine.AddItem(ctx, orderID, productID, qty)
				if err != nil && !domain.IsInvalidOperation(err) && !domain.IsNotFound(err) {
					t.Fatalf("add item: unexpected error %v", err)
				}
			case 2:
				if len(orderIDs) == 0 {
					continue
				}
				orderID := rapid.SampledFrom(orderIDs).Draw(t, "order")
				_, err := engine.SetOrderState(ctx, orderID, rapid.SampledFrom(stateNames).Draw(t, "state"))
				if err != nil && !errors.Is(err, domain.ErrOrderAlreadyShipped) && !errors.Is(err, domain.ErrInvalidOrderState) {
					t.Fatalf("set state: unexpected error %v", err)
				}
			case 3:
				if len(orderIDs) == 0 {
					continue
				}
				orderID := rapid.SampledFrom(orderIDs).Draw(t, "order")
				_, err := engine.DeleteOrder(ctx, orderID)
				if err != nil && !errors.Is(err, domain.ErrOrderAlreadyShipped) {
					t.Fatalf("delete order: unexpected error %v", err)
				}
			}

			for _, order := range mustListOrders(t, engine) {
				if order.State == domain.OrderStateShipped {
					if _, seen := shipped[order.ID]; !seen {
						shipped[order.ID] = order
					}
				}
			}
		}

		current := map[int64]domain.Order{}
		sold := map[int64]int{}
		for _, order := range mustListOrders(t, engine) {
			current[order.ID] = order
			seen := map[int64]bool{}
			for _, item := range order.Items {
				if seen[item.ProductID] {
					t.Fatalf("order %d has product %d twice", order.ID, item.ProductID)
				}
				seen[item.ProductID] = true
				if item.Quantity < 1 || item.Quantity > domain.MaxItemQuantity {
					t.Fatalf("item quantity out of range: %d", item.Quantity)
				}
				if !item.Subtotal.Equal(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))) {
					t.Fatalf("subtotal mismatch for item %d", item.ID)
				}
				sold[item.ProductID] += item.Quantity
			}
		}

		for id, frozen := range shipped {
			got, ok := current[id]
			if !ok {
				t.Fatalf("shipped order %d disappeared", id)
			}
			if got.State != domain.OrderStateShipped || len(got.Items) != len(frozen.Items) || !got.Total().Equal(frozen.Total()) {
				t.Fatalf("shipped order %d changed", id)
			}
		}

		products, err := engine.ListProducts(ctx)
		if err != nil {
			t.Fatalf("list products: %v", err)
		}
		for _, product := range products {
			if product.StockQuantity < 0 {
				t.Fatalf("product %d stock went negative: %d", product.ID, product.StockQuantity)
			}
			// Удаление заказа не возвращает остаток, поэтому списанное >= ещё лежащее в заказах.
			deducted := initialStock[product.ID] - product.StockQuantity
			if deducted < sold[product.ID] {
				t.Fatalf("product %d: deducted %d < in orders %d", product.ID, deducted, sold[product.ID])
			}
		}
	})
}

func mustListOrders(t *rapid.T, engine *orders.Engine) []domain.Order {
	list, err := engine.ListOrders(context.Background())
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	return list
}
