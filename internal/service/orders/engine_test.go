package orders_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orderapi/internal/domain"
	"github.com/vladislavdragonenkov/orderapi/internal/service/orders"
	"github.com/vladislavdragonenkov/orderapi/internal/storage/memory"
)

func newEngine(t *testing.T, options ...orders.Option) (*orders.Engine, *memory.Store) {
	t.Helper()

	store := memory.NewStore()
	return orders.NewEngine(store, options...), store
}

func productInput(name string, price string, stock int) domain.ProductInput {
	return domain.ProductInput{
		Name:          name,
		Description:   "Descripcion del producto " + name,
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
	}
}

func mustProduct(t *testing.T, engine *orders.Engine, name, price string, stock int) domain.Product {
	t.Helper()

	product, err := engine.CreateProduct(context.Background(), productInput(name, price, stock))
	require.NoError(t, err)
	return product
}

func TestEngine_ConcreteScenario(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	engine, _ := newEngine(t)

	product := mustProduct(t, engine, "Teclado", "10.00", 5)
	require.Equal(t, int64(1), product.ID)

	order, err := engine.CreateOrder(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), order.ID)
	require.Equal(t, domain.OrderStatePending, order.State)
	require.True(t, order.Total().IsZero())

	item, err := engine.AddItem(ctx, order.ID, product.ID, 3)
	require.NoError(t, err)
	require.True(t, item.UnitPrice.Equal(decimal.RequireFromString("10.00")))
	require.True(t, item.Subtotal.Equal(decimal.RequireFromString("30.00")))

	order, err = engine.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.True(t, order.Total().Equal(decimal.RequireFromString("30.00")))

	product, err = engine.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	require.Equal(t, 2, product.StockQuantity)

	_, err = engine.AddItem(ctx, order.ID, product.ID, 1)
	require.ErrorIs(t, err, domain.ErrProductAlreadyInOrder)
	require.True(t, domain.IsInvalidOperation(err))

	fresh, err := engine.CreateOrder(ctx)
	require.NoError(t, err)
	_, err = engine.AddItem(ctx, fresh.ID, product.ID, 10)
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	order, err = engine.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	require.Equal(t, 3, order.Items[0].Quantity)
}

func TestEngine_CreateThenGetReturnsEmptyOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	engine, _ := newEngine(t)

	created, err := engine.CreateOrder(ctx)
	require.NoError(t, err)

	got, err := engine.GetOrder(ctx, created.ID)
	require.NoError(t, err)
	require.Empty(t, got.Items)
	require.True(t, got.Total().IsZero())
	require.Equal(t, domain.OrderStatePending, got.State)
}

func TestEngine_AddItemPreconditionOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	engine, _ := newEngine(t)
	product := mustProduct(t, engine, "Monitor", "100.00", 1)

	_, err := engine.AddItem(ctx, 99, 12345, 1)
	require.ErrorIs(t, err, domain.ErrOrderNotFound, "missing order is checked before missing product")

	shipped, _ := engine.CreateOrder(ctx)
	_, err = engine.SetOrderState(ctx, shipped.ID, "Enviado")
	require.NoError(t, err)
	_, err = engine.AddItem(ctx, shipped.ID, 12345, 1)
	require.ErrorIs(t, err, domain.ErrOrderAlreadyShipped, "shipped order is checked before missing product")

	order, _ := engine.CreateOrder(ctx)
	_, err = engine.AddItem(ctx, order.ID, product.ID, 1)
	require.NoError(t, err)

	_, err = engine.AddItem(ctx, order.ID, product.ID, 5)
	require.ErrorIs(t, err, domain.ErrProductAlreadyInOrder, "duplicate line is checked before stock")

	_, err = engine.AddItem(ctx, order.ID, 12345, 1)
	require.ErrorIs(t, err, domain.ErrProductNotFound)
	require.True(t, domain.IsNotFound(err))

	other, _ := engine.CreateOrder(ctx)
	_, err = engine.AddItem(ctx, other.ID, product.ID, 1)
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
}

func TestEngine_AddItemRejectsBadQuantity(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	engine, _ := newEngine(t)
	product := mustProduct(t, engine, "Cable", "1.00", 5000)
	order, _ := engine.CreateOrder(ctx)

	for _, qty := range []int{0, -1, domain.MaxItemQuantity + 1} {
		_, err := engine.AddItem(ctx, order.ID, product.ID, qty)
		require.True(t, domain.IsInvalidArgument(err), "quantity %d", qty)
	}
}

func TestEngine_PaidOrderPolicy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("locked by default", func(t *testing.T) {
		engine, _ := newEngine(t)
		product := mustProduct(t, engine, "Silla", "50.00", 5)
		order, _ := engine.CreateOrder(ctx)
		_, err := engine.SetOrderState(ctx, order.ID, "Pagado")
		require.NoError(t, err)

		_, err = engine.AddItem(ctx, order.ID, product.ID, 1)
		require.ErrorIs(t, err, domain.ErrOrderAlreadyPaid)
	})

	t.Run("permissive when disabled", func(t *testing.T) {
		engine, _ := newEngine(t, orders.WithPaidOrderLock(false))
		product := mustProduct(t, engine, "Mesa", "80.00", 5)
		order, _ := engine.CreateOrder(ctx)
		_, err := engine.SetOrderState(ctx, order.ID, "pagado")
		require.NoError(t, err)

		_, err = engine.AddItem(ctx, order.ID, product.ID, 1)
		require.NoError(t, err)
	})
}

func TestEngine_ShippedOrderIsImmutable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	engine, _ := newEngine(t)
	product := mustProduct(t, engine, "Lampara", "15.00", 5)
	order, _ := engine.CreateOrder(ctx)

	ok, err := engine.SetOrderState(ctx, order.ID, "Enviado")
	require.NoError(t, err)
	require.True(t, ok)

	for _, state := range []string{"Pagado", "Pendiente", "Enviado"} {
		_, err = engine.SetOrderState(ctx, order.ID, state)
		require.ErrorIs(t, err, domain.ErrOrderAlreadyShipped, state)
	}

	_, err = engine.AddItem(ctx, order.ID, product.ID, 1)
	require.ErrorIs(t, err, domain.ErrOrderAlreadyShipped)

	_, err = engine.DeleteOrder(ctx, order.ID)
	require.ErrorIs(t, err, domain.ErrOrderAlreadyShipped)

	got, err := engine.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStateShipped, got.State)
}

func TestEngine_SetOrderStateAllowsAnyNonTerminalTransition(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	engine, _ := newEngine(t)
	order, _ := engine.CreateOrder(ctx)

	for _, state := range []string{"Pagado", "Pendiente", "PAGADO", "Pagado"} {
		ok, err := engine.SetOrderState(ctx, order.ID, state)
		require.NoError(t, err)
		require.True(t, ok)
	}

	got, _ := engine.GetOrder(ctx, order.ID)
	require.Equal(t, domain.OrderStatePaid, got.State)

	ok, err := engine.SetOrderState(ctx, 404, "Pagado")
	require.NoError(t, err)
	require.False(t, ok)

	_, err = engine.SetOrderState(ctx, order.ID, "Cancelado")
	require.ErrorIs(t, err, domain.ErrInvalidOrderState)
}

func TestEngine_DeleteOrderDoesNotRestoreStock(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	engine, _ := newEngine(t)
	product := mustProduct(t, engine, "Parlante", "20.00", 4)
	order, _ := engine.CreateOrder(ctx)
	_, err := engine.AddItem(ctx, order.ID, product.ID, 3)
	require.NoError(t, err)

	ok, err := engine.DeleteOrder(ctx, order.ID)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = engine.GetOrder(ctx, order.ID)
	require.ErrorIs(t, err, domain.ErrOrderNotFound)

	product, _ = engine.GetProduct(ctx, product.ID)
	require.Equal(t, 1, product.StockQuantity)

	ok, err = engine.DeleteOrder(ctx, order.ID)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEngine_DeleteProductGuard(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	engine, _ := newEngine(t)
	used := mustProduct(t, engine, "Webcam", "30.00", 10)
	unused := mustProduct(t, engine, "Microfono", "45.00", 10)

	first, _ := engine.CreateOrder(ctx)
	second, _ := engine.CreateOrder(ctx)
	_, err := engine.AddItem(ctx, second.ID, used.ID, 1)
	require.NoError(t, err)
	_ = first

	_, err = engine.DeleteProduct(ctx, used.ID)
	require.ErrorIs(t, err, domain.ErrProductInOrders)

	ok, err := engine.DeleteProduct(ctx, unused.ID)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = engine.DeleteProduct(ctx, unused.ID)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEngine_ProductNameUniqueness(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	engine, _ := newEngine(t)
	first := mustProduct(t, engine, "Impresora", "120.00", 2)
	second := mustProduct(t, engine, "Escaner", "90.00", 2)

	_, err := engine.CreateProduct(ctx, productInput("  IMPRESORA ", "1.00", 1))
	require.ErrorIs(t, err, domain.ErrProductNameDuplicate)

	updated, err := engine.UpdateProduct(ctx, first.ID, productInput("impresora", "130.00", 7))
	require.NoError(t, err, "renaming to own name with different case is allowed")
	require.Equal(t, "impresora", updated.Name)
	require.Equal(t, 7, updated.StockQuantity)

	_, err = engine.UpdateProduct(ctx, second.ID, productInput("Impresora", "90.00", 2))
	require.ErrorIs(t, err, domain.ErrProductNameDuplicate)

	_, err = engine.UpdateProduct(ctx, 999, productInput("Nuevo", "1.00", 1))
	require.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestEngine_UnitPriceIsSnapshot(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	engine, _ := newEngine(t)
	product := mustProduct(t, engine, "Tablet", "200.00", 5)
	order, _ := engine.CreateOrder(ctx)
	_, err := engine.AddItem(ctx, order.ID, product.ID, 2)
	require.NoError(t, err)

	_, err = engine.UpdateProduct(ctx, product.ID, productInput("Tablet", "250.00", 3))
	require.NoError(t, err)

	got, _ := engine.GetOrder(ctx, order.ID)
	require.True(t, got.Items[0].UnitPrice.Equal(decimal.RequireFromString("200.00")))
	require.True(t, got.Total().Equal(decimal.RequireFromString("400.00")))
}

func TestEngine_Pagination(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	engine, _ := newEngine(t)
	for i := 0; i < 25; i++ {
		mustProduct(t, engine, fmt.Sprintf("Producto %02d", i), "1.00", 1)
	}

	sizes := []int{10, 10, 5}
	for pageNumber, want := range sizes {
		page, err := engine.ListProductsPaged(ctx, pageNumber+1, 10)
		require.NoError(t, err)
		require.Len(t, page.Items, want)
		require.Equal(t, 25, page.TotalCount)
		require.Equal(t, 3, page.TotalPages)
		require.Equal(t, pageNumber+1, page.PageNumber)
	}

	page, err := engine.ListProductsPaged(ctx, 4, 10)
	require.NoError(t, err)
	require.Empty(t, page.Items)

	_, err = engine.ListProductsPaged(ctx, 0, 10)
	require.True(t, domain.IsInvalidArgument(err))
	_, err = engine.ListOrdersPaged(ctx, 1, 101)
	require.True(t, domain.IsInvalidArgument(err))
}

func TestEngine_EmitsOutboxEvents(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	engine, store := newEngine(t)
	product := mustProduct(t, engine, "Router", "60.00", 3)
	order, _ := engine.CreateOrder(ctx)
	_, _ = engine.AddItem(ctx, order.ID, product.ID, 1)
	_, _ = engine.SetOrderState(ctx, order.ID, "Pagado")
	_, _ = engine.AddItem(ctx, order.ID, product.ID, 1)

	pending := store.OutboxRepository().AllPending()
	types := make([]string, 0, len(pending))
	for _, msg := range pending {
		types = append(types, msg.EventType)
	}
	require.Equal(t, []string{"product.created", "order.created", "order.item_added", "order.state_changed"}, types)
}

type failingStore struct {
	*memory.Store
	err error
}

func (s failingStore) WithinTx(context.Context, func(context.Context, domain.UnitOfWork) error) error {
	return s.err
}

func TestEngine_StoreFailuresAreNotMasked(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset")
	engine := orders.NewEngine(failingStore{Store: memory.NewStore(), err: boom})

	_, err := engine.CreateOrder(context.Background())
	require.ErrorIs(t, err, boom)
	require.False(t, domain.IsNotFound(err))
	require.False(t, domain.IsInvalidOperation(err))

	_, err = engine.DeleteProduct(context.Background(), 1)
	require.ErrorIs(t, err, boom)
}

func TestEngine_ConcurrentAddItemNeverOversells(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	engine, _ := newEngine(t)
	const stock, buyers = 7, 40
	product := mustProduct(t, engine, "Consola", "300.00", stock)

	var (
		wg         sync.WaitGroup
		succeeded  atomic.Int32
		outOfStock atomic.Int32
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			order, err := engine.CreateOrder(ctx)
			if err != nil {
				t.Errorf("create order: %v", err)
				return
			}
			_, err = engine.AddItem(ctx, order.ID, product.ID, 1)
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				outOfStock.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(stock), succeeded.Load())
	require.Equal(t, int32(buyers-stock), outOfStock.Load())

	product, err := engine.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	require.Zero(t, product.StockQuantity)
}

func TestEngine_ConcurrentDeleteAndAddAreSerialized(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	for i := 0; i < 20; i++ {
		engine, _ := newEngine(t)
		product := mustProduct(t, engine, "Disco", "70.00", 5)
		order, _ := engine.CreateOrder(ctx)

		var (
			wg        sync.WaitGroup
			addErr    error
			deleted   bool
			deleteErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, addErr = engine.AddItem(ctx, order.ID, product.ID, 1)
		}()
		go func() {
			defer wg.Done()
			deleted, deleteErr = engine.DeleteProduct(ctx, product.ID)
		}()
		wg.Wait()

		if addErr == nil {
			require.ErrorIs(t, deleteErr, domain.ErrProductInOrders)
			require.False(t, deleted)
		} else {
			require.ErrorIs(t, addErr, domain.ErrProductNotFound)
			require.NoError(t, deleteErr)
			require.True(t, deleted)
		}
	}
}
