package memory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/orderapi/internal/domain"
	"github.com/vladislavdragonenkov/orderapi/internal/storage/memory"
)

func seedProduct(t *testing.T, store *memory.Store, name string, stock int) domain.Product {
	t.Helper()

	product, err := store.Products().Create(context.Background(), domain.Product{
		Name:          name,
		Description:   "Producto de prueba",
		Price:         decimal.RequireFromString("10.00"),
		StockQuantity: stock,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	return product
}

func TestStore_ProductCRUD(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewStore()
	repo := store.Products()

	first := seedProduct(t, store, "Teclado", 5)
	second := seedProduct(t, store, "Mouse", 1)
	if first.ID != 1 || second.ID != 2 {
		t.Fatalf("expected sequential ids, got %d and %d", first.ID, second.ID)
	}

	if _, err := repo.Create(ctx, domain.Product{Name: "TECLADO"}); !errors.Is(err, domain.ErrProductNameDuplicate) {
		t.Fatalf("expected duplicate name error, got %v", err)
	}

	taken, err := repo.NameTaken(ctx, "mouse", second.ID)
	if err != nil || taken {
		t.Fatalf("name must not be taken by itself: taken=%v err=%v", taken, err)
	}
	taken, err = repo.NameTaken(ctx, "mouse", first.ID)
	if err != nil || !taken {
		t.Fatalf("name must be taken by another product: taken=%v err=%v", taken, err)
	}

	second.StockQuantity = 9
	updated, err := repo.Update(ctx, second)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.StockQuantity != 9 || !updated.CreatedAt.Equal(second.CreatedAt) {
		t.Fatalf("unexpected update result: %+v", updated)
	}

	if err := repo.Delete(ctx, first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.Get(ctx, first.ID); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestStore_ListPage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewStore()
	for i := 0; i < 25; i++ {
		if _, err := store.Orders().Create(ctx, domain.NewOrder(time.Now())); err != nil {
			t.Fatalf("create order: %v", err)
		}
	}

	page, total, err := store.Orders().ListPage(ctx, 20, 10)
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if total != 25 || len(page) != 5 {
		t.Fatalf("expected 5 of 25, got %d of %d", len(page), total)
	}
	if page[0].ID != 21 || page[4].ID != 25 {
		t.Fatalf("unexpected page order: first=%d last=%d", page[0].ID, page[4].ID)
	}
}

func TestStore_WithinTxRollsBack(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewStore()
	product := seedProduct(t, store, "Monitor", 3)
	order, err := store.Orders().Create(ctx, domain.NewOrder(time.Now()))
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	boom := errors.New("boom")
	err = store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		p, err := uow.Products().GetForUpdate(ctx, product.ID)
		if err != nil {
			return err
		}
		p.StockQuantity = 0
		if _, err := uow.Products().Update(ctx, p); err != nil {
			return err
		}
		if _, err := uow.Orders().AddItem(ctx, domain.NewOrderItem(order.ID, p, 3)); err != nil {
			return err
		}
		if _, err := uow.Outbox().Enqueue(ctx, domain.OutboxMessage{EventType: "order.item_added"}); err != nil {
			return err
		}
		if _, err := uow.Products().Create(ctx, domain.Product{Name: "Temporal"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	restored, err := store.Products().Get(ctx, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if restored.StockQuantity != 3 {
		t.Fatalf("stock must be restored, got %d", restored.StockQuantity)
	}
	got, err := store.Orders().Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if len(got.Items) != 0 {
		t.Fatalf("items must be rolled back, got %d", len(got.Items))
	}
	all, _ := store.Products().List(ctx)
	if len(all) != 1 {
		t.Fatalf("created product must be rolled back, got %d products", len(all))
	}
	if pending := store.OutboxRepository().AllPending(); len(pending) != 0 {
		t.Fatalf("outbox must be discarded on rollback, got %d", len(pending))
	}
}

func TestStore_WithinTxPanicReleasesLockAndRollsBack(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewStore()
	product := seedProduct(t, store, "Parlante", 4)

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Fatal("expected panic to propagate out of WithinTx")
			}
		}()
		_ = store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
			p, err := uow.Products().GetForUpdate(ctx, product.ID)
			if err != nil {
				return err
			}
			p.StockQuantity = 0
			if _, err := uow.Products().Update(ctx, p); err != nil {
				return err
			}
			if _, err := uow.Outbox().Enqueue(ctx, domain.OutboxMessage{EventType: "product.updated"}); err != nil {
				return err
			}
			panic("engine bug")
		})
	}()

	done := make(chan []domain.Product, 1)
	go func() {
		all, _ := store.Products().List(ctx)
		done <- all
	}()

	var all []domain.Product
	select {
	case all = <-done:
	case <-time.After(time.Second):
		t.Fatal("store stays locked after a panic inside WithinTx")
	}
	if len(all) != 1 || all[0].StockQuantity != 4 {
		t.Fatalf("partial writes must be rolled back, got %+v", all)
	}
	if pending := store.OutboxRepository().AllPending(); len(pending) != 0 {
		t.Fatalf("outbox must be discarded after panic, got %d", len(pending))
	}

	if err := store.WithinTx(ctx, func(context.Context, domain.UnitOfWork) error { return nil }); err != nil {
		t.Fatalf("store must accept new transactions: %v", err)
	}
}

func TestStore_WithinTxCommitsOutbox(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewStore()

	err := store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		_, err := uow.Outbox().Enqueue(ctx, domain.OutboxMessage{EventType: "order.created"})
		return err
	})
	if err != nil {
		t.Fatalf("WithinTx: %v", err)
	}
	if pending := store.OutboxRepository().AllPending(); len(pending) != 1 {
		t.Fatalf("expected 1 pending message, got %d", len(pending))
	}
}

func TestStore_ReferentialGuards(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewStore()
	product := seedProduct(t, store, "Cable", 10)
	order, _ := store.Orders().Create(ctx, domain.NewOrder(time.Now()))

	if _, err := store.Orders().AddItem(ctx, domain.NewOrderItem(order.ID, product, 1)); err != nil {
		t.Fatalf("add item: %v", err)
	}
	if _, err := store.Orders().AddItem(ctx, domain.NewOrderItem(order.ID, product, 1)); !errors.Is(err, domain.ErrProductAlreadyInOrder) {
		t.Fatalf("expected duplicate line error, got %v", err)
	}

	referenced, err := store.Products().IsReferenced(ctx, product.ID)
	if err != nil || !referenced {
		t.Fatalf("product must be referenced: %v %v", referenced, err)
	}
	if err := store.Products().Delete(ctx, product.ID); !errors.Is(err, domain.ErrProductInOrders) {
		t.Fatalf("expected product in orders, got %v", err)
	}

	if err := store.Orders().Delete(ctx, order.ID); err != nil {
		t.Fatalf("delete order: %v", err)
	}
	if err := store.Products().Delete(ctx, product.ID); err != nil {
		t.Fatalf("product must be deletable after order removal: %v", err)
	}
}

func TestStore_ItemsCarryCurrentProductName(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewStore()
	product := seedProduct(t, store, "Auriculares", 10)
	order, _ := store.Orders().Create(ctx, domain.NewOrder(time.Now()))
	if _, err := store.Orders().AddItem(ctx, domain.NewOrderItem(order.ID, product, 1)); err != nil {
		t.Fatalf("add item: %v", err)
	}

	product.Name = "Auriculares Pro"
	if _, err := store.Products().Update(ctx, product); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, _ := store.Orders().Get(ctx, order.ID)
	if got.Items[0].ProductName != "Auriculares Pro" {
		t.Fatalf("expected live product name, got %q", got.Items[0].ProductName)
	}
}

func TestStore_ConcurrentStockDecrementIsSerialized(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewStore()
	product := seedProduct(t, store, "Tarjeta", 10)

	const workers = 50
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
				p, err := uow.Products().GetForUpdate(ctx, product.ID)
				if err != nil {
					return err
				}
				if !p.HasStock(1) {
					return domain.ErrInsufficientStock
				}
				p.StockQuantity--
				_, err = uow.Products().Update(ctx, p)
				return err
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	final, _ := store.Products().Get(ctx, product.ID)
	if succeeded != 10 || final.StockQuantity != 0 {
		t.Fatalf("expected 10 successes and zero stock, got %d and %d", succeeded, final.StockQuantity)
	}
}
