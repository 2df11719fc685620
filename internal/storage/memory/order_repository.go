package memory

import (
	"context"

	"github.com/vladislavdragonenkov/orderapi/internal/domain"
)

// orderRepositoryInMemory хранит заказы вместе с позициями внутри Store.
type orderRepositoryInMemory struct {
	store *Store
	tx    *txJournal
}

func (r *orderRepositoryInMemory) Get(_ context.Context, id int64) (domain.Order, error) {
	defer r.store.lockFor(r.tx, false)()

	order, ok := r.store.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return r.store.hydrate(order), nil
}

func (r *orderRepositoryInMemory) GetForUpdate(ctx context.Context, id int64) (domain.Order, error) {
	return r.Get(ctx, id)
}

func (r *orderRepositoryInMemory) List(_ context.Context) ([]domain.Order, error) {
	defer r.store.lockFor(r.tx, false)()

	result := make([]domain.Order, 0, len(r.store.orders))
	for _, id := range sortedIDs(r.store.orders) {
		result = append(result, r.store.hydrate(r.store.orders[id]))
	}
	return result, nil
}

func (r *orderRepositoryInMemory) ListPage(_ context.Context, offset, limit int) ([]domain.Order, int, error) {
	defer r.store.lockFor(r.tx, false)()

	ids := sortedIDs(r.store.orders)
	start, end := domain.PageBounds(len(ids), offset, limit)
	result := make([]domain.Order, 0, end-start)
	for _, id := range ids[start:end] {
		result = append(result, r.store.hydrate(r.store.orders[id]))
	}
	return result, len(ids), nil
}

func (r *orderRepositoryInMemory) Create(_ context.Context, order domain.Order) (domain.Order, error) {
	defer r.store.lockFor(r.tx, true)()

	r.store.lastOrderID++
	order.ID = r.store.lastOrderID
	if order.CreatedAt.IsZero() {
		order.CreatedAt = r.store.now()
	}
	order.Items = []domain.OrderItem{}
	r.store.orders[order.ID] = order

	id := order.ID
	r.tx.record(func() { delete(r.store.orders, id) })
	return order.Clone(), nil
}

func (r *orderRepositoryInMemory) UpdateState(_ context.Context, id int64, state domain.OrderState) error {
	defer r.store.lockFor(r.tx, true)()

	previous, ok := r.store.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	updated := previous.Clone()
	updated.State = state
	r.store.orders[id] = updated

	r.tx.record(func() { r.store.orders[id] = previous })
	return nil
}

// AddItem проверяет уникальность товара в заказе и ссылку на товар, как ограничения схемы БД.
func (r *orderRepositoryInMemory) AddItem(_ context.Context, item domain.OrderItem) (domain.OrderItem, error) {
	defer r.store.lockFor(r.tx, true)()

	previous, ok := r.store.orders[item.OrderID]
	if !ok {
		return domain.OrderItem{}, domain.ErrOrderNotFound
	}
	if _, ok := r.store.products[item.ProductID]; !ok {
		return domain.OrderItem{}, domain.ErrProductNotFound
	}
	if previous.HasProduct(item.ProductID) {
		return domain.OrderItem{}, domain.ErrProductAlreadyInOrder
	}

	r.store.lastItemID++
	item.ID = r.store.lastItemID

	updated := previous.Clone()
	updated.Items = append(updated.Items, item)
	r.store.orders[item.OrderID] = updated

	r.tx.record(func() { r.store.orders[previous.ID] = previous })
	return item, nil
}

// Delete удаляет заказ; позиции принадлежат заказу и исчезают вместе с ним.
func (r *orderRepositoryInMemory) Delete(_ context.Context, id int64) error {
	defer r.store.lockFor(r.tx, true)()

	previous, ok := r.store.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	delete(r.store.orders, id)

	r.tx.record(func() { r.store.orders[id] = previous })
	return nil
}

// hydrate возвращает копию заказа с актуальными названиями товаров. Вызывать под блокировкой.
func (s *Store) hydrate(order domain.Order) domain.Order {
	out := order.Clone()
	for i := range out.Items {
		if product, ok := s.products[out.Items[i].ProductID]; ok {
			out.Items[i].ProductName = product.Name
		}
	}
	return out
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
