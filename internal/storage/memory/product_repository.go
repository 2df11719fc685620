package memory

import (
	"context"

	"github.com/vladislavdragonenkov/orderapi/internal/domain"
)

// productRepositoryInMemory работает поверх общего Store; tx != nil означает работу внутри WithinTx.
type productRepositoryInMemory struct {
	store *Store
	tx    *txJournal
}

func (r *productRepositoryInMemory) Get(_ context.Context, id int64) (domain.Product, error) {
	defer r.store.lockFor(r.tx, false)()

	product, ok := r.store.products[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product, nil
}

// GetForUpdate совпадает с Get: внутри транзакции запись уже заблокирована целиком.
func (r *productRepositoryInMemory) GetForUpdate(ctx context.Context, id int64) (domain.Product, error) {
	return r.Get(ctx, id)
}

func (r *productRepositoryInMemory) List(_ context.Context) ([]domain.Product, error) {
	defer r.store.lockFor(r.tx, false)()

	result := make([]domain.Product, 0, len(r.store.products))
	for _, id := range sortedIDs(r.store.products) {
		result = append(result, r.store.products[id])
	}
	return result, nil
}

func (r *productRepositoryInMemory) ListPage(_ context.Context, offset, limit int) ([]domain.Product, int, error) {
	defer r.store.lockFor(r.tx, false)()

	ids := sortedIDs(r.store.products)
	start, end := domain.PageBounds(len(ids), offset, limit)
	result := make([]domain.Product, 0, end-start)
	for _, id := range ids[start:end] {
		result = append(result, r.store.products[id])
	}
	return result, len(ids), nil
}

func (r *productRepositoryInMemory) NameTaken(_ context.Context, name string, excludeID int64) (bool, error) {
	defer r.store.lockFor(r.tx, false)()

	for id, product := range r.store.products {
		if id != excludeID && domain.SameName(product.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

// Create присваивает следующий ID. Уникальность имени проверяется и здесь, как уникальный индекс в БД.
func (r *productRepositoryInMemory) Create(_ context.Context, product domain.Product) (domain.Product, error) {
	defer r.store.lockFor(r.tx, true)()

	for _, existing := range r.store.products {
		if domain.SameName(existing.Name, product.Name) {
			return domain.Product{}, domain.ErrProductNameDuplicate
		}
	}

	now := r.store.now()
	r.store.lastProductID++
	product.ID = r.store.lastProductID
	product.CreatedAt = now
	product.UpdatedAt = now
	r.store.products[product.ID] = product

	id := product.ID
	r.tx.record(func() { delete(r.store.products, id) })
	return product, nil
}

func (r *productRepositoryInMemory) Update(_ context.Context, product domain.Product) (domain.Product, error) {
	defer r.store.lockFor(r.tx, true)()

	previous, ok := r.store.products[product.ID]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	for id, existing := range r.store.products {
		if id != product.ID && domain.SameName(existing.Name, product.Name) {
			return domain.Product{}, domain.ErrProductNameDuplicate
		}
	}

	product.CreatedAt = previous.CreatedAt
	product.UpdatedAt = r.store.now()
	r.store.products[product.ID] = product

	r.tx.record(func() { r.store.products[previous.ID] = previous })
	return product, nil
}

// Delete дополнительно защищает ссылочную целостность, как ON DELETE RESTRICT.
func (r *productRepositoryInMemory) Delete(_ context.Context, id int64) error {
	defer r.store.lockFor(r.tx, true)()

	previous, ok := r.store.products[id]
	if !ok {
		return domain.ErrProductNotFound
	}
	if r.store.productReferenced(id) {
		return domain.ErrProductInOrders
	}
	delete(r.store.products, id)

	r.tx.record(func() { r.store.products[id] = previous })
	return nil
}

func (r *productRepositoryInMemory) IsReferenced(_ context.Context, id int64) (bool, error) {
	defer r.store.lockFor(r.tx, false)()
	return r.store.productReferenced(id), nil
}

// productReferenced просматривает позиции всех заказов. Вызывать под блокировкой.
func (s *Store) productReferenced(productID int64) bool {
	for _, order := range s.orders {
		if order.HasProduct(productID) {
			return true
		}
	}
	return false
}

var _ domain.ProductRepository = (*productRepositoryInMemory)(nil)
