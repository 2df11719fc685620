package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderapi/internal/domain"
)

// CreateProduct создаёт товар, если имя свободно (без учёта регистра).
func (e *Engine) CreateProduct(ctx context.Context, input domain.ProductInput) (product domain.Product, err error) {
	defer e.observe(opCreateProduct, time.Now(), &err)

	input = input.Normalize()
	if err = input.Validate(); err != nil {
		return domain.Product{}, err
	}

	err = e.store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		taken, err := uow.Products().NameTaken(ctx, input.Name, 0)
		if err != nil {
			return fmt.Errorf("check product name: %w", err)
		}
		if taken {
			return domain.ErrProductNameDuplicate
		}

		created, err := uow.Products().Create(ctx, domain.Product{}.Apply(input))
		if err != nil {
			return err
		}
		product = created
		return enqueue(ctx, uow, domain.NewProductEvent(domain.EventTypeProductCreated, created, e.now()))
	})
	if err != nil {
		return domain.Product{}, err
	}

	e.logger.WithFields(log.Fields{
		"product_id": product.ID,
		"stock":      product.StockQuantity,
	}).Info("product created")
	return product, nil
}

// UpdateProduct перезаписывает поля товара; имя проверяется на уникальность без учёта самого товара.
func (e *Engine) UpdateProduct(ctx context.Context, id int64, input domain.ProductInput) (product domain.Product, err error) {
	defer e.observe(opUpdateProduct, time.Now(), &err)

	if err = validateID(id); err != nil {
		return domain.Product{}, err
	}
	input = input.Normalize()
	if err = input.Validate(); err != nil {
		return domain.Product{}, err
	}

	err = e.store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		current, err := uow.Products().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		taken, err := uow.Products().NameTaken(ctx, input.Name, id)
		if err != nil {
			return fmt.Errorf("check product name: %w", err)
		}
		if taken {
			return domain.ErrProductNameDuplicate
		}

		updated, err := uow.Products().Update(ctx, current.Apply(input))
		if err != nil {
			return err
		}
		product = updated
		return enqueue(ctx, uow, domain.NewProductEvent(domain.EventTypeProductUpdated, updated, e.now()))
	})
	if err != nil {
		return domain.Product{}, err
	}

	e.logger.WithField("product_id", id).Info("product updated")
	return product, nil
}

// DeleteProduct удаляет товар, если на него не ссылается ни одна позиция ни одного заказа.
// false без ошибки означает, что товара нет.
func (e *Engine) DeleteProduct(ctx context.Context, id int64) (ok bool, err error) {
	defer e.observe(opDeleteProduct, time.Now(), &err)

	if err = validateID(id); err != nil {
		return false, err
	}

	err = e.store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		product, err := uow.Products().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		referenced, err := uow.Products().IsReferenced(ctx, id)
		if err != nil {
			return fmt.Errorf("check product references: %w", err)
		}
		if referenced {
			return domain.ErrProductInOrders
		}

		if err := uow.Products().Delete(ctx, id); err != nil {
			return err
		}
		return enqueue(ctx, uow, domain.NewProductEvent(domain.EventTypeProductDeleted, product, e.now()))
	})
	if errors.Is(err, domain.ErrProductNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	e.logger.WithField("product_id", id).Info("product deleted")
	return true, nil
}

// GetProduct возвращает товар или ErrProductNotFound.
func (e *Engine) GetProduct(ctx context.Context, id int64) (product domain.Product, err error) {
	defer e.observe(opGetProduct, time.Now(), &err)

	if err = validateID(id); err != nil {
		return domain.Product{}, err
	}
	return e.store.Products().Get(ctx, id)
}

// ListProducts возвращает все товары по возрастанию ID.
func (e *Engine) ListProducts(ctx context.Context) (products []domain.Product, err error) {
	defer e.observe(opListProducts, time.Now(), &err)

	return e.store.Products().List(ctx)
}

// ListProductsPaged возвращает страницу товаров.
func (e *Engine) ListProductsPaged(ctx context.Context, pageNumber, pageSize int) (page domain.Page[domain.Product], err error) {
	defer e.observe(opListProductsPg, time.Now(), &err)

	req := domain.PageRequest{Number: pageNumber, Size: pageSize}
	if err = req.Validate(); err != nil {
		return domain.Page[domain.Product]{}, err
	}

	items, total, err := e.store.Products().ListPage(ctx, req.Offset(), req.Size)
	if err != nil {
		return domain.Page[domain.Product]{}, fmt.Errorf("list products page: %w", err)
	}
	return domain.NewPage(items, total, req), nil
}
