package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderapi/internal/domain"
)

// CreateOrder создаёт пустой заказ в состоянии Pending.
func (e *Engine) CreateOrder(ctx context.Context) (order domain.Order, err error) {
	defer e.observe(opCreateOrder, time.Now(), &err)

	err = e.store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		created, err := uow.Orders().Create(ctx, domain.NewOrder(e.now()))
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		order = created
		return enqueue(ctx, uow, domain.NewOrderEvent(domain.EventTypeOrderCreated, created, "", e.now()))
	})
	if err != nil {
		return domain.Order{}, err
	}

	e.logger.WithField("order_id", order.ID).Info("order created")
	return order, nil
}

// GetOrder возвращает заказ с позициями или ErrOrderNotFound.
func (e *Engine) GetOrder(ctx context.Context, id int64) (order domain.Order, err error) {
	defer e.observe(opGetOrder, time.Now(), &err)

	if err = validateID(id); err != nil {
		return domain.Order{}, err
	}
	return e.store.Orders().Get(ctx, id)
}

// ListOrders возвращает все заказы по возрастанию ID.
func (e *Engine) ListOrders(ctx context.Context) (orders []domain.Order, err error) {
	defer e.observe(opListOrders, time.Now(), &err)

	return e.store.Orders().List(ctx)
}

// ListOrdersPaged возвращает страницу заказов.
func (e *Engine) ListOrdersPaged(ctx context.Context, pageNumber, pageSize int) (page domain.Page[domain.Order], err error) {
	defer e.observe(opListOrdersPaged, time.Now(), &err)

	req := domain.PageRequest{Number: pageNumber, Size: pageSize}
	if err = req.Validate(); err != nil {
		return domain.Page[domain.Order]{}, err
	}

	items, total, err := e.store.Orders().ListPage(ctx, req.Offset(), req.Size)
	if err != nil {
		return domain.Page[domain.Order]{}, fmt.Errorf("list orders page: %w", err)
	}
	return domain.NewPage(items, total, req), nil
}

// AddItem добавляет товар в заказ. Проверки идут строго в порядке:
// заказ существует, не отправлен (и не оплачен при включённом запрете), товара ещё нет в заказе,
// товар существует, остатка хватает. Списание остатка, позиция и событие фиксируются одной транзакцией.
func (e *Engine) AddItem(ctx context.Context, orderID, productID int64, quantity int) (item domain.OrderItem, err error) {
	defer e.observe(opAddItem, time.Now(), &err)

	if err = validateID(orderID); err != nil {
		return domain.OrderItem{}, err
	}
	if err = validateID(productID); err != nil {
		return domain.OrderItem{}, err
	}
	if quantity < 1 || quantity > domain.MaxItemQuantity {
		return domain.OrderItem{}, domain.ErrQuantityInvalid
	}

	err = e.store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		order, err := uow.Orders().GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.State == domain.OrderStateShipped {
			return domain.ErrOrderAlreadyShipped
		}
		if e.lockPaidOrders && order.State == domain.OrderStatePaid {
			return domain.ErrOrderAlreadyPaid
		}
		if order.HasProduct(productID) {
			return domain.ErrProductAlreadyInOrder
		}

		product, err := uow.Products().GetForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if !product.HasStock(quantity) {
			return domain.ErrInsufficientStock
		}

		product.StockQuantity -= quantity
		if _, err := uow.Products().Update(ctx, product); err != nil {
			return fmt.Errorf("deduct stock: %w", err)
		}

		added, err := uow.Orders().AddItem(ctx, domain.NewOrderItem(order.ID, product, quantity))
		if err != nil {
			return fmt.Errorf("add order item: %w", err)
		}
		item = added

		order.Items = append(order.Items, added)
		return enqueue(ctx, uow, domain.NewOrderEvent(domain.EventTypeOrderItemAdded, order, "", e.now()))
	})
	if err != nil {
		return domain.OrderItem{}, err
	}

	e.metrics.RecordStockDeducted(quantity)
	e.logger.WithFields(log.Fields{
		"order_id":   orderID,
		"product_id": productID,
		"quantity":   quantity,
		"subtotal":   item.Subtotal.StringFixed(2),
	}).Info("item added to order")
	return item, nil
}

// SetOrderState меняет состояние заказа. false без ошибки означает, что заказа нет.
// Единственное ограничение — отправленный заказ менять нельзя; любые другие переходы разрешены.
func (e *Engine) SetOrderState(ctx context.Context, orderID int64, stateName string) (ok bool, err error) {
	defer e.observe(opSetOrderState, time.Now(), &err)

	if err = validateID(orderID); err != nil {
		return false, err
	}
	state, err := domain.ParseOrderState(stateName)
	if err != nil {
		return false, err
	}

	var previous domain.OrderState
	err = e.store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		order, err := uow.Orders().GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.State.IsTerminal() {
			return domain.ErrOrderAlreadyShipped
		}
		if err := uow.Orders().UpdateState(ctx, orderID, state); err != nil {
			return fmt.Errorf("update order state: %w", err)
		}

		previous = order.State
		order.State = state
		return enqueue(ctx, uow, domain.NewOrderEvent(domain.EventTypeOrderStateChanged, order, previous, e.now()))
	})
	if errors.Is(err, domain.ErrOrderNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	e.logger.WithFields(log.Fields{
		"order_id": orderID,
		"from":     previous,
		"to":       state,
	}).Info("order state changed")
	return true, nil
}

// DeleteOrder удаляет заказ вместе с позициями. Остатки товаров не возвращаются.
func (e *Engine) DeleteOrder(ctx context.Context, orderID int64) (ok bool, err error) {
	defer e.observe(opDeleteOrder, time.Now(), &err)

	if err = validateID(orderID); err != nil {
		return false, err
	}

	err = e.store.WithinTx(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		order, err := uow.Orders().GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.State == domain.OrderStateShipped {
			return domain.ErrOrderAlreadyShipped
		}
		if err := uow.Orders().Delete(ctx, orderID); err != nil {
			return fmt.Errorf("delete order: %w", err)
		}
		return enqueue(ctx, uow, domain.NewOrderEvent(domain.EventTypeOrderDeleted, order, "", e.now()))
	})
	if errors.Is(err, domain.ErrOrderNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	e.logger.WithField("order_id", orderID).Info("order deleted")
	return true, nil
}
