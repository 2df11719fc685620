package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/orderapi/internal/domain"
)

const (
	orderItemProductConstraint = "order_items_order_product_key"
	orderItemOrderFKConstraint = "order_items_order_id_fkey"
)

type orderRepository struct {
	q querier
}

func (r *orderRepository) Get(ctx context.Context, id int64) (domain.Order, error) {
	return r.get(ctx, id, false)
}

// GetForUpdate блокирует строку заказа; позиции заказа меняются только под этой блокировкой.
func (r *orderRepository) GetForUpdate(ctx context.Context, id int64) (domain.Order, error) {
	return r.get(ctx, id, true)
}

func (r *orderRepository) get(ctx context.Context, id int64, forUpdate bool) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `SELECT id, state, created_at FROM orders WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var order domain.Order
	if err := r.q.QueryRowContext(ctx, query, id).Scan(&order.ID, &order.State, &order.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}

	items, err := r.loadItems(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items
	return order, nil
}

func (r *orderRepository) List(ctx context.Context) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return r.query(ctx, `SELECT id, state, created_at FROM orders ORDER BY id`)
}

func (r *orderRepository) ListPage(ctx context.Context, offset, limit int) ([]domain.Order, int, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var total int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	orders, err := r.query(ctx, `SELECT id, state, created_at FROM orders ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *orderRepository) query(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	orders := make([]domain.Order, 0)
	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(&order.ID, &order.State, &order.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	// Внутри транзакции второй запрос нельзя выполнять, пока курсор открыт.
	rows.Close()

	for i := range orders {
		items, err := r.loadItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

// loadItems читает позиции заказа; имя товара берётся из каталога на момент чтения.
func (r *orderRepository) loadItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT oi.id, oi.order_id, oi.product_id, p.name, oi.quantity, oi.unit_price, oi.subtotal
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1
		ORDER BY oi.id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0)
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(
			&item.ID, &item.OrderID, &item.ProductID, &item.ProductName,
			&item.Quantity, &item.UnitPrice, &item.Subtotal,
		); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}
	return items, nil
}

func (r *orderRepository) Create(ctx context.Context, order domain.Order) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := r.q.QueryRowContext(ctx, `
		INSERT INTO orders (state, created_at)
		VALUES ($1, $2)
		RETURNING id
	`, string(order.State), order.CreatedAt).Scan(&order.ID); err != nil {
		return domain.Order{}, fmt.Errorf("insert order: %w", err)
	}
	order.Items = []domain.OrderItem{}
	return order, nil
}

func (r *orderRepository) UpdateState(ctx context.Context, id int64, state domain.OrderState) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.q.ExecContext(ctx, `UPDATE orders SET state = $2 WHERE id = $1`, id, string(state))
	if err != nil {
		return fmt.Errorf("update order state: %w", err)
	}
	affected, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (r *orderRepository) AddItem(ctx context.Context, item domain.OrderItem) (domain.OrderItem, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	err := r.q.QueryRowContext(ctx, `
		INSERT INTO order_items (order_id, product_id, quantity, unit_price, subtotal)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, item.OrderID, item.ProductID, item.Quantity, item.UnitPrice, item.Subtotal).Scan(&item.ID)
	if err != nil {
		if pgErr, ok := pgError(err, pgUniqueViolation); ok && pgErr.ConstraintName == orderItemProductConstraint {
			return domain.OrderItem{}, domain.ErrProductAlreadyInOrder
		}
		if pgErr, ok := pgError(err, pgForeignKeyViolation); ok {
			if pgErr.ConstraintName == orderItemOrderFKConstraint {
				return domain.OrderItem{}, domain.ErrOrderNotFound
			}
			return domain.OrderItem{}, domain.ErrProductNotFound
		}
		return domain.OrderItem{}, fmt.Errorf("insert order item: %w", err)
	}
	return item, nil
}

func (r *orderRepository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.q.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	affected, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

var _ domain.OrderRepository = (*orderRepository)(nil)
