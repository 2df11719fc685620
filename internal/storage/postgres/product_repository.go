package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/orderapi/internal/domain"
)

const (
	productColumns = `id, name, description, price, stock_quantity, created_at, updated_at`

	productNameConstraint = "products_name_lower_key"
)

type productRepository struct {
	q querier
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.StockQuantity, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *productRepository) Get(ctx context.Context, id int64) (domain.Product, error) {
	return r.get(ctx, id, false)
}

func (r *productRepository) GetForUpdate(ctx context.Context, id int64) (domain.Product, error) {
	return r.get(ctx, id, true)
}

func (r *productRepository) get(ctx context.Context, id int64, forUpdate bool) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	product, err := scanProduct(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}
	return product, nil
}

func (r *productRepository) List(ctx context.Context) ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return r.query(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
}

func (r *productRepository) ListPage(ctx context.Context, offset, limit int) ([]domain.Product, int, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var total int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	products, err := r.query(ctx, `SELECT `+productColumns+` FROM products ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (r *productRepository) query(ctx context.Context, query string, args ...any) ([]domain.Product, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}
	return products, nil
}

func (r *productRepository) NameTaken(ctx context.Context, name string, excludeID int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var taken bool
	err := r.q.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM products WHERE LOWER(name) = LOWER($1) AND id <> $2
		)
	`, name, excludeID).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check product name: %w", err)
	}
	return taken, nil
}

func (r *productRepository) Create(ctx context.Context, product domain.Product) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	err := r.q.QueryRowContext(ctx, `
		INSERT INTO products (name, description, price, stock_quantity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`,
		product.Name, product.Description, product.Price, product.StockQuantity,
	).Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		if isNameConflict(err) {
			return domain.Product{}, domain.ErrProductNameDuplicate
		}
		return domain.Product{}, fmt.Errorf("insert product: %w", err)
	}
	return product, nil
}

func (r *productRepository) Update(ctx context.Context, product domain.Product) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	err := r.q.QueryRowContext(ctx, `
		UPDATE products
		SET name = $2,
		    description = $3,
		    price = $4,
		    stock_quantity = $5,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at
	`,
		product.ID, product.Name, product.Description, product.Price, product.StockQuantity,
	).Scan(&product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return domain.Product{}, domain.ErrProductNotFound
		case isNameConflict(err):
			return domain.Product{}, domain.ErrProductNameDuplicate
		}
		return domain.Product{}, fmt.Errorf("update product: %w", err)
	}
	return product, nil
}

func (r *productRepository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.q.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		if _, ok := pgError(err, pgForeignKeyViolation); ok {
			return domain.ErrProductInOrders
		}
		return fmt.Errorf("delete product: %w", err)
	}

	affected, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

func (r *productRepository) IsReferenced(ctx context.Context, id int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var referenced bool
	if err := r.q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM order_items WHERE product_id = $1)`, id,
	).Scan(&referenced); err != nil {
		return false, fmt.Errorf("check product references: %w", err)
	}
	return referenced, nil
}

func isNameConflict(err error) bool {
	pgErr, ok := pgError(err, pgUniqueViolation)
	return ok && pgErr.ConstraintName == productNameConstraint
}

var _ domain.ProductRepository = (*productRepository)(nil)
