package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	ProductNameMinLen        = 3
	ProductNameMaxLen        = 100
	ProductDescriptionMinLen = 10
	ProductDescriptionMaxLen = 500
	MaxStockQuantity         = 999999
)

// MaxProductPrice — верхняя граница цены товара (NUMERIC(18,2) в хранилище, бизнес-лимит ниже).
var MaxProductPrice = decimal.RequireFromString("999999.99")

// Product — позиция каталога с ценой и остатком.
type Product struct {
	ID            int64
	Name          string
	Description   string
	Price         decimal.Decimal
	StockQuantity int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ProductInput — изменяемые поля товара при создании и обновлении.
type ProductInput struct {
	Name          string
	Description   string
	Price         decimal.Decimal
	StockQuantity int
}

// Normalize обрезает пробелы в строковых полях.
func (in ProductInput) Normalize() ProductInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	return in
}

// Validate проверяет инварианты товара, которые движок не доверяет внешней валидации.
func (in ProductInput) Validate() error {
	switch {
	case in.Name == "":
		return NewInvalidArgument("product name is required")
	case !in.Price.IsPositive():
		return NewInvalidArgument("product price must be greater than zero")
	case in.Price.GreaterThan(MaxProductPrice):
		return NewInvalidArgument("product price exceeds the maximum")
	case in.StockQuantity < 0:
		return NewInvalidArgument("product stock must be non-negative")
	case in.StockQuantity > MaxStockQuantity:
		return NewInvalidArgument("product stock exceeds the maximum")
	}
	return nil
}

// Apply переносит поля ввода в товар.
func (p Product) Apply(in ProductInput) Product {
	p.Name = in.Name
	p.Description = in.Description
	p.Price = in.Price.Round(2)
	p.StockQuantity = in.StockQuantity
	return p
}

// HasStock сообщает, хватает ли остатка на quantity единиц.
func (p Product) HasStock(quantity int) bool {
	return p.StockQuantity >= quantity
}

// SameName сравнивает имена без учёта регистра.
func SameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
