package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderState описывает жизненный цикл заказа. Значения совпадают с токенами на проводе.
type OrderState string

const (
	// OrderStatePending — начальное состояние нового заказа.
	OrderStatePending OrderState = "Pendiente"
	// OrderStatePaid — заказ оплачен.
	OrderStatePaid OrderState = "Pagado"
	// OrderStateShipped — заказ отправлен, терминальное состояние.
	OrderStateShipped OrderState = "Enviado"
)

// MaxItemQuantity — верхняя граница количества в одной позиции.
const MaxItemQuantity = 999

var orderStates = []OrderState{OrderStatePending, OrderStatePaid, OrderStateShipped}

// ParseOrderState разбирает имя состояния без учёта регистра.
func ParseOrderState(name string) (OrderState, error) {
	name = strings.TrimSpace(name)
	for _, state := range orderStates {
		if strings.EqualFold(name, string(state)) {
			return state, nil
		}
	}
	return "", ErrInvalidOrderState
}

// Valid проверяет, что состояние входит в поддерживаемый набор.
func (s OrderState) Valid() bool {
	for _, state := range orderStates {
		if s == state {
			return true
		}
	}
	return false
}

// IsTerminal сообщает, что из состояния больше нет переходов.
func (s OrderState) IsTerminal() bool {
	return s == OrderStateShipped
}

// OrderItem — строка заказа со снимком цены на момент добавления.
type OrderItem struct {
	ID          int64
	OrderID     int64
	ProductID   int64
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	// Subtotal считается один раз при создании строки и хранится.
	Subtotal decimal.Decimal
}

// NewOrderItem создаёт позицию заказа, фиксируя текущую цену товара.
func NewOrderItem(orderID int64, product Product, quantity int) OrderItem {
	return OrderItem{
		OrderID:     orderID,
		ProductID:   product.ID,
		ProductName: product.Name,
		Quantity:    quantity,
		UnitPrice:   product.Price,
		Subtotal:    product.Price.Mul(decimal.NewFromInt(int64(quantity))),
	}
}

// Order агрегирует состояние заказа и его позиции.
type Order struct {
	ID        int64
	CreatedAt time.Time
	State     OrderState
	Items     []OrderItem
}

// NewOrder возвращает пустой заказ в состоянии Pending.
func NewOrder(now time.Time) Order {
	return Order{
		CreatedAt: now.UTC(),
		State:     OrderStatePending,
		Items:     []OrderItem{},
	}
}

// Total вычисляется при каждом чтении как сумма Subtotal позиций.
func (o Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Subtotal)
	}
	return total
}

// HasProduct проверяет наличие строки с товаром productID.
func (o Order) HasProduct(productID int64) bool {
	for _, item := range o.Items {
		if item.ProductID == productID {
			return true
		}
	}
	return false
}

// Clone возвращает копию заказа с независимым слайсом позиций.
func (o Order) Clone() Order {
	dst := o
	dst.Items = append(make([]OrderItem, 0, len(o.Items)), o.Items...)
	return dst
}
