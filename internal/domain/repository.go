package domain

import "context"

// ProductRepository описывает доступ к товарам.
type ProductRepository interface {
	// Get возвращает товар или ErrProductNotFound.
	Get(ctx context.Context, id int64) (Product, error)
	// GetForUpdate читает товар и удерживает его до конца транзакции.
	GetForUpdate(ctx context.Context, id int64) (Product, error)
	List(ctx context.Context) ([]Product, error)
	// ListPage возвращает срез товаров по возрастанию ID и общее количество.
	ListPage(ctx context.Context, offset, limit int) ([]Product, int, error)
	// NameTaken проверяет занятость имени без учёта регистра, исключая товар excludeID.
	NameTaken(ctx context.Context, name string, excludeID int64) (bool, error)
	Create(ctx context.Context, product Product) (Product, error)
	Update(ctx context.Context, product Product) (Product, error)
	Delete(ctx context.Context, id int64) error
	// IsReferenced проверяет, ссылается ли на товар хотя бы одна позиция любого заказа.
	IsReferenced(ctx context.Context, id int64) (bool, error)
}

// OrderRepository описывает доступ к заказам и их позициям.
type OrderRepository interface {
	// Get возвращает заказ с позициями или ErrOrderNotFound.
	Get(ctx context.Context, id int64) (Order, error)
	// GetForUpdate читает заказ и удерживает его до конца транзакции.
	GetForUpdate(ctx context.Context, id int64) (Order, error)
	List(ctx context.Context) ([]Order, error)
	ListPage(ctx context.Context, offset, limit int) ([]Order, int, error)
	Create(ctx context.Context, order Order) (Order, error)
	UpdateState(ctx context.Context, id int64, state OrderState) error
	// AddItem сохраняет позицию и возвращает её с присвоенным ID.
	AddItem(ctx context.Context, item OrderItem) (OrderItem, error)
	// Delete удаляет заказ вместе с позициями.
	Delete(ctx context.Context, id int64) error
}

// UnitOfWork — набор репозиториев, работающих в одной транзакции.
type UnitOfWork interface {
	Products() ProductRepository
	Orders() OrderRepository
	Outbox() OutboxRepository
}

// EntityStore — хранилище сущностей. Методы UnitOfWork вне WithinTx выполняются без общей транзакции.
type EntityStore interface {
	UnitOfWork
	// WithinTx выполняет fn атомарно: при ошибке все изменения откатываются.
	WithinTx(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error
	Ping(ctx context.Context) error
	Close() error
}
