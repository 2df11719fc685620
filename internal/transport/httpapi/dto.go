package httpapi

import (
	"time"

	"github.com/vladislavdragonenkov/orderapi/internal/domain"
)

// envelope — общий формат ответа API.
type envelope struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Data    any      `json:"data,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

type orderItemResponse struct {
	ID          int64  `json:"id"`
	ProductID   int64  `json:"productId"`
	ProductName string `json:"productName"`
	Quantity    int    `json:"quantity"`
	UnitPrice   Money  `json:"unitPrice"`
	Subtotal    Money  `json:"subtotal"`
}

type orderResponse struct {
	ID        int64               `json:"id"`
	CreatedAt time.Time           `json:"createdAt"`
	State     string              `json:"state"`
	Total     Money               `json:"total"`
	Items     []orderItemResponse `json:"items"`
}

type productResponse struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Price         Money     `json:"price"`
	StockQuantity int       `json:"stockQuantity"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type pageResponse[T any] struct {
	Items           []T  `json:"items"`
	TotalCount      int  `json:"totalCount"`
	PageNumber      int  `json:"pageNumber"`
	PageSize        int  `json:"pageSize"`
	TotalPages      int  `json:"totalPages"`
	HasPreviousPage bool `json:"hasPreviousPage"`
	HasNextPage     bool `json:"hasNextPage"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type productRequest struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	Price         Money  `json:"price"`
	StockQuantity int    `json:"stockQuantity"`
}

type addItemRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

type setStateRequest struct {
	State string `json:"state"`
}

func toOrderItemResponse(item domain.OrderItem) orderItemResponse {
	return orderItemResponse{
		ID:          item.ID,
		ProductID:   item.ProductID,
		ProductName: item.ProductName,
		Quantity:    item.Quantity,
		UnitPrice:   Money(item.UnitPrice),
		Subtotal:    Money(item.Subtotal),
	}
}

func toOrderResponse(order domain.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, toOrderItemResponse(item))
	}
	return orderResponse{
		ID:        order.ID,
		CreatedAt: order.CreatedAt,
		State:     string(order.State),
		Total:     Money(order.Total()),
		Items:     items,
	}
}

func toProductResponse(p domain.Product) productResponse {
	return productResponse{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Price:         Money(p.Price),
		StockQuantity: p.StockQuantity,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func mapSlice[S, D any](src []S, fn func(S) D) []D {
	dst := make([]D, 0, len(src))
	for _, s := range src {
		dst = append(dst, fn(s))
	}
	return dst
}

func toPageResponse[S, D any](page domain.Page[S], fn func(S) D) pageResponse[D] {
	return pageResponse[D]{
		Items:           mapSlice(page.Items, fn),
		TotalCount:      page.TotalCount,
		PageNumber:      page.PageNumber,
		PageSize:        page.PageSize,
		TotalPages:      page.TotalPages,
		HasPreviousPage: page.PageNumber > 1,
		HasNextPage:     page.PageNumber < page.TotalPages,
	}
}

func (r productRequest) toInput() domain.ProductInput {
	return domain.ProductInput{
		Name:          r.Name,
		Description:   r.Description,
		Price:         r.Price.Decimal(),
		StockQuantity: r.StockQuantity,
	}
}
