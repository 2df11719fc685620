package httpapi

import (
	"context"
	"net/http"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderapi/internal/auth"
	"github.com/vladislavdragonenkov/orderapi/internal/domain"
)

// OrderService — операции над заказами, которые обслуживает HTTP-слой.
type OrderService interface {
	CreateOrder(ctx context.Context) (domain.Order, error)
	GetOrder(ctx context.Context, id int64) (domain.Order, error)
	ListOrders(ctx context.Context) ([]domain.Order, error)
	ListOrdersPaged(ctx context.Context, pageNumber, pageSize int) (domain.Page[domain.Order], error)
	AddItem(ctx context.Context, orderID, productID int64, quantity int) (domain.OrderItem, error)
	SetOrderState(ctx context.Context, orderID int64, stateName string) (bool, error)
	DeleteOrder(ctx context.Context, orderID int64) (bool, error)
}

// ProductService — операции над каталогом.
type ProductService interface {
	CreateProduct(ctx context.Context, input domain.ProductInput) (domain.Product, error)
	UpdateProduct(ctx context.Context, id int64, input domain.ProductInput) (domain.Product, error)
	DeleteProduct(ctx context.Context, id int64) (bool, error)
	GetProduct(ctx context.Context, id int64) (domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	ListProductsPaged(ctx context.Context, pageNumber, pageSize int) (domain.Page[domain.Product], error)
}

// Engine объединяет обе группы операций.
type Engine interface {
	OrderService
	ProductService
}

type handler struct {
	engine Engine
	auth   *auth.Authenticator
	logger *log.Entry
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	if h.auth == nil {
		writeFailure(w, http.StatusNotFound, "authentication is disabled")
		return
	}
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := validateLoginRequest(req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	token, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		h.logger.WithField("username", req.Username).Debug("login rejected")
		writeFailure(w, http.StatusUnauthorized, "invalid username or password")
		return
	}
	writeOK(w, http.StatusOK, "login successful", loginResponse{
		Token:     token.Token,
		Username:  token.Username,
		ExpiresAt: token.ExpiresAt,
	})
}

func (h *handler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.engine.ListOrders(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, "orders retrieved", mapSlice(orders, toOrderResponse))
}

func (h *handler) listOrdersPaged(w http.ResponseWriter, r *http.Request) {
	req, err := pageQuery(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	page, err := h.engine.ListOrdersPaged(r.Context(), req.Number, req.Size)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, "orders retrieved", toPageResponse(page, toOrderResponse))
}

func (h *handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "orderId")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	order, err := h.engine.GetOrder(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, "order retrieved", toOrderResponse(order))
}

func (h *handler) createOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.engine.CreateOrder(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.Header().Set("Location", "/api/orders/"+strconv.FormatInt(order.ID, 10))
	writeOK(w, http.StatusCreated, "order created", toOrderResponse(order))
}

func (h *handler) addItem(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "orderId")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req addItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := validateAddItemRequest(req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	item, err := h.engine.AddItem(r.Context(), orderID, req.ProductID, req.Quantity)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, "item added", toOrderItemResponse(item))
}

func (h *handler) setOrderState(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "orderId")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req setStateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := validateSetStateRequest(req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	ok, err := h.engine.SetOrderState(r.Context(), orderID, req.State)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !ok {
		writeFailure(w, http.StatusNotFound, domain.ErrOrderNotFound.Error())
		return
	}
	writeOK(w, http.StatusOK, "order state updated", nil)
}

func (h *handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "orderId")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	ok, err := h.engine.DeleteOrder(r.Context(), orderID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !ok {
		writeFailure(w, http.StatusNotFound, domain.ErrOrderNotFound.Error())
		return
	}
	writeOK(w, http.StatusOK, "order deleted", nil)
}

func (h *handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.engine.ListProducts(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, "products retrieved", mapSlice(products, toProductResponse))
}

func (h *handler) listProductsPaged(w http.ResponseWriter, r *http.Request) {
	req, err := pageQuery(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	page, err := h.engine.ListProductsPaged(r.Context(), req.Number, req.Size)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, "products retrieved", toPageResponse(page, toProductResponse))
}

func (h *handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "productId")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	product, err := h.engine.GetProduct(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, "product retrieved", toProductResponse(product))
}

func (h *handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := validateProductRequest(req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	product, err := h.engine.CreateProduct(r.Context(), req.toInput())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.Header().Set("Location", "/api/products/"+strconv.FormatInt(product.ID, 10))
	writeOK(w, http.StatusCreated, "product created", toProductResponse(product))
}

func (h *handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "productId")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req productRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := validateProductRequest(req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	product, err := h.engine.UpdateProduct(r.Context(), id, req.toInput())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, "product updated", toProductResponse(product))
}

func (h *handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "productId")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	ok, err := h.engine.DeleteProduct(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !ok {
		writeFailure(w, http.StatusNotFound, domain.ErrProductNotFound.Error())
		return
	}
	writeOK(w, http.StatusOK, "product deleted", nil)
}
