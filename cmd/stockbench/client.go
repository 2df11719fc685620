package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const insufficientStockMessage = "insufficient stock"

type apiEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  []string        `json:"errors"`
}

// apiError — ответ API с неуспешным статусом.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("api responded %d: %s", e.Status, e.Message)
}

// apiClient — минимальный клиент REST API заказов.
type apiClient struct {
	baseURL string
	http    *http.Client
	token   string
	col     *collector
}

func newAPIClient(baseURL string, timeout time.Duration, concurrency int, col *collector) *apiClient {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = concurrency
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout, Transport: transport},
		col:     col,
	}
}

func (c *apiClient) do(ctx context.Context, kind, method, path string, body any, out any) error {
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if method == http.MethodPost {
		req.Header.Set("Idempotency-Key", uuid.NewString())
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.col.record(kind, time.Since(started), 0)
		return err
	}
	defer resp.Body.Close()

	var envelope apiEnvelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&envelope)
	c.col.record(kind, time.Since(started), resp.StatusCode)

	if resp.StatusCode >= http.StatusBadRequest {
		return &apiError{Status: resp.StatusCode, Message: envelope.Message}
	}
	if decodeErr != nil {
		return fmt.Errorf("decode %s response: %w", kind, decodeErr)
	}
	if out != nil {
		return json.Unmarshal(envelope.Data, out)
	}
	return nil
}

func (c *apiClient) login(ctx context.Context, username, password string) error {
	var token struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, "login", http.MethodPost, "/api/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, &token); err != nil {
		return err
	}
	c.token = token.Token
	return nil
}

type productData struct {
	ID            int64 `json:"id"`
	StockQuantity int   `json:"stockQuantity"`
}

func (c *apiClient) createProduct(ctx context.Context, name string, stock int) (productData, error) {
	var product productData
	err := c.do(ctx, "create_product", http.MethodPost, "/api/products", map[string]any{
		"name":          name,
		"description":   "Producto de carga para la prueba de stock",
		"price":         1,
		"stockQuantity": stock,
	}, &product)
	return product, err
}

func (c *apiClient) getProduct(ctx context.Context, id int64) (productData, error) {
	var product productData
	err := c.do(ctx, "get_product", http.MethodGet, "/api/products/"+strconv.FormatInt(id, 10), nil, &product)
	return product, err
}

func (c *apiClient) createOrder(ctx context.Context) (int64, error) {
	var order struct {
		ID int64 `json:"id"`
	}
	err := c.do(ctx, "create_order", http.MethodPost, "/api/orders", nil, &order)
	return order.ID, err
}

func (c *apiClient) addItem(ctx context.Context, orderID, productID int64, quantity int) error {
	return c.do(ctx, "add_item", http.MethodPost, "/api/orders/"+strconv.FormatInt(orderID, 10)+"/items", map[string]any{
		"productId": productID,
		"quantity":  quantity,
	}, nil)
}
