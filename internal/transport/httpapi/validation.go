package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/vladislavdragonenkov/orderapi/internal/domain"
)

var (
	productNamePattern        = regexp.MustCompile(`^[A-Za-z0-9\sáéíóúÁÉÍÓÚñÑ.\-]+$`)
	productDescriptionPattern = regexp.MustCompile(`^[A-Za-z0-9\sáéíóúÁÉÍÓÚñÑ.,!?()\-]+$`)
)

type problems []string

func (p *problems) add(format string, args ...any) {
	*p = append(*p, fmt.Sprintf(format, args...))
}

func (p problems) err() error {
	if len(p) == 0 {
		return nil
	}
	return &validationError{problems: p}
}

func validateProductRequest(req productRequest) error {
	var p problems

	name := strings.TrimSpace(req.Name)
	switch n := utf8.RuneCountInString(name); {
	case n == 0:
		p.add("name is required")
	case n < domain.ProductNameMinLen || n > domain.ProductNameMaxLen:
		p.add("name must be between %d and %d characters", domain.ProductNameMinLen, domain.ProductNameMaxLen)
	case !productNamePattern.MatchString(name):
		p.add("name contains invalid characters")
	}

	description := strings.TrimSpace(req.Description)
	switch n := utf8.RuneCountInString(description); {
	case n == 0:
		p.add("description is required")
	case n < domain.ProductDescriptionMinLen || n > domain.ProductDescriptionMaxLen:
		p.add("description must be between %d and %d characters", domain.ProductDescriptionMinLen, domain.ProductDescriptionMaxLen)
	case !productDescriptionPattern.MatchString(description):
		p.add("description contains invalid characters")
	}

	price := req.Price.Decimal()
	switch {
	case !price.IsPositive():
		p.add("price must be greater than zero")
	case price.GreaterThan(domain.MaxProductPrice):
		p.add("price must not exceed %s", domain.MaxProductPrice.StringFixed(2))
	case !price.Equal(price.Round(2)):
		p.add("price must have at most two decimal places")
	}

	if req.StockQuantity < 0 || req.StockQuantity > domain.MaxStockQuantity {
		p.add("stockQuantity must be between 0 and %d", domain.MaxStockQuantity)
	}
	return p.err()
}

func validateAddItemRequest(req addItemRequest) error {
	var p problems
	if req.ProductID <= 0 {
		p.add("productId must be greater than zero")
	}
	if req.Quantity < 1 || req.Quantity > domain.MaxItemQuantity {
		p.add("quantity must be between 1 and %d", domain.MaxItemQuantity)
	}
	return p.err()
}

func validateSetStateRequest(req setStateRequest) error {
	var p problems
	state := strings.TrimSpace(req.State)
	if state == "" {
		p.add("state is required")
	} else if _, err := domain.ParseOrderState(state); err != nil {
		p.add("state must be one of %s, %s, %s", domain.OrderStatePending, domain.OrderStatePaid, domain.OrderStateShipped)
	}
	return p.err()
}

func validateLoginRequest(req loginRequest) error {
	var p problems
	if strings.TrimSpace(req.Username) == "" {
		p.add("username is required")
	}
	if req.Password == "" {
		p.add("password is required")
	}
	return p.err()
}

// pathID читает положительный целочисленный параметр маршрута.
func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &validationError{problems: []string{name + " must be a positive integer"}}
	}
	return id, nil
}

// pageQuery читает pageNumber и pageSize со значениями по умолчанию 1 и 10.
func pageQuery(r *http.Request) (domain.PageRequest, error) {
	req := domain.PageRequest{Number: domain.DefaultPageNumber, Size: domain.DefaultPageSize}
	var p problems

	query := r.URL.Query()
	if raw := query.Get("pageNumber"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			p.add("pageNumber must be an integer")
		}
		req.Number = n
	}
	if raw := query.Get("pageSize"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			p.add("pageSize must be an integer")
		}
		req.Size = n
	}
	if len(p) == 0 {
		if req.Number < 1 || req.Number > domain.MaxPageNumber {
			p.add("pageNumber must be between 1 and %d", domain.MaxPageNumber)
		}
		if req.Size < 1 || req.Size > domain.MaxPageSize {
			p.add("pageSize must be between 1 and %d", domain.MaxPageSize)
		}
	}
	return req, p.err()
}

// decodeJSON читает тело запроса строго: неизвестные поля и мусор после объекта отклоняются.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return &validationError{problems: []string{"request body is required"}}
		}
		return &validationError{problems: []string{"malformed request body: " + err.Error()}}
	}
	if dec.More() {
		return &validationError{problems: []string{"request body must contain a single JSON object"}}
	}
	return nil
}
