package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name             string
		err              error
		notFound         bool
		invalidOperation bool
		invalidArgument  bool
	}{
		{name: "order not found", err: ErrOrderNotFound, notFound: true},
		{name: "product not found", err: ErrProductNotFound, notFound: true},
		{name: "shipped", err: ErrOrderAlreadyShipped, invalidOperation: true},
		{name: "paid", err: ErrOrderAlreadyPaid, invalidOperation: true},
		{name: "duplicate line", err: ErrProductAlreadyInOrder, invalidOperation: true},
		{name: "stock", err: ErrInsufficientStock, invalidOperation: true},
		{name: "duplicate name", err: ErrProductNameDuplicate, invalidOperation: true},
		{name: "product in orders", err: ErrProductInOrders, invalidOperation: true},
		{name: "bad state", err: ErrInvalidOrderState, invalidArgument: true},
		{name: "bad quantity", err: ErrQuantityInvalid, invalidArgument: true},
		{name: "bad page", err: ErrPageInvalid, invalidArgument: true},
		{name: "bad id", err: ErrIDInvalid, invalidArgument: true},
		{name: "wrapped", err: fmt.Errorf("add item: %w", ErrInsufficientStock), invalidOperation: true},
		{name: "infra", err: errors.New("connection refused")},
		{name: "nil", err: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNotFound(tt.err); got != tt.notFound {
				t.Errorf("IsNotFound() = %v, want %v", got, tt.notFound)
			}
			if got := IsInvalidOperation(tt.err); got != tt.invalidOperation {
				t.Errorf("IsInvalidOperation() = %v, want %v", got, tt.invalidOperation)
			}
			if got := IsInvalidArgument(tt.err); got != tt.invalidArgument {
				t.Errorf("IsInvalidArgument() = %v, want %v", got, tt.invalidArgument)
			}
		})
	}
}

func TestRuleErrorsAreDistinct(t *testing.T) {
	if errors.Is(ErrInsufficientStock, ErrProductAlreadyInOrder) {
		t.Fatal("rule errors must be distinguishable")
	}
	if ErrOrderAlreadyShipped.Error() != "order already shipped" {
		t.Fatalf("unexpected message: %q", ErrOrderAlreadyShipped.Error())
	}
}

func TestIsIdempotencyConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "already exists", err: ErrIdempotencyKeyAlreadyExists, want: true},
		{name: "hash mismatch", err: ErrIdempotencyHashMismatch, want: true},
		{name: "wrapped", err: errors.Join(ErrIdempotencyHashMismatch, errors.New("extra context")), want: true},
		{name: "other", err: ErrOrderNotFound, want: false},
		{name: "nil", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsIdempotencyConflict(tt.err); got != tt.want {
				t.Errorf("IsIdempotencyConflict() = %v, want %v", got, tt.want)
			}
		})
	}
}
