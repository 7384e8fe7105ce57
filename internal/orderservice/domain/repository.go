package domain

import (
	"context"
	"errors"
)

// ErrNotFound is returned when an operation targets an orderId that has not
// been created. Repository.FindByID itself reports a missing order as a nil
// order with a nil error.
var ErrNotFound = errors.New("order not found")

// Repository persists and retrieves order aggregates. Create must be
// idempotent on OrderID: "duplicate orderId returns the existing row"
// rather than erroring.
type Repository interface {
	Create(ctx context.Context, o Order) (Order, error)
	Update(ctx context.Context, o Order) error
	FindByID(ctx context.Context, orderID string) (*Order, error)
}
