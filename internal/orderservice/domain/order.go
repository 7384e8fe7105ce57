// Package domain holds the Order aggregate (read-model) and its state
// machine, driven by the Order service's own HTTP create/cancel endpoints
// and by its consumers of inventory events.
package domain

import (
	"errors"
	"time"
)

// OrderStatus is the aggregate's lifecycle state.
type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusConfirmed OrderStatus = "CONFIRMED"
	StatusRejected  OrderStatus = "REJECTED"
	StatusCancelled OrderStatus = "CANCELLED"
)

// ErrInvalidOrder is returned by NewOrder when the request body fails
// validation: non-empty customerId, at least one item, each item with a
// positive quantity and unit price.
var ErrInvalidOrder = errors.New("invalid order request")

// Item is one line item of an order.
type Item struct {
	ProductID string
	Quantity  int
	UnitPrice float64
}

// Order is the order aggregate: {orderId, customerId, items, total,
// status, createdAt, updatedAt}.
type Order struct {
	OrderID    string
	CustomerID string
	Items      []Item
	Total      float64
	Status     OrderStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewOrder validates the request fields and computes total = sum(qty *
// unitPrice). It does not assign an orderId or persist anything.
func NewOrder(customerID string, items []Item) (Order, error) {
	if customerID == "" {
		return Order{}, ErrInvalidOrder
	}
	if len(items) < 1 {
		return Order{}, ErrInvalidOrder
	}
	var total float64
	for _, item := range items {
		if item.ProductID == "" || item.Quantity <= 0 || item.UnitPrice <= 0 {
			return Order{}, ErrInvalidOrder
		}
		total += float64(item.Quantity) * item.UnitPrice
	}
	now := time.Now().UTC()
	return Order{
		CustomerID: customerID,
		Items:      items,
		Total:      total,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Confirm transitions the order to CONFIRMED. Last-write-wins: no guard
// against the order already being in a terminal state. This matches the
// source behavior the test suite assumes (see DESIGN.md); implementers
// who want illegal-transition rejection should add a guard here.
func (o *Order) Confirm(at time.Time) {
	o.Status = StatusConfirmed
	o.UpdatedAt = at
}

// Reject transitions the order to REJECTED. Last-write-wins, see Confirm.
func (o *Order) Reject(at time.Time) {
	o.Status = StatusRejected
	o.UpdatedAt = at
}

// Cancel transitions the order to CANCELLED. Last-write-wins, see Confirm.
func (o *Order) Cancel(at time.Time) {
	o.Status = StatusCancelled
	o.UpdatedAt = at
}
