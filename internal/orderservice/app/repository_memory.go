package app

import (
	"context"
	"sync"

	"github.com/nsridhar76/go-orderflow/internal/orderservice/domain"
)

// MemoryRepository is an in-process Repository used by service and HTTP
// handler tests in place of a live Postgres instance.
type MemoryRepository struct {
	mu     sync.Mutex
	orders map[string]domain.Order
}

// NewMemoryRepository returns an empty in-memory order repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{orders: map[string]domain.Order{}}
}

// Create inserts o, or returns the existing row if OrderID is already
// present.
func (r *MemoryRepository) Create(_ context.Context, o domain.Order) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.orders[o.OrderID]; ok {
		return existing, nil
	}
	r.orders[o.OrderID] = o
	return o, nil
}

func (r *MemoryRepository) Update(_ context.Context, o domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.OrderID] = o
	return nil
}

func (r *MemoryRepository) FindByID(_ context.Context, orderID string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

var _ domain.Repository = (*MemoryRepository)(nil)
