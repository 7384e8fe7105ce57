package idempotency

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	orderID   string
	expiresAt time.Time
}

// MemoryStore is an in-process idempotency map, process-local by
// construction. Per Design Notes §9, implementers should swap this for
// RedisStore in multi-replica deployments.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// NewMemoryStore returns an empty in-process idempotency store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string]entry{}, now: time.Now}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return "", false, nil
	}
	if m.now().After(e.expiresAt) {
		delete(m.entries, key)
		return "", false, nil
	}
	return e.orderID, true, nil
}

func (m *MemoryStore) Put(_ context.Context, key, orderID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry{orderID: orderID, expiresAt: m.now().Add(ttl)}
	return nil
}

var _ Store = (*MemoryStore)(nil)
