package store

import (
	"context"
	"sort"
	"sync"

	"github.com/nsridhar76/go-orderflow/internal/eventbus/envelope"
)

// MemoryStore is an in-process Store implementation used by service and
// consumer unit tests in place of a live Postgres instance. It preserves
// the same idempotent-append and ordered-find semantics as PostgresStore.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

// NewMemoryStore returns an empty in-memory event store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]Record{}}
}

func (m *MemoryStore) Append(_ context.Context, e envelope.Envelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.records[e.EventID]; exists {
		return nil
	}
	m.records[e.EventID] = FromEnvelope(e)
	return nil
}

func (m *MemoryStore) FindByEventID(_ context.Context, eventID string) (*envelope.Envelope, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[eventID]
	if !ok {
		return nil, nil
	}
	e := rec.Envelope()
	return &e, nil
}

func (m *MemoryStore) Find(_ context.Context, filter Filter) ([]envelope.Envelope, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []Record
	for _, rec := range m.records {
		if filter.Type != nil && rec.Type != *filter.Type {
			continue
		}
		if filter.OrderID != nil && rec.OrderID != *filter.OrderID {
			continue
		}
		if filter.From != nil && rec.OccurredAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && rec.OccurredAt.After(*filter.To) {
			continue
		}
		matched = append(matched, rec)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].OccurredAt.Equal(matched[j].OccurredAt) {
			return matched[i].EventID < matched[j].EventID
		}
		return matched[i].OccurredAt.Before(matched[j].OccurredAt)
	})

	out := make([]envelope.Envelope, 0, len(matched))
	for _, rec := range matched {
		out = append(out, rec.Envelope())
	}
	return out, nil
}

// Count returns the number of distinct events stored, used by tests
// asserting append idempotency (§8 property 3).
func (m *MemoryStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

var _ Store = (*MemoryStore)(nil)
