// Package store implements the event store (C3): append-only, idempotent
// persistence of every envelope a service has produced or consumed, keyed
// by eventId, with a secondary index on payload.orderId for replay and
// correlation queries.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nsridhar76/go-orderflow/internal/eventbus/envelope"
)

// Record is the on-disk shape of one stored event: the envelope plus the
// denormalized orderId used for the secondary index.
type Record struct {
	EventID       string
	Type          string
	Version       int
	OccurredAt    time.Time
	Producer      string
	CorrelationID string
	OrderID       string
	Payload       json.RawMessage
}

// FromEnvelope derives the stored record for e, extracting payload.orderId
// for the secondary index.
func FromEnvelope(e envelope.Envelope) Record {
	return Record{
		EventID:       e.EventID,
		Type:          e.Type,
		Version:       e.Version,
		OccurredAt:    e.OccurredAt,
		Producer:      e.Producer,
		CorrelationID: e.CorrelationID,
		OrderID:       envelope.OrderID(e),
		Payload:       e.Payload,
	}
}

// Envelope reconstructs the original envelope from a stored record.
func (r Record) Envelope() envelope.Envelope {
	return envelope.Envelope{
		EventID:       r.EventID,
		Type:          r.Type,
		Version:       r.Version,
		OccurredAt:    r.OccurredAt,
		Producer:      r.Producer,
		CorrelationID: r.CorrelationID,
		Payload:       r.Payload,
	}
}

// Filter selects a subset of stored events for replay/correlation
// queries. Nil fields are unconstrained.
type Filter struct {
	Type    *string
	OrderID *string
	From    *time.Time
	To      *time.Time
}

// Store is the event store's contract. Implementations must make Append
// idempotent on EventID and Find results ordered by (occurredAt ASC,
// eventId ASC).
type Store interface {
	// Append inserts e, treating a duplicate EventID as success.
	Append(ctx context.Context, e envelope.Envelope) error
	FindByEventID(ctx context.Context, eventID string) (*envelope.Envelope, error)
	Find(ctx context.Context, filter Filter) ([]envelope.Envelope, error)
}
