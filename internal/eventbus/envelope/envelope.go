// Package envelope defines the canonical event envelope and the
// per-(type, version) schema registry used to validate it in both
// directions: before a producer publishes, and before a consumer hands a
// message to a handler.
package envelope

import (
	"encoding/json"
	"fmt"
	"time"
)

// Envelope is the fixed-shape wrapper carried by every message on the bus.
type Envelope struct {
	EventID       string          `json:"eventId"`
	Type          string          `json:"type"`
	Version       int             `json:"version"`
	OccurredAt    time.Time       `json:"occurredAt"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlationId"`
	Payload       json.RawMessage `json:"payload"`
}

// SchemaError reports a validation failure against the envelope or its
// payload, naming the offending field so operators can find it in logs.
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema: field %q: %s", e.Field, e.Reason)
}

func fieldErr(field, reason string) *SchemaError {
	return &SchemaError{Field: field, Reason: reason}
}

// New constructs an envelope with occurredAt assigned monotonically at
// construction time. Replay must never call this — it re-publishes the
// stored envelope bytes unchanged.
func New(eventID, typ string, version int, producer, correlationID string, payload json.RawMessage) Envelope {
	return Envelope{
		EventID:       eventID,
		Type:          typ,
		Version:       version,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: correlationID,
		Payload:       payload,
	}
}

func (e Envelope) validateShape() error {
	if e.EventID == "" {
		return fieldErr("eventId", "must not be empty")
	}
	if e.Type == "" {
		return fieldErr("type", "must not be empty")
	}
	if e.Version <= 0 {
		return fieldErr("version", "must be a positive integer")
	}
	if e.OccurredAt.IsZero() {
		return fieldErr("occurredAt", "must be set")
	}
	if e.Producer == "" {
		return fieldErr("producer", "must not be empty")
	}
	if e.CorrelationID == "" {
		return fieldErr("correlationId", "must not be empty")
	}
	if len(e.Payload) == 0 {
		return fieldErr("payload", "must not be empty")
	}
	return nil
}

// ValidateOutgoing checks an envelope a producer is about to publish:
// envelope shape, then the payload schema selected by (type, version).
// Schema failures are never retried — the caller must not publish.
func ValidateOutgoing(e Envelope) error {
	if err := e.validateShape(); err != nil {
		return err
	}
	return validatePayload(e.Type, e.Version, e.Payload)
}

// ValidateIncoming parses raw bytes off the wire into an Envelope and runs
// the same shape + payload validation a producer would have run. Consumers
// call this first; a failure here routes the delivery straight to DLQ.
func ValidateIncoming(raw []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(raw, &e); err != nil {
		return Envelope{}, fieldErr("$", "invalid JSON: "+err.Error())
	}
	if err := e.validateShape(); err != nil {
		return Envelope{}, err
	}
	if err := validatePayload(e.Type, e.Version, e.Payload); err != nil {
		return Envelope{}, err
	}
	return e, nil
}
