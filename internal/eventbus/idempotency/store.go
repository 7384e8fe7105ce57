// Package idempotency implements the HTTP idempotency-key map described in
// spec §3/§4.4.1/§9: IdempotencyKey -> orderId, scoped by TTL. Two
// implementations are provided behind the same Store interface, per
// Design Notes §9: an in-process map (tests, single-replica deployments)
// and a Redis-backed store (multi-replica production deployments).
package idempotency

import (
	"context"
	"time"
)

// Store maps a client-supplied Idempotency-Key to the orderId it
// originally produced, within a TTL window.
type Store interface {
	// Get returns the orderId previously recorded for key, if any and if
	// still within its TTL.
	Get(ctx context.Context, key string) (orderID string, found bool, err error)
	// Put records key -> orderID, expiring after ttl.
	Put(ctx context.Context, key, orderID string, ttl time.Duration) error
}

// DefaultTTL is the design default: 24 hours.
const DefaultTTL = 24 * time.Hour
