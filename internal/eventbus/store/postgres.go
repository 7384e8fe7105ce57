package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nsridhar76/go-orderflow/internal/eventbus/envelope"
	"github.com/nsridhar76/go-orderflow/internal/eventbus/resilience"
)

// Schema is the DDL for the events table, run once at service startup.
// Each service owns its own database per §6; this table is identical
// across all three.
const Schema = `
CREATE TABLE IF NOT EXISTS events (
	event_id       TEXT PRIMARY KEY,
	type           TEXT NOT NULL,
	version        INT NOT NULL,
	occurred_at    TIMESTAMPTZ NOT NULL,
	producer       TEXT NOT NULL,
	correlation_id TEXT NOT NULL,
	order_id       TEXT,
	payload        JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS events_order_id_idx ON events (order_id);
`

// Migrate creates the events table if it does not already exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, Schema)
	return err
}

// PostgresStore is the pgx-backed Store implementation. Append is wrapped
// in a circuit breaker per §4.5; reads are not, since replay and
// correlation queries are operator-invoked, not on the hot path.
type PostgresStore struct {
	pool    *pgxpool.Pool
	breaker *resilience.Breaker
}

// NewPostgresStore wraps pool. breaker guards Append.
func NewPostgresStore(pool *pgxpool.Pool, breaker *resilience.Breaker) *PostgresStore {
	return &PostgresStore{pool: pool, breaker: breaker}
}

const appendSQL = `
INSERT INTO events (event_id, type, version, occurred_at, producer, correlation_id, order_id, payload)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (event_id) DO NOTHING
`

// Append is idempotent by construction: ON CONFLICT DO NOTHING makes a
// re-append of the same eventId a zero-row, error-free no-op, the
// Postgres-idiomatic form of "duplicate eventId on append is success".
func (s *PostgresStore) Append(ctx context.Context, e envelope.Envelope) error {
	rec := FromEnvelope(e)
	return s.breaker.Execute(ctx, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx, appendSQL,
			rec.EventID, rec.Type, rec.Version, rec.OccurredAt, rec.Producer, rec.CorrelationID, rec.OrderID, []byte(rec.Payload),
		)
		return err
	})
}

const findByEventIDSQL = `
SELECT event_id, type, version, occurred_at, producer, correlation_id, payload
FROM events WHERE event_id = $1
`

func (s *PostgresStore) FindByEventID(ctx context.Context, eventID string) (*envelope.Envelope, error) {
	row := s.pool.QueryRow(ctx, findByEventIDSQL, eventID)
	var rec Record
	var payload []byte
	if err := row.Scan(&rec.EventID, &rec.Type, &rec.Version, &rec.OccurredAt, &rec.Producer, &rec.CorrelationID, &payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	rec.Payload = payload
	e := rec.Envelope()
	return &e, nil
}

// Find builds a dynamic WHERE clause from filter and returns matching
// envelopes ordered by (occurredAt ASC, eventId ASC), the order replay
// must use.
func (s *PostgresStore) Find(ctx context.Context, filter Filter) ([]envelope.Envelope, error) {
	query, args := buildFindQuery(filter)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []envelope.Envelope
	for rows.Next() {
		var rec Record
		var payload []byte
		if err := rows.Scan(&rec.EventID, &rec.Type, &rec.Version, &rec.OccurredAt, &rec.Producer, &rec.CorrelationID, &payload); err != nil {
			return nil, err
		}
		rec.Payload = payload
		out = append(out, rec.Envelope())
	}
	return out, rows.Err()
}

func buildFindQuery(filter Filter) (string, []any) {
	var conditions []string
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}
	if filter.Type != nil {
		add("type = $%d", *filter.Type)
	}
	if filter.OrderID != nil {
		add("order_id = $%d", *filter.OrderID)
	}
	if filter.From != nil {
		add("occurred_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("occurred_at <= $%d", *filter.To)
	}

	query := "SELECT event_id, type, version, occurred_at, producer, correlation_id, payload FROM events"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY occurred_at ASC, event_id ASC"
	return query, args
}
