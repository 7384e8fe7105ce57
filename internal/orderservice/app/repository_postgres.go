package app

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nsridhar76/go-orderflow/internal/eventbus/resilience"
	"github.com/nsridhar76/go-orderflow/internal/orderservice/domain"
)

// OrdersSchema is the DDL for the order read-model table.
const OrdersSchema = `
CREATE TABLE IF NOT EXISTS orders (
	order_id    TEXT PRIMARY KEY,
	customer_id TEXT NOT NULL,
	items       JSONB NOT NULL,
	total       NUMERIC NOT NULL,
	status      TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);
`

// MigrateOrders creates the orders table if it does not already exist.
func MigrateOrders(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, OrdersSchema)
	return err
}

// PostgresRepository is the pgx-backed domain.Repository implementation.
// Writes are wrapped in a circuit breaker per §4.5.
type PostgresRepository struct {
	pool    *pgxpool.Pool
	breaker *resilience.Breaker
}

// NewPostgresRepository wraps pool, guarding writes with breaker.
func NewPostgresRepository(pool *pgxpool.Pool, breaker *resilience.Breaker) *PostgresRepository {
	return &PostgresRepository{pool: pool, breaker: breaker}
}

const insertOrderSQL = `
INSERT INTO orders (order_id, customer_id, items, total, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (order_id) DO NOTHING
RETURNING order_id, customer_id, items, total, status, created_at, updated_at
`

const selectOrderSQL = `
SELECT order_id, customer_id, items, total, status, created_at, updated_at
FROM orders WHERE order_id = $1
`

// Create inserts o. A duplicate OrderID returns the row already on disk
// instead of erroring, per §4.4.1 step 3: "Duplicate-key on orderId
// returns the existing row."
func (r *PostgresRepository) Create(ctx context.Context, o domain.Order) (domain.Order, error) {
	var out domain.Order
	err := r.breaker.Execute(ctx, func(ctx context.Context) error {
		items, err := json.Marshal(o.Items)
		if err != nil {
			return err
		}
		row := r.pool.QueryRow(ctx, insertOrderSQL,
			o.OrderID, o.CustomerID, items, o.Total, string(o.Status), o.CreatedAt, o.UpdatedAt,
		)
		out, err = scanOrder(row)
		if errors.Is(err, pgx.ErrNoRows) {
			row = r.pool.QueryRow(ctx, selectOrderSQL, o.OrderID)
			out, err = scanOrder(row)
		}
		return err
	})
	return out, err
}

const updateOrderSQL = `
UPDATE orders SET status = $2, updated_at = $3 WHERE order_id = $1
`

func (r *PostgresRepository) Update(ctx context.Context, o domain.Order) error {
	return r.breaker.Execute(ctx, func(ctx context.Context) error {
		_, err := r.pool.Exec(ctx, updateOrderSQL, o.OrderID, string(o.Status), o.UpdatedAt)
		return err
	})
}

func (r *PostgresRepository) FindByID(ctx context.Context, orderID string) (*domain.Order, error) {
	row := r.pool.QueryRow(ctx, selectOrderSQL, orderID)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	var status string
	var items []byte
	if err := row.Scan(&o.OrderID, &o.CustomerID, &items, &o.Total, &status, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return domain.Order{}, err
	}
	o.Status = domain.OrderStatus(status)
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

var _ domain.Repository = (*PostgresRepository)(nil)
