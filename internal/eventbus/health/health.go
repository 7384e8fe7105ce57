// Package health implements liveness/readiness probing (C5): liveness is
// trivially true while the process runs; readiness requires, within a
// bounded timeout, that the database answers a ping and a named queue can
// be inspected on the broker.
package health

import (
	"context"
	"time"
)

// DefaultTimeout is the design default readiness check timeout (~1.5s).
const DefaultTimeout = 1500 * time.Millisecond

// DBPinger is satisfied by *pgxpool.Pool.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// QueueInspector is satisfied by a thin wrapper over *amqp.Channel's
// QueueInspect, or a fake in tests.
type QueueInspector interface {
	InspectQueue(ctx context.Context, name string) error
}

// Checker composes the two readiness dependencies named in §4.5: a
// database and a named known queue on the broker.
type Checker struct {
	DB        DBPinger
	Broker    QueueInspector
	QueueName string
	Timeout   time.Duration
}

// Live always reports true: liveness only asks whether the process is
// running, which is tautological if this call executes at all.
func (c *Checker) Live(context.Context) bool { return true }

// Ready reports true only if the database responds to a ping and the
// configured queue can be inspected, both within Timeout. Either check
// failing, or timing out, means not-ready — never a handler error.
func (c *Checker) Ready(ctx context.Context) bool {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if c.DB != nil {
		if err := c.DB.Ping(ctx); err != nil {
			return false
		}
	}
	if c.Broker != nil {
		if err := c.Broker.InspectQueue(ctx, c.QueueName); err != nil {
			return false
		}
	}
	return ctx.Err() == nil
}
