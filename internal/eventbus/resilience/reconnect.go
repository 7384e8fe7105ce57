package resilience

import (
	"context"
	"time"
)

// Reconnect retries connect until it succeeds or ctx is cancelled, using
// exponential backoff starting at initial and doubling up to a 30s
// ceiling, per §5's reconnection policy for broker and database clients.
func Reconnect[T any](ctx context.Context, initial time.Duration, connect func(ctx context.Context) (T, error)) (T, error) {
	const ceiling = 30 * time.Second
	delay := initial
	if delay <= 0 {
		delay = 250 * time.Millisecond
	}
	for {
		conn, err := connect(ctx)
		if err == nil {
			return conn, nil
		}
		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > ceiling {
			delay = ceiling
		}
	}
}
