// Package resilience wraps outbound I/O (broker publishes, database
// writes) with a circuit breaker and provides exponential-backoff
// reconnection for broker and database clients (C5).
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// ErrOpen is surfaced when a call is rejected because the breaker is open.
// Callers translate this into a transient error: retry() at the consumer
// level, HTTP 5xx at the API level.
var ErrOpen = gobreaker.ErrOpenState

// BreakerSettings mirrors the vocabulary in spec §4.5/§5: a
// failure-percentage threshold, a volume threshold below which the
// breaker never trips, a per-call timeout, and an open-state reset
// timeout. Disabled breakers pass every call straight through.
type BreakerSettings struct {
	Name                string
	Enabled             bool
	FailurePercentage    float64 // e.g. 0.5 for 50%
	VolumeThreshold     uint32
	Timeout             time.Duration // per-call timeout
	ResetTimeout        time.Duration // how long the breaker stays open
}

// DefaultBreakerSettings matches the spec's stated defaults.
func DefaultBreakerSettings(name string) BreakerSettings {
	return BreakerSettings{
		Name:              name,
		Enabled:           true,
		FailurePercentage: 0.5,
		VolumeThreshold:   5,
		Timeout:           3 * time.Second,
		ResetTimeout:      30 * time.Second,
	}
}

// Breaker executes calls through a gobreaker.CircuitBreaker, converting the
// spec's failure-percentage/volume-threshold vocabulary into gobreaker's
// ReadyToTrip callback.
type Breaker struct {
	settings BreakerSettings
	cb       *gobreaker.CircuitBreaker
}

// New builds a Breaker from settings. A disabled breaker executes every
// call directly with no tripping logic.
func New(settings BreakerSettings) *Breaker {
	b := &Breaker{settings: settings}
	if !settings.Enabled {
		return b
	}
	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     settings.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < settings.VolumeThreshold {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= settings.FailurePercentage
		},
	})
	return b
}

// Execute runs fn under the breaker with the configured per-call timeout.
// A timed-out or failing call counts against the failure ratio; once the
// breaker is open, Execute fails fast with ErrOpen without invoking fn.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if b.cb == nil {
		return fn(ctx)
	}
	_, err := b.cb.Execute(func() (any, error) {
		callCtx := ctx
		var cancel context.CancelFunc
		if b.settings.Timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, b.settings.Timeout)
			defer cancel()
		}
		return nil, fn(callCtx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return ErrOpen
		}
		return err
	}
	return nil
}

// State reports the breaker's current state name, used by readiness/status
// reporting.
func (b *Breaker) State() string {
	if b.cb == nil {
		return "disabled"
	}
	return b.cb.State().String()
}
