package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type fakeInspector struct{ err error }

func (f fakeInspector) InspectQueue(context.Context, string) error { return f.err }

func TestChecker_Live_AlwaysTrue(t *testing.T) {
	c := &Checker{}
	assert.True(t, c.Live(context.Background()))
}

func TestChecker_Ready_AllHealthy(t *testing.T) {
	c := &Checker{DB: fakePinger{}, Broker: fakeInspector{}, QueueName: "order.created.q"}
	assert.True(t, c.Ready(context.Background()))
}

func TestChecker_Ready_DBUnreachable(t *testing.T) {
	c := &Checker{DB: fakePinger{err: errors.New("down")}, Broker: fakeInspector{}}
	assert.False(t, c.Ready(context.Background()))
}

func TestChecker_Ready_BrokerUnreachable(t *testing.T) {
	c := &Checker{DB: fakePinger{}, Broker: fakeInspector{err: errors.New("down")}}
	assert.False(t, c.Ready(context.Background()))
}

type slowPinger struct{ delay time.Duration }

func (s slowPinger) Ping(ctx context.Context) error {
	select {
	case <-time.After(s.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestChecker_Ready_TimesOut(t *testing.T) {
	c := &Checker{DB: slowPinger{delay: 50 * time.Millisecond}, Broker: fakeInspector{}, Timeout: 5 * time.Millisecond}
	assert.False(t, c.Ready(context.Background()))
}
