package broker

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

// inspectChannel is the subset of *amqp.Channel needed to inspect a queue.
type inspectChannel interface {
	QueueInspect(name string) (amqp.Queue, error)
}

// ChannelInspector adapts an AMQP channel to health.QueueInspector,
// satisfying readiness's "a named known queue can be inspected on the
// broker" check.
type ChannelInspector struct {
	Channel inspectChannel
}

// InspectQueue confirms name exists and is reachable on the broker.
func (c ChannelInspector) InspectQueue(_ context.Context, name string) error {
	_, err := c.Channel.QueueInspect(name)
	return err
}
