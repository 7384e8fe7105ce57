package broker

import (
	"context"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeclareTopology_CreatesThreeQueuesPerBinding(t *testing.T) {
	fake := NewFakeChannel()
	require.NoError(t, DeclareTopology(context.Background(), fake))

	for _, b := range Bindings {
		for _, q := range []string{b.Queue, RetryQueueName(b.Queue), DLQName(b.Queue)} {
			_, ok := fake.queues[q]
			assert.True(t, ok, "expected queue %s to be declared", q)
		}
	}
}

func TestDeclareTopology_PublishRoutesToBoundQueue(t *testing.T) {
	fake := NewFakeChannel()
	require.NoError(t, DeclareTopology(context.Background(), fake))

	err := fake.PublishWithContext(context.Background(), ExchangeOrders, RoutingKey("orders.created", 1), false, false,
		amqp.Publishing{Body: []byte(`{"hello":"world"}`)})
	require.NoError(t, err)

	assert.Equal(t, 1, fake.Depth("order.created.q"))
	assert.Equal(t, 1, fake.Depth("orders.created.notification.q"))
}

func TestRoutingKey(t *testing.T) {
	assert.Equal(t, "orders.created.v1", RoutingKey("orders.created", 1))
}
