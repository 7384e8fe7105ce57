package app

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nsridhar76/go-orderflow/internal/eventbus/broker"
	"github.com/nsridhar76/go-orderflow/internal/eventbus/envelope"
	"github.com/nsridhar76/go-orderflow/internal/eventbus/resilience"
	"github.com/nsridhar76/go-orderflow/internal/eventbus/store"
)

func newTestService(t *testing.T) (*Service, *store.MemoryStore, *broker.FakeChannel) {
	t.Helper()
	events := store.NewMemoryStore()
	fake := broker.NewFakeChannel()
	require.NoError(t, broker.DeclareTopology(context.Background(), fake))
	breaker := resilience.New(resilience.BreakerSettings{Enabled: false})
	publisher := broker.NewPublisher(fake, breaker, nil)
	return NewService(events, publisher, nil), events, fake
}

func ordersCreatedEnvelope(t *testing.T, orderID string, quantities ...int) envelope.Envelope {
	t.Helper()
	items := make([]envelope.OrderItem, len(quantities))
	total := 0.0
	for i, q := range quantities {
		items[i] = envelope.OrderItem{ProductID: "p1", Quantity: q, UnitPrice: 10}
		total += float64(q) * 10
	}
	payload, err := json.Marshal(envelope.OrdersCreatedPayload{OrderID: orderID, CustomerID: "cust_1", Items: items, Total: total})
	require.NoError(t, err)
	return envelope.New("evt-created-1", envelope.TypeOrdersCreated, envelope.V1, "order-service", "corr-1", payload)
}

func TestHandleOrdersCreated_ApprovesWithinBudget(t *testing.T) {
	svc, events, fake := newTestService(t)
	env := ordersCreatedEnvelope(t, "order-1", 5)

	require.NoError(t, svc.HandleOrdersCreated(context.Background(), env))

	assert.Equal(t, 2, events.Count())
	assert.Equal(t, 1, fake.Depth("inventory.reserve.approved.q"))
	assert.Equal(t, 0, fake.Depth("inventory.reserve.rejected.q"))
}

func TestHandleOrdersCreated_RejectsOverBudget(t *testing.T) {
	svc, _, fake := newTestService(t)
	env := ordersCreatedEnvelope(t, "order-2", 6, 6)

	require.NoError(t, svc.HandleOrdersCreated(context.Background(), env))

	assert.Equal(t, 1, fake.Depth("inventory.reserve.rejected.q"))
	assert.Equal(t, 0, fake.Depth("inventory.reserve.approved.q"))
}

func TestHandleOrdersCancelled_AppendsOnly(t *testing.T) {
	svc, events, fake := newTestService(t)
	payload, _ := json.Marshal(envelope.OrdersCancelledPayload{OrderID: "order-3", Reason: "changed mind"})
	env := envelope.New("evt-cancel-1", envelope.TypeOrdersCancelled, envelope.V1, "order-service", "corr-1", payload)

	require.NoError(t, svc.HandleOrdersCancelled(context.Background(), env))

	assert.Equal(t, 1, events.Count())
	assert.Equal(t, 0, fake.Depth("inventory.reserve.approved.q"))
	assert.Equal(t, 0, fake.Depth("inventory.reserve.rejected.q"))
}
