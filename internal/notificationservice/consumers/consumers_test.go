package consumers

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nsridhar76/go-orderflow/internal/eventbus/broker"
	"github.com/nsridhar76/go-orderflow/internal/eventbus/envelope"
	"github.com/nsridhar76/go-orderflow/internal/eventbus/resilience"
	"github.com/nsridhar76/go-orderflow/internal/eventbus/store"
	"github.com/nsridhar76/go-orderflow/internal/notificationservice/app"
)

func newTestService(t *testing.T) *app.Service {
	t.Helper()
	events := store.NewMemoryStore()
	fake := broker.NewFakeChannel()
	require.NoError(t, broker.DeclareTopology(context.Background(), fake))
	breaker := resilience.New(resilience.BreakerSettings{Enabled: false})
	publisher := broker.NewPublisher(fake, breaker, nil)
	return app.NewService(events, publisher, nil)
}

func envelopeBytes(t *testing.T, env envelope.Envelope) []byte {
	t.Helper()
	raw, err := json.Marshal(env)
	require.NoError(t, err)
	return raw
}

func TestInventoryApprovedHandler_AcksOnValidDelivery(t *testing.T) {
	svc := newTestService(t)
	payload, _ := json.Marshal(envelope.InventoryReserveApprovedPayload{OrderID: "order-1", ReservationID: "r1"})
	env := envelope.New("evt-1", envelope.TypeInventoryReserveApproved, envelope.V1, "inventory-service", "corr-1", payload)

	handler := NewInventoryApprovedHandler(svc, slog.Default())
	decision := handler(context.Background(), nil, envelopeBytes(t, env))
	assert.Equal(t, broker.DecisionAck, decision)
}

func TestInventoryRejectedHandler_SchemaInvalidGoesToDLQ(t *testing.T) {
	svc := newTestService(t)
	handler := NewInventoryRejectedHandler(svc, slog.Default())
	decision := handler(context.Background(), nil, []byte(`{"not":"an envelope"}`))
	assert.Equal(t, broker.DecisionDLQ, decision)
}

func TestOrdersCreatedHandler_AcksOnValidDelivery(t *testing.T) {
	svc := newTestService(t)
	payload, _ := json.Marshal(envelope.OrdersCreatedPayload{
		OrderID:    "order-2",
		CustomerID: "cust_1",
		Items:      []envelope.OrderItem{{ProductID: "p1", Quantity: 1, UnitPrice: 10}},
		Total:      10,
	})
	env := envelope.New("evt-2", envelope.TypeOrdersCreated, envelope.V1, "order-service", "corr-2", payload)

	handler := NewOrdersCreatedHandler(svc, slog.Default())
	decision := handler(context.Background(), nil, envelopeBytes(t, env))
	assert.Equal(t, broker.DecisionAck, decision)
}

func TestOrdersCancelledHandler_AcksOnValidDelivery(t *testing.T) {
	svc := newTestService(t)
	payload, _ := json.Marshal(envelope.OrdersCancelledPayload{OrderID: "order-3", Reason: "changed mind"})
	env := envelope.New("evt-3", envelope.TypeOrdersCancelled, envelope.V1, "order-service", "corr-3", payload)

	handler := NewOrdersCancelledHandler(svc, slog.Default())
	decision := handler(context.Background(), nil, envelopeBytes(t, env))
	assert.Equal(t, broker.DecisionAck, decision)
}
