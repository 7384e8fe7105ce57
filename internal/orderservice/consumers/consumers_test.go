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
	"github.com/nsridhar76/go-orderflow/internal/eventbus/idempotency"
	"github.com/nsridhar76/go-orderflow/internal/eventbus/resilience"
	"github.com/nsridhar76/go-orderflow/internal/eventbus/store"
	"github.com/nsridhar76/go-orderflow/internal/orderservice/app"
	"github.com/nsridhar76/go-orderflow/internal/orderservice/domain"
)

func newTestEnv(t *testing.T) *app.Service {
	t.Helper()
	repo := app.NewMemoryRepository()
	events := store.NewMemoryStore()
	idem := idempotency.NewMemoryStore()
	fake := broker.NewFakeChannel()
	require.NoError(t, broker.DeclareTopology(context.Background(), fake))
	breaker := resilience.New(resilience.BreakerSettings{Enabled: false})
	publisher := broker.NewPublisher(fake, breaker, nil)
	return app.NewService(repo, events, idem, publisher, nil)
}

func envelopeBytes(t *testing.T, env envelope.Envelope) []byte {
	t.Helper()
	raw, err := json.Marshal(env)
	require.NoError(t, err)
	return raw
}

func TestInventoryApprovedHandler_AcksAndConfirms(t *testing.T) {
	svc := newTestEnv(t)
	created, err := svc.CreateOrder(context.Background(), app.CreateOrderRequest{
		CustomerID: "cust_1",
		Items:      []domain.Item{{ProductID: "p1", Quantity: 1, UnitPrice: 10}},
	}, "", "corr-1")
	require.NoError(t, err)

	payload, _ := json.Marshal(envelope.InventoryReserveApprovedPayload{OrderID: created.OrderID, ReservationID: "r1"})
	env := envelope.New("evt-1", envelope.TypeInventoryReserveApproved, envelope.V1, "inventory-service", "corr-1", payload)

	handler := NewInventoryApprovedHandler(svc, slog.Default())
	decision := handler(context.Background(), nil, envelopeBytes(t, env))
	assert.Equal(t, broker.DecisionAck, decision)
}

func TestInventoryRejectedHandler_SchemaInvalidGoesToDLQ(t *testing.T) {
	svc := newTestEnv(t)
	handler := NewInventoryRejectedHandler(svc, slog.Default())
	decision := handler(context.Background(), nil, []byte(`{"not":"an envelope"}`))
	assert.Equal(t, broker.DecisionDLQ, decision)
}
