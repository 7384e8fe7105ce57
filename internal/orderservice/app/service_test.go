package app

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nsridhar76/go-orderflow/internal/eventbus/broker"
	"github.com/nsridhar76/go-orderflow/internal/eventbus/envelope"
	"github.com/nsridhar76/go-orderflow/internal/eventbus/idempotency"
	"github.com/nsridhar76/go-orderflow/internal/eventbus/resilience"
	"github.com/nsridhar76/go-orderflow/internal/eventbus/store"
	"github.com/nsridhar76/go-orderflow/internal/orderservice/domain"
)

func newTestService(t *testing.T) (*Service, *MemoryRepository, *store.MemoryStore, *broker.FakeChannel) {
	t.Helper()
	repo := NewMemoryRepository()
	events := store.NewMemoryStore()
	idem := idempotency.NewMemoryStore()
	fake := broker.NewFakeChannel()
	require.NoError(t, broker.DeclareTopology(context.Background(), fake))
	breaker := resilience.New(resilience.BreakerSettings{Enabled: false})
	publisher := broker.NewPublisher(fake, breaker, nil)
	svc := NewService(repo, events, idem, publisher, nil)
	return svc, repo, events, fake
}

func TestCreateOrder_MintsAndPublishes(t *testing.T) {
	svc, _, events, fake := newTestService(t)
	result, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		CustomerID: "cust_1",
		Items:      []domain.Item{{ProductID: "p1", Quantity: 2, UnitPrice: 100}},
	}, "", "corr-1")
	require.NoError(t, err)
	assert.NotEmpty(t, result.OrderID)
	assert.Equal(t, domain.StatusPending, result.Status)
	assert.Equal(t, 1, events.Count())
	assert.Equal(t, 1, fake.Depth("order.created.q"))
}

func TestCreateOrder_InvalidBodyRejected(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{CustomerID: ""}, "", "corr-1")
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)
}

func TestCreateOrder_IdempotencyKey_SecondCallIsNoop(t *testing.T) {
	svc, _, events, fake := newTestService(t)
	req := CreateOrderRequest{CustomerID: "cust_1", Items: []domain.Item{{ProductID: "p1", Quantity: 1, UnitPrice: 50}}}

	first, err := svc.CreateOrder(context.Background(), req, "idem-123", "corr-1")
	require.NoError(t, err)
	assert.False(t, first.Idempotent)

	second, err := svc.CreateOrder(context.Background(), req, "idem-123", "corr-2")
	require.NoError(t, err)
	assert.True(t, second.Idempotent)
	assert.Equal(t, first.OrderID, second.OrderID)

	assert.Equal(t, 1, events.Count(), "exactly one orders.created event regardless of repeated idempotent requests")
	assert.Equal(t, 1, fake.Depth("order.created.q"), "second call must have no further side effects")
}

func TestCancelOrder_TransitionsToCancelled(t *testing.T) {
	svc, _, _, fake := newTestService(t)
	created, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		CustomerID: "cust_1",
		Items:      []domain.Item{{ProductID: "p1", Quantity: 1, UnitPrice: 10}},
	}, "", "corr-1")
	require.NoError(t, err)
	fake.Drain("order.created.q", 1)

	result, err := svc.CancelOrder(context.Background(), created.OrderID, "changed my mind", "corr-2")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, result.Status)
	assert.Equal(t, 1, fake.Depth("orders.cancelled.q"))
}

func TestCancelOrder_UnknownOrderIDFails(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	_, err := svc.CancelOrder(context.Background(), "does-not-exist", "reason", "corr-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestApplyInventoryApproved_TransitionsOrderToConfirmed(t *testing.T) {
	svc, repo, events, _ := newTestService(t)
	created, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		CustomerID: "cust_1",
		Items:      []domain.Item{{ProductID: "p1", Quantity: 1, UnitPrice: 10}},
	}, "", "corr-1")
	require.NoError(t, err)

	payload, _ := json.Marshal(envelope.InventoryReserveApprovedPayload{OrderID: created.OrderID, ReservationID: "r1"})
	env := envelope.New("evt-approve-1", envelope.TypeInventoryReserveApproved, envelope.V1, "inventory-service", "corr-1", payload)

	require.NoError(t, svc.ApplyInventoryApproved(context.Background(), env))

	stored, err := repo.FindByID(context.Background(), created.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, stored.Status)
	assert.Equal(t, 2, events.Count())
}

func TestApplyInventoryRejected_TransitionsOrderToRejected(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	created, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		CustomerID: "cust_1",
		Items:      []domain.Item{{ProductID: "p1", Quantity: 1, UnitPrice: 10}},
	}, "", "corr-1")
	require.NoError(t, err)

	payload, _ := json.Marshal(envelope.InventoryReserveRejectedPayload{OrderID: created.OrderID, Reason: "insufficient_stock"})
	env := envelope.New("evt-reject-1", envelope.TypeInventoryReserveRejected, envelope.V1, "inventory-service", "corr-1", payload)

	require.NoError(t, svc.ApplyInventoryRejected(context.Background(), env))

	stored, err := repo.FindByID(context.Background(), created.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, stored.Status)
}

func TestApplyInventoryApproved_UnknownOrderIDIsNoopButEventRecorded(t *testing.T) {
	svc, _, events, _ := newTestService(t)
	payload, _ := json.Marshal(envelope.InventoryReserveApprovedPayload{OrderID: "ghost-order", ReservationID: "r1"})
	env := envelope.New("evt-approve-ghost", envelope.TypeInventoryReserveApproved, envelope.V1, "inventory-service", "corr-1", payload)

	require.NoError(t, svc.ApplyInventoryApproved(context.Background(), env))
	assert.Equal(t, 1, events.Count())
}
