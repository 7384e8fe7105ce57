package envelope

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustPayload(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func TestValidateOutgoing_OrdersCreated_Valid(t *testing.T) {
	payload := OrdersCreatedPayload{
		OrderID:    "ord_1",
		CustomerID: "cust_1",
		Items:      []OrderItem{{ProductID: "p1", Quantity: 2, UnitPrice: 100}},
		Total:      200,
	}
	env := New(uuid.NewString(), TypeOrdersCreated, V1, "order-service", uuid.NewString(), mustPayload(t, payload))
	assert.NoError(t, ValidateOutgoing(env))
}

func TestValidateOutgoing_MissingFields(t *testing.T) {
	cases := []struct {
		name    string
		payload any
		typ     string
	}{
		{"orders.created missing items", OrdersCreatedPayload{OrderID: "x", CustomerID: "c"}, TypeOrdersCreated},
		{"orders.created zero quantity", OrdersCreatedPayload{OrderID: "x", CustomerID: "c", Items: []OrderItem{{ProductID: "p", Quantity: 0, UnitPrice: 1}}, Total: 1}, TypeOrdersCreated},
		{"orders.cancelled missing reason", OrdersCancelledPayload{OrderID: "x"}, TypeOrdersCancelled},
		{"inventory approved missing reservationId", InventoryReserveApprovedPayload{OrderID: "x"}, TypeInventoryReserveApproved},
		{"inventory rejected missing reason", InventoryReserveRejectedPayload{OrderID: "x"}, TypeInventoryReserveRejected},
		{"notification bad kind", NotificationSentPayload{OrderID: "x", Kind: "nonsense", Channel: "log"}, TypeNotificationSent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := New(uuid.NewString(), tc.typ, V1, "svc", uuid.NewString(), mustPayload(t, tc.payload))
			err := ValidateOutgoing(env)
			require.Error(t, err)
			var schemaErr *SchemaError
			assert.ErrorAs(t, err, &schemaErr)
		})
	}
}

func TestValidateIncoming_RoundTrip(t *testing.T) {
	payload := InventoryReserveApprovedPayload{OrderID: "ord_9", ReservationID: "res_1"}
	out := New(uuid.NewString(), TypeInventoryReserveApproved, V1, "inventory-service", "corr-1", mustPayload(t, payload))
	require.NoError(t, ValidateOutgoing(out))

	raw, err := json.Marshal(out)
	require.NoError(t, err)

	in, err := ValidateIncoming(raw)
	require.NoError(t, err)

	assert.Equal(t, out.EventID, in.EventID)
	assert.Equal(t, out.Type, in.Type)
	assert.Equal(t, out.Version, in.Version)
	assert.Equal(t, out.CorrelationID, in.CorrelationID)
	assert.JSONEq(t, string(out.Payload), string(in.Payload))
}

func TestValidateIncoming_InvalidJSON(t *testing.T) {
	_, err := ValidateIncoming([]byte(`{not json`))
	require.Error(t, err)
	var schemaErr *SchemaError
	assert.ErrorAs(t, err, &schemaErr)
}

func TestValidateIncoming_UnknownSchema(t *testing.T) {
	env := Envelope{
		EventID:       uuid.NewString(),
		Type:          "orders.created",
		Version:       2,
		OccurredAt:    New(uuid.NewString(), TypeOrdersCreated, V1, "s", "c", json.RawMessage(`{}`)).OccurredAt,
		Producer:      "order-service",
		CorrelationID: "corr",
		Payload:       json.RawMessage(`{"orderId":"x"}`),
	}
	raw, err := json.Marshal(env)
	require.NoError(t, err)
	_, err = ValidateIncoming(raw)
	require.Error(t, err)
}

// Property 1: schema totality. Every event type this core produces must
// have a registered (type, version) schema.
func TestSchemaTotality(t *testing.T) {
	producedTypes := []string{
		TypeOrdersCreated,
		TypeOrdersCancelled,
		TypeInventoryReserveApproved,
		TypeInventoryReserveRejected,
		TypeNotificationSent,
	}
	for _, typ := range producedTypes {
		assert.True(t, KnownSchema(typ, V1), "missing schema for %s v%d", typ, V1)
	}
	assert.False(t, KnownSchema(TypeInventoryReserveRequested, V1), "reserved type must stay unregistered")
}

func TestOrderID(t *testing.T) {
	env := New(uuid.NewString(), TypeOrdersCancelled, V1, "order-service", "corr", mustPayload(t, OrdersCancelledPayload{OrderID: "ord_7", Reason: "changed mind"}))
	assert.Equal(t, "ord_7", OrderID(env))
}
