package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nsridhar76/go-orderflow/internal/eventbus/broker"
	"github.com/nsridhar76/go-orderflow/internal/eventbus/health"
	"github.com/nsridhar76/go-orderflow/internal/eventbus/idempotency"
	"github.com/nsridhar76/go-orderflow/internal/eventbus/resilience"
	"github.com/nsridhar76/go-orderflow/internal/eventbus/store"
	"github.com/nsridhar76/go-orderflow/internal/orderservice/app"
)

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

type okInspector struct{}

func (okInspector) InspectQueue(context.Context, string) error { return nil }

func newTestRouter(t *testing.T) (http.Handler, *app.Service) {
	t.Helper()
	repo := app.NewMemoryRepository()
	events := store.NewMemoryStore()
	idem := idempotency.NewMemoryStore()
	fake := broker.NewFakeChannel()
	require.NoError(t, broker.DeclareTopology(context.Background(), fake))
	breaker := resilience.New(resilience.BreakerSettings{Enabled: false})
	publisher := broker.NewPublisher(fake, breaker, nil)
	svc := app.NewService(repo, events, idem, publisher, nil)
	checker := &health.Checker{DB: okPinger{}, Broker: okInspector{}, QueueName: "inventory.reserve.approved.q"}
	handler := NewHandler(svc, checker, nil)
	return NewRouter(handler), svc
}

func TestCreateOrder_Returns201(t *testing.T) {
	router, _ := newTestRouter(t)
	body, _ := json.Marshal(map[string]any{
		"customerId": "cust_1",
		"items":      []map[string]any{{"productId": "p1", "quantity": 2, "unitPrice": 100}},
	})
	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp orderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.OrderID)
	assert.Equal(t, "PENDING", resp.Status)
}

func TestCreateOrder_InvalidBodyReturns400(t *testing.T) {
	router, _ := newTestRouter(t)
	body, _ := json.Marshal(map[string]any{"customerId": "", "items": []map[string]any{}})
	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateOrder_IdempotencyKey_SameOrderIDAndMarker(t *testing.T) {
	router, _ := newTestRouter(t)
	body, _ := json.Marshal(map[string]any{
		"customerId": "cust_1",
		"items":      []map[string]any{{"productId": "p1", "quantity": 1, "unitPrice": 10}},
	})

	req1 := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewReader(body))
	req1.Header.Set("Idempotency-Key", "idem-abc")
	w1 := httptest.NewRecorder()
	router.ServeHTTP(w1, req1)
	require.Equal(t, http.StatusCreated, w1.Code)
	var resp1 orderResponse
	require.NoError(t, json.Unmarshal(w1.Body.Bytes(), &resp1))

	req2 := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewReader(body))
	req2.Header.Set("Idempotency-Key", "idem-abc")
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, req2)
	require.Equal(t, http.StatusOK, w2.Code)
	var resp2 orderResponse
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &resp2))

	assert.Equal(t, resp1.OrderID, resp2.OrderID)
	assert.True(t, resp2.Idempotent)
}

func TestCancelOrder_Returns202(t *testing.T) {
	router, _ := newTestRouter(t)
	body, _ := json.Marshal(map[string]any{
		"customerId": "cust_1",
		"items":      []map[string]any{{"productId": "p1", "quantity": 1, "unitPrice": 10}},
	})
	createReq := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewReader(body))
	createW := httptest.NewRecorder()
	router.ServeHTTP(createW, createReq)
	var created orderResponse
	require.NoError(t, json.Unmarshal(createW.Body.Bytes(), &created))

	cancelBody, _ := json.Marshal(map[string]string{"reason": "changed my mind"})
	cancelReq := httptest.NewRequest(http.MethodPost, "/orders/"+created.OrderID+"/cancel", bytes.NewReader(cancelBody))
	cancelW := httptest.NewRecorder()
	router.ServeHTTP(cancelW, cancelReq)

	assert.Equal(t, http.StatusAccepted, cancelW.Code)
	var cancelled orderResponse
	require.NoError(t, json.Unmarshal(cancelW.Body.Bytes(), &cancelled))
	assert.Equal(t, "CANCELLED", cancelled.Status)
}

func TestCancelOrder_UnknownIDReturns404(t *testing.T) {
	router, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/orders/does-not-exist/cancel", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthAndReady(t *testing.T) {
	router, _ := newTestRouter(t)

	healthReq := httptest.NewRequest(http.MethodGet, "/health", nil)
	healthW := httptest.NewRecorder()
	router.ServeHTTP(healthW, healthReq)
	assert.Equal(t, http.StatusOK, healthW.Code)

	readyReq := httptest.NewRequest(http.MethodGet, "/ready", nil)
	readyW := httptest.NewRecorder()
	router.ServeHTTP(readyW, readyReq)
	assert.Equal(t, http.StatusOK, readyW.Code)
}
