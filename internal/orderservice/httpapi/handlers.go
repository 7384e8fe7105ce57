package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nsridhar76/go-orderflow/internal/eventbus/health"
	"github.com/nsridhar76/go-orderflow/internal/eventbus/resilience"
	"github.com/nsridhar76/go-orderflow/internal/orderservice/app"
	"github.com/nsridhar76/go-orderflow/internal/orderservice/domain"
)

// Handler exposes the Order service's HTTP surface per spec §6.
type Handler struct {
	service *app.Service
	health  *health.Checker
	logger  *slog.Logger
}

// NewHandler builds a Handler. logger may be nil.
func NewHandler(service *app.Service, checker *health.Checker, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, health: checker, logger: logger}
}

type createOrderItemRequest struct {
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

type createOrderRequest struct {
	CustomerID string                   `json:"customerId"`
	Items      []createOrderItemRequest `json:"items"`
}

type orderResponse struct {
	OrderID    string `json:"orderId"`
	Status     string `json:"status"`
	Idempotent bool   `json:"idempotent,omitempty"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var body createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "malformed request body")
		return
	}

	items := make([]domain.Item, len(body.Items))
	for i, it := range body.Items {
		items[i] = domain.Item{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.UnitPrice}
	}

	idempotencyKey := r.Header.Get("Idempotency-Key")
	correlationID := correlationIDFromContext(r.Context())

	result, err := h.service.CreateOrder(r.Context(), app.CreateOrderRequest{CustomerID: body.CustomerID, Items: items}, idempotencyKey, correlationID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidOrder):
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		case errors.Is(err, app.ErrEnvelopeInvalid):
			writeError(w, http.StatusInternalServerError, "ENVELOPE_INVALID", "constructed event failed schema validation")
		case errors.Is(err, resilience.ErrOpen):
			writeError(w, http.StatusServiceUnavailable, "DEPENDENCY_UNAVAILABLE", "a required dependency is unavailable")
		default:
			h.logger.ErrorContext(r.Context(), "create order failed",
				"module", "orderservice.httpapi", "layer", "adapter", "operation", "create_order", "error", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return
	}

	status := http.StatusCreated
	if result.Idempotent {
		status = http.StatusOK
	}
	writeSuccess(w, status, orderResponse{OrderID: result.OrderID, Status: string(result.Status), Idempotent: result.Idempotent})
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	var body cancelOrderRequest
	_ = json.NewDecoder(r.Body).Decode(&body)

	correlationID := correlationIDFromContext(r.Context())
	result, err := h.service.CancelOrder(r.Context(), orderID, body.Reason, correlationID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "order not found")
		case errors.Is(err, app.ErrEnvelopeInvalid):
			writeError(w, http.StatusInternalServerError, "ENVELOPE_INVALID", "constructed event failed schema validation")
		default:
			h.logger.ErrorContext(r.Context(), "cancel order failed",
				"module", "orderservice.httpapi", "layer", "adapter", "operation", "cancel_order", "error", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return
	}
	writeSuccess(w, http.StatusAccepted, orderResponse{OrderID: result.OrderID, Status: string(result.Status)})
}

// getHealth implements GET /health per §6: 200 {status:"ok"} / 500
// {status:"fail"}.
func (h *Handler) getHealth(w http.ResponseWriter, r *http.Request) {
	if h.health.Live(r.Context()) {
		writeSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	writeSuccess(w, http.StatusInternalServerError, map[string]string{"status": "fail"})
}

// getReady implements GET /ready per §6: 200 {status:"ready"} / 503
// {status:"not_ready"}.
func (h *Handler) getReady(w http.ResponseWriter, r *http.Request) {
	if h.health.Ready(r.Context()) {
		writeSuccess(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	writeSuccess(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
}
