package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter wires the Order service's HTTP surface: health/readiness
// probes plus the order create/cancel endpoints.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(correlationIDMiddleware)
	r.Use(recoverMiddleware(handler.logger))
	r.Use(loggingMiddleware(handler.logger))

	r.Get("/health", handler.getHealth)
	r.Get("/ready", handler.getReady)

	r.Post("/orders", handler.createOrder)
	r.Post("/orders/{id}/cancel", handler.cancelOrder)

	return r
}
