// Package consumers adapts the Inventory service's broker.Handler contract
// to its application logic.
package consumers

import (
	"context"
	"log/slog"

	"github.com/nsridhar76/go-orderflow/internal/eventbus/broker"
	"github.com/nsridhar76/go-orderflow/internal/eventbus/envelope"
	"github.com/nsridhar76/go-orderflow/internal/inventoryservice/app"
)

// NewOrdersCreatedHandler binds order.created.q deliveries to
// Service.HandleOrdersCreated.
func NewOrdersCreatedHandler(svc *app.Service, logger *slog.Logger) broker.Handler {
	return func(ctx context.Context, _ map[string]any, raw []byte) broker.Decision {
		env, err := envelope.ValidateIncoming(raw)
		if err != nil {
			logger.WarnContext(ctx, "schema-invalid delivery on order.created.q",
				"module", "inventoryservice.consumers", "layer", "adapter", "operation", "orders_created", "error", err)
			return broker.DecisionDLQ
		}
		if err := svc.HandleOrdersCreated(ctx, env); err != nil {
			logger.ErrorContext(ctx, "failed to handle orders.created",
				"module", "inventoryservice.consumers", "layer", "adapter", "operation", "orders_created", "error", err)
			return broker.DecisionRetry
		}
		return broker.DecisionAck
	}
}

// NewOrdersCancelledHandler binds orders.cancelled.q deliveries to
// Service.HandleOrdersCancelled.
func NewOrdersCancelledHandler(svc *app.Service, logger *slog.Logger) broker.Handler {
	return func(ctx context.Context, _ map[string]any, raw []byte) broker.Decision {
		env, err := envelope.ValidateIncoming(raw)
		if err != nil {
			logger.WarnContext(ctx, "schema-invalid delivery on orders.cancelled.q",
				"module", "inventoryservice.consumers", "layer", "adapter", "operation", "orders_cancelled", "error", err)
			return broker.DecisionDLQ
		}
		if err := svc.HandleOrdersCancelled(ctx, env); err != nil {
			logger.ErrorContext(ctx, "failed to handle orders.cancelled",
				"module", "inventoryservice.consumers", "layer", "adapter", "operation", "orders_cancelled", "error", err)
			return broker.DecisionRetry
		}
		return broker.DecisionAck
	}
}
