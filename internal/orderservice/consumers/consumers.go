// Package consumers adapts the Order service's broker.Handler contract to
// its application logic: schema-invalid deliveries go straight to DLQ,
// everything else is handed to app.Service and retried on failure.
package consumers

import (
	"context"
	"log/slog"

	"github.com/nsridhar76/go-orderflow/internal/eventbus/broker"
	"github.com/nsridhar76/go-orderflow/internal/eventbus/envelope"
	"github.com/nsridhar76/go-orderflow/internal/orderservice/app"
)

// NewInventoryApprovedHandler binds inventory.reserve.approved.q deliveries
// to Service.ApplyInventoryApproved.
func NewInventoryApprovedHandler(svc *app.Service, logger *slog.Logger) broker.Handler {
	return func(ctx context.Context, _ map[string]any, raw []byte) broker.Decision {
		env, err := envelope.ValidateIncoming(raw)
		if err != nil {
			logger.WarnContext(ctx, "schema-invalid delivery on inventory.reserve.approved.q",
				"module", "orderservice.consumers", "layer", "adapter", "operation", "inventory_reserve_approved", "error", err)
			return broker.DecisionDLQ
		}
		if err := svc.ApplyInventoryApproved(ctx, env); err != nil {
			logger.ErrorContext(ctx, "failed to apply inventory.reserve.approved",
				"module", "orderservice.consumers", "layer", "adapter", "operation", "inventory_reserve_approved", "error", err)
			return broker.DecisionRetry
		}
		return broker.DecisionAck
	}
}

// NewInventoryRejectedHandler binds inventory.reserve.rejected.q deliveries
// to Service.ApplyInventoryRejected.
func NewInventoryRejectedHandler(svc *app.Service, logger *slog.Logger) broker.Handler {
	return func(ctx context.Context, _ map[string]any, raw []byte) broker.Decision {
		env, err := envelope.ValidateIncoming(raw)
		if err != nil {
			logger.WarnContext(ctx, "schema-invalid delivery on inventory.reserve.rejected.q",
				"module", "orderservice.consumers", "layer", "adapter", "operation", "inventory_reserve_rejected", "error", err)
			return broker.DecisionDLQ
		}
		if err := svc.ApplyInventoryRejected(ctx, env); err != nil {
			logger.ErrorContext(ctx, "failed to apply inventory.reserve.rejected",
				"module", "orderservice.consumers", "layer", "adapter", "operation", "inventory_reserve_rejected", "error", err)
			return broker.DecisionRetry
		}
		return broker.DecisionAck
	}
}
