// Package consumers adapts the Notification service's broker.Handler
// contract to its application logic across its four bound queues.
package consumers

import (
	"context"
	"log/slog"

	"github.com/nsridhar76/go-orderflow/internal/eventbus/broker"
	"github.com/nsridhar76/go-orderflow/internal/eventbus/envelope"
	"github.com/nsridhar76/go-orderflow/internal/notificationservice/app"
)

func handle(queue string, logger *slog.Logger, apply func(context.Context, envelope.Envelope) error) broker.Handler {
	return func(ctx context.Context, _ map[string]any, raw []byte) broker.Decision {
		env, err := envelope.ValidateIncoming(raw)
		if err != nil {
			logger.WarnContext(ctx, "schema-invalid delivery",
				"module", "notificationservice.consumers", "layer", "adapter", "operation", "notify", "queue", queue, "error", err)
			return broker.DecisionDLQ
		}
		if err := apply(ctx, env); err != nil {
			logger.ErrorContext(ctx, "failed to handle notification source event",
				"module", "notificationservice.consumers", "layer", "adapter", "operation", "notify", "queue", queue, "error", err)
			return broker.DecisionRetry
		}
		return broker.DecisionAck
	}
}

// NewOrdersCreatedHandler binds orders.created.notification.q deliveries to
// Service.HandleOrdersCreated.
func NewOrdersCreatedHandler(svc *app.Service, logger *slog.Logger) broker.Handler {
	return handle("orders.created.notification.q", logger, svc.HandleOrdersCreated)
}

// NewOrdersCancelledHandler binds orders.cancelled.notification.q
// deliveries to Service.HandleOrdersCancelled.
func NewOrdersCancelledHandler(svc *app.Service, logger *slog.Logger) broker.Handler {
	return handle("orders.cancelled.notification.q", logger, svc.HandleOrdersCancelled)
}

// NewInventoryApprovedHandler binds
// inventory.reserve.approved.notification.q deliveries to
// Service.HandleInventoryApproved.
func NewInventoryApprovedHandler(svc *app.Service, logger *slog.Logger) broker.Handler {
	return handle("inventory.reserve.approved.notification.q", logger, svc.HandleInventoryApproved)
}

// NewInventoryRejectedHandler binds
// inventory.reserve.rejected.notification.q deliveries to
// Service.HandleInventoryRejected.
func NewInventoryRejectedHandler(svc *app.Service, logger *slog.Logger) broker.Handler {
	return handle("inventory.reserve.rejected.notification.q", logger, svc.HandleInventoryRejected)
}
