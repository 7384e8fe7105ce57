// Package app implements the Notification service's application logic per
// §4.4.3: for each of the four upstream event types, validate, append,
// construct a notification.sent envelope with the mapped kind and
// channel "log", validate, append, and publish.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nsridhar76/go-orderflow/internal/eventbus/broker"
	"github.com/nsridhar76/go-orderflow/internal/eventbus/envelope"
	"github.com/nsridhar76/go-orderflow/internal/eventbus/store"
)

const (
	producerName = "notification-service"
	channelLog   = "log"
)

// Service implements the Notification service's four consumer contracts.
type Service struct {
	Events    store.Store
	Publisher *broker.Publisher
	Logger    *slog.Logger

	nextID func() string
}

// NewService builds a Service. logger may be nil.
func NewService(events store.Store, publisher *broker.Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{Events: events, Publisher: publisher, Logger: logger, nextID: uuid.NewString}
}

// HandleOrdersCreated maps orders.created to a notification.sent event of
// kind order_created.
func (s *Service) HandleOrdersCreated(ctx context.Context, env envelope.Envelope) error {
	var payload envelope.OrdersCreatedPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return err
	}
	return s.notify(ctx, env, payload.OrderID, envelope.KindOrderCreated)
}

// HandleOrdersCancelled maps orders.cancelled to a notification.sent event
// of kind order_cancelled.
func (s *Service) HandleOrdersCancelled(ctx context.Context, env envelope.Envelope) error {
	var payload envelope.OrdersCancelledPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return err
	}
	return s.notify(ctx, env, payload.OrderID, envelope.KindOrderCancelled)
}

// HandleInventoryApproved maps inventory.reserve.approved to a
// notification.sent event of kind order_confirmed.
func (s *Service) HandleInventoryApproved(ctx context.Context, env envelope.Envelope) error {
	var payload envelope.InventoryReserveApprovedPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return err
	}
	return s.notify(ctx, env, payload.OrderID, envelope.KindOrderConfirmed)
}

// HandleInventoryRejected maps inventory.reserve.rejected to a
// notification.sent event of kind order_rejected.
func (s *Service) HandleInventoryRejected(ctx context.Context, env envelope.Envelope) error {
	var payload envelope.InventoryReserveRejectedPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return err
	}
	return s.notify(ctx, env, payload.OrderID, envelope.KindOrderRejected)
}

func (s *Service) notify(ctx context.Context, in envelope.Envelope, orderID, kind string) error {
	if err := s.Events.Append(ctx, in); err != nil {
		return err
	}

	outPayload, err := json.Marshal(envelope.NotificationSentPayload{
		OrderID: orderID,
		Kind:    kind,
		Channel: channelLog,
	})
	if err != nil {
		return err
	}
	outEnv := envelope.New(s.nextID(), envelope.TypeNotificationSent, envelope.V1, producerName, in.CorrelationID, outPayload)
	if err := envelope.ValidateOutgoing(outEnv); err != nil {
		s.Logger.ErrorContext(ctx, "constructed notification.sent envelope failed schema validation",
			"module", "notificationservice.app", "layer", "application", "operation", fmt.Sprintf("notify_%s", kind), "error", err)
		return err
	}
	if err := s.Events.Append(ctx, outEnv); err != nil {
		return err
	}

	raw, err := json.Marshal(outEnv)
	if err != nil {
		return err
	}
	return s.Publisher.Publish(ctx, broker.ExchangeNotifications, broker.RoutingKey(envelope.TypeNotificationSent, envelope.V1), raw, broker.Headers(outEnv.CorrelationID, orderID))
}
