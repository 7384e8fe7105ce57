// Package app implements the Inventory service's application logic: on
// orders.created, apply the reservation rule and publish the decision; on
// orders.cancelled, record the event (restock is a no-op in this core).
package app

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nsridhar76/go-orderflow/internal/eventbus/broker"
	"github.com/nsridhar76/go-orderflow/internal/eventbus/envelope"
	"github.com/nsridhar76/go-orderflow/internal/eventbus/store"
	"github.com/nsridhar76/go-orderflow/internal/inventoryservice/domain"
)

const producerName = "inventory-service"

// Service implements the Inventory service's two consumer contracts.
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

// HandleOrdersCreated implements §4.4.2's four steps: append, decide,
// construct/validate the outcome envelope, append it, and publish.
func (s *Service) HandleOrdersCreated(ctx context.Context, env envelope.Envelope) error {
	var payload envelope.OrdersCreatedPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return err
	}
	if err := s.Events.Append(ctx, env); err != nil {
		return err
	}

	quantities := make([]int, len(payload.Items))
	for i, item := range payload.Items {
		quantities[i] = item.Quantity
	}
	approved, reason := domain.DecideReservation(quantities)

	var outType string
	var outPayload []byte
	var err error
	if approved {
		outType = envelope.TypeInventoryReserveApproved
		outPayload, err = json.Marshal(envelope.InventoryReserveApprovedPayload{
			OrderID:       payload.OrderID,
			ReservationID: s.nextID(),
		})
	} else {
		outType = envelope.TypeInventoryReserveRejected
		outPayload, err = json.Marshal(envelope.InventoryReserveRejectedPayload{
			OrderID: payload.OrderID,
			Reason:  reason,
		})
	}
	if err != nil {
		return err
	}

	outEnv := envelope.New(s.nextID(), outType, envelope.V1, producerName, env.CorrelationID, outPayload)
	if err := envelope.ValidateOutgoing(outEnv); err != nil {
		s.Logger.ErrorContext(ctx, "constructed reservation-decision envelope failed schema validation",
			"module", "inventoryservice.app", "layer", "application", "operation", "handle_orders_created", "error", err)
		return err
	}
	if err := s.Events.Append(ctx, outEnv); err != nil {
		return err
	}

	raw, err := json.Marshal(outEnv)
	if err != nil {
		return err
	}
	return s.Publisher.Publish(ctx, broker.ExchangeInventory, broker.RoutingKey(outType, envelope.V1), raw, broker.Headers(outEnv.CorrelationID, payload.OrderID))
}

// HandleOrdersCancelled appends the event only; restock is a no-op in this
// core per §4.4.2.
func (s *Service) HandleOrdersCancelled(ctx context.Context, env envelope.Envelope) error {
	return s.Events.Append(ctx, env)
}
