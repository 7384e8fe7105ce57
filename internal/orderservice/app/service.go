// Package app wires the Order service's domain logic to its dependencies:
// the order repository, the shared event store, the idempotency-key map,
// and the broker publisher. It implements the HTTP create/cancel contracts
// and the inventory-event consumer contracts described in §4.4.1.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nsridhar76/go-orderflow/internal/eventbus/broker"
	"github.com/nsridhar76/go-orderflow/internal/eventbus/envelope"
	"github.com/nsridhar76/go-orderflow/internal/eventbus/idempotency"
	"github.com/nsridhar76/go-orderflow/internal/eventbus/store"
	"github.com/nsridhar76/go-orderflow/internal/orderservice/domain"
)

// ErrValidation wraps a rejected order-create request body.
var ErrValidation = domain.ErrInvalidOrder

// ErrEnvelopeInvalid is returned when a constructed envelope fails schema
// validation. Per §4.4.1 step 4, the caller must respond 500 and must not
// publish.
var ErrEnvelopeInvalid = errors.New("envelope failed schema validation")

const producerName = "order-service"

// Service implements the Order service's application logic.
type Service struct {
	Orders      domain.Repository
	Events      store.Store
	Idempotency idempotency.Store
	Publisher   *broker.Publisher
	Logger      *slog.Logger
	IDTTL       time.Duration

	now    func() time.Time
	nextID func() string
}

// NewService builds a Service. logger may be nil.
func NewService(orders domain.Repository, events store.Store, idem idempotency.Store, publisher *broker.Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	ttl := idempotency.DefaultTTL
	return &Service{
		Orders:      orders,
		Events:      events,
		Idempotency: idem,
		Publisher:   publisher,
		Logger:      logger,
		IDTTL:       ttl,
		now:         time.Now,
		nextID:      uuid.NewString,
	}
}

// CreateOrderRequest is the validated input to CreateOrder.
type CreateOrderRequest struct {
	CustomerID string
	Items      []domain.Item
}

// CreateOrderResult is what the HTTP layer needs to build its response.
type CreateOrderResult struct {
	OrderID     string
	Status      domain.OrderStatus
	Idempotent  bool
}

// CreateOrder implements §4.4.1's HTTP create steps 1-6.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest, idempotencyKey, correlationID string) (CreateOrderResult, error) {
	if idempotencyKey != "" {
		if orderID, found, err := s.Idempotency.Get(ctx, idempotencyKey); err != nil {
			return CreateOrderResult{}, err
		} else if found {
			existing, err := s.Orders.FindByID(ctx, orderID)
			if err != nil {
				return CreateOrderResult{}, err
			}
			if existing != nil {
				return CreateOrderResult{OrderID: existing.OrderID, Status: existing.Status, Idempotent: true}, nil
			}
		}
	}

	order, err := domain.NewOrder(req.CustomerID, req.Items)
	if err != nil {
		return CreateOrderResult{}, err
	}
	order.OrderID = s.nextID()

	order, err = s.Orders.Create(ctx, order)
	if err != nil {
		return CreateOrderResult{}, err
	}

	payload, err := json.Marshal(envelope.OrdersCreatedPayload{
		OrderID:    order.OrderID,
		CustomerID: order.CustomerID,
		Items:      toEnvelopeItems(order.Items),
		Total:      order.Total,
	})
	if err != nil {
		return CreateOrderResult{}, err
	}
	env := envelope.New(s.nextID(), envelope.TypeOrdersCreated, envelope.V1, producerName, correlationOrNew(correlationID, s.nextID), payload)
	if err := envelope.ValidateOutgoing(env); err != nil {
		s.Logger.ErrorContext(ctx, "constructed envelope failed schema validation",
			"module", "orderservice.app", "layer", "application", "operation", "create_order", "error", err)
		return CreateOrderResult{}, ErrEnvelopeInvalid
	}

	if err := s.Events.Append(ctx, env); err != nil {
		return CreateOrderResult{}, err
	}
	if err := s.Publisher.Publish(ctx, broker.ExchangeOrders, broker.RoutingKey(envelope.TypeOrdersCreated, envelope.V1), payloadBytes(env), broker.Headers(env.CorrelationID, order.OrderID)); err != nil {
		s.Logger.WarnContext(ctx, "publish of orders.created failed",
			"module", "orderservice.app", "layer", "application", "operation", "create_order", "error", err)
		return CreateOrderResult{}, err
	}

	if idempotencyKey != "" {
		if err := s.Idempotency.Put(ctx, idempotencyKey, order.OrderID, s.IDTTL); err != nil {
			s.Logger.WarnContext(ctx, "failed to record idempotency mapping",
				"module", "orderservice.app", "layer", "application", "operation", "create_order", "error", err)
		}
	}

	return CreateOrderResult{OrderID: order.OrderID, Status: order.Status}, nil
}

// CancelOrder implements §4.4.1's HTTP cancel contract: eagerly transition
// to CANCELLED, validate and append/publish orders.cancelled.v1.
func (s *Service) CancelOrder(ctx context.Context, orderID, reason, correlationID string) (CreateOrderResult, error) {
	if reason == "" {
		reason = "customer requested cancellation"
	}
	order, err := s.Orders.FindByID(ctx, orderID)
	if err != nil {
		return CreateOrderResult{}, err
	}
	if order == nil {
		return CreateOrderResult{}, domain.ErrNotFound
	}
	order.Cancel(s.now())
	if err := s.Orders.Update(ctx, *order); err != nil {
		return CreateOrderResult{}, err
	}

	payload, err := json.Marshal(envelope.OrdersCancelledPayload{OrderID: orderID, Reason: reason})
	if err != nil {
		return CreateOrderResult{}, err
	}
	env := envelope.New(s.nextID(), envelope.TypeOrdersCancelled, envelope.V1, producerName, correlationOrNew(correlationID, s.nextID), payload)
	if err := envelope.ValidateOutgoing(env); err != nil {
		return CreateOrderResult{}, ErrEnvelopeInvalid
	}
	if err := s.Events.Append(ctx, env); err != nil {
		return CreateOrderResult{}, err
	}
	if err := s.Publisher.Publish(ctx, broker.ExchangeOrders, broker.RoutingKey(envelope.TypeOrdersCancelled, envelope.V1), payloadBytes(env), broker.Headers(env.CorrelationID, orderID)); err != nil {
		s.Logger.WarnContext(ctx, "publish of orders.cancelled failed",
			"module", "orderservice.app", "layer", "application", "operation", "cancel_order", "error", err)
		return CreateOrderResult{}, err
	}

	return CreateOrderResult{OrderID: orderID, Status: domain.StatusCancelled}, nil
}

// ApplyInventoryApproved handles a validated inventory.reserve.approved
// delivery: record the event, transition the order to CONFIRMED. An
// unknown orderId is not fatal; the event is still recorded.
func (s *Service) ApplyInventoryApproved(ctx context.Context, env envelope.Envelope) error {
	var payload envelope.InventoryReserveApprovedPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return err
	}
	if err := s.Events.Append(ctx, env); err != nil {
		return err
	}
	return s.transitionOrNoop(ctx, payload.OrderID, func(o *domain.Order) { o.Confirm(s.now()) })
}

// ApplyInventoryRejected handles a validated inventory.reserve.rejected
// delivery, transitioning the order to REJECTED.
func (s *Service) ApplyInventoryRejected(ctx context.Context, env envelope.Envelope) error {
	var payload envelope.InventoryReserveRejectedPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return err
	}
	if err := s.Events.Append(ctx, env); err != nil {
		return err
	}
	return s.transitionOrNoop(ctx, payload.OrderID, func(o *domain.Order) { o.Reject(s.now()) })
}

func (s *Service) transitionOrNoop(ctx context.Context, orderID string, apply func(*domain.Order)) error {
	order, err := s.Orders.FindByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order == nil {
		s.Logger.WarnContext(ctx, "inventory event references unknown orderId, event recorded, status update is a no-op",
			"module", "orderservice.app", "layer", "application", "operation", "apply_inventory_decision", "orderId", orderID)
		return nil
	}
	apply(order)
	return s.Orders.Update(ctx, *order)
}

func toEnvelopeItems(items []domain.Item) []envelope.OrderItem {
	out := make([]envelope.OrderItem, len(items))
	for i, it := range items {
		out[i] = envelope.OrderItem{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.UnitPrice}
	}
	return out
}

func payloadBytes(env envelope.Envelope) []byte {
	raw, _ := json.Marshal(env)
	return raw
}

func correlationOrNew(correlationID string, gen func() string) string {
	if correlationID != "" {
		return correlationID
	}
	return gen()
}
