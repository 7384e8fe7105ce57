package envelope

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Event type constants. Dotted strings, versioned by the Envelope.Version
// field; a routing key additionally carries the version suffix (see
// broker.RoutingKey).
const (
	TypeOrdersCreated            = "orders.created"
	TypeOrdersCancelled          = "orders.cancelled"
	TypeInventoryReserveApproved = "inventory.reserve.approved"
	TypeInventoryReserveRejected = "inventory.reserve.rejected"
	TypeNotificationSent         = "notification.sent"

	// TypeInventoryReserveRequested is reserved by the original design but
	// never produced: no handler downstream consumes it. Kept only as a
	// named constant so nothing accidentally reuses the routing key.
	TypeInventoryReserveRequested = "inventory.reserve.requested"
)

// V1 is the only version currently defined for any payload.
const V1 = 1

// Notification kinds carried by a notification.sent payload.
const (
	KindOrderCreated   = "order_created"
	KindOrderConfirmed = "order_confirmed"
	KindOrderRejected  = "order_rejected"
	KindOrderCancelled = "order_cancelled"
)

// OrderItem is a single line item within an orders.created payload.
type OrderItem struct {
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

// OrdersCreatedPayload is the v1 payload for orders.created.
type OrdersCreatedPayload struct {
	OrderID    string      `json:"orderId"`
	CustomerID string      `json:"customerId"`
	Items      []OrderItem `json:"items"`
	Total      float64     `json:"total"`
}

func (p OrdersCreatedPayload) validate() error {
	if p.OrderID == "" {
		return fieldErr("payload.orderId", "must not be empty")
	}
	if p.CustomerID == "" {
		return fieldErr("payload.customerId", "must not be empty")
	}
	if len(p.Items) < 1 {
		return fieldErr("payload.items", "must contain at least one item")
	}
	for i, item := range p.Items {
		if item.ProductID == "" {
			return fieldErr(fmt.Sprintf("payload.items[%d].productId", i), "must not be empty")
		}
		if item.Quantity <= 0 {
			return fieldErr(fmt.Sprintf("payload.items[%d].quantity", i), "must be a positive integer")
		}
		if item.UnitPrice <= 0 {
			return fieldErr(fmt.Sprintf("payload.items[%d].unitPrice", i), "must be a positive real number")
		}
	}
	if p.Total <= 0 {
		return fieldErr("payload.total", "must be a positive real number")
	}
	return nil
}

// OrdersCancelledPayload is the v1 payload for orders.cancelled.
type OrdersCancelledPayload struct {
	OrderID string `json:"orderId"`
	Reason  string `json:"reason"`
}

func (p OrdersCancelledPayload) validate() error {
	if p.OrderID == "" {
		return fieldErr("payload.orderId", "must not be empty")
	}
	if p.Reason == "" {
		return fieldErr("payload.reason", "must not be empty")
	}
	return nil
}

// InventoryReserveApprovedPayload is the v1 payload for inventory.reserve.approved.
type InventoryReserveApprovedPayload struct {
	OrderID       string `json:"orderId"`
	ReservationID string `json:"reservationId"`
}

func (p InventoryReserveApprovedPayload) validate() error {
	if p.OrderID == "" {
		return fieldErr("payload.orderId", "must not be empty")
	}
	if p.ReservationID == "" {
		return fieldErr("payload.reservationId", "must not be empty")
	}
	return nil
}

// InventoryReserveRejectedPayload is the v1 payload for inventory.reserve.rejected.
type InventoryReserveRejectedPayload struct {
	OrderID string `json:"orderId"`
	Reason  string `json:"reason"`
}

func (p InventoryReserveRejectedPayload) validate() error {
	if p.OrderID == "" {
		return fieldErr("payload.orderId", "must not be empty")
	}
	if p.Reason == "" {
		return fieldErr("payload.reason", "must not be empty")
	}
	return nil
}

var validNotificationKinds = map[string]bool{
	KindOrderCreated:   true,
	KindOrderConfirmed: true,
	KindOrderRejected:  true,
	KindOrderCancelled: true,
}

// NotificationSentPayload is the v1 payload for notification.sent.
type NotificationSentPayload struct {
	OrderID string `json:"orderId"`
	Kind    string `json:"kind"`
	Channel string `json:"channel"`
}

func (p NotificationSentPayload) validate() error {
	if p.OrderID == "" {
		return fieldErr("payload.orderId", "must not be empty")
	}
	if !validNotificationKinds[p.Kind] {
		return fieldErr("payload.kind", "must be one of order_created, order_confirmed, order_rejected, order_cancelled")
	}
	if p.Channel == "" {
		return fieldErr("payload.channel", "must not be empty")
	}
	return nil
}

type schemaKey struct {
	typ     string
	version int
}

type payloadValidator func(raw json.RawMessage) error

func register[T interface{ validate() error }]() payloadValidator {
	return func(raw json.RawMessage) error {
		var payload T
		if err := json.Unmarshal(raw, &payload); err != nil {
			return fieldErr("payload", "invalid JSON: "+err.Error())
		}
		return payload.validate()
	}
}

// registry maps (type, version) to the validator for that payload schema.
// Evolving a schema adds a new entry here and a new versioned routing key;
// old entries are never removed.
var registry = map[schemaKey]payloadValidator{
	{TypeOrdersCreated, V1}:            register[OrdersCreatedPayload](),
	{TypeOrdersCancelled, V1}:          register[OrdersCancelledPayload](),
	{TypeInventoryReserveApproved, V1}: register[InventoryReserveApprovedPayload](),
	{TypeInventoryReserveRejected, V1}: register[InventoryReserveRejectedPayload](),
	{TypeNotificationSent, V1}:         register[NotificationSentPayload](),
}

func validatePayload(typ string, version int, raw json.RawMessage) error {
	validator, ok := registry[schemaKey{typ, version}]
	if !ok {
		return fieldErr("type", "no schema registered for "+typ+" version "+strconv.Itoa(version))
	}
	return validator(raw)
}

// KnownSchema reports whether a (type, version) pair has a registered
// validator. Used by tests asserting schema totality (§8 property 1).
func KnownSchema(typ string, version int) bool {
	_, ok := registry[schemaKey{typ, version}]
	return ok
}
