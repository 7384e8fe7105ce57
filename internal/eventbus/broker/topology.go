// Package broker implements the messaging substrate (C2): topic exchange
// and durable-queue topology declaration, a publisher, and a consumer
// runtime that turns handler decisions into ack/retry/dlq outcomes.
package broker

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange names. Six topic exchanges per §4.2/§6: one primary and one
// retry exchange for each of orders, inventory, notifications.
const (
	ExchangeOrders              = "orders"
	ExchangeOrdersRetry         = "orders.retry"
	ExchangeInventory           = "inventory"
	ExchangeInventoryRetry      = "inventory.retry"
	ExchangeNotifications       = "notifications"
	ExchangeNotificationsRetry  = "notifications.retry"
	retryTTLMillis        int32 = 10_000
)

// RoutingKey builds the versioned routing key for an event type, e.g.
// RoutingKey(envelope.TypeOrdersCreated, 1) == "orders.created.v1".
func RoutingKey(eventType string, version int) string {
	return fmt.Sprintf("%s.v%d", eventType, version)
}

// QueueBinding declares one logical queue Q: its primary exchange and
// routing key. DeclareTopology additionally creates Q.retry (with TTL and
// a dead-letter-exchange pointing back at Exchange/RoutingKey) and Q.dlq
// (terminal) for every binding.
type QueueBinding struct {
	Queue         string
	Exchange      string
	RoutingKey    string
	RetryExchange string
}

// Bindings is the full declarative topology for the three services plus
// their notification fan-out queues. inventory.reserve.requested.v1 is
// deliberately absent: it is a reserved routing key with no producer and
// no bound queue (see DESIGN.md Open Questions).
var Bindings = []QueueBinding{
	{Queue: "order.created.q", Exchange: ExchangeOrders, RoutingKey: RoutingKey("orders.created", 1), RetryExchange: ExchangeOrdersRetry},
	{Queue: "orders.cancelled.q", Exchange: ExchangeOrders, RoutingKey: RoutingKey("orders.cancelled", 1), RetryExchange: ExchangeOrdersRetry},
	{Queue: "inventory.reserve.approved.q", Exchange: ExchangeInventory, RoutingKey: RoutingKey("inventory.reserve.approved", 1), RetryExchange: ExchangeInventoryRetry},
	{Queue: "inventory.reserve.rejected.q", Exchange: ExchangeInventory, RoutingKey: RoutingKey("inventory.reserve.rejected", 1), RetryExchange: ExchangeInventoryRetry},
	{Queue: "notification.sent.q", Exchange: ExchangeNotifications, RoutingKey: RoutingKey("notification.sent", 1), RetryExchange: ExchangeNotificationsRetry},
	{Queue: "orders.created.notification.q", Exchange: ExchangeOrders, RoutingKey: RoutingKey("orders.created", 1), RetryExchange: ExchangeOrdersRetry},
	{Queue: "orders.cancelled.notification.q", Exchange: ExchangeOrders, RoutingKey: RoutingKey("orders.cancelled", 1), RetryExchange: ExchangeOrdersRetry},
	{Queue: "inventory.reserve.approved.notification.q", Exchange: ExchangeInventory, RoutingKey: RoutingKey("inventory.reserve.approved", 1), RetryExchange: ExchangeInventoryRetry},
	{Queue: "inventory.reserve.rejected.notification.q", Exchange: ExchangeInventory, RoutingKey: RoutingKey("inventory.reserve.rejected", 1), RetryExchange: ExchangeInventoryRetry},
}

// RetryQueueName and DLQName derive the retry/terminal queue names for a
// logical queue Q, per §4.2: "for each logical queue Q the substrate
// declares three queues: Q, Q.retry, Q.dlq".
func RetryQueueName(queue string) string { return queue + ".retry" }
func DLQName(queue string) string        { return queue + ".dlq" }

// topologyChannel is the subset of *amqp.Channel used during declaration.
type topologyChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
}

// DeclareTopology creates every exchange, primary queue, retry queue and
// dead-letter queue named by Bindings. Idempotent: redeclaring the same
// topology with identical arguments is a no-op on the broker side.
func DeclareTopology(_ context.Context, ch topologyChannel) error {
	exchanges := []string{
		ExchangeOrders, ExchangeOrdersRetry,
		ExchangeInventory, ExchangeInventoryRetry,
		ExchangeNotifications, ExchangeNotificationsRetry,
	}
	for _, ex := range exchanges {
		if err := ch.ExchangeDeclare(ex, "topic", true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex, err)
		}
	}

	seen := map[string]bool{}
	for _, b := range Bindings {
		if seen[b.Queue] {
			continue
		}
		seen[b.Queue] = true

		if _, err := ch.QueueDeclare(b.Queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", b.Queue, err)
		}
		if err := ch.QueueBind(b.Queue, b.RoutingKey, b.Exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", b.Queue, err)
		}

		retryArgs := amqp.Table{
			"x-message-ttl":             retryTTLMillis,
			"x-dead-letter-exchange":    b.Exchange,
			"x-dead-letter-routing-key": b.RoutingKey,
		}
		retryName := RetryQueueName(b.Queue)
		if _, err := ch.QueueDeclare(retryName, true, false, false, false, retryArgs); err != nil {
			return fmt.Errorf("declare retry queue %s: %w", retryName, err)
		}
		if err := ch.QueueBind(retryName, b.RoutingKey, b.RetryExchange, false, nil); err != nil {
			return fmt.Errorf("bind retry queue %s: %w", retryName, err)
		}

		dlqName := DLQName(b.Queue)
		if _, err := ch.QueueDeclare(dlqName, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare dlq %s: %w", dlqName, err)
		}
	}
	return nil
}
