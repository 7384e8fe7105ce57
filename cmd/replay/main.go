// Command replay queries the event store for historical events and
// re-publishes them onto the broker, per §4.5/§6. It does not mutate the
// event store: republishing relies on the store's own idempotent append
// should a downstream consumer re-ingest the replayed message.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nsridhar76/go-orderflow/internal/eventbus/broker"
	"github.com/nsridhar76/go-orderflow/internal/eventbus/envelope"
	"github.com/nsridhar76/go-orderflow/internal/eventbus/resilience"
	"github.com/nsridhar76/go-orderflow/internal/eventbus/store"
)

// routeTable maps an event type to the exchange/routing-key pair it was
// originally published under. Unknown types are skipped with a warning.
var routeTable = map[string]struct {
	exchange   string
	routingKey string
}{
	envelope.TypeOrdersCreated:            {broker.ExchangeOrders, broker.RoutingKey(envelope.TypeOrdersCreated, envelope.V1)},
	envelope.TypeOrdersCancelled:          {broker.ExchangeOrders, broker.RoutingKey(envelope.TypeOrdersCancelled, envelope.V1)},
	envelope.TypeInventoryReserveApproved: {broker.ExchangeInventory, broker.RoutingKey(envelope.TypeInventoryReserveApproved, envelope.V1)},
	envelope.TypeInventoryReserveRejected: {broker.ExchangeInventory, broker.RoutingKey(envelope.TypeInventoryReserveRejected, envelope.V1)},
	envelope.TypeNotificationSent:         {broker.ExchangeNotifications, broker.RoutingKey(envelope.TypeNotificationSent, envelope.V1)},
}

func main() {
	typeFlag := flag.String("type", "", "restrict replay to this event type")
	orderIDFlag := flag.String("orderId", "", "restrict replay to this orderId")
	fromFlag := flag.String("from", "", "restrict replay to events at or after this RFC3339 timestamp")
	toFlag := flag.String("to", "", "restrict replay to events at or before this RFC3339 timestamp")
	flag.Parse()

	if err := run(context.Background(), *typeFlag, *orderIDFlag, *fromFlag, *toFlag); err != nil {
		log.Fatalf("replay failed: %v", err)
	}
}

func run(ctx context.Context, typeFilter, orderIDFilter, fromFilter, toFilter string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With("service", "replay")

	filter, err := buildFilter(typeFilter, orderIDFilter, fromFilter, toFilter)
	if err != nil {
		return fmt.Errorf("parse filter: %w", err)
	}

	databaseURL := os.Getenv("DATABASE_URL")
	amqpURL := os.Getenv("AMQP_URL")
	if databaseURL == "" {
		return fmt.Errorf("missing DATABASE_URL")
	}
	if amqpURL == "" {
		return fmt.Errorf("missing AMQP_URL")
	}

	pgPool, err := resilience.Reconnect(ctx, 250*time.Millisecond, func(ctx context.Context) (*pgxpool.Pool, error) {
		return pgxpool.New(ctx, databaseURL)
	})
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pgPool.Close()

	amqpConn, err := resilience.Reconnect(ctx, 250*time.Millisecond, func(ctx context.Context) (*amqp.Connection, error) {
		return amqp.DialConfig(amqpURL, amqp.Config{Dial: amqp.DefaultDial(5 * time.Second)})
	})
	if err != nil {
		return fmt.Errorf("connect amqp: %w", err)
	}
	defer amqpConn.Close()

	ch, err := amqpConn.Channel()
	if err != nil {
		return fmt.Errorf("open amqp channel: %w", err)
	}
	if err := broker.DeclareTopology(ctx, ch); err != nil {
		return fmt.Errorf("declare topology: %w", err)
	}

	breaker := resilience.New(resilience.BreakerSettings{Enabled: false})
	eventStore := store.NewPostgresStore(pgPool, resilience.New(resilience.BreakerSettings{Enabled: false}))
	publisher := broker.NewPublisher(ch, breaker, logger)

	return replayEvents(ctx, eventStore, publisher, filter, logger)
}

// replayEvents queries eventStore for filter and republishes every matched
// event whose type maps to a known exchange/routing-key pair.
func replayEvents(ctx context.Context, eventStore store.Store, publisher *broker.Publisher, filter store.Filter, logger *slog.Logger) error {
	events, err := eventStore.Find(ctx, filter)
	if err != nil {
		return fmt.Errorf("query event store: %w", err)
	}

	replayed := 0
	for _, env := range events {
		route, ok := routeTable[env.Type]
		if !ok {
			logger.WarnContext(ctx, "skipping event of unknown type", "module", "replay", "layer", "adapter", "operation", "replay", "event_id", env.EventID, "type", env.Type)
			continue
		}
		raw, err := json.Marshal(env)
		if err != nil {
			return fmt.Errorf("marshal event %s: %w", env.EventID, err)
		}
		headers := broker.Headers(env.CorrelationID, envelope.OrderID(env))
		headers[broker.HeaderReplay] = true
		if err := publisher.Publish(ctx, route.exchange, route.routingKey, raw, headers); err != nil {
			return fmt.Errorf("republish event %s: %w", env.EventID, err)
		}
		replayed++
	}

	logger.InfoContext(ctx, "replay complete", "module", "replay", "layer", "adapter", "operation", "replay", "replayed", replayed, "matched", len(events))
	return nil
}

func buildFilter(typeFilter, orderIDFilter, fromFilter, toFilter string) (store.Filter, error) {
	var filter store.Filter
	if typeFilter != "" {
		filter.Type = &typeFilter
	}
	if orderIDFilter != "" {
		filter.OrderID = &orderIDFilter
	}
	if fromFilter != "" {
		from, err := time.Parse(time.RFC3339, fromFilter)
		if err != nil {
			return store.Filter{}, fmt.Errorf("invalid --from: %w", err)
		}
		filter.From = &from
	}
	if toFilter != "" {
		to, err := time.Parse(time.RFC3339, toFilter)
		if err != nil {
			return store.Filter{}, fmt.Errorf("invalid --to: %w", err)
		}
		filter.To = &to
	}
	return filter, nil
}
