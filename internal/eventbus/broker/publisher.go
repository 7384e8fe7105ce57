package broker

import (
	"context"
	"io"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/nsridhar76/go-orderflow/internal/eventbus/resilience"
)

// PublishChannel is the subset of *amqp.Channel needed to publish. A
// single channel is not safe for concurrent publishers in most AMQP
// client libraries, so Publisher serializes all publishes through one
// mutex per channel, per §5's shared-resource policy.
type PublishChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher implements the publish contract in §4.2: persistent messages,
// application/json content type, required correlation/group headers,
// guarded by a circuit breaker.
type Publisher struct {
	mu      sync.Mutex
	ch      PublishChannel
	breaker *resilience.Breaker
	logger  *slog.Logger
}

// NewPublisher builds a Publisher over ch, guarded by breaker. logger may
// be nil, in which case a discard logger is used.
func NewPublisher(ch PublishChannel, breaker *resilience.Breaker, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
	}
	return &Publisher{ch: ch, breaker: breaker, logger: logger}
}

// Publish sends body to exchange/routingKey as a persistent, JSON message
// carrying the required headers. A publish error is logged and returned to
// the caller, where it also counts against the breaker. Broker backpressure
// (flow control) is not detected or handled separately.
func (p *Publisher) Publish(ctx context.Context, exchange, routingKey string, body []byte, headers amqp.Table) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.breaker.Execute(ctx, func(ctx context.Context) error {
		err := p.ch.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Headers:      headers,
			Body:         body,
		})
		if err != nil {
			p.logger.WarnContext(ctx, "publish failed",
				"module", "broker.publisher",
				"layer", "adapter",
				"operation", "publish",
				"exchange", exchange,
				"routingKey", routingKey,
				"error", err,
			)
		}
		return err
	})
}

// PublishToQueue addresses a queue directly via the default exchange,
// which binds every declared queue to its own name. Used for retry/DLQ
// republishing, where the target is a specific queue rather than a
// routing-key fan-out.
func (p *Publisher) PublishToQueue(ctx context.Context, queue string, body []byte, headers amqp.Table) error {
	return p.Publish(ctx, "", queue, body, headers)
}
