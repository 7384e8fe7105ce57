package broker

import (
	"context"
	"encoding/json"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Decision is the outcome a handler returns for one delivery.
type Decision int

const (
	// DecisionAck acknowledges the delivery; terminal.
	DecisionAck Decision = iota
	// DecisionRetry republishes to Q.retry (or Q.dlq once attempts are
	// exhausted) and acks the original delivery.
	DecisionRetry
	// DecisionDLQ republishes straight to Q.dlq and acks the original
	// delivery. Used for schema-invalid messages, which are never retried.
	DecisionDLQ
)

// Handler processes one delivery's generic JSON body and decides its fate.
// raw is the original message bytes; parsed is the same bytes decoded
// into a generic map, handed over so handlers don't need to re-parse
// just to inspect top-level fields before running their own (stricter)
// envelope/schema validation.
type Handler func(ctx context.Context, parsed map[string]any, raw []byte) Decision

// ConsumeChannel is the subset of *amqp.Channel needed to run a consumer
// loop against one queue.
type ConsumeChannel interface {
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// Runtime binds a Handler to one queue with bounded prefetch and
// no-auto-ack, implementing the delivery state machine in §4.2:
//
//	received -> (parsed & handled) -> ack          (terminal)
//	received -> handler-error       -> retry -> delayed-redelivery -> received
//	received -> schema-invalid      -> dlq         (terminal)
//	received -> attempts>max        -> dlq         (terminal)
type Runtime struct {
	Queue      string
	Prefetch   int
	MaxRetries int
	Publisher  *Publisher
	Logger     *slog.Logger
}

func (r *Runtime) prefetch() int {
	if r.Prefetch <= 0 {
		return 1
	}
	return r.Prefetch
}

func (r *Runtime) maxRetries() int {
	if r.MaxRetries <= 0 {
		return 3
	}
	return r.MaxRetries
}

func (r *Runtime) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

// Run binds to ch and processes deliveries until ctx is cancelled or the
// delivery channel closes.
func (r *Runtime) Run(ctx context.Context, ch ConsumeChannel, handler Handler) error {
	if err := ch.Qos(r.prefetch(), 0, false); err != nil {
		return err
	}
	deliveries, err := ch.Consume(r.Queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			r.process(ctx, d, handler)
		}
	}
}

func (r *Runtime) process(ctx context.Context, d amqp.Delivery, handler Handler) {
	attempt := AttemptFromHeaders(d.Headers)

	var parsed map[string]any
	if err := json.Unmarshal(d.Body, &parsed); err != nil {
		// Malformed bytes may be a legitimate transport glitch; the retry
		// budget exists precisely to avoid an infinite loop on a
		// persistently unparseable message.
		r.logger().WarnContext(ctx, "delivery body is not valid JSON, treating as transient",
			"module", "broker.runtime", "layer", "adapter", "operation", "consume",
			"queue", r.Queue, "attempt", attempt, "error", err,
		)
		r.retry(ctx, d, attempt)
		return
	}

	decision := r.invoke(ctx, handler, parsed, d.Body)
	switch decision {
	case DecisionAck:
		_ = d.Ack(false)
	case DecisionDLQ:
		r.toDLQ(ctx, d, attempt)
	default:
		r.retry(ctx, d, attempt)
	}
}

func (r *Runtime) invoke(ctx context.Context, handler Handler, parsed map[string]any, raw []byte) (decision Decision) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger().ErrorContext(ctx, "handler panicked, treating as retry",
				"module", "broker.runtime", "layer", "adapter", "operation", "invoke_handler",
				"queue", r.Queue, "panic", rec,
			)
			decision = DecisionRetry
		}
	}()
	return handler(ctx, parsed, raw)
}

func (r *Runtime) retry(ctx context.Context, d amqp.Delivery, attempt int) {
	next := attempt + 1
	headers := WithAttempt(d.Headers, next)
	if next > r.maxRetries() {
		if err := r.Publisher.PublishToQueue(ctx, DLQName(r.Queue), d.Body, headers); err != nil {
			r.logger().ErrorContext(ctx, "failed to publish exhausted retry to dlq",
				"module", "broker.runtime", "layer", "adapter", "operation", "retry_exhausted",
				"queue", r.Queue, "error", err,
			)
		}
		_ = d.Ack(false)
		return
	}
	if err := r.Publisher.PublishToQueue(ctx, RetryQueueName(r.Queue), d.Body, headers); err != nil {
		r.logger().ErrorContext(ctx, "failed to publish to retry queue",
			"module", "broker.runtime", "layer", "adapter", "operation", "retry",
			"queue", r.Queue, "error", err,
		)
	}
	_ = d.Ack(false)
}

func (r *Runtime) toDLQ(ctx context.Context, d amqp.Delivery, attempt int) {
	if err := r.Publisher.PublishToQueue(ctx, DLQName(r.Queue), d.Body, d.Headers); err != nil {
		r.logger().ErrorContext(ctx, "failed to publish schema-invalid message to dlq",
			"module", "broker.runtime", "layer", "adapter", "operation", "dlq",
			"queue", r.Queue, "attempt", attempt, "error", err,
		)
	}
	_ = d.Ack(false)
}
