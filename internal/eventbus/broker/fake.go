package broker

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// FakeChannel is an in-memory stand-in for *amqp.Channel, used by tests
// that exercise the publisher/consumer contracts without a live broker.
// It generalizes the teacher's no-op EventPublisher (internal/messaging/noop)
// into a full fake exchange/queue/binding model: every declared queue is
// additionally bound to the default exchange under its own name, matching
// real AMQP broker behavior that PublishToQueue relies on.
type FakeChannel struct {
	mu       sync.Mutex
	queues   map[string]chan amqp.Delivery
	bindings map[string][]string // "exchange\x00routingKey" -> queue names
	tag      uint64
}

// NewFakeChannel returns an empty fake broker.
func NewFakeChannel() *FakeChannel {
	return &FakeChannel{
		queues:   map[string]chan amqp.Delivery{},
		bindings: map[string][]string{},
	}
}

func bindingKey(exchange, routingKey string) string { return exchange + "\x00" + routingKey }

func (f *FakeChannel) ExchangeDeclare(_ string, _ string, _, _, _, _ bool, _ amqp.Table) error {
	return nil
}

func (f *FakeChannel) QueueDeclare(name string, _, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.queues[name]; !ok {
		f.queues[name] = make(chan amqp.Delivery, 4096)
	}
	return amqp.Queue{Name: name}, nil
}

func (f *FakeChannel) QueueBind(name, key, exchange string, _ bool, _ amqp.Table) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := bindingKey(exchange, key)
	f.bindings[k] = append(f.bindings[k], name)
	return nil
}

func (f *FakeChannel) Qos(int, int, bool) error { return nil }

// QueueInspect reports the queue as reachable if it has been declared.
func (f *FakeChannel) QueueInspect(name string) (amqp.Queue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.queues[name]
	if !ok {
		return amqp.Queue{}, fmt.Errorf("queue %s not declared", name)
	}
	return amqp.Queue{Name: name, Messages: len(ch)}, nil
}

// Consume returns the named queue's delivery channel directly. The fake
// models exactly the (queue, single consumer, prefetch honored by the
// caller) case the spec's FIFO guarantee depends on.
func (f *FakeChannel) Consume(queue, _ string, _, _, _, _ bool, _ amqp.Table) (<-chan amqp.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.queues[queue]
	if !ok {
		ch = make(chan amqp.Delivery, 4096)
		f.queues[queue] = ch
	}
	return ch, nil
}

type noopAcknowledger struct{}

func (noopAcknowledger) Ack(uint64, bool) error         { return nil }
func (noopAcknowledger) Nack(uint64, bool, bool) error  { return nil }
func (noopAcknowledger) Reject(uint64, bool) error      { return nil }

// PublishWithContext fans a message out to every queue bound to
// (exchange, routingKey); for the default exchange ("") it delivers
// directly to the queue named by routingKey, mirroring every AMQP broker's
// implicit per-queue default-exchange binding.
func (f *FakeChannel) PublishWithContext(_ context.Context, exchange, routingKey string, _, _ bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tag++
	delivery := amqp.Delivery{
		Acknowledger: noopAcknowledger{},
		Headers:      msg.Headers,
		ContentType:  msg.ContentType,
		DeliveryMode: msg.DeliveryMode,
		DeliveryTag:  f.tag,
		Exchange:     exchange,
		RoutingKey:   routingKey,
		Body:         msg.Body,
	}

	var targets []string
	if exchange == "" {
		targets = []string{routingKey}
	} else {
		targets = f.bindings[bindingKey(exchange, routingKey)]
	}
	for _, q := range targets {
		ch, ok := f.queues[q]
		if !ok {
			ch = make(chan amqp.Delivery, 4096)
			f.queues[q] = ch
		}
		ch <- delivery
	}
	return nil
}

// RedeliverOne simulates one real-broker TTL-then-dead-letter hop: it
// drains a single message off queue's retry queue and republishes it to
// queue, standing in for the delay a live RabbitMQ's x-message-ttl + DLX
// binding performs automatically. Returns false if the retry queue was
// empty.
func (f *FakeChannel) RedeliverOne(ctx context.Context, queue string) bool {
	msgs := f.Drain(RetryQueueName(queue), 1)
	if len(msgs) == 0 {
		return false
	}
	d := msgs[0]
	_ = f.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  d.ContentType,
		DeliveryMode: d.DeliveryMode,
		Headers:      d.Headers,
		Body:         d.Body,
	})
	return true
}

// Depth returns the number of undelivered messages buffered for queue,
// used by tests asserting DLQ/retry contents.
func (f *FakeChannel) Depth(queue string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queues[queue])
}

// Drain reads up to n deliveries already buffered in queue without
// blocking, used by tests that assert final queue contents.
func (f *FakeChannel) Drain(queue string, n int) []amqp.Delivery {
	f.mu.Lock()
	ch, ok := f.queues[queue]
	f.mu.Unlock()
	if !ok {
		return nil
	}
	out := make([]amqp.Delivery, 0, n)
	for i := 0; i < n; i++ {
		select {
		case d := <-ch:
			out = append(out, d)
		default:
			return out
		}
	}
	return out
}
