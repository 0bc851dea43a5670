package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultExchange is the topic exchange events are published to.
const DefaultExchange = "queue.events"

// RoutingKey returns the topic routing key for ev: queue.<provider>.<kind>.
func RoutingKey(ev Event) string {
	return fmt.Sprintf("queue.%s.%s", ev.ProviderKey, ev.Kind)
}

// AMQPForwarder publishes events as persistent JSON messages to a durable
// topic exchange for back-office consumers. The connection is dialed
// lazily and redialed after a failure.
type AMQPForwarder struct {
	url      string
	exchange string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel

	// publish is swapped in tests.
	publish func(ctx context.Context, exchange, key string, msg amqp.Publishing) error
}

var _ Forwarder = (*AMQPForwarder)(nil)

// NewAMQPForwarder returns a forwarder for url. No connection is made until
// the first event.
func NewAMQPForwarder(url, exchange string) *AMQPForwarder {
	if exchange == "" {
		exchange = DefaultExchange
	}
	f := &AMQPForwarder{url: url, exchange: exchange}
	f.publish = f.publishBroker
	return f
}

// Name implements Forwarder.
func (f *AMQPForwarder) Name() string { return "amqp" }

// Forward implements Forwarder.
func (f *AMQPForwarder) Forward(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("amqp: marshal event: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         string(ev.Kind),
		Body:         body,
	}
	return f.publish(ctx, f.exchange, RoutingKey(ev), msg)
}

func (f *AMQPForwarder) publishBroker(ctx context.Context, exchange, key string, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.ensureChannel(); err != nil {
		return err
	}
	if err := f.ch.PublishWithContext(ctx, exchange, key, false, false, msg); err != nil {
		f.reset()
		return fmt.Errorf("amqp: publish: %w", err)
	}
	return nil
}

// ensureChannel must be called with f.mu held.
func (f *AMQPForwarder) ensureChannel() error {
	if f.ch != nil && !f.ch.IsClosed() {
		return nil
	}
	f.reset()

	conn, err := amqp.Dial(f.url)
	if err != nil {
		return fmt.Errorf("amqp: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("amqp: channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		f.exchange, // name
		"topic",    // kind
		true,       // durable
		false,      // autoDelete
		false,      // internal
		false,      // noWait
		nil,        // args
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("amqp: exchange declare: %w", err)
	}
	f.conn, f.ch = conn, ch
	return nil
}

// reset must be called with f.mu held.
func (f *AMQPForwarder) reset() {
	if f.ch != nil {
		_ = f.ch.Close()
		f.ch = nil
	}
	if f.conn != nil {
		_ = f.conn.Close()
		f.conn = nil
	}
}

// Close releases the broker connection, if any.
func (f *AMQPForwarder) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reset()
	return nil
}
