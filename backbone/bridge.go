// Package backbone links a small cluster of broadcast processes through a
// RabbitMQ fanout exchange, so an order committed on one instance reaches
// the clients connected to every other instance. It is optional: a single
// process serves the common deployment without any broker.
package backbone

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"order-sync/contract"
	"order-sync/domain/event"
)

const reconnectBackoff = 2 * time.Second

// envelope wraps an event with its origin instance so consumers can skip
// what they published themselves.
type envelope struct {
	Origin  string          `json:"origin"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Bridge is a Broadcaster decorator: every publish goes to the local fanout
// first, then to the exchange. Broker failures are logged and dropped; the
// local delivery already happened and peers self-heal via catch-up.
//
// The publisher side holds one connection and channel across publishes,
// re-dialing lazily after a failure.
type Bridge struct {
	log        *slog.Logger
	local      contract.IBroadcaster
	url        string
	exchange   string
	instanceID string

	pubMu   sync.Mutex
	pubConn *amqp.Connection
	pubCh   *amqp.Channel
}

var _ contract.IBroadcaster = (*Bridge)(nil)

func NewBridge(log *slog.Logger, local contract.IBroadcaster,
	url, exchange, instanceID string) *Bridge {
	return &Bridge{
		log:        log,
		local:      local,
		url:        url,
		exchange:   exchange,
		instanceID: instanceID,
	}
}

func (b *Bridge) Publish(ctx context.Context, e event.DomainEvent) {
	b.local.Publish(ctx, e)

	if err := b.publishRemote(ctx, e); err != nil {
		b.log.Warn("Backbone publish failed, peers rely on catch-up",
			"event", e.EventType(), "error", err)
	}
}

func (b *Bridge) publishRemote(ctx context.Context, e event.DomainEvent) error {
	body, err := b.encode(e)
	if err != nil {
		return err
	}

	b.pubMu.Lock()
	defer b.pubMu.Unlock()

	ch, err := b.publisherChannel()
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx, b.exchange, "", false, false, amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   time.Now().UTC(),
		Body:        body,
	})
	if err != nil {
		// The channel is unusable after a publish error; the next publish
		// re-dials.
		b.closePublisher()
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// publisherChannel returns the cached channel, dialing on first use or
// after a failure. Caller holds pubMu.
func (b *Bridge) publisherChannel() (*amqp.Channel, error) {
	if b.pubCh != nil {
		return b.pubCh, nil
	}

	conn, err := amqp.Dial(b.url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := b.declareExchange(ch); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	b.pubConn = conn
	b.pubCh = ch
	return ch, nil
}

// closePublisher drops the cached connection. Caller holds pubMu.
func (b *Bridge) closePublisher() {
	if b.pubCh != nil {
		_ = b.pubCh.Close()
		b.pubCh = nil
	}
	if b.pubConn != nil {
		_ = b.pubConn.Close()
		b.pubConn = nil
	}
}

// Close releases the publisher side. The consumer worker has its own
// lifecycle through the supervisor.
func (b *Bridge) Close() {
	b.pubMu.Lock()
	defer b.pubMu.Unlock()
	b.closePublisher()
}

func (b *Bridge) encode(e event.DomainEvent) ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{
		Origin:  b.instanceID,
		Type:    e.EventType(),
		Payload: payload,
	})
}

// decode returns the peer event, or nil when the envelope originated here
// or is unknown.
func (b *Bridge) decode(body []byte) (event.DomainEvent, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Origin == b.instanceID {
		return nil, nil
	}

	switch env.Type {
	case event.OrderCreated{}.EventType():
		var evt event.OrderCreated
		return evt, json.Unmarshal(env.Payload, &evt)
	case event.OrderStatusChanged{}.EventType():
		var evt event.OrderStatusChanged
		return evt, json.Unmarshal(env.Payload, &evt)
	case event.TableNotification{}.EventType():
		var evt event.TableNotification
		return evt, json.Unmarshal(env.Payload, &evt)
	default:
		return nil, fmt.Errorf("unknown backbone event type %q", env.Type)
	}
}

func (b *Bridge) declareExchange(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(b.exchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	return nil
}

// ConsumerWorker subscribes this instance to the exchange and republishes
// peer events into the local broadcaster. It keeps a reconnect loop alive
// until the context is cancelled.
type ConsumerWorker struct {
	bridge *Bridge
}

var _ contract.Worker = (*ConsumerWorker)(nil)

func NewConsumerWorker(bridge *Bridge) *ConsumerWorker {
	return &ConsumerWorker{bridge: bridge}
}

func (w *ConsumerWorker) Run(ctx context.Context) error {
	b := w.bridge
	for {
		if err := w.consumeOnce(ctx); err != nil {
			b.log.Warn("Backbone consumer disconnected, reconnecting",
				"error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectBackoff):
		}
	}
}

func (w *ConsumerWorker) consumeOnce(ctx context.Context) error {
	b := w.bridge
	conn, err := amqp.Dial(b.url)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := b.declareExchange(ch); err != nil {
		return err
	}

	// One exclusive auto-deleted queue per instance: the fanout exchange
	// copies every event to every living peer.
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", b.exchange, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}

	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("deliveries channel closed")
			}
			evt, err := b.decode(d.Body)
			if err != nil {
				b.log.Warn("Dropping malformed backbone event", "error", err)
				continue
			}
			if evt == nil {
				continue // our own echo
			}
			b.local.Publish(ctx, evt)
		}
	}
}
