package gateway

import (
	"context"
	"sync"

	"order-sync/domain"
	"order-sync/domain/event"
	"order-sync/errors"
)

// Transport is the minimal surface the gateway needs from a socket.
// The production implementation wraps a WebSocket connection; tests plug in
// an in-memory pipe.
type Transport interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// connState is the per-connection lifecycle. There is no way back from
// disconnected; a reconnect is a brand-new connection identity.
type connState int

const (
	stateConnecting connState = iota
	stateAnnounced
	stateDisconnected
)

// Connection is one live client session. It owns a bounded outbound queue
// drained by a single writer goroutine, so a slow socket back-pressures
// only itself: when the queue is full the connection is dropped, never the
// broadcast loop.
type Connection struct {
	ID        string
	transport Transport

	mu      sync.Mutex
	state   connState
	role    domain.Role
	tableID string

	outbound chan []byte
	closed   chan struct{}
	once     sync.Once
}

func newConnection(id string, transport Transport, queueSize int) *Connection {
	return &Connection{
		ID:        id,
		transport: transport,
		state:     stateConnecting,
		outbound:  make(chan []byte, queueSize),
		closed:    make(chan struct{}),
	}
}

// Consume implements contract.EventSink. It serializes the event and
// enqueues it without blocking; a full queue means the client cannot keep
// up and is treated as a disconnect signal by the writer side.
func (c *Connection) Consume(ctx context.Context, e event.DomainEvent) error {
	data, err := encodeEvent(e)
	if err != nil {
		return err
	}
	select {
	case c.outbound <- data:
		return nil
	case <-c.closed:
		return errors.ErrConnectionLost
	case <-ctx.Done():
		return ctx.Err()
	default:
		// Do not wait for a struggling client: drop it instead.
		c.shutdown()
		return errors.ErrQueueFull
	}
}

// writeLoop drains the outbound queue onto the transport. Any write failure
// is a disconnect signal.
func (c *Connection) writeLoop(ctx context.Context) {
	defer c.shutdown()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		case data := <-c.outbound:
			if err := c.transport.WriteMessage(data); err != nil {
				return
			}
		}
	}
}

func (c *Connection) announce(role domain.Role) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = stateAnnounced
	c.role = role
}

func (c *Connection) Role() domain.Role {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.role
}

func (c *Connection) TableID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tableID
}

func (c *Connection) setTable(tableID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tableID = tableID
}

// shutdown closes the transport exactly once and marks the connection dead.
func (c *Connection) shutdown() {
	c.once.Do(func() {
		c.mu.Lock()
		c.state = stateDisconnected
		c.mu.Unlock()
		close(c.closed)
		_ = c.transport.Close()
	})
}

// Done reports transport death to the gateway's read loop owner.
func (c *Connection) Done() <-chan struct{} {
	return c.closed
}
