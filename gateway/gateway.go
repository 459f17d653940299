package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"order-sync/contract"
	"order-sync/domain"
	"order-sync/errors"
)

// TokenVerifier checks the credential a staff terminal presents during the
// handshake and yields the role baked into it. Guests carry no credential.
type TokenVerifier interface {
	Verify(token string) (domain.Role, error)
}

type Gateway struct {
	log              *slog.Logger
	registry         contract.IRegistry
	verifier         TokenVerifier
	handshakeTimeout time.Duration
	queueSize        int
}

func NewGateway(log *slog.Logger, registry contract.IRegistry, verifier TokenVerifier,
	handshakeTimeout time.Duration, queueSize int) *Gateway {
	return &Gateway{
		log:              log,
		registry:         registry,
		verifier:         verifier,
		handshakeTimeout: handshakeTimeout,
		queueSize:        queueSize,
	}
}

// Handle owns one client session from accept to disconnect. It blocks until
// the client goes away, the handshake expires, or ctx is cancelled. Until
// the role announce succeeds the connection is registered nowhere and
// receives nothing.
func (g *Gateway) Handle(ctx context.Context, transport Transport) {
	conn := newConnection(uuid.NewString(), transport, g.queueSize)
	go conn.writeLoop(ctx)

	frames, readErr := g.pump(transport, conn)

	if err := g.handshake(ctx, conn, frames, readErr); err != nil {
		// Dropped silently: the client retries with a fresh connection.
		g.log.Warn("Handshake failed", "connection_id", conn.ID, "error", err)
		conn.shutdown()
		return
	}
	defer g.disconnect(conn)

	g.log.Info("Client announced",
		"connection_id", conn.ID,
		"role", conn.Role())

	for {
		select {
		case <-ctx.Done():
			return
		case <-conn.Done():
			return
		case <-readErr:
			return
		case data := <-frames:
			if err := g.handleMessage(conn, data); err != nil {
				g.log.Warn("Dropping client after protocol error",
					"connection_id", conn.ID, "error", err)
				return
			}
		}
	}
}

// pump moves transport reads onto a channel so handshake timeouts and
// cancellation can be expressed as selects.
func (g *Gateway) pump(transport Transport, conn *Connection) (<-chan []byte, <-chan error) {
	frames := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		for {
			data, err := transport.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case frames <- data:
			case <-conn.closed:
				return
			}
		}
	}()
	return frames, readErr
}

// handshake awaits the announce_role message within the configured window.
func (g *Gateway) handshake(ctx context.Context, conn *Connection,
	frames <-chan []byte, readErr <-chan error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(g.handshakeTimeout):
		return errors.ErrHandshakeTimeout
	case err := <-readErr:
		return fmt.Errorf("%w: %w", errors.ErrConnectionLost, err)
	case data := <-frames:
		msg, err := decodeClientMessage(data)
		if err != nil {
			return err
		}
		if msg.Type != msgAnnounceRole {
			return errors.ErrNotAnnounced
		}
		return g.announceRole(conn, msg)
	}
}

func (g *Gateway) announceRole(conn *Connection, msg ClientMessage) error {
	role, err := domain.ParseRole(msg.Role)
	if err != nil {
		return err
	}

	if role.IsStaff() {
		claimed, err := g.verifier.Verify(msg.Token)
		if err != nil {
			return fmt.Errorf("staff announce rejected: %w", err)
		}
		// A terminal may only announce the role its credential carries;
		// admins may run any staff dashboard.
		if claimed != role && claimed != domain.RoleAdmin {
			return errors.ErrForbidden
		}
	}

	conn.announce(role)
	g.registry.Register(conn.ID, conn)
	if role.IsStaff() {
		g.registry.Join(conn.ID, domain.RoleChannel(role))
	}
	return nil
}

// handleMessage processes post-handshake client messages. The only one
// defined is the table announce, which re-scopes a guest session.
func (g *Gateway) handleMessage(conn *Connection, data []byte) error {
	msg, err := decodeClientMessage(data)
	if err != nil {
		return err
	}

	switch msg.Type {
	case msgAnnounceTable:
		if conn.Role() != domain.RoleGuest {
			g.log.Warn("Ignoring table announce from staff connection",
				"connection_id", conn.ID, "role", conn.Role())
			return nil
		}
		if msg.TableID == "" {
			return fmt.Errorf("table announce without table id")
		}
		conn.setTable(msg.TableID)
		// Joining a new table channel implicitly leaves the previous one.
		g.registry.Join(conn.ID, domain.TableChannel(msg.TableID))
		return nil
	case msgAnnounceRole:
		// The role is fixed for the lifetime of a connection.
		return fmt.Errorf("role already announced")
	default:
		return fmt.Errorf("unexpected message type %q", msg.Type)
	}
}

// disconnect is the single cleanup path: membership first, then transport.
func (g *Gateway) disconnect(conn *Connection) {
	g.registry.LeaveAll(conn.ID)
	conn.shutdown()
	g.log.Info("Client disconnected", "connection_id", conn.ID)
}
