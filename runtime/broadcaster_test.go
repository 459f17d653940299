package runtime

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"order-sync/domain"
	"order-sync/domain/event"
)

type captureSink struct {
	events []event.DomainEvent
	err    error
}

func (s *captureSink) Consume(_ context.Context, e event.DomainEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, e)
	return nil
}

func newBroadcastFixture() (*Broadcaster, *Registry) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	registry := NewRegistry()
	return NewBroadcaster(log, registry, 100*time.Millisecond), registry
}

func connect(registry *Registry, channels ...domain.Channel) *captureSink {
	sink := &captureSink{}
	connectionID := uuid.NewString()
	registry.Register(connectionID, sink)
	for _, ch := range channels {
		registry.Join(connectionID, ch)
	}
	return sink
}

func TestBroadcaster_OrderCreatedGoesToWaitersOnly(t *testing.T) {
	req := require.New(t)
	broadcaster, registry := newBroadcastFixture()

	waiter := connect(registry, domain.RoleChannel(domain.RoleWaiter))
	kitchen := connect(registry, domain.RoleChannel(domain.RoleKitchen))
	guestT1 := connect(registry, domain.TableChannel("T1"))
	guestT2 := connect(registry, domain.TableChannel("T2"))

	// When an order is placed for table T1
	order := domain.NewOrder("T1", []domain.OrderItem{{Name: "Margherita", Quantity: 1, UnitPrice: 1200}},
		"", func(unit int64, qty int) int64 { return unit * int64(qty) }, time.Now())
	broadcaster.Publish(context.Background(), event.OrderCreated{Order: order, At: time.Now()})

	// Then every waiter sees it and nobody else does
	req.Len(waiter.events, 1)
	req.Empty(kitchen.events)
	req.Empty(guestT1.events)
	req.Empty(guestT2.events)
}

func TestBroadcaster_AcceptedGoesToKitchenAndWaiter(t *testing.T) {
	req := require.New(t)
	broadcaster, registry := newBroadcastFixture()

	waiter := connect(registry, domain.RoleChannel(domain.RoleWaiter))
	kitchen := connect(registry, domain.RoleChannel(domain.RoleKitchen))
	guest := connect(registry, domain.TableChannel("T1"))

	broadcaster.Publish(context.Background(), event.OrderStatusChanged{
		OrderID:        uuid.New(),
		TableID:        "T1",
		PreviousStatus: domain.StatusPending,
		NewStatus:      domain.StatusAccepted,
	})

	req.Len(waiter.events, 1)
	req.Len(kitchen.events, 1)
	req.Empty(guest.events)
}

func TestBroadcaster_ServedGoesToOwningTableOnly(t *testing.T) {
	req := require.New(t)
	broadcaster, registry := newBroadcastFixture()

	waiter := connect(registry, domain.RoleChannel(domain.RoleWaiter))
	guestT1 := connect(registry, domain.TableChannel("T1"))
	guestT2 := connect(registry, domain.TableChannel("T2"))

	// Given an order at READY for table T1, when the waiter serves it
	broadcaster.Publish(context.Background(), event.OrderStatusChanged{
		OrderID:        uuid.New(),
		TableID:        "T1",
		PreviousStatus: domain.StatusReady,
		NewStatus:      domain.StatusServed,
	})

	// Then T1's guest sees the update and T2's guest does not
	req.Len(waiter.events, 1)
	req.Len(guestT1.events, 1)
	req.Empty(guestT2.events)
}

func TestBroadcaster_TwoKitchenTerminalsEachReceiveOnce(t *testing.T) {
	req := require.New(t)
	broadcaster, registry := newBroadcastFixture()

	terminalA := connect(registry, domain.RoleChannel(domain.RoleKitchen))
	terminalB := connect(registry, domain.RoleChannel(domain.RoleKitchen))

	// When a single PREPARING→READY transition is broadcast
	broadcaster.Publish(context.Background(), event.OrderStatusChanged{
		OrderID:        uuid.New(),
		TableID:        "T3",
		PreviousStatus: domain.StatusPreparing,
		NewStatus:      domain.StatusReady,
	})

	// Then each terminal receives exactly one event
	req.Len(terminalA.events, 1)
	req.Len(terminalB.events, 1)
}

func TestBroadcaster_FailingSinkDoesNotAbortFanout(t *testing.T) {
	req := require.New(t)
	broadcaster, registry := newBroadcastFixture()

	broken := &captureSink{err: context.DeadlineExceeded}
	brokenID := uuid.NewString()
	registry.Register(brokenID, broken)
	registry.Join(brokenID, domain.RoleChannel(domain.RoleWaiter))

	healthy := connect(registry, domain.RoleChannel(domain.RoleWaiter))

	broadcaster.Publish(context.Background(), event.TableNotification{TableID: "T1", Payload: "check please"})

	// The broken recipient is skipped, the healthy one still gets the event
	req.Empty(broken.events)
	req.Len(healthy.events, 1)
}

func TestBroadcaster_PerOrderEventsKeepPublishOrder(t *testing.T) {
	req := require.New(t)
	broadcaster, registry := newBroadcastFixture()

	waiter := connect(registry, domain.RoleChannel(domain.RoleWaiter))
	orderID := uuid.New()

	statuses := []domain.OrderStatus{
		domain.StatusAccepted, domain.StatusPreparing,
		domain.StatusReady, domain.StatusServed,
	}
	for _, status := range statuses {
		broadcaster.Publish(context.Background(), event.OrderStatusChanged{
			OrderID:   orderID,
			TableID:   "T1",
			NewStatus: status,
		})
	}

	// Receivers observe the same relative order as the commits completed
	req.Len(waiter.events, len(statuses))
	for i, e := range waiter.events {
		changed, ok := e.(event.OrderStatusChanged)
		req.True(ok)
		req.Equal(statuses[i], changed.NewStatus)
	}
}
