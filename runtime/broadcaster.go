package runtime

import (
	"context"
	"log/slog"
	"time"

	"order-sync/contract"
	"order-sync/domain"
	"order-sync/domain/event"
)

// Broadcaster resolves a domain event into target channels and pushes it to
// every member's sink.
//
// Delivery is best-effort and non-blocking per recipient: a slow or broken
// connection is logged and skipped, never retried within the same publish
// and never allowed to stall delivery to other members. Durability is the
// order record's job; clients self-heal through the snapshot fetch.
type Broadcaster struct {
	log         *slog.Logger
	registry    contract.IRegistry
	sinkTimeout time.Duration
}

var _ contract.IBroadcaster = (*Broadcaster)(nil)

func NewBroadcaster(log *slog.Logger, registry contract.IRegistry, sinkTimeout time.Duration) *Broadcaster {
	return &Broadcaster{log: log, registry: registry, sinkTimeout: sinkTimeout}
}

// Publish fans the event out to a membership snapshot taken now. A member
// joining after the snapshot simply misses this one event, which the
// catch-up contract covers. Within a channel, events for one order keep
// their publish order because status commits are serialized per order and
// Publish consumes each sink synchronously.
func (b *Broadcaster) Publish(ctx context.Context, e event.DomainEvent) {
	channels := resolveChannels(e)
	if len(channels) == 0 {
		return
	}

	// Dedupe across channels so a connection never receives one event twice.
	seen := make(map[string]struct{})
	for _, ch := range channels {
		for _, connectionID := range b.registry.MembersOf(ch) {
			if _, dup := seen[connectionID]; dup {
				continue
			}
			seen[connectionID] = struct{}{}
			b.deliver(ctx, connectionID, e)
		}
	}
}

func (b *Broadcaster) deliver(ctx context.Context, connectionID string, e event.DomainEvent) {
	sink, ok := b.registry.SinkOf(connectionID)
	if !ok {
		return
	}
	consumeCtx, cancel := context.WithTimeout(ctx, b.sinkTimeout)
	defer cancel()
	if err := sink.Consume(consumeCtx, e); err != nil {
		b.log.Warn("Dropping event for recipient",
			"connection_id", connectionID,
			"event", e.EventType(),
			"error", err)
	}
}

// resolveChannels is the routing table of the broadcast core.
//
// New orders go to waiters, who triage them. The kitchen sees an order from
// acceptance until it leaves the pass; guests see every change of their own
// table once the order is guest-relevant.
func resolveChannels(e event.DomainEvent) []domain.Channel {
	waiter := domain.RoleChannel(domain.RoleWaiter)
	kitchen := domain.RoleChannel(domain.RoleKitchen)

	switch evt := e.(type) {
	case event.OrderCreated:
		return []domain.Channel{waiter}
	case event.OrderStatusChanged:
		table := domain.TableChannel(evt.TableID)
		switch evt.NewStatus {
		case domain.StatusAccepted, domain.StatusPreparing:
			return []domain.Channel{kitchen, waiter}
		case domain.StatusReady, domain.StatusCancelled:
			// Kitchen terminals clear the ticket, waiters act, the guest sees it.
			return []domain.Channel{kitchen, waiter, table}
		case domain.StatusServed, domain.StatusCompleted, domain.StatusRejected:
			return []domain.Channel{waiter, table}
		default:
			return []domain.Channel{waiter}
		}
	case event.TableNotification:
		return []domain.Channel{waiter}
	default:
		return nil
	}
}
