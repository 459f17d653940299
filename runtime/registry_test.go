package runtime

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"order-sync/domain"
	"order-sync/domain/event"
)

type nopSink struct{ id int }

func (s *nopSink) Consume(_ context.Context, _ event.DomainEvent) error { return nil }

func TestRegistry_JoinRoleChannel(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	connectionID := uuid.NewString()
	sink := &nopSink{}
	kitchen := domain.RoleChannel(domain.RoleKitchen)

	// Given no one is connected
	req.Empty(registry.MembersOf(kitchen))

	// When a kitchen terminal registers and joins its role channel
	registry.Register(connectionID, sink)
	registry.Join(connectionID, kitchen)

	// Then it is the only member and its sink is resolvable
	req.Equal([]string{connectionID}, registry.MembersOf(kitchen))
	req.Len(registry.SinksFor(kitchen), 1)
	resolved, ok := registry.SinkOf(connectionID)
	req.True(ok)
	req.Same(sink, resolved)
}

func TestRegistry_MultipleMembersSameChannel(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	kitchen := domain.RoleChannel(domain.RoleKitchen)

	terminalA := uuid.NewString()
	terminalB := uuid.NewString()
	registry.Register(terminalA, &nopSink{id: 1})
	registry.Register(terminalB, &nopSink{id: 2})

	// When two kitchen terminals join the same role channel
	registry.Join(terminalA, kitchen)
	registry.Join(terminalB, kitchen)

	// Then each appears exactly once
	req.ElementsMatch([]string{terminalA, terminalB}, registry.MembersOf(kitchen))
	req.Len(registry.SinksFor(kitchen), 2)

	// And a double join does not duplicate membership
	registry.Join(terminalA, kitchen)
	req.Len(registry.MembersOf(kitchen), 2)
}

func TestRegistry_JoiningNewTableLeavesPrevious(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	connectionID := uuid.NewString()
	registry.Register(connectionID, &nopSink{})

	t1 := domain.TableChannel("T1")
	t2 := domain.TableChannel("T2")

	// Given a guest scoped to table T1
	registry.Join(connectionID, t1)
	req.Equal([]string{connectionID}, registry.MembersOf(t1))

	// When the guest scans a different QR code mid-session
	registry.Join(connectionID, t2)

	// Then the session is scoped to T2 only
	req.Empty(registry.MembersOf(t1))
	req.Equal([]string{connectionID}, registry.MembersOf(t2))
}

func TestRegistry_RoleChannelSurvivesTableRescope(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	connectionID := uuid.NewString()
	registry.Register(connectionID, &nopSink{})

	kitchen := domain.RoleChannel(domain.RoleKitchen)
	registry.Join(connectionID, kitchen)
	registry.Join(connectionID, domain.TableChannel("T1"))

	// Re-scoping the table must not touch the role membership
	registry.Join(connectionID, domain.TableChannel("T2"))

	req.Equal([]string{connectionID}, registry.MembersOf(kitchen))
}

func TestRegistry_LeaveAllCleansEverything(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	connectionID := uuid.NewString()
	other := uuid.NewString()
	waiter := domain.RoleChannel(domain.RoleWaiter)
	table := domain.TableChannel("T7")

	registry.Register(connectionID, &nopSink{id: 1})
	registry.Register(other, &nopSink{id: 2})
	registry.Join(connectionID, waiter)
	registry.Join(connectionID, table)
	registry.Join(other, waiter)

	// When the connection disconnects
	registry.LeaveAll(connectionID)

	// Then it is gone from every channel and its sink is released
	req.Equal([]string{other}, registry.MembersOf(waiter))
	req.Empty(registry.MembersOf(table))
	_, ok := registry.SinkOf(connectionID)
	req.False(ok)

	// And the now empty table bucket has been collected
	req.Nil(registry.SinksFor(table))
}

func TestRegistry_JoinRacingLastLeaveStaysVisible(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	kitchen := domain.RoleChannel(domain.RoleKitchen)

	// A join racing the departure of a channel's last member must land in
	// the live bucket, never in one the collector just dropped.
	for i := 0; i < 2000; i++ {
		leaver := uuid.NewString()
		joiner := uuid.NewString()
		registry.Register(leaver, &nopSink{id: 1})
		registry.Register(joiner, &nopSink{id: 2})
		registry.Join(leaver, kitchen)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			registry.LeaveAll(leaver)
		}()
		go func() {
			defer wg.Done()
			registry.Join(joiner, kitchen)
		}()
		wg.Wait()

		req.Equal([]string{joiner}, registry.MembersOf(kitchen))
		registry.LeaveAll(joiner)
	}
}

func TestRegistry_LeaveAllIsIdempotent(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	connectionID := uuid.NewString()
	registry.Register(connectionID, &nopSink{})
	registry.Join(connectionID, domain.RoleChannel(domain.RoleWaiter))

	registry.LeaveAll(connectionID)
	registry.LeaveAll(connectionID)

	req.Empty(registry.MembersOf(domain.RoleChannel(domain.RoleWaiter)))
}
