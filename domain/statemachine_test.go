package domain

import (
	"testing"

	"github.com/stretchr/testify/require"

	"order-sync/errors"
)

func TestTransition_HappyPath(t *testing.T) {
	req := require.New(t)

	steps := []struct {
		from  OrderStatus
		to    OrderStatus
		actor Role
	}{
		{StatusPending, StatusAccepted, RoleWaiter},
		{StatusAccepted, StatusPreparing, RoleKitchen},
		{StatusPreparing, StatusReady, RoleKitchen},
		{StatusReady, StatusServed, RoleWaiter},
		{StatusServed, StatusCompleted, RoleWaiter},
	}

	current := StatusPending
	for _, step := range steps {
		req.Equal(step.from, current)

		// When the allowed actor requests the next status
		next, err := Transition(current, step.to, step.actor)

		// Then the edge is accepted
		req.NoError(err)
		req.Equal(step.to, next)
		current = next
	}
	req.True(current.IsTerminal())
}

func TestTransition_AdminCanDoEverythingWaiterCan(t *testing.T) {
	req := require.New(t)

	for _, step := range []struct {
		from OrderStatus
		to   OrderStatus
	}{
		{StatusPending, StatusAccepted},
		{StatusPending, StatusRejected},
		{StatusReady, StatusServed},
		{StatusServed, StatusCompleted},
		{StatusPreparing, StatusCancelled},
	} {
		next, err := Transition(step.from, step.to, RoleAdmin)
		req.NoError(err)
		req.Equal(step.to, next)
	}
}

func TestTransition_UnknownEdgeIsInvalid(t *testing.T) {
	req := require.New(t)

	// Given an order still waiting for acceptance
	// When the waiter tries to jump straight to READY
	next, err := Transition(StatusPending, StatusReady, RoleWaiter)

	// Then the edge does not exist and the status is unchanged
	req.ErrorIs(err, errors.ErrInvalidTransition)
	req.Equal(StatusPending, next)
}

func TestTransition_SameStatusIsInvalid(t *testing.T) {
	req := require.New(t)

	// Re-submitting the current status is a no-op transition and rejected
	next, err := Transition(StatusPreparing, StatusPreparing, RoleKitchen)

	req.ErrorIs(err, errors.ErrInvalidTransition)
	req.Equal(StatusPreparing, next)
}

func TestTransition_ExistingEdgeWrongRoleIsForbidden(t *testing.T) {
	req := require.New(t)

	// Given a pending order
	// When a kitchen terminal tries to accept it
	next, err := Transition(StatusPending, StatusAccepted, RoleKitchen)

	// Then the edge exists but the role lacks permission
	req.ErrorIs(err, errors.ErrForbidden)
	req.Equal(StatusPending, next)

	// And a guest can never move an order at all
	_, err = Transition(StatusReady, StatusServed, RoleGuest)
	req.ErrorIs(err, errors.ErrForbidden)
}

func TestTransition_TerminalStatusesAreDeadEnds(t *testing.T) {
	req := require.New(t)

	for _, terminal := range []OrderStatus{StatusCompleted, StatusCancelled, StatusRejected} {
		req.True(terminal.IsTerminal())
		for _, target := range []OrderStatus{
			StatusPending, StatusAccepted, StatusPreparing,
			StatusReady, StatusServed, StatusCompleted, StatusCancelled,
		} {
			if target == terminal {
				continue
			}
			_, err := Transition(terminal, target, RoleAdmin)
			req.ErrorIs(err, errors.ErrInvalidTransition)
		}
	}
}

func TestTransition_CancelOnlyBeforeReady(t *testing.T) {
	req := require.New(t)

	// Cancellation is an escape hatch for orders not yet cooked
	for _, from := range []OrderStatus{StatusPending, StatusAccepted, StatusPreparing} {
		next, err := Transition(from, StatusCancelled, RoleWaiter)
		req.NoError(err)
		req.Equal(StatusCancelled, next)
	}

	// Once the kitchen finished, the order can no longer be cancelled
	for _, from := range []OrderStatus{StatusReady, StatusServed} {
		_, err := Transition(from, StatusCancelled, RoleWaiter)
		req.ErrorIs(err, errors.ErrInvalidTransition)
	}
}
