package domain

import (
	"order-sync/errors"
)

// edge identifies one allowed move in the status graph.
type edge struct {
	from OrderStatus
	to   OrderStatus
}

// transitionTable lists every legal edge together with the roles allowed to
// trigger it. An edge absent from the table is InvalidTransition regardless
// of the actor; an edge present but missing the actor's role is Forbidden.
// Kitchen owns the cooking segment, waiters and admins own acceptance,
// service and the escape branches.
var transitionTable = map[edge][]Role{
	{StatusPending, StatusAccepted}:    {RoleWaiter, RoleAdmin},
	{StatusPending, StatusRejected}:    {RoleWaiter, RoleAdmin},
	{StatusAccepted, StatusPreparing}:  {RoleKitchen},
	{StatusPreparing, StatusReady}:     {RoleKitchen},
	{StatusReady, StatusServed}:        {RoleWaiter, RoleAdmin},
	{StatusServed, StatusCompleted}:    {RoleWaiter, RoleAdmin},
	{StatusPending, StatusCancelled}:   {RoleWaiter, RoleAdmin},
	{StatusAccepted, StatusCancelled}:  {RoleWaiter, RoleAdmin},
	{StatusPreparing, StatusCancelled}: {RoleWaiter, RoleAdmin},
}

// Transition validates that requested is reachable from current and that
// actor may perform that specific edge. It is side effect free: callers
// persist the returned status and only then publish the matching event.
//
// Re-submitting the current status is rejected as an invalid transition;
// moves are strictly forward or an explicit cancel/reject.
func Transition(current, requested OrderStatus, actor Role) (OrderStatus, error) {
	allowed, ok := transitionTable[edge{from: current, to: requested}]
	if !ok {
		return current, errors.ErrInvalidTransition
	}
	for _, role := range allowed {
		if role == actor {
			return requested, nil
		}
	}
	return current, errors.ErrForbidden
}
