package domain

import (
	"strings"

	"order-sync/errors"
)

// Role is the staff function (or guest status) attached to a connection.
// It governs which channels a connection may join and which order status
// transitions it may trigger.
type Role string

const (
	RoleKitchen Role = "KITCHEN"
	RoleWaiter  Role = "WAITER"
	RoleAdmin   Role = "ADMIN"
	RoleGuest   Role = "GUEST"
)

// ParseRole validates a role announced by a client against the closed
// enumeration. Matching is case-insensitive so dashboards can send
// lowercase values.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToUpper(s)) {
	case RoleKitchen:
		return RoleKitchen, nil
	case RoleWaiter:
		return RoleWaiter, nil
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleGuest:
		return RoleGuest, nil
	default:
		return "", errors.ErrUnknownRole
	}
}

// IsStaff reports whether the role belongs to a staff terminal.
// Staff roles must authenticate; guests only carry a table identity.
func (r Role) IsStaff() bool {
	return r == RoleKitchen || r == RoleWaiter || r == RoleAdmin
}
