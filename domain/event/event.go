package event

import (
	"time"

	"github.com/google/uuid"

	"order-sync/domain"
)

// DomainEvent is the tagged variant handed to the broadcaster after a
// successful persistence commit. Events are fire-and-forget: durability
// lives in the order record, which is the reconciliation source of truth.
type DomainEvent interface {
	EventType() string
}

type OrderCreated struct {
	Order domain.Order
	At    time.Time
}

func (OrderCreated) EventType() string { return "order_created" }

type OrderStatusChanged struct {
	OrderID        uuid.UUID
	TableID        string
	PreviousStatus domain.OrderStatus
	NewStatus      domain.OrderStatus
	At             time.Time
}

func (OrderStatusChanged) EventType() string { return "order_updated" }

// TableNotification is a guest calling for service; it is visible to
// waiters only.
type TableNotification struct {
	TableID string
	Payload string
	At      time.Time
}

func (TableNotification) EventType() string { return "table_notification" }
