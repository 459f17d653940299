package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// OrderStatus is the finite lifecycle of an order. The happy path is
// PENDING → ACCEPTED → PREPARING → READY → SERVED → COMPLETED, with
// REJECTED and CANCELLED as escape branches.
type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusAccepted  OrderStatus = "ACCEPTED"
	StatusPreparing OrderStatus = "PREPARING"
	StatusReady     OrderStatus = "READY"
	StatusServed    OrderStatus = "SERVED"
	StatusCompleted OrderStatus = "COMPLETED"
	StatusCancelled OrderStatus = "CANCELLED"
	StatusRejected  OrderStatus = "REJECTED"
)

func (s OrderStatus) String() string { return string(s) }

// IsTerminal reports whether no further transition is allowed from s.
// An order becomes immutable once in a terminal status.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusRejected
}

// OrderItem is a single line of an order. Unit prices are snapshotted at
// placement time and never recomputed from current menu prices.
type OrderItem struct {
	ProductID string
	Name      string
	Quantity  int
	Modifiers []string
	UnitPrice int64 // cents
	LinePrice int64 // cents, quantity * unit price at placement
}

type Order struct {
	ID        uuid.UUID
	TableID   string
	Items     []OrderItem
	Total     int64 // cents, sum of line prices captured at creation
	Note      string
	Status    OrderStatus
	CreatedAt time.Time
}

// LineTotal is the pure price computation applied once at placement.
// Totals are derived from it and frozen on the order afterwards.
type LineTotal func(unitPrice int64, quantity int) int64

// NewOrder builds an order in PENDING with line and aggregate totals
// snapshotted through the provided calculator.
func NewOrder(tableID string, items []OrderItem, note string, price LineTotal, now time.Time) Order {
	priced := lo.Map(items, func(item OrderItem, _ int) OrderItem {
		item.LinePrice = price(item.UnitPrice, item.Quantity)
		return item
	})
	total := lo.SumBy(priced, func(item OrderItem) int64 { return item.LinePrice })
	return Order{
		ID:        uuid.New(),
		TableID:   tableID,
		Items:     priced,
		Total:     total,
		Note:      note,
		Status:    StatusPending,
		CreatedAt: now.UTC(),
	}
}
