// Package gateway accepts client connections, runs the announce handshake,
// and bridges registry membership to the transport. It exposes the sink the
// broadcaster pushes through; nothing in here calls back into mutation logic.
package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"order-sync/domain"
	"order-sync/domain/event"
)

var validate = validator.New()

// ClientMessage is the envelope for everything a client sends after the
// socket opens. Role inference from ad hoc messages is not a thing: the
// handshake is explicit and validated against the closed role enumeration.
type ClientMessage struct {
	Type    string `json:"type" validate:"required,oneof=announce_role announce_table"`
	Role    string `json:"role,omitempty"`
	Token   string `json:"token,omitempty"`
	TableID string `json:"table_id,omitempty"`
}

const (
	msgAnnounceRole  = "announce_role"
	msgAnnounceTable = "announce_table"
)

func decodeClientMessage(raw []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return ClientMessage{}, fmt.Errorf("malformed client message: %w", err)
	}
	if err := validate.Struct(msg); err != nil {
		return ClientMessage{}, fmt.Errorf("invalid client message: %w", err)
	}
	return msg, nil
}

// OrderSnapshot is the order representation pushed to clients and returned
// by the catch-up fetch, so live events and snapshots deserialize the same.
type OrderSnapshot struct {
	ID        string         `json:"id"`
	TableID   string         `json:"table_id"`
	Items     []ItemSnapshot `json:"items"`
	Total     int64          `json:"total"`
	Note      string         `json:"note,omitempty"`
	Status    string         `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
}

type ItemSnapshot struct {
	ProductID string   `json:"product_id"`
	Name      string   `json:"name"`
	Quantity  int      `json:"quantity"`
	Modifiers []string `json:"modifiers,omitempty"`
	UnitPrice int64    `json:"unit_price"`
	LinePrice int64    `json:"line_price"`
}

func ToSnapshot(order domain.Order) OrderSnapshot {
	return OrderSnapshot{
		ID:      order.ID.String(),
		TableID: order.TableID,
		Items: lo.Map(order.Items, func(item domain.OrderItem, _ int) ItemSnapshot {
			return ItemSnapshot{
				ProductID: item.ProductID,
				Name:      item.Name,
				Quantity:  item.Quantity,
				Modifiers: item.Modifiers,
				UnitPrice: item.UnitPrice,
				LinePrice: item.LinePrice,
			}
		}),
		Total:     order.Total,
		Note:      order.Note,
		Status:    order.Status.String(),
		CreatedAt: order.CreatedAt,
	}
}

type orderCreatedFrame struct {
	Type  string        `json:"type"`
	Order OrderSnapshot `json:"order"`
}

type orderUpdatedFrame struct {
	Type    string `json:"type"`
	OrderID string `json:"order_id"`
	TableID string `json:"table_id"`
	Status  string `json:"status"`
}

type tableNotificationFrame struct {
	Type    string `json:"type"`
	TableID string `json:"table_id"`
	Payload string `json:"payload"`
}

// encodeEvent serializes a domain event into its wire frame.
func encodeEvent(e event.DomainEvent) ([]byte, error) {
	switch evt := e.(type) {
	case event.OrderCreated:
		return json.Marshal(orderCreatedFrame{
			Type:  evt.EventType(),
			Order: ToSnapshot(evt.Order),
		})
	case event.OrderStatusChanged:
		return json.Marshal(orderUpdatedFrame{
			Type:    evt.EventType(),
			OrderID: evt.OrderID.String(),
			TableID: evt.TableID,
			Status:  evt.NewStatus.String(),
		})
	case event.TableNotification:
		return json.Marshal(tableNotificationFrame{
			Type:    evt.EventType(),
			TableID: evt.TableID,
			Payload: evt.Payload,
		})
	default:
		return nil, fmt.Errorf("unroutable event type %q", e.EventType())
	}
}
