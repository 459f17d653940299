package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"order-sync/contract"
	"order-sync/domain"
	"order-sync/domain/event"
	"order-sync/errors"
	"order-sync/moderation"
)

var validate = validator.New()

type IOrderService interface {
	PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (domain.Order, error)
	ChangeStatus(ctx context.Context, id uuid.UUID, requested domain.OrderStatus, actor domain.Role) (domain.Order, error)
	ListActive(ctx context.Context, scope contract.Scope) ([]domain.Order, error)
	NotifyTable(ctx context.Context, tableID, payload string)
}

type PlaceOrderItem struct {
	ProductID string   `json:"product_id" validate:"required"`
	Name      string   `json:"name" validate:"required"`
	Quantity  int      `json:"quantity" validate:"required,gt=0"`
	Modifiers []string `json:"modifiers"`
	UnitPrice int64    `json:"unit_price" validate:"gte=0"`
}

type PlaceOrderCommand struct {
	TableID string           `json:"table_id" validate:"required"`
	Items   []PlaceOrderItem `json:"items" validate:"required,min=1,dive"`
	Note    string           `json:"note"`
}

// OrderService is the single mutation path for orders. Every write follows
// publish-after-commit: the store transaction completes first, the matching
// event goes to the broadcaster second, and a rejected transition publishes
// nothing at all.
type OrderService struct {
	log         *slog.Logger
	store       contract.IOrderStore
	broadcaster contract.IBroadcaster
	filter      *moderation.NoteFilter
	price       domain.LineTotal
}

var _ IOrderService = (*OrderService)(nil)

func NewOrderService(log *slog.Logger, store contract.IOrderStore,
	broadcaster contract.IBroadcaster, filter *moderation.NoteFilter,
	price domain.LineTotal) *OrderService {
	return &OrderService{
		log:         log,
		store:       store,
		broadcaster: broadcaster,
		filter:      filter,
		price:       price,
	}
}

// PlaceOrder validates the guest's command, snapshots prices, persists the
// pending order and announces it to the waiter channel.
func (s *OrderService) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (domain.Order, error) {
	if len(cmd.Items) == 0 {
		return domain.Order{}, errors.ErrEmptyOrder
	}
	if err := validate.Struct(cmd); err != nil {
		return domain.Order{}, err
	}

	items := lo.Map(cmd.Items, func(item PlaceOrderItem, _ int) domain.OrderItem {
		return domain.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			Modifiers: item.Modifiers,
			UnitPrice: item.UnitPrice,
		}
	})
	order := domain.NewOrder(cmd.TableID, items, s.filter.Clean(cmd.Note), s.price, time.Now())

	if err := s.store.SaveOrder(ctx, order); err != nil {
		return domain.Order{}, err
	}

	s.broadcaster.Publish(ctx, event.OrderCreated{Order: order, At: order.CreatedAt})
	s.log.Info("Order placed",
		"order_id", order.ID,
		"table_id", order.TableID,
		"total", order.Total)
	return order, nil
}

// ChangeStatus asks the store to run the requested edge under its per-order
// serialization. State machine rejections come back synchronously to the
// caller and never reach the broadcast layer.
func (s *OrderService) ChangeStatus(ctx context.Context, id uuid.UUID,
	requested domain.OrderStatus, actor domain.Role) (domain.Order, error) {
	order, previous, err := s.store.ApplyStatus(ctx, id, requested, actor)
	if err != nil {
		return domain.Order{}, err
	}

	s.broadcaster.Publish(ctx, event.OrderStatusChanged{
		OrderID:        order.ID,
		TableID:        order.TableID,
		PreviousStatus: previous,
		NewStatus:      order.Status,
		At:             time.Now().UTC(),
	})
	s.log.Info("Order status changed",
		"order_id", order.ID,
		"from", previous,
		"to", order.Status,
		"actor", actor)
	return order, nil
}

// ListActive is the catch-up fetch: the snapshot a client takes right after
// announcing, and again after every reconnect.
func (s *OrderService) ListActive(ctx context.Context, scope contract.Scope) ([]domain.Order, error) {
	return s.store.ListActive(ctx, scope)
}

// NotifyTable relays a guest's service call to the waiter channel. It is
// fire-and-forget: nothing is persisted, so there is nothing to catch up.
func (s *OrderService) NotifyTable(ctx context.Context, tableID, payload string) {
	s.broadcaster.Publish(ctx, event.TableNotification{
		TableID: tableID,
		Payload: s.filter.Clean(payload),
		At:      time.Now().UTC(),
	})
}
