package repositories

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"order-sync/contract"
	"order-sync/domain"
	"order-sync/errors"
)

const stripeCount = 64

// OrderRepository persists orders in BadgerDB.
//
// The primary key is "order:{table_id}:{created_padded}:{uuid}" so a prefix
// scan yields one table's orders in chronological order, with the UUID as a
// collision disconnector. A secondary "idx:{uuid}" entry points back to the
// primary key for id lookups.
//
// Status updates are serialized per order through a mutex stripe: the state
// machine check and the commit happen under the same stripe, so two staff
// terminals racing on one order resolve in a defined sequence and events
// can be published in commit order.
type OrderRepository struct {
	db      *badger.DB
	log     *slog.Logger
	stripes [stripeCount]sync.Mutex
}

var _ contract.IOrderStore = (*OrderRepository)(nil)

func NewOrderRepository(db *badger.DB, log *slog.Logger) *OrderRepository {
	return &OrderRepository{db: db, log: log}
}

type storedItem struct {
	ProductID string   `json:"product_id"`
	Name      string   `json:"name"`
	Quantity  int      `json:"quantity"`
	Modifiers []string `json:"modifiers,omitempty"`
	UnitPrice int64    `json:"unit_price"`
	LinePrice int64    `json:"line_price"`
}

type storedOrder struct {
	ID        string       `json:"id"`
	TableID   string       `json:"table_id"`
	Items     []storedItem `json:"items"`
	Total     int64        `json:"total"`
	Note      string       `json:"note,omitempty"`
	Status    string       `json:"status"`
	CreatedAt int64        `json:"created_at"` // unix nanos
}

func (r *OrderRepository) SaveOrder(_ context.Context, order domain.Order) error {
	key := primaryKey(order)
	value, err := json.Marshal(toStored(order))
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, value); err != nil {
			return err
		}
		return txn.Set(indexKey(order.ID), key)
	})
}

func (r *OrderRepository) GetOrder(_ context.Context, id uuid.UUID) (domain.Order, error) {
	return r.getOrder(id)
}

// ApplyStatus runs the transition under the order's stripe and commits the
// new status atomically. On rejection the stored order is left untouched
// and no event must be published by the caller.
func (r *OrderRepository) ApplyStatus(_ context.Context, id uuid.UUID,
	requested domain.OrderStatus, actor domain.Role) (domain.Order, domain.OrderStatus, error) {
	stripe := &r.stripes[stripeFor(id)]
	stripe.Lock()
	defer stripe.Unlock()

	order, err := r.getOrder(id)
	if err != nil {
		return domain.Order{}, "", err
	}
	previous := order.Status

	next, err := domain.Transition(previous, requested, actor)
	if err != nil {
		return order, previous, err
	}
	order.Status = next

	value, err := json.Marshal(toStored(order))
	if err != nil {
		return domain.Order{}, previous, err
	}
	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(primaryKey(order), value)
	})
	if err != nil {
		return domain.Order{}, previous, err
	}
	return order, previous, nil
}

// ListActive returns the non-terminal orders visible to the scope: staff
// see everything in flight, a guest only its own table. Results come back
// in creation order thanks to the padded timestamp in the key.
func (r *OrderRepository) ListActive(_ context.Context, scope contract.Scope) ([]domain.Order, error) {
	prefix := []byte("order:")
	if scope.Role == domain.RoleGuest {
		prefix = []byte(fmt.Sprintf("order:%s:", scope.TableID))
	}

	var orders []domain.Order
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				var stored storedOrder
				if err := json.Unmarshal(value, &stored); err != nil {
					return err
				}
				order, err := fromStored(stored)
				if err != nil {
					return err
				}
				if !order.Status.IsTerminal() {
					orders = append(orders, order)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return orders, err
}

func (r *OrderRepository) getOrder(id uuid.UUID) (domain.Order, error) {
	var order domain.Order
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(indexKey(id))
		if err != nil {
			return err
		}
		var key []byte
		if err = item.Value(func(v []byte) error {
			key = append([]byte(nil), v...)
			return nil
		}); err != nil {
			return err
		}
		item, err = txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			var stored storedOrder
			if err := json.Unmarshal(value, &stored); err != nil {
				return err
			}
			order, err = fromStored(stored)
			return err
		})
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.Order{}, errors.ErrOrderNotFound
	}
	return order, err
}

func primaryKey(order domain.Order) []byte {
	return []byte(fmt.Sprintf("order:%s:%019d:%s",
		order.TableID, order.CreatedAt.UnixNano(), order.ID))
}

func indexKey(id uuid.UUID) []byte {
	return []byte("idx:" + id.String())
}

func stripeFor(id uuid.UUID) uint32 {
	h := fnv.New32a()
	_, _ = h.Write(id[:])
	return h.Sum32() % stripeCount
}

func toStored(order domain.Order) storedOrder {
	items := make([]storedItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, storedItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			Modifiers: item.Modifiers,
			UnitPrice: item.UnitPrice,
			LinePrice: item.LinePrice,
		})
	}
	return storedOrder{
		ID:        order.ID.String(),
		TableID:   order.TableID,
		Items:     items,
		Total:     order.Total,
		Note:      order.Note,
		Status:    order.Status.String(),
		CreatedAt: order.CreatedAt.UnixNano(),
	}
}

func fromStored(stored storedOrder) (domain.Order, error) {
	id, err := uuid.Parse(stored.ID)
	if err != nil {
		return domain.Order{}, err
	}
	items := make([]domain.OrderItem, 0, len(stored.Items))
	for _, item := range stored.Items {
		items = append(items, domain.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			Modifiers: item.Modifiers,
			UnitPrice: item.UnitPrice,
			LinePrice: item.LinePrice,
		})
	}
	return domain.Order{
		ID:        id,
		TableID:   stored.TableID,
		Items:     items,
		Total:     stored.Total,
		Note:      stored.Note,
		Status:    domain.OrderStatus(stored.Status),
		CreatedAt: time.Unix(0, stored.CreatedAt).UTC(),
	}, nil
}
