package contract

import (
	"context"
	"reflect"

	"github.com/google/uuid"

	"order-sync/domain"
	"order-sync/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is one live recipient of broadcast events. Consume must not
// block beyond the context deadline; a full recipient is the recipient's
// problem, never the broadcaster's.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IRegistry tracks which connection belongs to which channel and resolves
// a channel into the sinks of its current members.
type IRegistry interface {
	Join(connectionID string, ch domain.Channel)
	Leave(connectionID string, ch domain.Channel)
	LeaveAll(connectionID string)
	Register(connectionID string, sink EventSink)
	SinkOf(connectionID string) (EventSink, bool)
	SinksFor(ch domain.Channel) []EventSink
	MembersOf(ch domain.Channel) []string
}

type IBroadcaster interface {
	Publish(ctx context.Context, e event.DomainEvent)
}

// Scope restricts a snapshot fetch to what the caller may see: staff roles
// see every active order, a guest sees only its own table.
type Scope struct {
	Role    domain.Role
	TableID string
}

// IOrderStore is the persistence collaborator. ApplyStatus must be atomic
// and serialized per order so status events can be published in commit order.
type IOrderStore interface {
	SaveOrder(ctx context.Context, order domain.Order) error
	GetOrder(ctx context.Context, id uuid.UUID) (domain.Order, error)
	ListActive(ctx context.Context, scope Scope) ([]domain.Order, error)
	ApplyStatus(ctx context.Context, id uuid.UUID, requested domain.OrderStatus, actor domain.Role) (domain.Order, domain.OrderStatus, error)
}
