// Package runtime owns the live broadcast state: channel membership and
// event fan-out. It contains no business rules; the status graph lives in
// domain and persistence in repositories.
package runtime

import (
	"sync"

	"github.com/samber/lo"

	"order-sync/contract"
	"order-sync/domain"
)

type memberSet map[string]struct{}

// bucket is the membership set of one channel with its own lock, so a
// broadcast iterating one channel never blocks joins on another.
type bucket struct {
	mu      sync.RWMutex
	members memberSet
}

func (b *bucket) add(connectionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.members[connectionID] = struct{}{}
}

func (b *bucket) remove(connectionID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.members, connectionID)
	return len(b.members)
}

// snapshot copies the membership at call time. Late joiners do not
// retroactively receive a broadcast computed from an earlier snapshot.
func (b *bucket) snapshot() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]string, 0, len(b.members))
	for id := range b.members {
		ids = append(ids, id)
	}
	return ids
}

// Registry maps connections to channels and resolves a channel into the
// sinks of its current members. Channel buckets are created lazily on first
// join and garbage-collected when the last member leaves.
type Registry struct {
	mu          sync.RWMutex
	sessions    map[string]contract.EventSink  // connection -> live sink
	buckets     map[domain.Channel]*bucket     // channel -> members
	memberships map[string][]domain.Channel    // connection -> joined channels
}

var _ contract.IRegistry = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{
		sessions:    make(map[string]contract.EventSink),
		buckets:     make(map[domain.Channel]*bucket),
		memberships: make(map[string][]domain.Channel),
	}
}

// Register records the live sink of a connection. It must be called before
// the first Join; until then the connection is invisible to broadcasts.
func (r *Registry) Register(connectionID string, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[connectionID] = sink
}

// Join adds the connection to a channel. A connection holds at most one
// table channel at a time: joining a new table channel implicitly leaves
// the previous one.
func (r *Registry) Join(connectionID string, ch domain.Channel) {
	if ch.IsTable() {
		if previous, ok := r.currentTableChannel(connectionID); ok && previous != ch {
			r.Leave(connectionID, previous)
		}
	}

	r.mu.Lock()
	b, ok := r.buckets[ch]
	if !ok {
		b = &bucket{members: make(memberSet)}
		r.buckets[ch] = b
	}
	joined := r.memberships[connectionID]
	if !lo.Contains(joined, ch) {
		r.memberships[connectionID] = append(joined, ch)
	}
	// Insert while still holding the registry lock: a concurrent collect of
	// the last leaving member must never drop the bucket between the lookup
	// above and this add.
	b.add(connectionID)
	r.mu.Unlock()
}

func (r *Registry) Leave(connectionID string, ch domain.Channel) {
	r.mu.Lock()
	b, ok := r.buckets[ch]
	if !ok {
		r.mu.Unlock()
		return
	}
	r.memberships[connectionID] = lo.Without(r.memberships[connectionID], ch)
	r.mu.Unlock()

	if b.remove(connectionID) == 0 {
		r.collect(ch)
	}
}

// LeaveAll removes the connection from every channel and drops its sink.
// Called exactly once per connection, on disconnect.
func (r *Registry) LeaveAll(connectionID string) {
	r.mu.Lock()
	joined := r.memberships[connectionID]
	delete(r.memberships, connectionID)
	delete(r.sessions, connectionID)
	r.mu.Unlock()

	for _, ch := range joined {
		r.mu.RLock()
		b, ok := r.buckets[ch]
		r.mu.RUnlock()
		if !ok {
			continue
		}
		if b.remove(connectionID) == 0 {
			r.collect(ch)
		}
	}
}

func (r *Registry) SinkOf(connectionID string) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sink, ok := r.sessions[connectionID]
	return sink, ok
}

// SinksFor resolves a channel into the live sinks of its members at call
// time. Membership and session lookups are two steps so a connection's sink
// is managed in a single place even when it sits in several channels.
func (r *Registry) SinksFor(ch domain.Channel) []contract.EventSink {
	members := r.MembersOf(ch)
	if len(members) == 0 {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	sinks := make([]contract.EventSink, 0, len(members))
	for _, id := range members {
		if sink, ok := r.sessions[id]; ok {
			sinks = append(sinks, sink)
		}
	}
	return sinks
}

func (r *Registry) MembersOf(ch domain.Channel) []string {
	r.mu.RLock()
	b, ok := r.buckets[ch]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	return b.snapshot()
}

// collect drops a bucket once empty, re-checking under the write lock since
// a join may have raced the last leave.
func (r *Registry) collect(ch domain.Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.buckets[ch]; ok {
		b.mu.RLock()
		empty := len(b.members) == 0
		b.mu.RUnlock()
		if empty {
			delete(r.buckets, ch)
		}
	}
}

func (r *Registry) currentTableChannel(connectionID string) (domain.Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ch := range r.memberships[connectionID] {
		if ch.IsTable() {
			return ch, true
		}
	}
	return "", false
}
