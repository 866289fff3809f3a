// Package state holds the client-side snapshot of each remote collection.
// It has no side effects beyond its own memory: the sync controller is the
// only writer, views read snapshots.
package state

import (
	"sync"

	"taxmatch/pkg/domain"
)

// Snapshot is a point-in-time read of a collection: its items plus the
// loading/error flags views layer their display states over. Items is a
// copy; mutating it does not affect the store.
type Snapshot[T any] struct {
	Items   []T
	Loading bool
	Err     string
}

// Collection stores one kind of entity with upsert-by-id semantics. The
// loading and error flags are independent of the data and of each other:
// a stale error stays visible until explicitly cleared.
type Collection[T any] struct {
	mu      sync.RWMutex
	idOf    func(T) string
	items   []T
	loading bool
	err     string
}

func newCollection[T any](idOf func(T) string) *Collection[T] {
	return &Collection[T]{idOf: idOf}
}

// Replace overwrites the full collection with items, in the given order.
func (c *Collection[T]) Replace(items []T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make([]T, len(items))
	copy(c.items, items)
}

// Upsert inserts item if its id is absent, otherwise replaces the existing
// entry in place, preserving its position.
func (c *Collection[T]) Upsert(item T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.idOf(item)
	for i := range c.items {
		if c.idOf(c.items[i]) == id {
			c.items[i] = item
			return
		}
	}
	c.items = append(c.items, item)
}

// Prepend puts a newly created item first, keeping most-recent-first display
// order. An item already present is replaced in place instead.
func (c *Collection[T]) Prepend(item T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.idOf(item)
	for i := range c.items {
		if c.idOf(c.items[i]) == id {
			c.items[i] = item
			return
		}
	}
	c.items = append([]T{item}, c.items...)
}

// Remove deletes the entry with the given id; no-op when absent.
func (c *Collection[T]) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.idOf(c.items[i]) == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return
		}
	}
}

// Get returns the entry with the given id.
func (c *Collection[T]) Get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := range c.items {
		if c.idOf(c.items[i]) == id {
			return c.items[i], true
		}
	}
	var zero T
	return zero, false
}

func (c *Collection[T]) SetLoading(loading bool) {
	c.mu.Lock()
	c.loading = loading
	c.mu.Unlock()
}

// SetError records a human-readable failure for the collection. An empty
// message clears it.
func (c *Collection[T]) SetError(msg string) {
	c.mu.Lock()
	c.err = msg
	c.mu.Unlock()
}

// Snapshot returns a consistent copy of items and flags.
func (c *Collection[T]) Snapshot() Snapshot[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	items := make([]T, len(c.items))
	copy(items, c.items)
	return Snapshot[T]{Items: items, Loading: c.loading, Err: c.err}
}

// Store is the full client-side entity snapshot. Construct one per client
// session and hand it to the controller; there is no package-level instance.
type Store struct {
	Requests  *Collection[domain.ServiceRequest]
	Messages  *Collection[domain.Message]
	Proposals *Collection[domain.Proposal]

	mu      sync.RWMutex
	user    domain.User
	hasUser bool
}

func New() *Store {
	return &Store{
		Requests:  newCollection(func(r domain.ServiceRequest) string { return r.ID }),
		Messages:  newCollection(func(m domain.Message) string { return m.ID }),
		Proposals: newCollection(func(p domain.Proposal) string { return p.ID }),
	}
}

func (s *Store) SetCurrentUser(u domain.User) {
	s.mu.Lock()
	s.user = u
	s.hasUser = true
	s.mu.Unlock()
}

func (s *Store) CurrentUser() (domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user, s.hasUser
}

// ClearCurrentUser resets the identity, e.g. on sign-out.
func (s *Store) ClearCurrentUser() {
	s.mu.Lock()
	s.user = domain.User{}
	s.hasUser = false
	s.mu.Unlock()
}
