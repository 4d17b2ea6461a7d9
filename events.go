package vfs

import (
	"slices"
	"sync"

	"github.com/mushuanli/vfs/data"
)

// Event names emitted by the file system after a committed mutation.
const (
	EventNodeCreated     = "node:created"
	EventNodeUpdated     = "node:updated"
	EventNodeDeleted     = "node:deleted"
	EventNodeMoved       = "node:moved"
	EventNodeCopied      = "node:copied"
	EventNodeBulkDeleted = "node:bulk-deleted"
)

// Event describes a committed mutation. Listeners receive it after the
// transaction is durable; mutating Node inside a listener has no effect
// on the store.
type Event struct {
	Name string
	Node *data.Inode

	// Set for EventNodeMoved.
	OldPath string
	NewPath string

	// Set for EventNodeCopied.
	SourceID string

	// Set for EventNodeBulkDeleted.
	RemovedIDs []string
}

type Listener func(Event)

type subscription struct {
	name     string
	listener Listener
}

// Events is the listener registry of a file system. Emission is
// synchronous and in subscription order; a slow listener slows the
// caller down, not other listeners.
type Events struct {
	mu sync.RWMutex

	nextID        int
	subscriptions map[int]subscription
	closed        bool
}

func NewEvents() *Events {
	return &Events{
		subscriptions: make(map[int]subscription),
	}
}

// Subscribe registers a listener for the named event; an empty name
// subscribes to every event. Returns the unsubscribe func; unsubscribing
// twice is harmless.
func (e *Events) Subscribe(name string, listener Listener) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return func() {}
	}

	id := e.nextID
	e.nextID++
	e.subscriptions[id] = subscription{name: name, listener: listener}

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()

		delete(e.subscriptions, id)
	}
}

// Emit delivers the event to every matching listener.
func (e *Events) Emit(event Event) {
	e.mu.RLock()
	ids := make([]int, 0, len(e.subscriptions))
	for id := range e.subscriptions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	listeners := make([]Listener, 0, len(ids))
	for _, id := range ids {
		sub := e.subscriptions[id]
		if sub.name == "" || sub.name == event.Name {
			listeners = append(listeners, sub.listener)
		}
	}
	e.mu.RUnlock()

	for _, listener := range listeners {
		listener(event)
	}
}

// Close drops all listeners; further subscriptions are ignored.
func (e *Events) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.subscriptions = make(map[int]subscription)
	e.closed = true
}
