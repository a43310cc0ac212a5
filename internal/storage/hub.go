package storage

import (
	"context"
	"sync"
)

// Hub fans change notifications for a collection out to its watchers.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: map[string]map[chan struct{}]struct{}{}}
}

// Subscribe registers interest in a collection. The returned channel receives
// a value after every Publish; notifications coalesce while the reader is busy.
func (h *Hub) Subscribe(collection string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	h.mu.Lock()
	if h.subs[collection] == nil {
		h.subs[collection] = map[chan struct{}]struct{}{}
	}
	h.subs[collection][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[collection], ch)
			if len(h.subs[collection]) == 0 {
				delete(h.subs, collection)
			}
			h.mu.Unlock()
		})
	}
}

// Publish wakes every watcher of the collection.
func (h *Hub) Publish(collection string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[collection] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// PublishAll wakes every watcher of every collection.
func (h *Hub) PublishAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, subs := range h.subs {
		for ch := range subs {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	}
}

// Watched returns the collections that currently have watchers.
func (h *Hub) Watched() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.subs))
	for c := range h.subs {
		out = append(out, c)
	}
	return out
}

// Lister is the read side of a Provider.
type Lister interface {
	List(ctx context.Context, q Query) ([]Document, error)
}

// WatchQuery implements Provider.Watch for backends that publish their writes
// to a Hub: it re-runs q after every notification for q.Collection.
func WatchQuery(ctx context.Context, l Lister, hub *Hub, q Query) (<-chan Snapshot, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	out := make(chan Snapshot, 1)
	notify, cancel := hub.Subscribe(q.Collection)

	go func() {
		defer close(out)
		defer cancel()

		emit := func() bool {
			docs, err := l.List(ctx, q)
			if ctx.Err() != nil {
				return false
			}
			return DeliverLatest(ctx, out, Snapshot{Documents: docs, Err: err})
		}

		if !emit() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-notify:
				if !emit() {
					return
				}
			}
		}
	}()

	return out, nil
}

// DeliverLatest sends snap, replacing an unread older snapshot if needed.
// It must only be called by the single writer of out.
func DeliverLatest(ctx context.Context, out chan Snapshot, snap Snapshot) bool {
	select {
	case out <- snap:
		return true
	default:
	}
	select {
	case <-out:
	default:
	}
	select {
	case out <- snap:
		return true
	case <-ctx.Done():
		return false
	}
}
