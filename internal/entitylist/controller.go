// Package entitylist keeps an in-memory, ordered mirror of one document
// collection and funnels every mutation through the store.
//
// Each write applies the stored document to the local list straight away and
// then re-reads the collection, unless the controller is watching the store's
// push stream, in which case the stream delivers the authoritative list.
package entitylist

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/julianstephens/daybook/internal/constants"
	"github.com/julianstephens/daybook/internal/logger"
	"github.com/julianstephens/daybook/internal/metrics"
	"github.com/julianstephens/daybook/internal/storage"
	"github.com/julianstephens/daybook/internal/validation"
)

// ErrNotToggleable is returned by Toggle for fields outside Config.Toggleable.
var ErrNotToggleable = errors.New("field cannot be toggled")

// Config describes one collection binding.
type Config[T any] struct {
	Collection string
	// Owner scopes the controller to documents whose ownerId matches. Empty
	// means the collection is shared.
	Owner string
	// Required text fields checked on Add, and on Update when present.
	Required []string
	// Toggleable boolean fields. Empty allows any field.
	Toggleable []string
	// Defaults returns fields written on Add unless the caller supplies them.
	Defaults func() storage.Fields
	// Decode converts a document; defaults to storage.Document.Decode.
	Decode func(storage.Document) (T, error)
	// ID extracts the document id from a decoded item.
	ID      func(T) string
	Metrics *metrics.Metrics
}

// Controller is safe for concurrent use.
type Controller[T any] struct {
	store storage.Provider
	cfg   Config[T]
	query storage.Query

	mu     sync.RWMutex
	items  []T
	loaded bool
	live   bool

	subMu sync.Mutex
	subs  map[chan []T]struct{}
}

func New[T any](store storage.Provider, cfg Config[T]) *Controller[T] {
	if cfg.Decode == nil {
		cfg.Decode = func(d storage.Document) (T, error) {
			var v T
			err := d.Decode(&v)
			return v, err
		}
	}
	q := storage.Collection(cfg.Collection)
	if cfg.Owner != "" {
		q = q.Where(constants.FieldOwnerID, storage.OpEqual, cfg.Owner)
	}
	q = q.OrderBy(constants.FieldCreatedAt, true)

	return &Controller[T]{
		store: store,
		cfg:   cfg,
		query: q,
		subs:  make(map[chan []T]struct{}),
	}
}

// Query returns the query mirrored by the controller.
func (c *Controller[T]) Query() storage.Query {
	return c.query
}

// Collection returns the mirrored collection name.
func (c *Controller[T]) Collection() string {
	return c.cfg.Collection
}

// Items returns a copy of the current list.
func (c *Controller[T]) Items() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.items)
}

// Loaded reports whether at least one list has been received.
func (c *Controller[T]) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Live reports whether the controller is following the push stream.
func (c *Controller[T]) Live() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.live
}

// Find returns the local copy of the item with the given id.
func (c *Controller[T]) Find(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, it := range c.items {
		if c.cfg.ID(it) == id {
			return it, true
		}
	}
	var zero T
	return zero, false
}

// Load replaces the local list with the store's. On failure the previous
// list is kept and the error returned.
func (c *Controller[T]) Load(ctx context.Context) error {
	start := time.Now()
	docs, err := c.store.List(ctx, c.query)
	c.cfg.Metrics.ObserveStore(c.cfg.Collection, "list", start, err)
	if err != nil {
		logger.Error("failed to load collection", "collection", c.cfg.Collection, "error", err)
		return fmt.Errorf("load %s: %w", c.cfg.Collection, err)
	}
	c.replace(c.decodeAll(docs))
	return nil
}

// Add validates and writes a new document, returning its id.
func (c *Controller[T]) Add(ctx context.Context, fields storage.Fields) (string, error) {
	if err := validation.RequireText(fields, c.cfg.Required...); err != nil {
		return "", err
	}

	doc := storage.Fields{}
	if c.cfg.Defaults != nil {
		for k, v := range c.cfg.Defaults() {
			doc[k] = v
		}
	}
	for k, v := range fields {
		doc[k] = v
	}
	delete(doc, "id")
	if c.cfg.Owner != "" {
		doc[constants.FieldOwnerID] = c.cfg.Owner
	}

	start := time.Now()
	created, err := c.store.Create(ctx, c.cfg.Collection, doc)
	c.cfg.Metrics.ObserveStore(c.cfg.Collection, "create", start, err)
	if err != nil {
		logger.Error("failed to add document", "collection", c.cfg.Collection, "error", err)
		return "", fmt.Errorf("add to %s: %w", c.cfg.Collection, err)
	}
	c.applyLocal(created)
	c.reconcile(ctx)
	return created.ID, nil
}

// Update merges patch into the document.
func (c *Controller[T]) Update(ctx context.Context, id string, patch storage.Fields) (T, error) {
	var present []string
	for _, f := range c.cfg.Required {
		if _, ok := patch[f]; ok {
			present = append(present, f)
		}
	}
	if err := validation.RequireText(patch, present...); err != nil {
		var zero T
		return zero, err
	}
	patch = patch.Clone()
	delete(patch, "id")
	delete(patch, constants.FieldOwnerID)

	return c.Mutate(ctx, id, func(storage.Document) (storage.Fields, error) {
		return patch, nil
	})
}

// Toggle negates a boolean field. The read and the write are tied together by
// the document revision, so concurrent toggles are never lost.
func (c *Controller[T]) Toggle(ctx context.Context, id, field string) (T, error) {
	if len(c.cfg.Toggleable) > 0 && !slices.Contains(c.cfg.Toggleable, field) {
		var zero T
		return zero, fmt.Errorf("%w: %q", ErrNotToggleable, field)
	}
	return c.Mutate(ctx, id, func(doc storage.Document) (storage.Fields, error) {
		return storage.Fields{field: !doc.Fields.Bool(field)}, nil
	})
}

// MutateFunc computes a patch from the current stored document. Returning an
// empty patch skips the write.
type MutateFunc func(doc storage.Document) (storage.Fields, error)

// Mutate runs a read-modify-write cycle with a revision precondition,
// retrying on conflict up to constants.MaxConflictRetries times.
func (c *Controller[T]) Mutate(ctx context.Context, id string, fn MutateFunc) (T, error) {
	var zero T
	for attempt := 1; attempt <= constants.MaxConflictRetries; attempt++ {
		doc, err := c.get(ctx, id)
		if err != nil {
			return zero, err
		}

		patch, err := fn(doc)
		if err != nil {
			return zero, err
		}
		if len(patch) == 0 {
			return c.cfg.Decode(doc)
		}

		start := time.Now()
		updated, err := c.store.Update(ctx, c.cfg.Collection, id, patch, storage.IfRevision(doc.Revision))
		c.cfg.Metrics.ObserveStore(c.cfg.Collection, "update", start, err)
		if errors.Is(err, storage.ErrConflict) {
			c.cfg.Metrics.ConflictRetry(c.cfg.Collection)
			logger.Debug("revision conflict, retrying", "collection", c.cfg.Collection, "id", id, "attempt", attempt)
			continue
		}
		if err != nil {
			logger.Error("failed to update document", "collection", c.cfg.Collection, "id", id, "error", err)
			return zero, fmt.Errorf("update %s/%s: %w", c.cfg.Collection, id, err)
		}

		item, err := c.cfg.Decode(updated)
		if err != nil {
			return zero, err
		}
		c.applyLocal(updated)
		c.reconcile(ctx)
		return item, nil
	}
	logger.Warn("giving up after repeated revision conflicts", "collection", c.cfg.Collection, "id", id)
	return zero, fmt.Errorf("update %s/%s: %w", c.cfg.Collection, id, storage.ErrConflict)
}

// Remove deletes the document.
func (c *Controller[T]) Remove(ctx context.Context, id string) error {
	if _, err := c.get(ctx, id); err != nil {
		return err
	}
	start := time.Now()
	err := c.store.Delete(ctx, c.cfg.Collection, id)
	c.cfg.Metrics.ObserveStore(c.cfg.Collection, "delete", start, err)
	if err != nil {
		logger.Error("failed to delete document", "collection", c.cfg.Collection, "id", id, "error", err)
		return fmt.Errorf("delete %s/%s: %w", c.cfg.Collection, id, err)
	}
	c.dropLocal(id)
	c.reconcile(ctx)
	return nil
}

// Get reads one document from the store, enforcing the owner scope.
func (c *Controller[T]) Get(ctx context.Context, id string) (T, error) {
	doc, err := c.get(ctx, id)
	if err != nil {
		var zero T
		return zero, err
	}
	return c.cfg.Decode(doc)
}

func (c *Controller[T]) get(ctx context.Context, id string) (storage.Document, error) {
	start := time.Now()
	doc, err := c.store.Get(ctx, c.cfg.Collection, id)
	c.cfg.Metrics.ObserveStore(c.cfg.Collection, "get", start, err)
	if err != nil {
		return storage.Document{}, fmt.Errorf("get %s/%s: %w", c.cfg.Collection, id, err)
	}
	// Documents of other owners are reported as missing.
	if c.cfg.Owner != "" && doc.Fields.String(constants.FieldOwnerID) != c.cfg.Owner {
		return storage.Document{}, fmt.Errorf("get %s/%s: %w", c.cfg.Collection, id, storage.ErrNotFound)
	}
	return doc, nil
}

// Watch follows the store's push stream until ctx ends, replacing the local
// list on every snapshot. While it runs, mutations skip the full reload.
func (c *Controller[T]) Watch(ctx context.Context) error {
	snaps, err := c.store.Watch(ctx, c.query)
	if err != nil {
		return fmt.Errorf("watch %s: %w", c.cfg.Collection, err)
	}

	c.mu.Lock()
	c.live = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.live = false
		c.mu.Unlock()
	}()

	for snap := range snaps {
		if snap.Err != nil {
			logger.Warn("watch snapshot failed", "collection", c.cfg.Collection, "error", snap.Err)
			continue
		}
		c.replace(c.decodeAll(snap.Documents))
	}
	return nil
}

// Subscribe returns a channel that receives the list after every change,
// starting with the current one. Slow readers only see the latest list.
func (c *Controller[T]) Subscribe() (<-chan []T, func()) {
	ch := make(chan []T, 1)
	c.subMu.Lock()
	c.subs[ch] = struct{}{}
	c.subMu.Unlock()

	if c.Loaded() {
		ch <- c.Items()
	}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subs, ch)
			c.subMu.Unlock()
		})
	}
}

func (c *Controller[T]) reconcile(ctx context.Context) {
	if c.Live() {
		return
	}
	if err := c.Load(ctx); err != nil {
		logger.Warn("reload after write failed, keeping local copy", "collection", c.cfg.Collection, "error", err)
	}
}

func (c *Controller[T]) decodeAll(docs []storage.Document) []T {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		item, err := c.cfg.Decode(d)
		if err != nil {
			logger.Warn("skipping undecodable document", "collection", c.cfg.Collection, "id", d.ID, "error", err)
			continue
		}
		out = append(out, item)
	}
	return out
}

func (c *Controller[T]) replace(items []T) {
	c.mu.Lock()
	c.items = items
	c.loaded = true
	snapshot := slices.Clone(items)
	c.mu.Unlock()
	c.publish(snapshot)
}

// applyLocal inserts or replaces the written document in the local list.
func (c *Controller[T]) applyLocal(doc storage.Document) {
	item, err := c.cfg.Decode(doc)
	if err != nil {
		return
	}
	c.mu.Lock()
	idx := slices.IndexFunc(c.items, func(it T) bool { return c.cfg.ID(it) == doc.ID })
	if idx >= 0 {
		c.items[idx] = item
	} else {
		c.items = slices.Insert(c.items, 0, item)
	}
	c.loaded = true
	snapshot := slices.Clone(c.items)
	c.mu.Unlock()
	c.publish(snapshot)
}

func (c *Controller[T]) dropLocal(id string) {
	c.mu.Lock()
	c.items = slices.DeleteFunc(c.items, func(it T) bool { return c.cfg.ID(it) == id })
	snapshot := slices.Clone(c.items)
	c.mu.Unlock()
	c.publish(snapshot)
}

func (c *Controller[T]) publish(items []T) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for ch := range c.subs {
		select {
		case ch <- items:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- items:
		default:
		}
	}
}
