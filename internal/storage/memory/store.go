// Package memory is a process-local document store. It backs tests and the
// "memory://" store DSN; nothing is persisted.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/julianstephens/daybook/internal/storage"
)

type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]*storage.Document
	hub         *storage.Hub
	now         func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the clock used for server timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		collections: make(map[string]map[string]*storage.Document),
		hub:         storage.NewHub(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Init() error           { return nil }
func (s *Store) Load() error           { return nil }
func (s *Store) Close() error          { return nil }
func (s *Store) GetConfigPath() string { return "memory" }

func (s *Store) Create(ctx context.Context, collection string, fields storage.Fields) (storage.Document, error) {
	if err := ctx.Err(); err != nil {
		return storage.Document{}, err
	}
	now := s.now().UTC()
	normalized, err := storage.Normalize(fields, now)
	if err != nil {
		return storage.Document{}, err
	}

	doc := &storage.Document{
		ID:         storage.NewID(),
		Collection: collection,
		Fields:     normalized,
		CreatedAt:  now,
		UpdatedAt:  now,
		Revision:   1,
	}

	s.mu.Lock()
	s.bucket(collection)[doc.ID] = doc
	out := copyDoc(doc)
	s.mu.Unlock()

	s.hub.Publish(collection)
	return out, nil
}

func (s *Store) Set(ctx context.Context, collection, id string, fields storage.Fields) (storage.Document, error) {
	if err := ctx.Err(); err != nil {
		return storage.Document{}, err
	}
	if id == "" {
		return storage.Document{}, fmt.Errorf("set %s: empty document id", collection)
	}
	now := s.now().UTC()
	normalized, err := storage.Normalize(fields, now)
	if err != nil {
		return storage.Document{}, err
	}

	s.mu.Lock()
	bucket := s.bucket(collection)
	doc, ok := bucket[id]
	if ok {
		doc.Fields = normalized
		doc.UpdatedAt = now
		doc.Revision++
	} else {
		doc = &storage.Document{
			ID:         id,
			Collection: collection,
			Fields:     normalized,
			CreatedAt:  now,
			UpdatedAt:  now,
			Revision:   1,
		}
		bucket[id] = doc
	}
	out := copyDoc(doc)
	s.mu.Unlock()

	s.hub.Publish(collection)
	return out, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (storage.Document, error) {
	if err := ctx.Err(); err != nil {
		return storage.Document{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.collections[collection][id]
	if !ok {
		return storage.Document{}, storage.ErrNotFound
	}
	return copyDoc(doc), nil
}

func (s *Store) List(ctx context.Context, q storage.Query) ([]storage.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	docs := make([]storage.Document, 0, len(s.collections[q.Collection]))
	for _, doc := range s.collections[q.Collection] {
		docs = append(docs, copyDoc(doc))
	}
	s.mu.RUnlock()
	return storage.Apply(q, docs), nil
}

func (s *Store) Update(ctx context.Context, collection, id string, patch storage.Fields, opts ...storage.WriteOption) (storage.Document, error) {
	if err := ctx.Err(); err != nil {
		return storage.Document{}, err
	}
	o := storage.ApplyWriteOptions(opts)
	now := s.now().UTC()
	normalizedPatch, err := storage.Normalize(patch, now)
	if err != nil {
		return storage.Document{}, err
	}

	s.mu.Lock()
	doc, ok := s.collections[collection][id]
	if !ok {
		s.mu.Unlock()
		return storage.Document{}, storage.ErrNotFound
	}
	if o.HasRevision && doc.Revision != o.Revision {
		s.mu.Unlock()
		return storage.Document{}, storage.ErrConflict
	}
	doc.Fields = storage.Merge(doc.Fields, normalizedPatch)
	doc.UpdatedAt = now
	doc.Revision++
	out := copyDoc(doc)
	s.mu.Unlock()

	s.hub.Publish(collection)
	return out, nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if _, ok := s.collections[collection][id]; !ok {
		s.mu.Unlock()
		return storage.ErrNotFound
	}
	delete(s.collections[collection], id)
	s.mu.Unlock()

	s.hub.Publish(collection)
	return nil
}

func (s *Store) Watch(ctx context.Context, q storage.Query) (<-chan storage.Snapshot, error) {
	return storage.WatchQuery(ctx, s, s.hub, q)
}

// bucket must be called with s.mu held for writing.
func (s *Store) bucket(collection string) map[string]*storage.Document {
	b, ok := s.collections[collection]
	if !ok {
		b = make(map[string]*storage.Document)
		s.collections[collection] = b
	}
	return b
}

func copyDoc(d *storage.Document) storage.Document {
	out := *d
	out.Fields = d.Fields.Clone()
	return out
}
