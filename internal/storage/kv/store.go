// Package kv stores documents in NATS JetStream key-value buckets, one bucket
// per collection. It can run against an external server or start an embedded
// one ("nats://embedded").
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/julianstephens/daybook/internal/constants"
	"github.com/julianstephens/daybook/internal/logger"
	"github.com/julianstephens/daybook/internal/storage"
)

// EmbeddedURL selects an in-process NATS server persisting under the store dir.
const EmbeddedURL = "nats://embedded"

const opTimeout = 10 * time.Second

var (
	invalidBucketChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)
	validKey           = regexp.MustCompile(`^[-/_=\.a-zA-Z0-9]+$`)
)

// IsURL reports whether dsn should be handled by this backend.
func IsURL(dsn string) bool {
	return strings.HasPrefix(dsn, "nats://") || strings.HasPrefix(dsn, "tls://")
}

// envelope is the value stored under each key.
type envelope struct {
	Fields    storage.Fields `json:"fields"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

type Store struct {
	url      string
	storeDir string
	now      func() time.Time

	ns *server.Server
	nc *nats.Conn
	js jetstream.JetStream

	mu       sync.Mutex
	buckets  map[string]jetstream.KeyValue
	watchers map[string]jetstream.KeyWatcher
	hub      *storage.Hub
}

// Option configures a Store.
type Option func(*Store)

// WithStoreDir sets where the embedded server keeps JetStream data.
func WithStoreDir(dir string) Option {
	return func(s *Store) {
		s.storeDir = dir
	}
}

// WithClock replaces the clock used for server timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func New(url string, opts ...Option) *Store {
	s := &Store{
		url:      url,
		now:      time.Now,
		buckets:  make(map[string]jetstream.KeyValue),
		watchers: make(map[string]jetstream.KeyWatcher),
		hub:      storage.NewHub(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init connects and creates a bucket for every application collection.
func (s *Store) Init() error {
	if err := s.connect(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	for _, c := range constants.Collections {
		if _, err := s.bucket(ctx, c, true); err != nil {
			return err
		}
	}
	return nil
}

// Load connects and fails with storage.ErrNotInitialized if Init never ran.
func (s *Store) Load() error {
	if err := s.connect(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	kv, err := s.bucket(ctx, constants.CollectionUsers, false)
	if err != nil {
		return err
	}
	if kv == nil {
		return storage.ErrNotInitialized
	}
	return nil
}

func (s *Store) connect() error {
	if s.nc != nil {
		return nil
	}

	url := s.url
	if url == EmbeddedURL {
		ns, err := startEmbedded(s.storeDir)
		if err != nil {
			return err
		}
		s.ns = ns
		url = ns.ClientURL()
	}

	nc, err := nats.Connect(url, nats.Name(constants.AppName))
	if err != nil {
		s.shutdownEmbedded()
		return fmt.Errorf("connect to NATS: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		s.shutdownEmbedded()
		return fmt.Errorf("create JetStream context: %w", err)
	}
	s.nc = nc
	s.js = js
	return nil
}

func startEmbedded(storeDir string) (*server.Server, error) {
	if storeDir == "" {
		return nil, errors.New("embedded NATS requires a store directory")
	}
	ns, err := server.NewServer(&server.Options{
		Port:      -1,
		JetStream: true,
		StoreDir:  storeDir,
		NoLog:     true,
		NoSigs:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedded NATS server: %w", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(constants.NATSReadyTimeout) {
		ns.Shutdown()
		return nil, errors.New("embedded NATS server failed to start")
	}
	return ns, nil
}

func (s *Store) shutdownEmbedded() {
	if s.ns != nil {
		s.ns.Shutdown()
		s.ns.WaitForShutdown()
		s.ns = nil
	}
}

func (s *Store) Close() error {
	s.mu.Lock()
	for c, w := range s.watchers {
		_ = w.Stop()
		delete(s.watchers, c)
	}
	s.mu.Unlock()

	if s.nc != nil {
		_ = s.nc.Drain()
		s.nc.Close()
		s.nc = nil
	}
	s.shutdownEmbedded()
	return nil
}

func (s *Store) GetConfigPath() string {
	if s.url == EmbeddedURL {
		return s.storeDir
	}
	return "nats"
}

// BucketName maps a collection to its KV bucket.
func BucketName(collection string) string {
	return strings.ToUpper(constants.AppName) + "_" + invalidBucketChars.ReplaceAllString(collection, "_")
}

// bucket returns the bucket for collection. With create false a missing
// bucket yields (nil, nil).
func (s *Store) bucket(ctx context.Context, collection string, create bool) (jetstream.KeyValue, error) {
	if s.js == nil {
		return nil, storage.ErrNotInitialized
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if kv, ok := s.buckets[collection]; ok {
		return kv, nil
	}

	name := BucketName(collection)
	kv, err := s.js.KeyValue(ctx, name)
	if errors.Is(err, jetstream.ErrBucketNotFound) {
		if !create {
			return nil, nil
		}
		kv, err = s.js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:      name,
			Description: "daybook " + collection + " documents",
			History:     1,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("open kv bucket %s: %w", name, err)
	}
	s.buckets[collection] = kv
	return kv, nil
}

func checkKey(id string) error {
	if !validKey.MatchString(id) || strings.HasPrefix(id, ".") || strings.HasSuffix(id, ".") {
		return fmt.Errorf("invalid document id %q", id)
	}
	return nil
}

func isMissing(err error) bool {
	return errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted)
}

// isWrongRevision reports a failed optimistic write.
func isWrongRevision(err error) bool {
	if errors.Is(err, jetstream.ErrKeyExists) {
		return true
	}
	var apiErr *jetstream.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
}

func decodeEntry(collection string, entry jetstream.KeyValueEntry) (storage.Document, error) {
	var env envelope
	if err := json.Unmarshal(entry.Value(), &env); err != nil {
		return storage.Document{}, fmt.Errorf("decode %s/%s: %w", collection, entry.Key(), err)
	}
	if env.Fields == nil {
		env.Fields = storage.Fields{}
	}
	return storage.Document{
		ID:         entry.Key(),
		Collection: collection,
		Fields:     env.Fields,
		CreatedAt:  env.CreatedAt.UTC(),
		UpdatedAt:  env.UpdatedAt.UTC(),
		Revision:   entry.Revision(),
	}, nil
}

func encode(doc storage.Document) ([]byte, error) {
	return json.Marshal(envelope{Fields: doc.Fields, CreatedAt: doc.CreatedAt, UpdatedAt: doc.UpdatedAt})
}

func (s *Store) Create(ctx context.Context, collection string, fields storage.Fields) (storage.Document, error) {
	kv, err := s.bucket(ctx, collection, true)
	if err != nil {
		return storage.Document{}, err
	}
	now := s.now().UTC()
	normalized, err := storage.Normalize(fields, now)
	if err != nil {
		return storage.Document{}, err
	}
	doc := storage.Document{
		ID:         storage.NewID(),
		Collection: collection,
		Fields:     normalized,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	data, err := encode(doc)
	if err != nil {
		return storage.Document{}, err
	}
	rev, err := kv.Create(ctx, doc.ID, data)
	if err != nil {
		return storage.Document{}, fmt.Errorf("create document in %s: %w", collection, err)
	}
	doc.Revision = rev
	s.hub.Publish(collection)
	return doc, nil
}

func (s *Store) Set(ctx context.Context, collection, id string, fields storage.Fields) (storage.Document, error) {
	if err := checkKey(id); err != nil {
		return storage.Document{}, err
	}
	kv, err := s.bucket(ctx, collection, true)
	if err != nil {
		return storage.Document{}, err
	}
	now := s.now().UTC()
	normalized, err := storage.Normalize(fields, now)
	if err != nil {
		return storage.Document{}, err
	}

	for attempt := 0; attempt < constants.MaxConflictRetries; attempt++ {
		doc := storage.Document{ID: id, Collection: collection, Fields: normalized, CreatedAt: now, UpdatedAt: now}
		entry, err := kv.Get(ctx, id)
		var rev uint64
		switch {
		case isMissing(err):
		case err != nil:
			return storage.Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
		default:
			existing, err := decodeEntry(collection, entry)
			if err != nil {
				return storage.Document{}, err
			}
			doc.CreatedAt = existing.CreatedAt
			rev = entry.Revision()
		}

		data, err := encode(doc)
		if err != nil {
			return storage.Document{}, err
		}
		if rev == 0 {
			doc.Revision, err = kv.Create(ctx, id, data)
		} else {
			doc.Revision, err = kv.Update(ctx, id, data, rev)
		}
		if isWrongRevision(err) {
			continue
		}
		if err != nil {
			return storage.Document{}, fmt.Errorf("set %s/%s: %w", collection, id, err)
		}
		s.hub.Publish(collection)
		return doc, nil
	}
	return storage.Document{}, storage.ErrConflict
}

func (s *Store) Get(ctx context.Context, collection, id string) (storage.Document, error) {
	if err := checkKey(id); err != nil {
		return storage.Document{}, storage.ErrNotFound
	}
	kv, err := s.bucket(ctx, collection, false)
	if err != nil {
		return storage.Document{}, err
	}
	if kv == nil {
		return storage.Document{}, storage.ErrNotFound
	}
	entry, err := kv.Get(ctx, id)
	if isMissing(err) {
		return storage.Document{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return decodeEntry(collection, entry)
}

// List reads the current value of every key through a short-lived watcher,
// which delivers all entries followed by a nil marker.
func (s *Store) List(ctx context.Context, q storage.Query) ([]storage.Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	kv, err := s.bucket(ctx, q.Collection, false)
	if err != nil {
		return nil, err
	}
	if kv == nil {
		return nil, nil
	}

	w, err := kv.WatchAll(ctx, jetstream.IgnoreDeletes())
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", q.Collection, err)
	}
	defer w.Stop()

	var docs []storage.Document
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case entry, ok := <-w.Updates():
			if !ok {
				return storage.Apply(q, docs), nil
			}
			if entry == nil {
				return storage.Apply(q, docs), nil
			}
			doc, err := decodeEntry(q.Collection, entry)
			if err != nil {
				logger.Warn("skipping undecodable document", "collection", q.Collection, "key", entry.Key(), "error", err)
				continue
			}
			docs = append(docs, doc)
		}
	}
}

func (s *Store) Update(ctx context.Context, collection, id string, patch storage.Fields, opts ...storage.WriteOption) (storage.Document, error) {
	if err := checkKey(id); err != nil {
		return storage.Document{}, storage.ErrNotFound
	}
	kv, err := s.bucket(ctx, collection, false)
	if err != nil {
		return storage.Document{}, err
	}
	if kv == nil {
		return storage.Document{}, storage.ErrNotFound
	}
	o := storage.ApplyWriteOptions(opts)
	now := s.now().UTC()
	normalizedPatch, err := storage.Normalize(patch, now)
	if err != nil {
		return storage.Document{}, err
	}

	for attempt := 0; attempt < constants.MaxConflictRetries; attempt++ {
		entry, err := kv.Get(ctx, id)
		if isMissing(err) {
			return storage.Document{}, storage.ErrNotFound
		}
		if err != nil {
			return storage.Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
		}
		if o.HasRevision && entry.Revision() != o.Revision {
			return storage.Document{}, storage.ErrConflict
		}
		doc, err := decodeEntry(collection, entry)
		if err != nil {
			return storage.Document{}, err
		}
		doc.Fields = storage.Merge(doc.Fields, normalizedPatch)
		doc.UpdatedAt = now

		data, err := encode(doc)
		if err != nil {
			return storage.Document{}, err
		}
		rev, err := kv.Update(ctx, id, data, entry.Revision())
		if isWrongRevision(err) {
			// A caller-supplied precondition is final; a plain merge retries.
			if o.HasRevision {
				return storage.Document{}, storage.ErrConflict
			}
			continue
		}
		if err != nil {
			return storage.Document{}, fmt.Errorf("update %s/%s: %w", collection, id, err)
		}
		doc.Revision = rev
		s.hub.Publish(collection)
		return doc, nil
	}
	return storage.Document{}, storage.ErrConflict
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := checkKey(id); err != nil {
		return storage.ErrNotFound
	}
	kv, err := s.bucket(ctx, collection, false)
	if err != nil {
		return err
	}
	if kv == nil {
		return storage.ErrNotFound
	}
	for attempt := 0; attempt < constants.MaxConflictRetries; attempt++ {
		entry, err := kv.Get(ctx, id)
		if isMissing(err) {
			return storage.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get %s/%s: %w", collection, id, err)
		}
		err = kv.Delete(ctx, id, jetstream.LastRevision(entry.Revision()))
		if isWrongRevision(err) {
			continue
		}
		if err != nil {
			return fmt.Errorf("delete %s/%s: %w", collection, id, err)
		}
		s.hub.Publish(collection)
		return nil
	}
	return storage.ErrConflict
}

// Watch follows the collection bucket so writes from any client reach watchers.
func (s *Store) Watch(ctx context.Context, q storage.Query) (<-chan storage.Snapshot, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	kv, err := s.bucket(ctx, q.Collection, true)
	if err != nil {
		return nil, err
	}
	if err := s.followBucket(q.Collection, kv); err != nil {
		logger.Warn("cross-client change notifications disabled", "collection", q.Collection, "error", err)
	}
	return storage.WatchQuery(ctx, s, s.hub, q)
}

func (s *Store) followBucket(collection string, kv jetstream.KeyValue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.watchers[collection]; ok {
		return nil
	}
	// The watcher outlives the request that started it; Close stops it.
	w, err := kv.WatchAll(context.Background(), jetstream.UpdatesOnly())
	if err != nil {
		return err
	}
	s.watchers[collection] = w
	go func() {
		for entry := range w.Updates() {
			if entry != nil {
				s.hub.Publish(collection)
			}
		}
	}()
	return nil
}
