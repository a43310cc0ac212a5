package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a document does not exist in its collection
	ErrNotFound = errors.New("document not found")
	// ErrConflict is returned when a write precondition on the document revision fails
	ErrConflict = errors.New("document revision conflict")
	// ErrNotInitialized is returned when the backing store has not been created yet
	ErrNotInitialized = errors.New("storage not initialized, run 'daybook init' first")
	// ErrInvalidQuery is returned for queries the store cannot evaluate
	ErrInvalidQuery = errors.New("invalid query")
)

// Provider is the document store client. Every backend stores schemaless
// documents in named collections and supports single-document atomic writes.
type Provider interface {
	// Lifecycle
	Init() error
	Load() error
	Close() error

	// Documents
	Create(ctx context.Context, collection string, fields Fields) (Document, error)
	// Set creates or replaces the document with the given id. CreatedAt is kept on replace.
	Set(ctx context.Context, collection, id string, fields Fields) (Document, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	List(ctx context.Context, q Query) ([]Document, error)
	// Update merges patch into the top-level fields of an existing document.
	// It returns ErrNotFound when the document is missing and ErrConflict when
	// an IfRevision precondition does not match the stored revision.
	Update(ctx context.Context, collection, id string, patch Fields, opts ...WriteOption) (Document, error)
	Delete(ctx context.Context, collection, id string) error

	// Watch delivers the query result immediately and again after every change
	// to the collection, until ctx is done. A slow reader only sees the latest snapshot.
	Watch(ctx context.Context, q Query) (<-chan Snapshot, error)

	// Utils
	GetConfigPath() string
}

// Snapshot is one complete result of a watched query.
type Snapshot struct {
	Documents []Document
	Err       error
}

// WriteOptions holds the preconditions of a write.
type WriteOptions struct {
	Revision    uint64
	HasRevision bool
}

// WriteOption configures a write.
type WriteOption func(*WriteOptions)

// IfRevision makes the write fail with ErrConflict unless the stored document
// is still at revision rev.
func IfRevision(rev uint64) WriteOption {
	return func(o *WriteOptions) {
		o.Revision = rev
		o.HasRevision = true
	}
}

// ApplyWriteOptions folds opts into a WriteOptions value.
func ApplyWriteOptions(opts []WriteOption) WriteOptions {
	var o WriteOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
