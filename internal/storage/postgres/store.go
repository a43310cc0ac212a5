package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"github.com/julianstephens/daybook/internal/constants"
	"github.com/julianstephens/daybook/internal/logger"
	"github.com/julianstephens/daybook/internal/migration"
	"github.com/julianstephens/daybook/internal/storage"
	"github.com/julianstephens/daybook/migrations"
)

var pushdownField = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

type Store struct {
	connStr string
	db      *sql.DB
	hub     *storage.Hub
	now     func() time.Time

	listenOnce sync.Once
	listener   *changeListener
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the clock used for server timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func New(connStr string, opts ...Option) *Store {
	s := &Store{
		connStr: withSearchPath(connStr),
		hub:     storage.NewHub(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) open() (*sql.DB, error) {
	db, err := sql.Open("postgres", s.connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}

func (s *Store) Init() error {
	db, err := s.open()
	if err != nil {
		return err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return connectHint(s.connStr, err)
	}
	if _, err := db.Exec("CREATE SCHEMA IF NOT EXISTS " + constants.AppName); err != nil {
		db.Close()
		return fmt.Errorf("failed to create schema: %w", err)
	}
	s.db = db

	if err := s.runMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *Store) Load() error {
	if s.db != nil {
		return nil
	}
	db, err := s.open()
	if err != nil {
		return err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return connectHint(s.connStr, err)
	}
	s.db = db
	return s.validateSchemaVersion()
}

func (s *Store) Close() error {
	if s.listener != nil {
		s.listener.Close()
	}
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

func (s *Store) migrationRunner() (*migration.Runner, error) {
	subFS, err := fs.Sub(migrations.FS, "postgres")
	if err != nil {
		return nil, fmt.Errorf("failed to access postgres migrations: %w", err)
	}
	return migration.NewRunner(s.db, subFS, migration.DriverPostgres), nil
}

func (s *Store) runMigrations() error {
	runner, err := s.migrationRunner()
	if err != nil {
		return err
	}
	_, err = runner.ApplyMigrations(func(msg string) {
		logger.Info(msg, "store", "postgres")
	})
	return err
}

func (s *Store) validateSchemaVersion() error {
	runner, err := s.migrationRunner()
	if err != nil {
		return err
	}
	return runner.ValidateVersion()
}

// MigrationStatus reports applied and pending schema migrations.
func (s *Store) MigrationStatus() (migration.Status, error) {
	if s.db == nil {
		return migration.Status{}, storage.ErrNotInitialized
	}
	runner, err := s.migrationRunner()
	if err != nil {
		return migration.Status{}, err
	}
	return runner.Status()
}

// Migrate applies pending migrations to an already loaded store.
func (s *Store) Migrate(logFn func(string)) (int, error) {
	runner, err := s.migrationRunner()
	if err != nil {
		return 0, err
	}
	return runner.ApplyMigrations(logFn)
}

// GetConfigPath returns a non-sensitive identifier instead of the connection string.
func (s *Store) GetConfigPath() string {
	return "postgresql"
}

func (s *Store) Create(ctx context.Context, collection string, fields storage.Fields) (storage.Document, error) {
	if s.db == nil {
		return storage.Document{}, storage.ErrNotInitialized
	}
	now := s.now().UTC()
	normalized, err := storage.Normalize(fields, now)
	if err != nil {
		return storage.Document{}, err
	}
	data, err := storage.EncodeFields(normalized)
	if err != nil {
		return storage.Document{}, err
	}

	doc := storage.Document{
		ID:         storage.NewID(),
		Collection: collection,
		Fields:     normalized,
		CreatedAt:  now,
		UpdatedAt:  now,
		Revision:   1,
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, data, created_at, updated_at, revision)
		VALUES ($1, $2, $3, $4, $4, 1)`,
		collection, doc.ID, string(data), now)
	if err != nil {
		return storage.Document{}, fmt.Errorf("failed to create document in %s: %w", collection, err)
	}

	s.hub.Publish(collection)
	return doc, nil
}

func (s *Store) Set(ctx context.Context, collection, id string, fields storage.Fields) (storage.Document, error) {
	if s.db == nil {
		return storage.Document{}, storage.ErrNotInitialized
	}
	if id == "" {
		return storage.Document{}, fmt.Errorf("set %s: empty document id", collection)
	}
	now := s.now().UTC()
	normalized, err := storage.Normalize(fields, now)
	if err != nil {
		return storage.Document{}, err
	}
	data, err := storage.EncodeFields(normalized)
	if err != nil {
		return storage.Document{}, err
	}

	doc := storage.Document{ID: id, Collection: collection, Fields: normalized, UpdatedAt: now}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO documents (collection, id, data, created_at, updated_at, revision)
		VALUES ($1, $2, $3, $4, $4, 1)
		ON CONFLICT (collection, id) DO UPDATE
		SET data = EXCLUDED.data,
		    updated_at = EXCLUDED.updated_at,
		    revision = documents.revision + 1
		RETURNING created_at, revision`,
		collection, id, string(data), now).Scan(&doc.CreatedAt, &doc.Revision)
	if err != nil {
		return storage.Document{}, fmt.Errorf("failed to set %s/%s: %w", collection, id, err)
	}
	doc.CreatedAt = doc.CreatedAt.UTC()

	s.hub.Publish(collection)
	return doc, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (storage.Document, error) {
	if s.db == nil {
		return storage.Document{}, storage.ErrNotInitialized
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, data, created_at, updated_at, revision
		FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	return scanDocument(row, collection)
}

func (s *Store) List(ctx context.Context, q storage.Query) ([]storage.Document, error) {
	if s.db == nil {
		return nil, storage.ErrNotInitialized
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	query, args := buildListQuery(q)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", q.Collection, err)
	}
	defer rows.Close()

	var docs []storage.Document
	for rows.Next() {
		doc, err := scanDocument(rows, q.Collection)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", q.Collection, err)
	}
	return storage.Apply(q, docs), nil
}

// buildListQuery narrows the scan with string equality filters; the full
// query is still evaluated by storage.Apply afterwards.
func buildListQuery(q storage.Query) (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT id, data, created_at, updated_at, revision FROM documents WHERE collection = $1")
	args := []any{q.Collection}
	for _, f := range q.Filters {
		v, ok := f.Value.(string)
		if f.Op != storage.OpEqual || !ok || !pushdownField.MatchString(f.Field) {
			continue
		}
		args = append(args, v)
		b.WriteString(" AND data->>'" + f.Field + "' = $" + strconv.Itoa(len(args)))
	}
	return b.String(), args
}

func (s *Store) Update(ctx context.Context, collection, id string, patch storage.Fields, opts ...storage.WriteOption) (storage.Document, error) {
	if s.db == nil {
		return storage.Document{}, storage.ErrNotInitialized
	}
	o := storage.ApplyWriteOptions(opts)
	now := s.now().UTC()
	normalizedPatch, err := storage.Normalize(patch, now)
	if err != nil {
		return storage.Document{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.Document{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	doc, err := scanDocument(tx.QueryRowContext(ctx, `
		SELECT id, data, created_at, updated_at, revision
		FROM documents WHERE collection = $1 AND id = $2
		FOR UPDATE`, collection, id), collection)
	if err != nil {
		return storage.Document{}, err
	}
	if o.HasRevision && doc.Revision != o.Revision {
		return storage.Document{}, storage.ErrConflict
	}

	doc.Fields = storage.Merge(doc.Fields, normalizedPatch)
	doc.UpdatedAt = now
	doc.Revision++

	data, err := storage.EncodeFields(doc.Fields)
	if err != nil {
		return storage.Document{}, err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE documents SET data = $1, updated_at = $2, revision = $3
		WHERE collection = $4 AND id = $5`,
		string(data), now, doc.Revision, collection, id); err != nil {
		return storage.Document{}, fmt.Errorf("failed to update %s/%s: %w", collection, id, err)
	}
	if err := tx.Commit(); err != nil {
		return storage.Document{}, fmt.Errorf("failed to commit %s/%s: %w", collection, id, err)
	}

	s.hub.Publish(collection)
	return doc, nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if s.db == nil {
		return storage.ErrNotInitialized
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE collection = $1 AND id = $2", collection, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	s.hub.Publish(collection)
	return nil
}

// Watch also receives changes committed by other clients through
// LISTEN/NOTIFY on the documents trigger channel.
func (s *Store) Watch(ctx context.Context, q storage.Query) (<-chan storage.Snapshot, error) {
	if s.db == nil {
		return nil, storage.ErrNotInitialized
	}
	s.listenOnce.Do(func() {
		l, err := newChangeListener(s.connStr, s.hub)
		if err != nil {
			logger.Warn("cross-client change notifications disabled", "error", err)
			return
		}
		s.listener = l
	})
	return storage.WatchQuery(ctx, s, s.hub, q)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner, collection string) (storage.Document, error) {
	var (
		doc  storage.Document
		data []byte
	)
	if err := row.Scan(&doc.ID, &data, &doc.CreatedAt, &doc.UpdatedAt, &doc.Revision); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Document{}, storage.ErrNotFound
		}
		return storage.Document{}, fmt.Errorf("failed to read document from %s: %w", collection, err)
	}
	fields, err := storage.DecodeFields(data)
	if err != nil {
		return storage.Document{}, err
	}
	doc.Collection = collection
	doc.Fields = fields
	doc.CreatedAt = doc.CreatedAt.UTC()
	doc.UpdatedAt = doc.UpdatedAt.UTC()
	return doc, nil
}
