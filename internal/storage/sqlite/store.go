package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/julianstephens/daybook/internal/logger"
	"github.com/julianstephens/daybook/internal/migration"
	"github.com/julianstephens/daybook/internal/storage"
	"github.com/julianstephens/daybook/migrations"
)

// pushdownField matches field names that are safe to splice into a JSON path.
var pushdownField = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

type Store struct {
	path string
	db   *sql.DB
	hub  *storage.Hub
	now  func() time.Time

	watchOnce sync.Once
	watcher   *fileWatcher
	watchErr  error
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the clock used for server timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func NewStore(path string, opts ...Option) *Store {
	s := &Store{
		path: path,
		hub:  storage.NewHub(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Init() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := s.open(); err != nil {
		return err
	}
	if err := s.runMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *Store) Load() error {
	if s.db != nil {
		return nil
	}
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return storage.ErrNotInitialized
	}
	if err := s.open(); err != nil {
		return err
	}
	return s.validateSchemaVersion()
}

func (s *Store) open() error {
	if s.db != nil {
		return nil
	}
	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serialises writers so revision checks never race
	// inside this process; busy_timeout covers other processes.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return fmt.Errorf("failed to configure database: %w", err)
	}
	s.db = db
	return nil
}

func (s *Store) Close() error {
	if s.watcher != nil {
		s.watcher.Close()
		s.watcher = nil
	}
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

func (s *Store) migrationRunner() (*migration.Runner, error) {
	subFS, err := fs.Sub(migrations.FS, "sqlite")
	if err != nil {
		return nil, fmt.Errorf("failed to access sqlite migrations: %w", err)
	}
	return migration.NewRunner(s.db, subFS, migration.DriverSQLite), nil
}

func (s *Store) runMigrations() error {
	runner, err := s.migrationRunner()
	if err != nil {
		return err
	}
	_, err = runner.ApplyMigrations(func(msg string) {
		logger.Info(msg, "store", "sqlite")
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

func (s *Store) GetConfigPath() string {
	return s.path
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
		VALUES (?, ?, ?, ?, ?, 1)`,
		collection, doc.ID, string(data), storage.FormatTime(now), storage.FormatTime(now))
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.Document{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	doc := storage.Document{
		ID:         id,
		Collection: collection,
		Fields:     normalized,
		CreatedAt:  now,
		UpdatedAt:  now,
		Revision:   1,
	}

	existing, err := scanDocument(tx.QueryRowContext(ctx, selectOne, collection, id), collection)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		_, err = tx.ExecContext(ctx, `
			INSERT INTO documents (collection, id, data, created_at, updated_at, revision)
			VALUES (?, ?, ?, ?, ?, 1)`,
			collection, id, string(data), storage.FormatTime(now), storage.FormatTime(now))
	case err != nil:
		return storage.Document{}, err
	default:
		doc.CreatedAt = existing.CreatedAt
		doc.Revision = existing.Revision + 1
		_, err = tx.ExecContext(ctx, `
			UPDATE documents SET data = ?, updated_at = ?, revision = ?
			WHERE collection = ? AND id = ?`,
			string(data), storage.FormatTime(now), doc.Revision, collection, id)
	}
	if err != nil {
		return storage.Document{}, fmt.Errorf("failed to set %s/%s: %w", collection, id, err)
	}
	if err := tx.Commit(); err != nil {
		return storage.Document{}, fmt.Errorf("failed to commit %s/%s: %w", collection, id, err)
	}

	s.hub.Publish(collection)
	return doc, nil
}

const selectOne = `
	SELECT id, data, created_at, updated_at, revision
	FROM documents WHERE collection = ? AND id = ?`

func (s *Store) Get(ctx context.Context, collection, id string) (storage.Document, error) {
	if s.db == nil {
		return storage.Document{}, storage.ErrNotInitialized
	}
	return scanDocument(s.db.QueryRowContext(ctx, selectOne, collection, id), collection)
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
	b.WriteString("SELECT id, data, created_at, updated_at, revision FROM documents WHERE collection = ?")
	args := []any{q.Collection}
	for _, f := range q.Filters {
		v, ok := f.Value.(string)
		if f.Op != storage.OpEqual || !ok || !pushdownField.MatchString(f.Field) {
			continue
		}
		b.WriteString(" AND json_extract(data, '$." + f.Field + "') = ?")
		args = append(args, v)
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

	doc, err := scanDocument(tx.QueryRowContext(ctx, selectOne, collection, id), collection)
	if err != nil {
		return storage.Document{}, err
	}
	if o.HasRevision && doc.Revision != o.Revision {
		return storage.Document{}, storage.ErrConflict
	}

	prev := doc.Revision
	doc.Fields = storage.Merge(doc.Fields, normalizedPatch)
	doc.UpdatedAt = now
	doc.Revision = prev + 1

	data, err := storage.EncodeFields(doc.Fields)
	if err != nil {
		return storage.Document{}, err
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE documents SET data = ?, updated_at = ?, revision = ?
		WHERE collection = ? AND id = ? AND revision = ?`,
		string(data), storage.FormatTime(now), doc.Revision, collection, id, prev)
	if err != nil {
		return storage.Document{}, fmt.Errorf("failed to update %s/%s: %w", collection, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.Document{}, storage.ErrConflict
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
	res, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE collection = ? AND id = ?", collection, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	s.hub.Publish(collection)
	return nil
}

// Watch also picks up writes made by other processes sharing the database
// file, detected through filesystem notifications.
func (s *Store) Watch(ctx context.Context, q storage.Query) (<-chan storage.Snapshot, error) {
	if s.db == nil {
		return nil, storage.ErrNotInitialized
	}
	s.watchOnce.Do(func() {
		s.watcher, s.watchErr = newFileWatcher(s.path, s.hub)
	})
	if s.watchErr != nil {
		logger.Warn("cross-process change detection disabled", "path", s.path, "error", s.watchErr)
	}
	return storage.WatchQuery(ctx, s, s.hub, q)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner, collection string) (storage.Document, error) {
	var (
		doc                  storage.Document
		data                 string
		createdAt, updatedAt string
	)
	if err := row.Scan(&doc.ID, &data, &createdAt, &updatedAt, &doc.Revision); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Document{}, storage.ErrNotFound
		}
		return storage.Document{}, fmt.Errorf("failed to read document from %s: %w", collection, err)
	}
	fields, err := storage.DecodeFields([]byte(data))
	if err != nil {
		return storage.Document{}, err
	}
	doc.Collection = collection
	doc.Fields = fields
	if doc.CreatedAt, err = storage.ParseTime(createdAt); err != nil {
		return storage.Document{}, fmt.Errorf("invalid created_at on %s/%s: %w", collection, doc.ID, err)
	}
	if doc.UpdatedAt, err = storage.ParseTime(updatedAt); err != nil {
		return storage.Document{}, fmt.Errorf("invalid updated_at on %s/%s: %w", collection, doc.ID, err)
	}
	return doc, nil
}
