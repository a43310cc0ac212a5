// Package backend selects and constructs the storage.Provider named by a
// store DSN.
package backend

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/julianstephens/daybook/internal/config"
	"github.com/julianstephens/daybook/internal/keyring"
	"github.com/julianstephens/daybook/internal/logger"
	"github.com/julianstephens/daybook/internal/migration"
	"github.com/julianstephens/daybook/internal/storage"
	"github.com/julianstephens/daybook/internal/storage/kv"
	"github.com/julianstephens/daybook/internal/storage/memory"
	"github.com/julianstephens/daybook/internal/storage/postgres"
	"github.com/julianstephens/daybook/internal/storage/sqlite"
)

// ConnectionEnv overrides the Postgres connection string. Unlike the
// configured store it may carry a password.
const ConnectionEnv = "DAYBOOK_DB_CONNECTION"

// Kind names a backend.
type Kind string

const (
	KindSQLite   Kind = "sqlite"
	KindPostgres Kind = "postgres"
	KindNATS     Kind = "nats"
	KindMemory   Kind = "memory"
)

// Detect reports which backend handles dsn.
func Detect(dsn string) Kind {
	switch {
	case postgres.IsConnString(dsn):
		return KindPostgres
	case kv.IsURL(dsn):
		return KindNATS
	case dsn == config.MemoryDSN:
		return KindMemory
	default:
		return KindSQLite
	}
}

// Migrator is implemented by SQL backends with versioned schemas.
type Migrator interface {
	MigrationStatus() (migration.Status, error)
	Migrate(logFn func(string)) (int, error)
}

// New constructs, but does not open, the provider for cfg.Store.
func New(cfg *config.Config) (storage.Provider, error) {
	if err := config.ValidateStore(cfg.Store); err != nil {
		return nil, err
	}
	switch Detect(cfg.Store) {
	case KindPostgres:
		return postgres.New(resolvePostgres(cfg.Store)), nil
	case KindNATS:
		return kv.New(cfg.Store, kv.WithStoreDir(cfg.NATS.StoreDir)), nil
	case KindMemory:
		return memory.New(), nil
	default:
		return sqlite.NewStore(cfg.Store), nil
	}
}

// resolvePostgres prefers a secret connection string from the environment or
// the OS keyring over the configured, password-free one.
func resolvePostgres(configured string) string {
	if env := strings.TrimSpace(os.Getenv(ConnectionEnv)); env != "" {
		logger.Debug("using postgres connection from environment")
		return env
	}
	connStr, err := keyring.GetConnectionString()
	switch {
	case err == nil:
		logger.Debug("using postgres connection from keyring")
		return connStr
	case errors.Is(err, keyring.ErrNotFound):
	default:
		logger.Debug("keyring lookup failed", "error", err)
	}
	return configured
}

// Open constructs the provider and loads it; use Init for first-time setup.
func Open(cfg *config.Config) (storage.Provider, error) {
	store, err := New(cfg)
	if err != nil {
		return nil, err
	}
	// The memory store starts empty on every run.
	if Detect(cfg.Store) == KindMemory {
		return store, store.Init()
	}
	if err := store.Load(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to open %s store: %w", Detect(cfg.Store), err)
	}
	return store, nil
}
