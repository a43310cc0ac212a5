package backend

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gokeyring "github.com/zalando/go-keyring"

	"github.com/julianstephens/daybook/internal/config"
	"github.com/julianstephens/daybook/internal/keyring"
	"github.com/julianstephens/daybook/internal/storage"
	"github.com/julianstephens/daybook/internal/storage/kv"
	"github.com/julianstephens/daybook/internal/storage/memory"
	"github.com/julianstephens/daybook/internal/storage/postgres"
	"github.com/julianstephens/daybook/internal/storage/sqlite"
)

func TestDetect(t *testing.T) {
	tests := map[string]Kind{
		"/home/ada/.config/daybook/daybook.db": KindSQLite,
		"daybook.db":                           KindSQLite,
		"postgres://ada@localhost/daybook":     KindPostgres,
		"postgresql://localhost/daybook":       KindPostgres,
		"host=localhost dbname=daybook":        KindPostgres,
		"nats://localhost:4222":                KindNATS,
		kv.EmbeddedURL:                         KindNATS,
		config.MemoryDSN:                       KindMemory,
	}
	for dsn, want := range tests {
		assert.Equal(t, want, Detect(dsn), dsn)
	}
}

func TestNewPicksBackend(t *testing.T) {
	gokeyring.MockInit()
	cfg := config.Default(t.TempDir())

	s, err := New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &sqlite.Store{}, s)

	cfg.Store = "postgres://ada@localhost/daybook"
	s, err = New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &postgres.Store{}, s)

	cfg.Store = kv.EmbeddedURL
	s, err = New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &kv.Store{}, s)

	cfg.Store = "postgres://ada:pw@localhost/daybook"
	_, err = New(cfg)
	assert.True(t, errors.Is(err, postgres.ErrEmbeddedCredentials))
}

func TestResolvePostgres(t *testing.T) {
	gokeyring.MockInit()
	_ = keyring.DeleteConnectionString()
	configured := "postgres://ada@localhost/daybook"

	t.Setenv(ConnectionEnv, "")
	assert.Equal(t, configured, resolvePostgres(configured))

	require.NoError(t, keyring.SetConnectionString("postgres://ada:pw@db/daybook"))
	assert.Equal(t, "postgres://ada:pw@db/daybook", resolvePostgres(configured))

	t.Setenv(ConnectionEnv, "postgres://env@db/daybook")
	assert.Equal(t, "postgres://env@db/daybook", resolvePostgres(configured))
}

func TestOpenMemory(t *testing.T) {
	cfg := config.Default(t.TempDir())
	cfg.Store = config.MemoryDSN
	s, err := Open(cfg)
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, s)
}

func TestOpenUninitializedSQLite(t *testing.T) {
	cfg := config.Default(t.TempDir())
	cfg.Store = filepath.Join(t.TempDir(), "missing.db")
	_, err := Open(cfg)
	assert.True(t, errors.Is(err, storage.ErrNotInitialized))
}

func TestSQLiteIsMigrator(t *testing.T) {
	cfg := config.Default(t.TempDir())
	s, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Init())
	defer s.Close()

	m, ok := s.(Migrator)
	require.True(t, ok)
	status, err := m.MigrationStatus()
	require.NoError(t, err)
	assert.Empty(t, status.Pending)

	_, err = s.Create(context.Background(), "todos", storage.Fields{"name": "x"})
	assert.NoError(t, err)
}
