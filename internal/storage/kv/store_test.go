package kv

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/daybook/internal/storage"
	"github.com/julianstephens/daybook/internal/storage/storagetest"
)

func setupEmbeddedStore(t *testing.T) *Store {
	t.Helper()
	s := New(EmbeddedURL, WithStoreDir(t.TempDir()))
	require.NoError(t, s.Init())
	return s
}

func TestConformance(t *testing.T) {
	if testing.Short() {
		t.Skip("embedded NATS server is slow to start")
	}
	storagetest.Run(t, func(t *testing.T) storage.Provider {
		return setupEmbeddedStore(t)
	})
}

func TestBucketName(t *testing.T) {
	assert.Equal(t, "DAYBOOK_todos", BucketName("todos"))
	assert.Equal(t, "DAYBOOK_journalEntries", BucketName("journalEntries"))
	assert.Equal(t, "DAYBOOK_a_b", BucketName("a.b"))
}

func TestIsURL(t *testing.T) {
	assert.True(t, IsURL(EmbeddedURL))
	assert.True(t, IsURL("nats://localhost:4222"))
	assert.False(t, IsURL("postgres://localhost/db"))
	assert.False(t, IsURL("/tmp/daybook.db"))
}

func TestCheckKey(t *testing.T) {
	assert.NoError(t, checkKey("0b6f6a7e-6a0e-4f5e-9a3a-2a7c7b9d1e11"))
	assert.Error(t, checkKey(""))
	assert.Error(t, checkKey("has space"))
	assert.Error(t, checkKey(".leading"))
}

func TestEmbeddedRequiresStoreDir(t *testing.T) {
	err := New(EmbeddedURL).Init()
	assert.Error(t, err)
}

func TestLoadBeforeInit(t *testing.T) {
	if testing.Short() {
		t.Skip("embedded NATS server is slow to start")
	}
	s := New(EmbeddedURL, WithStoreDir(t.TempDir()))
	defer s.Close()
	err := s.Load()
	assert.True(t, errors.Is(err, storage.ErrNotInitialized), "got %v", err)
}

func TestReopenEmbeddedKeepsData(t *testing.T) {
	if testing.Short() {
		t.Skip("embedded NATS server is slow to start")
	}
	dir := t.TempDir()
	s := New(EmbeddedURL, WithStoreDir(dir))
	require.NoError(t, s.Init())
	doc, err := s.Create(context.Background(), "todos", storage.Fields{"name": "durable"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened := New(EmbeddedURL, WithStoreDir(dir))
	require.NoError(t, reopened.Load())
	defer reopened.Close()

	got, err := reopened.Get(context.Background(), "todos", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "durable", got.Fields.String("name"))
	assert.True(t, got.CreatedAt.Equal(doc.CreatedAt))
}
