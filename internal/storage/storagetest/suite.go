// Package storagetest holds the behaviour every storage.Provider must share.
// Backend packages run it from their own tests.
package storagetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/daybook/internal/storage"
)

// Factory returns a ready (initialized) provider. The suite closes it.
type Factory func(t *testing.T) storage.Provider

// Run executes the suite against providers built by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(*testing.T, storage.Provider)
	}{
		{"CreateAndGet", testCreateAndGet},
		{"GetMissing", testGetMissing},
		{"SetCreatesThenReplaces", testSetCreatesThenReplaces},
		{"UpdateMergesTopLevel", testUpdateMergesTopLevel},
		{"UpdateMissing", testUpdateMissing},
		{"UpdateRevisionPrecondition", testUpdateRevisionPrecondition},
		{"ConcurrentIncrementsWithRetry", testConcurrentIncrements},
		{"Delete", testDelete},
		{"ListFiltersOrdersLimits", testListFiltersOrdersLimits},
		{"ListArrayContains", testListArrayContains},
		{"CollectionsAreIsolated", testCollectionsIsolated},
		{"WatchDeliversChanges", testWatchDeliversChanges},
		{"WatchStopsOnCancel", testWatchStopsOnCancel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

func testCreateAndGet(t *testing.T, s storage.Provider) {
	ctx := context.Background()
	created, err := s.Create(ctx, "todos", storage.Fields{
		"name":        "water plants",
		"isCompleted": false,
		"createdAt":   storage.ServerTimestamp,
		"tags":        []string{"home"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.NotZero(t, created.Revision)
	assert.Equal(t, "todos", created.Collection)

	got, err := s.Get(ctx, "todos", created.ID)
	require.NoError(t, err)
	assert.Equal(t, "water plants", got.Fields.String("name"))
	assert.Equal(t, false, got.Fields["isCompleted"])
	assert.Equal(t, []string{"home"}, got.Fields.Strings("tags"))

	ts, err := storage.ParseTime(got.Fields.String("createdAt"))
	require.NoError(t, err, "server timestamp should be resolved")
	assert.WithinDuration(t, time.Now(), ts, time.Minute)
}

func testGetMissing(t *testing.T, s storage.Provider) {
	_, err := s.Get(context.Background(), "todos", "does-not-exist")
	assert.True(t, errors.Is(err, storage.ErrNotFound), "got %v", err)
}

func testSetCreatesThenReplaces(t *testing.T, s storage.Provider) {
	ctx := context.Background()
	first, err := s.Set(ctx, "users", "u1", storage.Fields{"displayName": "Ada", "email": "ada@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "u1", first.ID)

	second, err := s.Set(ctx, "users", "u1", storage.Fields{"displayName": "Ada L."})
	require.NoError(t, err)
	assert.Greater(t, second.Revision, first.Revision)
	assert.True(t, second.CreatedAt.Equal(first.CreatedAt), "replace keeps creation time")

	got, err := s.Get(ctx, "users", "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", got.Fields.String("displayName"))
	_, hasEmail := got.Fields["email"]
	assert.False(t, hasEmail, "Set replaces the whole document")
}

func testUpdateMergesTopLevel(t *testing.T, s storage.Provider) {
	ctx := context.Background()
	doc, err := s.Create(ctx, "todos", storage.Fields{"name": "a", "isImportant": false})
	require.NoError(t, err)

	updated, err := s.Update(ctx, "todos", doc.ID, storage.Fields{"isImportant": true})
	require.NoError(t, err)
	assert.Greater(t, updated.Revision, doc.Revision)
	assert.Equal(t, "a", updated.Fields.String("name"))
	assert.True(t, updated.Fields.Bool("isImportant"))

	got, err := s.Get(ctx, "todos", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.Revision, got.Revision)
	assert.True(t, got.Fields.Bool("isImportant"))
}

func testUpdateMissing(t *testing.T, s storage.Provider) {
	_, err := s.Update(context.Background(), "todos", "missing", storage.Fields{"name": "x"})
	assert.True(t, errors.Is(err, storage.ErrNotFound), "got %v", err)
}

func testUpdateRevisionPrecondition(t *testing.T, s storage.Provider) {
	ctx := context.Background()
	doc, err := s.Create(ctx, "habits", storage.Fields{"name": "run", "completed": false})
	require.NoError(t, err)

	_, err = s.Update(ctx, "habits", doc.ID, storage.Fields{"completed": true}, storage.IfRevision(doc.Revision))
	require.NoError(t, err)

	_, err = s.Update(ctx, "habits", doc.ID, storage.Fields{"completed": false}, storage.IfRevision(doc.Revision))
	assert.True(t, errors.Is(err, storage.ErrConflict), "stale revision should conflict, got %v", err)

	got, err := s.Get(ctx, "habits", doc.ID)
	require.NoError(t, err)
	assert.True(t, got.Fields.Bool("completed"))
}

func testConcurrentIncrements(t *testing.T, s storage.Provider) {
	ctx := context.Background()
	doc, err := s.Create(ctx, "counters", storage.Fields{"n": 0})
	require.NoError(t, err)

	const workers = 4
	const perWorker = 5
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				if err := increment(ctx, s, doc.ID); err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := s.Get(ctx, "counters", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(workers*perWorker), got.Fields["n"])
}

func increment(ctx context.Context, s storage.Provider, id string) error {
	for {
		cur, err := s.Get(ctx, "counters", id)
		if err != nil {
			return err
		}
		n, _ := cur.Fields["n"].(float64)
		_, err = s.Update(ctx, "counters", id, storage.Fields{"n": n + 1}, storage.IfRevision(cur.Revision))
		if errors.Is(err, storage.ErrConflict) {
			continue
		}
		return err
	}
}

func testDelete(t *testing.T, s storage.Provider) {
	ctx := context.Background()
	doc, err := s.Create(ctx, "todos", storage.Fields{"name": "gone"})
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "todos", doc.ID))
	_, err = s.Get(ctx, "todos", doc.ID)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
	assert.True(t, errors.Is(s.Delete(ctx, "todos", doc.ID), storage.ErrNotFound))
}

func testListFiltersOrdersLimits(t *testing.T, s storage.Provider) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, owner := range []string{"alice", "bob", "alice", "alice"} {
		_, err := s.Create(ctx, "todos", storage.Fields{
			"name":      string(rune('a' + i)),
			"ownerId":   owner,
			"timestamp": base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}

	q := storage.Collection("todos").
		Where("ownerId", storage.OpEqual, "alice").
		OrderBy("timestamp", true)
	docs, err := s.List(ctx, q)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "d", docs[0].Fields.String("name"))
	assert.Equal(t, "c", docs[1].Fields.String("name"))
	assert.Equal(t, "a", docs[2].Fields.String("name"))

	limited, err := s.List(ctx, q.WithLimit(1))
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "d", limited[0].Fields.String("name"))

	after, err := s.List(ctx, storage.Collection("todos").
		Where("timestamp", storage.OpGreaterEqual, base.Add(2*time.Hour)).
		OrderBy("timestamp", false))
	require.NoError(t, err)
	require.Len(t, after, 2)
	assert.Equal(t, "c", after[0].Fields.String("name"))

	_, err = s.List(ctx, storage.Query{})
	assert.True(t, errors.Is(err, storage.ErrInvalidQuery))
}

func testListArrayContains(t *testing.T, s storage.Provider) {
	ctx := context.Background()
	_, err := s.Create(ctx, "posts", storage.Fields{"title": "one", "likedBy": []string{"a@x.io", "b@x.io"}})
	require.NoError(t, err)
	_, err = s.Create(ctx, "posts", storage.Fields{"title": "two", "likedBy": []string{}})
	require.NoError(t, err)

	docs, err := s.List(ctx, storage.Collection("posts").Where("likedBy", storage.OpArrayContains, "b@x.io"))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "one", docs[0].Fields.String("title"))
}

func testCollectionsIsolated(t *testing.T, s storage.Provider) {
	ctx := context.Background()
	_, err := s.Create(ctx, "todos", storage.Fields{"name": "t"})
	require.NoError(t, err)

	docs, err := s.List(ctx, storage.Collection("habits"))
	require.NoError(t, err)
	assert.Empty(t, docs)
}

// nextMatching reads snapshots until one satisfies cond or the deadline passes.
func nextMatching(t *testing.T, ch <-chan storage.Snapshot, cond func(storage.Snapshot) bool) storage.Snapshot {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		select {
		case snap, ok := <-ch:
			require.True(t, ok, "watch channel closed early")
			require.NoError(t, snap.Err)
			if cond(snap) {
				return snap
			}
		case <-deadline:
			t.Fatal("timed out waiting for snapshot")
		}
	}
}

func testWatchDeliversChanges(t *testing.T, s storage.Provider) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := s.Create(ctx, "journalEntries", storage.Fields{"title": "first"})
	require.NoError(t, err)

	ch, err := s.Watch(ctx, storage.Collection("journalEntries"))
	require.NoError(t, err)

	nextMatching(t, ch, func(snap storage.Snapshot) bool { return len(snap.Documents) == 1 })

	second, err := s.Create(ctx, "journalEntries", storage.Fields{"title": "second"})
	require.NoError(t, err)
	nextMatching(t, ch, func(snap storage.Snapshot) bool { return len(snap.Documents) == 2 })

	require.NoError(t, s.Delete(ctx, "journalEntries", second.ID))
	nextMatching(t, ch, func(snap storage.Snapshot) bool { return len(snap.Documents) == 1 })
}

func testWatchStopsOnCancel(t *testing.T, s storage.Provider) {
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := s.Watch(ctx, storage.Collection("todos"))
	require.NoError(t, err)
	cancel()

	deadline := time.After(10 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("watch channel not closed after cancel")
		}
	}
}
