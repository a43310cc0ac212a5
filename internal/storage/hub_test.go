package storage

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type countingLister struct {
	calls atomic.Int32
}

func (l *countingLister) List(ctx context.Context, q Query) ([]Document, error) {
	n := l.calls.Add(1)
	docs := make([]Document, n)
	return docs, nil
}

func TestHubCoalescesNotifications(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe("todos")
	defer cancel()

	h.Publish("todos")
	h.Publish("todos")
	h.Publish("habits")

	select {
	case <-ch:
	default:
		t.Fatal("expected a notification")
	}
	select {
	case <-ch:
		t.Fatal("notifications should coalesce")
	default:
	}
}

func TestHubUnsubscribe(t *testing.T) {
	h := NewHub()
	_, cancel := h.Subscribe("todos")
	if got := h.Watched(); len(got) != 1 || got[0] != "todos" {
		t.Fatalf("Watched() = %v", got)
	}
	cancel()
	cancel()
	if got := h.Watched(); len(got) != 0 {
		t.Errorf("Watched() after cancel = %v", got)
	}
}

func TestPublishAllWakesEveryCollection(t *testing.T) {
	h := NewHub()
	a, ca := h.Subscribe("todos")
	b, cb := h.Subscribe("posts")
	defer ca()
	defer cb()

	h.PublishAll()
	for _, ch := range []<-chan struct{}{a, b} {
		select {
		case <-ch:
		default:
			t.Error("expected every subscriber to be woken")
		}
	}
}

func TestWatchQueryRelistsOnPublish(t *testing.T) {
	h := NewHub()
	l := &countingLister{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := WatchQuery(ctx, l, h, Collection("todos"))
	if err != nil {
		t.Fatalf("WatchQuery failed: %v", err)
	}

	first := <-ch
	if len(first.Documents) != 1 {
		t.Fatalf("initial snapshot has %d docs", len(first.Documents))
	}

	h.Publish("todos")
	select {
	case snap := <-ch:
		if len(snap.Documents) < 2 {
			t.Errorf("expected a fresh listing, got %d docs", len(snap.Documents))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no snapshot after publish")
	}
}

func TestWatchQueryRejectsInvalidQuery(t *testing.T) {
	if _, err := WatchQuery(context.Background(), &countingLister{}, NewHub(), Query{}); err == nil {
		t.Error("expected error for invalid query")
	}
}

func TestDeliverLatestReplacesStaleSnapshot(t *testing.T) {
	out := make(chan Snapshot, 1)
	ctx := context.Background()
	DeliverLatest(ctx, out, Snapshot{Documents: make([]Document, 1)})
	DeliverLatest(ctx, out, Snapshot{Documents: make([]Document, 2)})

	if got := <-out; len(got.Documents) != 2 {
		t.Errorf("expected latest snapshot, got %d docs", len(got.Documents))
	}
}
