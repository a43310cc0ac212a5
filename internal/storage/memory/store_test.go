package memory

import (
	"context"
	"testing"
	"time"

	"github.com/julianstephens/daybook/internal/storage"
	"github.com/julianstephens/daybook/internal/storage/storagetest"
)

func TestConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Provider {
		return New()
	})
}

func TestServerTimestampUsesClock(t *testing.T) {
	fixed := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	s := New(WithClock(func() time.Time { return fixed }))

	doc, err := s.Create(context.Background(), "todos", storage.Fields{"timestamp": storage.ServerTimestamp})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if got := doc.Fields.String("timestamp"); got != storage.FormatTime(fixed) {
		t.Errorf("timestamp = %q, want %q", got, storage.FormatTime(fixed))
	}
	if !doc.CreatedAt.Equal(fixed) {
		t.Errorf("CreatedAt = %v, want %v", doc.CreatedAt, fixed)
	}
}

func TestReturnedDocumentsAreCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	doc, err := s.Create(ctx, "todos", storage.Fields{"name": "original"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	doc.Fields["name"] = "mutated"

	got, err := s.Get(ctx, "todos", doc.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Fields.String("name") != "original" {
		t.Errorf("store state leaked through returned document: %q", got.Fields.String("name"))
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().Create(ctx, "todos", storage.Fields{}); err == nil {
		t.Error("expected error for cancelled context")
	}
}
