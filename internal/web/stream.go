package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/starfederation/datastar-go/datastar"

	"github.com/julianstephens/daybook/internal/constants"
	"github.com/julianstephens/daybook/internal/habits"
	"github.com/julianstephens/daybook/internal/journal"
	"github.com/julianstephens/daybook/internal/logger"
	"github.com/julianstephens/daybook/internal/models"
	"github.com/julianstephens/daybook/internal/todos"
)

// streamSnapshots follows a live list and patches it into the client's
// signals under key. Identical consecutive snapshots are sent once.
func streamSnapshots[T any](
	s *Server,
	w http.ResponseWriter,
	r *http.Request,
	key string,
	subscribe func() (<-chan []T, func()),
	watch func(context.Context) error,
	render func([]T) (any, error),
) {
	sse := datastar.NewSSE(w, r)
	s.cfg.Metrics.StreamOpened()
	defer s.cfg.Metrics.StreamClosed()

	ctx, cancel := context.WithCancel(sse.Context())
	defer cancel()

	ch, unsubscribe := subscribe()
	defer unsubscribe()

	watchErr := make(chan error, 1)
	go func() { watchErr <- watch(ctx) }()

	keepAlive := time.NewTicker(constants.SSEKeepAlive)
	defer keepAlive.Stop()

	last := ""
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-watchErr:
			if err != nil {
				logger.Warn("snapshot stream ended", "stream", key, "error", err)
				_ = sse.ExecuteScript(fmt.Sprintf(`console.error(%q)`, err.Error()))
			}
			return
		case <-keepAlive.C:
			_ = sse.PatchSignals([]byte(`{}`))
		case items := <-ch:
			v, err := render(items)
			if err != nil {
				_ = sse.ExecuteScript(fmt.Sprintf(`console.error(%q)`, err.Error()))
				continue
			}
			body, err := json.Marshal(map[string]any{key: v})
			if err != nil {
				continue
			}
			fp := fingerprint(body)
			if fp == last {
				continue
			}
			last = fp
			if err := sse.PatchSignals(body); err != nil {
				return
			}
			s.cfg.Metrics.SnapshotPushed(key)
		}
	}
}

func (s *Server) handleTodoEvents(w http.ResponseWriter, r *http.Request) {
	list := s.todos(r)
	streamSnapshots(s, w, r, "todos", list.Subscribe, list.Watch, func(items []models.Task) (any, error) {
		return map[string]any{"items": items, "counts": todos.Breakdown(items)}, nil
	})
}

func (s *Server) handleHabitEvents(w http.ResponseWriter, r *http.Request) {
	t := s.habits(r)
	streamSnapshots(s, w, r, "habits", t.Subscribe, t.Watch, func(items []models.Habit) (any, error) {
		return map[string]any{"items": items, "counts": habits.Breakdown(items)}, nil
	})
}

func (s *Server) handleJournalEvents(w http.ResponseWriter, r *http.Request) {
	j := s.journal(r)
	date := r.URL.Query().Get("date")
	if _, err := journal.FilterByDate(nil, date, s.cfg.Location); err != nil {
		writeError(w, err)
		return
	}
	streamSnapshots(s, w, r, "journal", j.Subscribe, j.Watch, func(items []models.JournalEntry) (any, error) {
		entries, err := journal.FilterByDate(items, date, s.cfg.Location)
		if err != nil {
			return nil, err
		}
		return map[string]any{"items": presentEntries(entries)}, nil
	})
}

func (s *Server) handlePostEvents(w http.ResponseWriter, r *http.Request) {
	f := s.forum()
	viewer := identity(r)
	streamSnapshots(s, w, r, "posts", f.Subscribe, f.Watch, func(items []models.Post) (any, error) {
		return map[string]any{"items": presentPosts(f, items, viewer)}, nil
	})
}
