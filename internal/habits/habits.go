// Package habits binds the habit tracker to the "habits" collection.
package habits

import (
	"context"
	"time"

	"github.com/julianstephens/daybook/internal/constants"
	"github.com/julianstephens/daybook/internal/entitylist"
	"github.com/julianstephens/daybook/internal/metrics"
	"github.com/julianstephens/daybook/internal/models"
	"github.com/julianstephens/daybook/internal/storage"
)

type Tracker struct {
	*entitylist.Controller[models.Habit]
	now func() time.Time
}

type Option func(*Tracker)

// WithClock sets the clock used for createdAt.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

func New(store storage.Provider, ownerID string, m *metrics.Metrics, opts ...Option) *Tracker {
	t := &Tracker{now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	t.Controller = entitylist.New(store, entitylist.Config[models.Habit]{
		Collection: constants.CollectionHabits,
		Owner:      ownerID,
		Required:   []string{constants.FieldName},
		Toggleable: []string{constants.FieldCompleted},
		Defaults: func() storage.Fields {
			return storage.Fields{
				constants.FieldCompleted: false,
				constants.FieldCreatedAt: t.now(),
			}
		},
		ID:      func(h models.Habit) string { return h.ID },
		Metrics: m,
	})
	return t
}

func (t *Tracker) Create(ctx context.Context, name string) (string, error) {
	return t.Add(ctx, storage.Fields{constants.FieldName: name})
}

// Rename rejects an empty name without writing.
func (t *Tracker) Rename(ctx context.Context, id, name string) (models.Habit, error) {
	return t.Update(ctx, id, storage.Fields{constants.FieldName: name})
}

func (t *Tracker) ToggleDone(ctx context.Context, id string) (models.Habit, error) {
	return t.Toggle(ctx, id, constants.FieldCompleted)
}

// Counts is the completion breakdown shown on the dashboard.
type Counts struct {
	Completed  int `json:"completed"`
	Incomplete int `json:"incomplete"`
	Total      int `json:"total"`
}

func Breakdown(items []models.Habit) Counts {
	c := Counts{Total: len(items)}
	for _, h := range items {
		if h.Completed {
			c.Completed++
		} else {
			c.Incomplete++
		}
	}
	return c
}
