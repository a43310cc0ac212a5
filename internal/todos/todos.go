// Package todos binds the to-do list to the "todos" collection.
package todos

import (
	"context"
	"time"

	"github.com/julianstephens/daybook/internal/constants"
	"github.com/julianstephens/daybook/internal/entitylist"
	"github.com/julianstephens/daybook/internal/metrics"
	"github.com/julianstephens/daybook/internal/models"
	"github.com/julianstephens/daybook/internal/storage"
)

// List is the signed-in user's to-do list.
type List struct {
	*entitylist.Controller[models.Task]
	now func() time.Time
}

// Option configures a List.
type Option func(*List)

// WithClock sets the clock used for createdAt.
func WithClock(now func() time.Time) Option {
	return func(l *List) { l.now = now }
}

func New(store storage.Provider, ownerID string, m *metrics.Metrics, opts ...Option) *List {
	l := &List{now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	l.Controller = entitylist.New(store, entitylist.Config[models.Task]{
		Collection: constants.CollectionTodos,
		Owner:      ownerID,
		Required:   []string{constants.FieldName},
		Toggleable: []string{constants.FieldIsCompleted, constants.FieldIsImportant},
		Defaults: func() storage.Fields {
			return storage.Fields{
				constants.FieldIsCompleted: false,
				constants.FieldIsImportant: false,
				constants.FieldCreatedAt:   l.now(),
			}
		},
		ID:      func(t models.Task) string { return t.ID },
		Metrics: m,
	})
	return l
}

// Create adds an open, unstarred task.
func (l *List) Create(ctx context.Context, name string) (string, error) {
	return l.Add(ctx, storage.Fields{constants.FieldName: name})
}

func (l *List) Rename(ctx context.Context, id, name string) (models.Task, error) {
	return l.Update(ctx, id, storage.Fields{constants.FieldName: name})
}

func (l *List) ToggleComplete(ctx context.Context, id string) (models.Task, error) {
	return l.Toggle(ctx, id, constants.FieldIsCompleted)
}

func (l *List) ToggleImportant(ctx context.Context, id string) (models.Task, error) {
	return l.Toggle(ctx, id, constants.FieldIsImportant)
}

// Counts is the completion breakdown shown on the dashboard.
type Counts struct {
	Completed  int `json:"completed"`
	Incomplete int `json:"incomplete"`
	Important  int `json:"important"`
	Total      int `json:"total"`
}

// Breakdown counts tasks by state.
func Breakdown(items []models.Task) Counts {
	c := Counts{Total: len(items)}
	for _, t := range items {
		if t.IsCompleted {
			c.Completed++
		} else {
			c.Incomplete++
		}
		if t.IsImportant {
			c.Important++
		}
	}
	return c
}
