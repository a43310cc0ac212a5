// Package journal binds the journal to the "journalEntries" collection.
// Entries are immutable once written.
package journal

import (
	"context"
	"time"

	"github.com/julianstephens/daybook/internal/constants"
	"github.com/julianstephens/daybook/internal/entitylist"
	"github.com/julianstephens/daybook/internal/metrics"
	"github.com/julianstephens/daybook/internal/models"
	"github.com/julianstephens/daybook/internal/storage"
	"github.com/julianstephens/daybook/internal/validation"
)

// Journal exposes only the read and append operations of its controller.
type Journal struct {
	ctl *entitylist.Controller[models.JournalEntry]
}

func New(store storage.Provider, ownerID string, m *metrics.Metrics) *Journal {
	return &Journal{ctl: entitylist.New(store, entitylist.Config[models.JournalEntry]{
		Collection: constants.CollectionJournal,
		Owner:      ownerID,
		Required:   []string{constants.FieldTitle, constants.FieldContent},
		Defaults: func() storage.Fields {
			return storage.Fields{constants.FieldCreatedAt: storage.ServerTimestamp}
		},
		ID:      func(e models.JournalEntry) string { return e.ID },
		Metrics: m,
	})}
}

// Write stores a new entry stamped with the store's clock.
func (j *Journal) Write(ctx context.Context, title, content string) (string, error) {
	return j.ctl.Add(ctx, storage.Fields{
		constants.FieldTitle:   title,
		constants.FieldContent: content,
	})
}

func (j *Journal) Load(ctx context.Context) error { return j.ctl.Load(ctx) }

func (j *Journal) Items() []models.JournalEntry { return j.ctl.Items() }

func (j *Journal) Get(ctx context.Context, id string) (models.JournalEntry, error) {
	return j.ctl.Get(ctx, id)
}

func (j *Journal) Subscribe() (<-chan []models.JournalEntry, func()) { return j.ctl.Subscribe() }

func (j *Journal) Watch(ctx context.Context) error { return j.ctl.Watch(ctx) }

func (j *Journal) Query() storage.Query { return j.ctl.Query() }

// FilterByDate returns the entries whose createdAt falls on date (YYYY-MM-DD)
// in loc. An empty date returns entries unchanged.
func FilterByDate(entries []models.JournalEntry, date string, loc *time.Location) ([]models.JournalEntry, error) {
	if date == "" {
		return entries, nil
	}
	day, err := validation.ParseDate(date, loc)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}
	y, m, d := day.Date()

	out := make([]models.JournalEntry, 0, len(entries))
	for _, e := range entries {
		ey, em, ed := e.CreatedAt.In(loc).Date()
		if ey == y && em == m && ed == d {
			out = append(out, e)
		}
	}
	return out, nil
}
