// Package dashboard assembles the signed-in user's overview.
package dashboard

import (
	"context"
	"errors"

	"github.com/julianstephens/daybook/internal/forum"
	"github.com/julianstephens/daybook/internal/habits"
	"github.com/julianstephens/daybook/internal/journal"
	"github.com/julianstephens/daybook/internal/models"
	"github.com/julianstephens/daybook/internal/profile"
	"github.com/julianstephens/daybook/internal/storage"
	"github.com/julianstephens/daybook/internal/todos"
)

// RecentPosts is the number of forum posts shown.
const RecentPosts = 5

// Sources are the feature lists the dashboard reads. They should be scoped
// to the same identity.
type Sources struct {
	Store   storage.Provider
	Todos   *todos.List
	Habits  *habits.Tracker
	Journal *journal.Journal
	Forum   *forum.Service
}

type Summary struct {
	// Profile is nil until the user's profile document exists.
	Profile        *models.Profile `json:"profile"`
	Todos          todos.Counts    `json:"todos"`
	Habits         habits.Counts   `json:"habits"`
	JournalEntries int             `json:"journalEntries"`
	RecentPosts    []forum.View    `json:"recentPosts"`
}

// Build loads every source and summarises it. Sources that fail to load are
// reported together; the summary still carries whatever loaded.
func Build(ctx context.Context, src Sources, who models.Identity) (Summary, error) {
	var (
		s    Summary
		errs []error
	)

	p, err := profile.Get(ctx, src.Store, who.UID)
	if err != nil {
		errs = append(errs, err)
	}
	s.Profile = p

	if err := src.Todos.Load(ctx); err != nil {
		errs = append(errs, err)
	}
	s.Todos = todos.Breakdown(src.Todos.Items())

	if err := src.Habits.Load(ctx); err != nil {
		errs = append(errs, err)
	}
	s.Habits = habits.Breakdown(src.Habits.Items())

	if err := src.Journal.Load(ctx); err != nil {
		errs = append(errs, err)
	}
	s.JournalEntries = len(src.Journal.Items())

	if err := src.Forum.Load(ctx); err != nil {
		errs = append(errs, err)
	}
	posts := src.Forum.Items()
	if len(posts) > RecentPosts {
		posts = posts[:RecentPosts]
	}
	s.RecentPosts = make([]forum.View, len(posts))
	for i, post := range posts {
		s.RecentPosts[i] = src.Forum.Present(post, &who)
	}

	return s, errors.Join(errs...)
}
