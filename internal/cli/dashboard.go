package cli

import (
	"context"

	"github.com/julianstephens/daybook/internal/dashboard"
	"github.com/julianstephens/daybook/internal/forum"
	"github.com/julianstephens/daybook/internal/habits"
	"github.com/julianstephens/daybook/internal/journal"
	"github.com/julianstephens/daybook/internal/logger"
	"github.com/julianstephens/daybook/internal/todos"
	"github.com/julianstephens/daybook/internal/utils"
)

type DashboardCmd struct{}

func (c *DashboardCmd) Run(ctx *Context) error {
	who, err := ctx.Identity()
	if err != nil {
		return err
	}
	s, err := dashboard.Build(context.Background(), dashboard.Sources{
		Store:   ctx.Store,
		Todos:   todos.New(ctx.Store, who.UID, ctx.Metrics),
		Habits:  habits.New(ctx.Store, who.UID, ctx.Metrics),
		Journal: journal.New(ctx.Store, who.UID, ctx.Metrics),
		Forum:   forum.New(ctx.Store, ctx.Policy(), ctx.Metrics),
	}, *who)
	if err != nil {
		// Show whatever loaded.
		logger.Warn("dashboard is incomplete", "error", err)
		ctx.Printf("Some sections failed to load: %v\n\n", err)
	}

	name := who.AuthorName()
	if s.Profile != nil && s.Profile.DisplayName != "" {
		name = s.Profile.DisplayName
	}
	ctx.Printf("Welcome, %s\n\n", name)
	ctx.Printf("To-dos:   %d done, %d open (%d important)\n", s.Todos.Completed, s.Todos.Incomplete, s.Todos.Important)
	ctx.Printf("Habits:   %d of %d done\n", s.Habits.Completed, s.Habits.Total)
	ctx.Printf("Journal:  %d entries\n", s.JournalEntries)
	if len(s.RecentPosts) > 0 {
		ctx.Println("\nRecent posts:")
		for _, p := range s.RecentPosts {
			ctx.Printf("  %s  %s  by %s, %s\n", ShortID(p.ID), p.Title, p.Author, utils.Ago(p.CreatedAt))
		}
	}
	return nil
}
