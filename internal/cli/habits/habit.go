package habits

import (
	"context"
	"fmt"

	"github.com/julianstephens/daybook/internal/cli"
	tracker "github.com/julianstephens/daybook/internal/habits"
	"github.com/julianstephens/daybook/internal/models"
	"github.com/julianstephens/daybook/internal/utils"
)

type HabitCmd struct {
	Add    HabitAddCmd    `cmd:"" help:"Track a new habit."`
	List   HabitListCmd   `cmd:"" help:"List habits, newest first." default:"1"`
	Edit   HabitEditCmd   `cmd:"" help:"Rename a habit."`
	Done   HabitDoneCmd   `cmd:"" help:"Toggle whether a habit is done."`
	Delete HabitDeleteCmd `cmd:"" help:"Stop tracking a habit."`
}

func open(ctx *cli.Context) (*tracker.Tracker, error) {
	who, err := ctx.Identity()
	if err != nil {
		return nil, err
	}
	t := tracker.New(ctx.Store, who.UID, ctx.Metrics)
	if err := t.Load(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to load habits: %w", err)
	}
	return t, nil
}

func resolve(t *tracker.Tracker, ref string) (string, error) {
	return cli.ResolveID(cli.IDs(t.Items(), func(h models.Habit) string { return h.ID }), ref)
}

type HabitAddCmd struct {
	Name string `arg:"" help:"Habit name."`
}

func (c *HabitAddCmd) Run(ctx *cli.Context) error {
	t, err := open(ctx)
	if err != nil {
		return err
	}
	id, err := t.Create(context.Background(), c.Name)
	if err != nil {
		return err
	}
	ctx.Printf("Tracking habit: %s (ID: %s)\n", c.Name, cli.ShortID(id))
	return nil
}

type HabitListCmd struct{}

func (c *HabitListCmd) Run(ctx *cli.Context) error {
	t, err := open(ctx)
	if err != nil {
		return err
	}
	items := t.Items()
	if len(items) == 0 {
		ctx.Println("No habits tracked")
		return nil
	}
	for _, h := range items {
		check := "[ ]"
		if h.Completed {
			check = "[x]"
		}
		ctx.Printf("  %s %s  %s  (since %s)\n", check, cli.ShortID(h.ID), h.Name, utils.Ago(h.CreatedAt))
	}
	counts := tracker.Breakdown(items)
	ctx.Printf("\n%d of %d done\n", counts.Completed, counts.Total)
	return nil
}

type HabitEditCmd struct {
	ID   string `arg:"" help:"Habit ID or prefix."`
	Name string `arg:"" help:"New name."`
}

func (c *HabitEditCmd) Run(ctx *cli.Context) error {
	t, err := open(ctx)
	if err != nil {
		return err
	}
	id, err := resolve(t, c.ID)
	if err != nil {
		return err
	}
	h, err := t.Rename(context.Background(), id, c.Name)
	if err != nil {
		return err
	}
	ctx.Printf("Renamed habit: %s\n", h.Name)
	return nil
}

type HabitDoneCmd struct {
	ID string `arg:"" help:"Habit ID or prefix."`
}

func (c *HabitDoneCmd) Run(ctx *cli.Context) error {
	t, err := open(ctx)
	if err != nil {
		return err
	}
	id, err := resolve(t, c.ID)
	if err != nil {
		return err
	}
	h, err := t.ToggleDone(context.Background(), id)
	if err != nil {
		return err
	}
	if h.Completed {
		ctx.Printf("Done: %s\n", h.Name)
	} else {
		ctx.Printf("Not done: %s\n", h.Name)
	}
	return nil
}

type HabitDeleteCmd struct {
	ID string `arg:"" help:"Habit ID or prefix."`
}

func (c *HabitDeleteCmd) Run(ctx *cli.Context) error {
	t, err := open(ctx)
	if err != nil {
		return err
	}
	id, err := resolve(t, c.ID)
	if err != nil {
		return err
	}
	h, _ := t.Find(id)
	if err := t.Remove(context.Background(), id); err != nil {
		return fmt.Errorf("failed to delete habit: %w", err)
	}
	ctx.Printf("Deleted habit: %s\n", h.Name)
	return nil
}
