package entries

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/daybook/internal/cli"
	"github.com/julianstephens/daybook/internal/journal"
	"github.com/julianstephens/daybook/internal/models"
	"github.com/julianstephens/daybook/internal/utils"
)

type JournalCmd struct {
	Write JournalWriteCmd `cmd:"" help:"Write a journal entry."`
	List  JournalListCmd  `cmd:"" help:"List journal entries, newest first." default:"1"`
	Show  JournalShowCmd  `cmd:"" help:"Show one entry."`
}

func open(ctx *cli.Context) (*journal.Journal, error) {
	who, err := ctx.Identity()
	if err != nil {
		return nil, err
	}
	j := journal.New(ctx.Store, who.UID, ctx.Metrics)
	if err := j.Load(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to load journal: %w", err)
	}
	return j, nil
}

type JournalWriteCmd struct {
	Title   string `short:"t" help:"Entry title."`
	Content string `short:"c" help:"Entry text (markdown). Prompted for when omitted."`
}

func (c *JournalWriteCmd) Run(ctx *cli.Context) error {
	j, err := open(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(c.Title) == "" || strings.TrimSpace(c.Content) == "" {
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().Title("Title").Value(&c.Title),
				huh.NewText().Title("Entry").Value(&c.Content),
			),
		)
		if err := form.Run(); err != nil {
			return err
		}
	}
	id, err := j.Write(context.Background(), c.Title, c.Content)
	if err != nil {
		return err
	}
	ctx.Printf("Saved entry: %s (ID: %s)\n", c.Title, cli.ShortID(id))
	return nil
}

type JournalListCmd struct {
	Date string `short:"d" help:"Only entries written on this day (YYYY-MM-DD)."`
}

func (c *JournalListCmd) Run(ctx *cli.Context) error {
	j, err := open(ctx)
	if err != nil {
		return err
	}
	loc := ctx.Location()
	items, err := journal.FilterByDate(j.Items(), c.Date, loc)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		ctx.Println("No journal entries")
		return nil
	}
	for _, e := range items {
		ctx.Printf("  %s  %s  %s\n", cli.ShortID(e.ID), utils.FormatDate(e.CreatedAt, loc), e.Title)
	}
	return nil
}

type JournalShowCmd struct {
	ID    string `arg:"" help:"Entry ID or prefix."`
	Width int    `help:"Wrap width." default:"80"`
}

func (c *JournalShowCmd) Run(ctx *cli.Context) error {
	j, err := open(ctx)
	if err != nil {
		return err
	}
	id, err := cli.ResolveID(cli.IDs(j.Items(), func(e models.JournalEntry) string { return e.ID }), c.ID)
	if err != nil {
		return err
	}
	e, err := j.Get(context.Background(), id)
	if err != nil {
		return err
	}
	ctx.Printf("%s\n%s\n\n", e.Title, utils.FormatDate(e.CreatedAt, ctx.Location()))
	ctx.Println(ctx.RenderMarkdown(e.Content, c.Width))
	return nil
}
