package tasks

import (
	"context"
	"fmt"

	"github.com/julianstephens/daybook/internal/cli"
	"github.com/julianstephens/daybook/internal/models"
	"github.com/julianstephens/daybook/internal/todos"
	"github.com/julianstephens/daybook/internal/utils"
)

type TodoCmd struct {
	Add    TodoAddCmd    `cmd:"" help:"Add a to-do."`
	List   TodoListCmd   `cmd:"" help:"List to-dos, newest first." default:"1"`
	Edit   TodoEditCmd   `cmd:"" help:"Rename a to-do."`
	Done   TodoDoneCmd   `cmd:"" help:"Toggle a to-do's completion."`
	Star   TodoStarCmd   `cmd:"" help:"Toggle a to-do's importance."`
	Delete TodoDeleteCmd `cmd:"" help:"Delete a to-do."`
}

// open loads the signed-in user's list.
func open(ctx *cli.Context) (*todos.List, error) {
	who, err := ctx.Identity()
	if err != nil {
		return nil, err
	}
	list := todos.New(ctx.Store, who.UID, ctx.Metrics)
	if err := list.Load(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to load to-dos: %w", err)
	}
	return list, nil
}

func resolve(list *todos.List, ref string) (string, error) {
	return cli.ResolveID(cli.IDs(list.Items(), func(t models.Task) string { return t.ID }), ref)
}

type TodoAddCmd struct {
	Name string `arg:"" help:"What needs doing."`
}

func (c *TodoAddCmd) Run(ctx *cli.Context) error {
	list, err := open(ctx)
	if err != nil {
		return err
	}
	id, err := list.Create(context.Background(), c.Name)
	if err != nil {
		return err
	}
	ctx.Printf("Added to-do: %s (ID: %s)\n", c.Name, cli.ShortID(id))
	return nil
}

type TodoListCmd struct {
	ShowIDs bool `help:"Show full IDs." name:"show-ids"`
}

func (c *TodoListCmd) Run(ctx *cli.Context) error {
	list, err := open(ctx)
	if err != nil {
		return err
	}
	items := list.Items()
	if len(items) == 0 {
		ctx.Println("No to-dos yet")
		return nil
	}

	for _, t := range items {
		check := "[ ]"
		if t.IsCompleted {
			check = "[x]"
		}
		star := " "
		if t.IsImportant {
			star = "*"
		}
		id := cli.ShortID(t.ID)
		if c.ShowIDs {
			id = t.ID
		}
		ctx.Printf("  %s %s %s  %s  (%s)\n", check, star, id, t.Name, utils.Ago(t.CreatedAt))
	}

	counts := todos.Breakdown(items)
	ctx.Printf("\n%d done, %d open, %d important\n", counts.Completed, counts.Incomplete, counts.Important)
	return nil
}

type TodoEditCmd struct {
	ID   string `arg:"" help:"To-do ID or prefix."`
	Name string `arg:"" help:"New name."`
}

func (c *TodoEditCmd) Run(ctx *cli.Context) error {
	list, err := open(ctx)
	if err != nil {
		return err
	}
	id, err := resolve(list, c.ID)
	if err != nil {
		return err
	}
	t, err := list.Rename(context.Background(), id, c.Name)
	if err != nil {
		return err
	}
	ctx.Printf("Renamed to-do: %s\n", t.Name)
	return nil
}

type TodoDoneCmd struct {
	ID string `arg:"" help:"To-do ID or prefix."`
}

func (c *TodoDoneCmd) Run(ctx *cli.Context) error {
	list, err := open(ctx)
	if err != nil {
		return err
	}
	id, err := resolve(list, c.ID)
	if err != nil {
		return err
	}
	t, err := list.ToggleComplete(context.Background(), id)
	if err != nil {
		return err
	}
	state := "open"
	if t.IsCompleted {
		state = "done"
	}
	ctx.Printf("%s: %s\n", t.Name, state)
	return nil
}

type TodoStarCmd struct {
	ID string `arg:"" help:"To-do ID or prefix."`
}

func (c *TodoStarCmd) Run(ctx *cli.Context) error {
	list, err := open(ctx)
	if err != nil {
		return err
	}
	id, err := resolve(list, c.ID)
	if err != nil {
		return err
	}
	t, err := list.ToggleImportant(context.Background(), id)
	if err != nil {
		return err
	}
	if t.IsImportant {
		ctx.Printf("Starred: %s\n", t.Name)
	} else {
		ctx.Printf("Unstarred: %s\n", t.Name)
	}
	return nil
}

type TodoDeleteCmd struct {
	ID string `arg:"" help:"To-do ID or prefix."`
}

func (c *TodoDeleteCmd) Run(ctx *cli.Context) error {
	list, err := open(ctx)
	if err != nil {
		return err
	}
	id, err := resolve(list, c.ID)
	if err != nil {
		return err
	}
	t, _ := list.Find(id)
	if err := list.Remove(context.Background(), id); err != nil {
		return fmt.Errorf("failed to delete to-do: %w", err)
	}
	ctx.Printf("Deleted to-do: %s (ID: %s)\n", t.Name, cli.ShortID(id))
	return nil
}
