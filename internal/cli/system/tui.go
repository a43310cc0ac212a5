package system

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/daybook/internal/cli"
	"github.com/julianstephens/daybook/internal/tui"
)

type TuiCmd struct{}

func (c *TuiCmd) Run(ctx *cli.Context) error {
	who, err := ctx.Identity()
	if err != nil {
		return err
	}

	// Perform automatic backup on TUI startup
	ctx.PerformAutomaticBackup()

	model := tui.NewModel(ctx.Store, *who, ctx.Policy(), ctx.Metrics, ctx.Location())
	defer model.Close()

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("alas, there's been an error: %w", err)
	}
	return nil
}
