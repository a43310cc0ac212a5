package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/daybook/internal/dashboard"
	"github.com/julianstephens/daybook/internal/logger"
)

// snapshotMsg carries the latest contents of one list.
type snapshotMsg[T any] struct {
	items []T
}

type summaryMsg struct {
	summary dashboard.Summary
	err     error
}

type errMsg struct {
	err error
}

type statusMsg string

// listen waits for the next list published on ch. The handler re-arms it.
func listen[T any](ctx context.Context, ch <-chan []T) tea.Cmd {
	return func() tea.Msg {
		select {
		case items := <-ch:
			return snapshotMsg[T]{items: items}
		case <-ctx.Done():
			return nil
		}
	}
}

// follow runs a blocking Watch for the life of the program.
func follow(ctx context.Context, watch func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		if err := watch(ctx); err != nil {
			logger.Warn("live updates stopped", "error", err)
			return errMsg{err: err}
		}
		return nil
	}
}

func (m Model) buildSummary() tea.Cmd {
	ctx := m.ctx
	src := dashboard.Sources{
		Store:   m.store,
		Todos:   m.todos,
		Habits:  m.habits,
		Journal: m.journal,
		Forum:   m.forum,
	}
	who := m.who
	return func() tea.Msg {
		s, err := dashboard.Build(ctx, src, who)
		return summaryMsg{summary: s, err: err}
	}
}

// run performs fn off the UI goroutine. Lists refresh through their
// subscriptions, so success only updates the status line.
func (m Model) run(status string, fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		if err := fn(ctx); err != nil {
			return errMsg{err: err}
		}
		return statusMsg(status)
	}
}
