package tui

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/daybook/internal/dashboard"
	"github.com/julianstephens/daybook/internal/models"
	"github.com/julianstephens/daybook/internal/perm"
	"github.com/julianstephens/daybook/internal/storage/memory"
	"github.com/julianstephens/daybook/internal/tui/components/journallist"
	"github.com/julianstephens/daybook/internal/tui/components/postlist"
	"github.com/julianstephens/daybook/internal/tui/components/todolist"
)

var ada = models.Identity{UID: "uid-ada", Email: "ada@example.com", DisplayName: "Ada"}

func newTestModel(t *testing.T) Model {
	t.Helper()
	m := NewModel(memory.New(), ada, perm.Policy{AdminEmail: "admin@example.com"}, nil, time.UTC)
	m.markdownStyle = "notty"
	t.Cleanup(m.Close)
	return sized(t, m)
}

func sized(t *testing.T, m Model) Model {
	t.Helper()
	return update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	return model
}

func updateCmd(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	return model, cmd
}

func TestTabsCycle(t *testing.T) {
	m := newTestModel(t)
	assert.Equal(t, StateDashboard, m.state)

	m = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, StateTodos, m.state)

	m = update(t, m, tea.KeyMsg{Type: tea.KeyShiftTab})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, StateForum, m.state)
}

func TestSnapshotsFeedListsAndDashboard(t *testing.T) {
	m := newTestModel(t)
	now := time.Now()

	m = update(t, m, snapshotMsg[models.Task]{items: []models.Task{
		{ID: "t1", Name: "Water plants", CreatedAt: now},
		{ID: "t2", Name: "File taxes", IsCompleted: true, IsImportant: true, CreatedAt: now},
	}})
	m = update(t, m, snapshotMsg[models.Habit]{items: []models.Habit{{ID: "h1", Name: "Stretch"}}})
	m = update(t, m, summaryMsg{summary: dashboardWithProfile("Ada L.")})

	assert.Equal(t, 1, m.summary.Todos.Completed)
	assert.Equal(t, 1, m.summary.Todos.Important)
	assert.Equal(t, 1, m.summary.Habits.Total)

	view := m.View()
	assert.Contains(t, view, "Welcome, Ada L.")
	assert.Contains(t, view, "1 done, 1 open (1 important)")
	assert.Contains(t, view, "0 of 1 done")

	m = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Contains(t, m.View(), "Water plants")
}

func TestToggleRunsAgainstStore(t *testing.T) {
	ctx := context.Background()
	m := newTestModel(t)
	id, err := m.todos.Create(ctx, "Water plants")
	require.NoError(t, err)

	m, cmd := updateCmd(t, m, todolist.ToggleTodoMsg{ID: id})
	require.NotNil(t, cmd)
	assert.Equal(t, statusMsg(""), cmd())

	task, err := m.todos.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, task.IsCompleted)

	_, cmd = updateCmd(t, m, todolist.ToggleTodoMsg{ID: "missing"})
	_, isErr := cmd().(errMsg)
	assert.True(t, isErr)
}

func TestAddFormSubmitsAndReturns(t *testing.T) {
	ctx := context.Background()
	m := newTestModel(t)
	m = update(t, m, tea.KeyMsg{Type: tea.KeyTab})

	m = update(t, m, todolist.AddTodoMsg{})
	require.Equal(t, StateForm, m.state)
	require.NotNil(t, m.pending)
	assert.Equal(t, StateTodos, m.pending.back)
	assert.Equal(t, StateTodos, m.activeTab())

	require.NoError(t, m.pending.submit(ctx, &formFields{Title: "Call mum"}))
	require.NoError(t, m.todos.Load(ctx))
	require.Len(t, m.todos.Items(), 1)
	assert.Equal(t, "Call mum", m.todos.Items()[0].Name)

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, StateTodos, m.state)
	assert.Nil(t, m.pending)
}

func TestDeleteNeedsConfirmation(t *testing.T) {
	ctx := context.Background()
	m := newTestModel(t)
	id, err := m.todos.Create(ctx, "Old")
	require.NoError(t, err)

	m = update(t, m, todolist.DeleteTodoMsg{ID: id, Name: "Old"})
	require.NotNil(t, m.pending)
	assert.True(t, m.pending.confirm)

	require.NoError(t, m.pending.submit(ctx, &formFields{Confirm: false}))
	_, err = m.todos.Get(ctx, id)
	require.NoError(t, err)

	require.NoError(t, m.pending.submit(ctx, &formFields{Confirm: true}))
	_, err = m.todos.Get(ctx, id)
	assert.Error(t, err)
}

func TestReadPostFollowsSnapshots(t *testing.T) {
	ctx := context.Background()
	m := newTestModel(t)
	id, err := m.forum.Publish(ctx, &ada, "Hello", "First **post**")
	require.NoError(t, err)
	require.NoError(t, m.forum.Load(ctx))

	m = update(t, m, snapshotMsg[models.Post]{items: m.forum.Items()})
	m = update(t, m, postlist.OpenPostMsg{ID: id})
	require.Equal(t, StateReadPost, m.state)
	assert.Contains(t, m.View(), "Hello")
	assert.Contains(t, m.View(), "Comments (0)")

	// Like from the reader.
	m, cmd := updateCmd(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("l")})
	require.NotNil(t, cmd)
	assert.Equal(t, statusMsg(""), cmd())
	post, err := m.forum.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, post.LikeCount())

	// The post disappears from the next snapshot.
	m = update(t, m, snapshotMsg[models.Post]{items: nil})
	assert.Equal(t, StateForum, m.state)
	assert.Equal(t, "The post was deleted", m.status)
}

func TestOnlyAuthorsSeeDeleteKey(t *testing.T) {
	ctx := context.Background()
	m := newTestModel(t)
	bob := models.Identity{UID: "uid-bob", Email: "bob@example.com"}
	id, err := m.forum.Publish(ctx, &bob, "Bob's", "post")
	require.NoError(t, err)
	require.NoError(t, m.forum.Load(ctx))

	m = update(t, m, snapshotMsg[models.Post]{items: m.forum.Items()})
	m = update(t, m, postlist.OpenPostMsg{ID: id})

	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")})
	assert.Nil(t, m.pending)
	assert.Equal(t, StateReadPost, m.state)
}

func TestReadEntryAndBack(t *testing.T) {
	m := newTestModel(t)
	entry := models.JournalEntry{
		ID:        "j1",
		Title:     "Rainy day",
		Content:   "Stayed in and read.",
		CreatedAt: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}
	m = update(t, m, journallist.OpenEntryMsg{Entry: entry})
	require.Equal(t, StateReadEntry, m.state)
	view := m.View()
	assert.Contains(t, view, "Rainy day")
	assert.Contains(t, view, "2026-03-14")

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, StateJournal, m.state)
}

func TestListenStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan []models.Task, 1)
	ch <- []models.Task{{ID: "t1"}}

	msg := listen(ctx, ch)()
	snap, ok := msg.(snapshotMsg[models.Task])
	require.True(t, ok)
	assert.Len(t, snap.items, 1)

	cancel()
	assert.Nil(t, listen(ctx, ch)())
}

func TestQuitClosesSubscriptions(t *testing.T) {
	m := newTestModel(t)
	m, cmd := updateCmd(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	assert.True(t, m.quitting)
	assert.Equal(t, "", m.View())
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Error(t, m.ctx.Err())
}

func dashboardWithProfile(name string) dashboard.Summary {
	return dashboard.Summary{Profile: &models.Profile{ID: ada.UID, Email: ada.Email, DisplayName: name}}
}
