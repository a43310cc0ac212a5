package todolist

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/daybook/internal/models"
	"github.com/julianstephens/daybook/internal/utils"
)

type AddTodoMsg struct{}

type EditTodoMsg struct {
	Task models.Task
}

type ToggleTodoMsg struct {
	ID string
}

type StarTodoMsg struct {
	ID string
}

type DeleteTodoMsg struct {
	ID   string
	Name string
}

type Item struct {
	Task models.Task
}

func (i Item) Title() string {
	mark := "○ "
	if i.Task.IsCompleted {
		mark = "✓ "
	}
	if i.Task.IsImportant {
		return mark + "★ " + i.Task.Name
	}
	return mark + i.Task.Name
}

func (i Item) Description() string {
	return "added " + utils.Ago(i.Task.CreatedAt)
}

func (i Item) FilterValue() string { return i.Task.Name }

type KeyMap struct {
	Add    key.Binding
	Edit   key.Binding
	Toggle key.Binding
	Star   key.Binding
	Delete key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Add: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "add"),
		),
		Edit: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "rename"),
		),
		Toggle: key.NewBinding(
			key.WithKeys(" ", "x"),
			key.WithHelp("space", "done"),
		),
		Star: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "important"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "delete"),
		),
	}
}

type Model struct {
	list list.Model
	keys KeyMap
}

func New(tasks []models.Task, width, height int) Model {
	l := list.New(items(tasks), list.NewDefaultDelegate(), width, height)
	l.Title = "To-dos"
	l.SetShowTitle(false)
	l.SetShowHelp(false)

	keys := DefaultKeyMap()
	l.AdditionalShortHelpKeys = func() []key.Binding {
		return []key.Binding{keys.Add, keys.Toggle, keys.Star, keys.Edit, keys.Delete}
	}
	l.AdditionalFullHelpKeys = l.AdditionalShortHelpKeys

	return Model{list: l, keys: keys}
}

func items(tasks []models.Task) []list.Item {
	out := make([]list.Item, len(tasks))
	for i, t := range tasks {
		out[i] = Item{Task: t}
	}
	return out
}

// SetTasks replaces the list contents, keeping the cursor where it was.
func (m *Model) SetTasks(tasks []models.Task) {
	m.list.SetItems(items(tasks))
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && m.list.FilterState() != list.Filtering {
		if key.Matches(msg, m.keys.Add) {
			return m, func() tea.Msg { return AddTodoMsg{} }
		}
		if i, ok := m.list.SelectedItem().(Item); ok {
			switch {
			case key.Matches(msg, m.keys.Toggle):
				return m, func() tea.Msg { return ToggleTodoMsg{ID: i.Task.ID} }
			case key.Matches(msg, m.keys.Star):
				return m, func() tea.Msg { return StarTodoMsg{ID: i.Task.ID} }
			case key.Matches(msg, m.keys.Edit):
				return m, func() tea.Msg { return EditTodoMsg{Task: i.Task} }
			case key.Matches(msg, m.keys.Delete):
				return m, func() tea.Msg { return DeleteTodoMsg{ID: i.Task.ID, Name: i.Task.Name} }
			}
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if len(m.list.Items()) == 0 && m.list.FilterState() != list.Filtering {
		return "\n  No to-dos yet.\n  Press 'a' to add one."
	}
	return m.list.View()
}

func (m *Model) SetSize(width, height int) {
	m.list.SetSize(width, height)
}

// Filtering reports whether the filter prompt has focus.
func (m Model) Filtering() bool {
	return m.list.FilterState() == list.Filtering
}
