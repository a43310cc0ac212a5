package postlist

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/julianstephens/daybook/internal/forum"
	"github.com/julianstephens/daybook/internal/utils"
)

type NewPostMsg struct{}

type OpenPostMsg struct {
	ID string
}

type LikePostMsg struct {
	ID string
}

type Item struct {
	View forum.View
}

func (i Item) Title() string {
	if i.View.LikedByViewer {
		return "♥ " + i.View.Title
	}
	return i.View.Title
}

func (i Item) Description() string {
	author := i.View.Author
	if i.View.AuthorIsAdmin {
		author += " (admin)"
	}
	return fmt.Sprintf("%s · %s · %s likes · %s comments",
		author,
		utils.Ago(i.View.CreatedAt),
		humanize.Comma(int64(i.View.LikeCount)),
		humanize.Comma(int64(len(i.View.Comments))))
}

func (i Item) FilterValue() string { return i.View.Title + " " + i.View.Author }

type KeyMap struct {
	New  key.Binding
	Open key.Binding
	Like key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		New: key.NewBinding(
			key.WithKeys("a", "n"),
			key.WithHelp("a", "new post"),
		),
		Open: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "read"),
		),
		Like: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "like"),
		),
	}
}

type Model struct {
	list list.Model
	keys KeyMap
}

func New(posts []forum.View, width, height int) Model {
	l := list.New(items(posts), list.NewDefaultDelegate(), width, height)
	l.Title = "Forum"
	l.SetShowTitle(false)
	l.SetShowHelp(false)

	keys := DefaultKeyMap()
	l.AdditionalShortHelpKeys = func() []key.Binding {
		return []key.Binding{keys.New, keys.Open, keys.Like}
	}
	l.AdditionalFullHelpKeys = l.AdditionalShortHelpKeys

	return Model{list: l, keys: keys}
}

func items(posts []forum.View) []list.Item {
	out := make([]list.Item, len(posts))
	for i, p := range posts {
		out[i] = Item{View: p}
	}
	return out
}

func (m *Model) SetPosts(posts []forum.View) {
	m.list.SetItems(items(posts))
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && m.list.FilterState() != list.Filtering {
		if key.Matches(msg, m.keys.New) {
			return m, func() tea.Msg { return NewPostMsg{} }
		}
		if i, ok := m.list.SelectedItem().(Item); ok {
			switch {
			case key.Matches(msg, m.keys.Open):
				return m, func() tea.Msg { return OpenPostMsg{ID: i.View.ID} }
			case key.Matches(msg, m.keys.Like):
				return m, func() tea.Msg { return LikePostMsg{ID: i.View.ID} }
			}
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if len(m.list.Items()) == 0 && m.list.FilterState() != list.Filtering {
		return "\n  No posts yet.\n  Press 'a' to start a discussion."
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
