package journallist

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/daybook/internal/models"
	"github.com/julianstephens/daybook/internal/utils"
)

type WriteEntryMsg struct{}

type OpenEntryMsg struct {
	Entry models.JournalEntry
}

type Item struct {
	Entry models.JournalEntry
	loc   *time.Location
}

func (i Item) Title() string { return i.Entry.Title }

func (i Item) Description() string {
	return utils.FormatDate(i.Entry.CreatedAt, i.loc) + " · " + utils.Ago(i.Entry.CreatedAt)
}

func (i Item) FilterValue() string { return i.Entry.Title + " " + utils.FormatDate(i.Entry.CreatedAt, i.loc) }

type KeyMap struct {
	Write key.Binding
	Open  key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Write: key.NewBinding(
			key.WithKeys("a", "w"),
			key.WithHelp("a", "write"),
		),
		Open: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "read"),
		),
	}
}

type Model struct {
	list list.Model
	keys KeyMap
	loc  *time.Location
}

// New builds the list; dates are shown in loc.
func New(entries []models.JournalEntry, loc *time.Location, width, height int) Model {
	if loc == nil {
		loc = time.Local
	}
	m := Model{keys: DefaultKeyMap(), loc: loc}
	l := list.New(m.items(entries), list.NewDefaultDelegate(), width, height)
	l.Title = "Journal"
	l.SetShowTitle(false)
	l.SetShowHelp(false)
	keys := m.keys
	l.AdditionalShortHelpKeys = func() []key.Binding {
		return []key.Binding{keys.Write, keys.Open}
	}
	l.AdditionalFullHelpKeys = l.AdditionalShortHelpKeys
	m.list = l
	return m
}

func (m Model) items(entries []models.JournalEntry) []list.Item {
	out := make([]list.Item, len(entries))
	for i, e := range entries {
		out[i] = Item{Entry: e, loc: m.loc}
	}
	return out
}

func (m *Model) SetEntries(entries []models.JournalEntry) {
	m.list.SetItems(m.items(entries))
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && m.list.FilterState() != list.Filtering {
		switch {
		case key.Matches(msg, m.keys.Write):
			return m, func() tea.Msg { return WriteEntryMsg{} }
		case key.Matches(msg, m.keys.Open):
			if i, ok := m.list.SelectedItem().(Item); ok {
				return m, func() tea.Msg { return OpenEntryMsg{Entry: i.Entry} }
			}
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if len(m.list.Items()) == 0 && m.list.FilterState() != list.Filtering {
		return "\n  No journal entries yet.\n  Press 'a' to write one."
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
