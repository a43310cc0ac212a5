package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/julianstephens/daybook/internal/dashboard"
	"github.com/julianstephens/daybook/internal/forum"
	"github.com/julianstephens/daybook/internal/habits"
	"github.com/julianstephens/daybook/internal/journal"
	"github.com/julianstephens/daybook/internal/metrics"
	"github.com/julianstephens/daybook/internal/models"
	"github.com/julianstephens/daybook/internal/perm"
	"github.com/julianstephens/daybook/internal/storage"
	"github.com/julianstephens/daybook/internal/todos"
	"github.com/julianstephens/daybook/internal/tui/components/habitlist"
	"github.com/julianstephens/daybook/internal/tui/components/journallist"
	"github.com/julianstephens/daybook/internal/tui/components/postlist"
	"github.com/julianstephens/daybook/internal/tui/components/todolist"
)

type SessionState int

// The first five states are tabs, in display order.
const (
	StateDashboard SessionState = iota
	StateTodos
	StateHabits
	StateJournal
	StateForum
	StateForm
	StateReadEntry
	StateReadPost
)

var tabTitles = []string{"Dashboard", "To-dos", "Habits", "Journal", "Forum"}

// formFields holds the values bound to the open huh form.
type formFields struct {
	Title   string
	Body    string
	Choice  string
	Confirm bool
}

type pendingForm struct {
	form   *huh.Form
	fields *formFields
	submit func(ctx context.Context, f *formFields) error
	back   SessionState
	// done is shown once submit succeeds.
	done    string
	confirm bool
}

type subscriptions struct {
	todos   <-chan []models.Task
	habits  <-chan []models.Habit
	journal <-chan []models.JournalEntry
	posts   <-chan []models.Post
	stop    []func()
}

type Model struct {
	ctx    context.Context
	cancel context.CancelFunc
	store  storage.Provider
	who    models.Identity
	loc    *time.Location

	todos   *todos.List
	habits  *habits.Tracker
	journal *journal.Journal
	forum   *forum.Service
	subs    *subscriptions

	state       SessionState
	keys        KeyMap
	help        help.Model
	todoList    todolist.Model
	habitList   habitlist.Model
	journalList journallist.Model
	postList    postlist.Model
	viewport    viewport.Model

	summary    dashboard.Summary
	posts      []models.Post
	openEntry  models.JournalEntry
	openPostID string
	pending    *pendingForm
	status     string
	quitting   bool
	width      int
	height     int

	// markdownStyle is a glamour standard style; empty detects the terminal.
	markdownStyle string
}

// NewModel builds the TUI for who. Every list follows the store live once
// the program starts.
func NewModel(store storage.Provider, who models.Identity, policy perm.Policy, m *metrics.Metrics, loc *time.Location) Model {
	if loc == nil {
		loc = time.Local
	}
	ctx, cancel := context.WithCancel(context.Background())

	model := Model{
		ctx:         ctx,
		cancel:      cancel,
		store:       store,
		who:         who,
		loc:         loc,
		todos:       todos.New(store, who.UID, m),
		habits:      habits.New(store, who.UID, m),
		journal:     journal.New(store, who.UID, m),
		forum:       forum.New(store, policy, m),
		state:       StateDashboard,
		keys:        DefaultKeyMap(),
		help:        help.New(),
		todoList:    todolist.New(nil, 0, 0),
		habitList:   habitlist.New(nil, 0, 0),
		journalList: journallist.New(nil, loc, 0, 0),
		postList:    postlist.New(nil, 0, 0),
		viewport:    viewport.New(0, 0),
	}

	subs := &subscriptions{}
	var stop func()
	subs.todos, stop = model.todos.Subscribe()
	subs.stop = append(subs.stop, stop)
	subs.habits, stop = model.habits.Subscribe()
	subs.stop = append(subs.stop, stop)
	subs.journal, stop = model.journal.Subscribe()
	subs.stop = append(subs.stop, stop)
	subs.posts, stop = model.forum.Subscribe()
	subs.stop = append(subs.stop, stop)
	model.subs = subs

	return model
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.buildSummary(),
		follow(m.ctx, m.todos.Watch),
		follow(m.ctx, m.habits.Watch),
		follow(m.ctx, m.journal.Watch),
		follow(m.ctx, m.forum.Watch),
		listen(m.ctx, m.subs.todos),
		listen(m.ctx, m.subs.habits),
		listen(m.ctx, m.subs.journal),
		listen(m.ctx, m.subs.posts),
	)
}

// Close stops the live subscriptions. It is safe to call more than once.
func (m Model) Close() {
	m.cancel()
	for _, stop := range m.subs.stop {
		stop()
	}
}

func (m Model) ShortHelp() []key.Binding {
	keys := []key.Binding{m.keys.Tab, m.keys.Quit, m.keys.Help}
	switch m.state {
	case StateReadEntry:
		keys = append(keys, m.keys.Back)
	case StateReadPost:
		keys = append(keys, m.keys.Back, m.keys.Like, m.keys.Comment)
		if v, ok := m.openPost(); ok {
			if v.CanDelete {
				keys = append(keys, m.keys.Delete)
			}
			if m.forum.Policy().CanDeleteComment(&m.who) && len(v.Comments) > 0 {
				keys = append(keys, m.keys.Uncomment)
			}
		}
	}
	return keys
}

func (m Model) FullHelp() [][]key.Binding {
	return m.keys.FullHelp()
}

// openPost presents the post being read from the latest snapshot.
func (m Model) openPost() (forum.View, bool) {
	for _, p := range m.posts {
		if p.ID == m.openPostID {
			return m.forum.Present(p, &m.who), true
		}
	}
	return forum.View{}, false
}

func (m Model) presentPosts() []forum.View {
	views := make([]forum.View, len(m.posts))
	for i, p := range m.posts {
		views[i] = m.forum.Present(p, &m.who)
	}
	return views
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	// Tabs, status line and help.
	h := height - 4
	if h < 1 {
		h = 1
	}
	m.todoList.SetSize(width, h)
	m.habitList.SetSize(width, h)
	m.journalList.SetSize(width, h)
	m.postList.SetSize(width, h)
	m.viewport.Width = width
	m.viewport.Height = h
	m.help.Width = width
}
