package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/huh"

	"github.com/julianstephens/daybook/internal/dashboard"
	"github.com/julianstephens/daybook/internal/habits"
	"github.com/julianstephens/daybook/internal/models"
	"github.com/julianstephens/daybook/internal/todos"
	"github.com/julianstephens/daybook/internal/tui/components/habitlist"
	"github.com/julianstephens/daybook/internal/tui/components/journallist"
	"github.com/julianstephens/daybook/internal/tui/components/postlist"
	"github.com/julianstephens/daybook/internal/tui/components/todolist"
	"github.com/julianstephens/daybook/internal/utils"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.refreshReader()
		return m, nil

	case snapshotMsg[models.Task]:
		m.todoList.SetTasks(msg.items)
		m.summary.Todos = todos.Breakdown(msg.items)
		return m, listen(m.ctx, m.subs.todos)

	case snapshotMsg[models.Habit]:
		m.habitList.SetHabits(msg.items)
		m.summary.Habits = habits.Breakdown(msg.items)
		return m, listen(m.ctx, m.subs.habits)

	case snapshotMsg[models.JournalEntry]:
		m.journalList.SetEntries(msg.items)
		m.summary.JournalEntries = len(msg.items)
		return m, listen(m.ctx, m.subs.journal)

	case snapshotMsg[models.Post]:
		m.posts = msg.items
		views := m.presentPosts()
		m.postList.SetPosts(views)
		m.summary.RecentPosts = views[:min(len(views), dashboard.RecentPosts)]
		if m.readerState() == StateReadPost {
			if _, ok := m.openPost(); !ok {
				m.leavePost()
				m.status = "The post was deleted"
			}
		}
		m.refreshReader()
		return m, listen(m.ctx, m.subs.posts)

	case summaryMsg:
		// Counts and posts come from the live lists.
		m.summary.Profile = msg.summary.Profile
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		}
		return m, nil

	case errMsg:
		m.status = "Error: " + msg.err.Error()
		return m, nil

	case statusMsg:
		m.status = string(msg)
		return m, nil
	}

	if m.state == StateForm {
		return m.updateForm(msg)
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "ctrl+c" {
			return m.quit()
		}
		if !m.filtering() {
			switch {
			case key.Matches(msg, m.keys.Quit):
				return m.quit()
			case key.Matches(msg, m.keys.Help):
				m.help.ShowAll = !m.help.ShowAll
				return m, nil
			case key.Matches(msg, m.keys.Tab):
				m.switchTab(1)
				return m, nil
			case key.Matches(msg, m.keys.ShiftTab):
				m.switchTab(len(tabTitles) - 1)
				return m, nil
			}
		}
		m.status = ""
	}

	if m.state == StateReadEntry || m.state == StateReadPost {
		return m.updateReader(msg)
	}

	if handled, cmd := m.handleComponentMsg(msg); handled {
		return m, cmd
	}

	var cmd tea.Cmd
	switch m.state {
	case StateTodos:
		m.todoList, cmd = m.todoList.Update(msg)
	case StateHabits:
		m.habitList, cmd = m.habitList.Update(msg)
	case StateJournal:
		m.journalList, cmd = m.journalList.Update(msg)
	case StateForum:
		m.postList, cmd = m.postList.Update(msg)
	}
	return m, cmd
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	m.Close()
	return m, tea.Quit
}

// switchTab moves by step tabs; detail views return to their tab first.
func (m *Model) switchTab(step int) {
	cur := m.activeTab()
	m.state = SessionState((int(cur) + step) % len(tabTitles))
	m.openPostID = ""
	m.status = ""
}

// activeTab is the tab highlighted for the current state.
func (m Model) activeTab() SessionState {
	state := m.state
	if state == StateForm && m.pending != nil {
		state = m.pending.back
	}
	switch state {
	case StateReadEntry:
		return StateJournal
	case StateReadPost:
		return StateForum
	}
	return state
}

// readerState is the detail view on screen, or underneath an open form.
func (m Model) readerState() SessionState {
	if m.state == StateForm && m.pending != nil {
		return m.pending.back
	}
	return m.state
}

func (m Model) filtering() bool {
	switch m.state {
	case StateTodos:
		return m.todoList.Filtering()
	case StateHabits:
		return m.habitList.Filtering()
	case StateJournal:
		return m.journalList.Filtering()
	case StateForum:
		return m.postList.Filtering()
	}
	return false
}

func (m *Model) handleComponentMsg(msg tea.Msg) (bool, tea.Cmd) {
	who := m.who
	switch msg := msg.(type) {
	case todolist.AddTodoMsg:
		f := &formFields{}
		return true, m.openForm(NewNameForm("New to-do", f), f, "To-do added",
			func(ctx context.Context, f *formFields) error {
				_, err := m.todos.Create(ctx, f.Title)
				return err
			})
	case todolist.EditTodoMsg:
		f := &formFields{Title: msg.Task.Name}
		id := msg.Task.ID
		return true, m.openForm(NewNameForm("Rename to-do", f), f, "To-do renamed",
			func(ctx context.Context, f *formFields) error {
				_, err := m.todos.Rename(ctx, id, f.Title)
				return err
			})
	case todolist.ToggleTodoMsg:
		return true, m.run("", func(ctx context.Context) error {
			_, err := m.todos.ToggleComplete(ctx, msg.ID)
			return err
		})
	case todolist.StarTodoMsg:
		return true, m.run("", func(ctx context.Context) error {
			_, err := m.todos.ToggleImportant(ctx, msg.ID)
			return err
		})
	case todolist.DeleteTodoMsg:
		return true, m.confirmDelete(fmt.Sprintf("Delete to-do %q?", msg.Name), "To-do deleted",
			func(ctx context.Context) error { return m.todos.Remove(ctx, msg.ID) })

	case habitlist.AddHabitMsg:
		f := &formFields{}
		return true, m.openForm(NewNameForm("New habit", f), f, "Habit added",
			func(ctx context.Context, f *formFields) error {
				_, err := m.habits.Create(ctx, f.Title)
				return err
			})
	case habitlist.EditHabitMsg:
		f := &formFields{Title: msg.Habit.Name}
		id := msg.Habit.ID
		return true, m.openForm(NewNameForm("Rename habit", f), f, "Habit renamed",
			func(ctx context.Context, f *formFields) error {
				_, err := m.habits.Rename(ctx, id, f.Title)
				return err
			})
	case habitlist.ToggleHabitMsg:
		return true, m.run("", func(ctx context.Context) error {
			_, err := m.habits.ToggleDone(ctx, msg.ID)
			return err
		})
	case habitlist.DeleteHabitMsg:
		return true, m.confirmDelete(fmt.Sprintf("Delete habit %q?", msg.Name), "Habit deleted",
			func(ctx context.Context) error { return m.habits.Remove(ctx, msg.ID) })

	case journallist.WriteEntryMsg:
		f := &formFields{}
		return true, m.openForm(NewWritingForm("New journal entry", f), f, "Entry saved",
			func(ctx context.Context, f *formFields) error {
				_, err := m.journal.Write(ctx, f.Title, f.Body)
				return err
			})
	case journallist.OpenEntryMsg:
		m.openEntry = msg.Entry
		m.state = StateReadEntry
		m.refreshReader()
		m.viewport.GotoTop()
		return true, nil

	case postlist.NewPostMsg:
		f := &formFields{}
		return true, m.openForm(NewWritingForm("New post", f), f, "Post published",
			func(ctx context.Context, f *formFields) error {
				_, err := m.forum.Publish(ctx, &who, f.Title, f.Body)
				return err
			})
	case postlist.OpenPostMsg:
		m.openPostID = msg.ID
		m.state = StateReadPost
		m.refreshReader()
		m.viewport.GotoTop()
		return true, nil
	case postlist.LikePostMsg:
		return true, m.run("", func(ctx context.Context) error {
			_, err := m.forum.ToggleLike(ctx, &who, msg.ID)
			return err
		})
	}
	return false, nil
}

func (m Model) updateReader(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok {
		if key.Matches(k, m.keys.Back) {
			if m.state == StateReadEntry {
				m.state = StateJournal
			} else {
				m.leavePost()
			}
			return m, nil
		}
		if m.state == StateReadPost {
			if handled, cmd := m.handlePostKey(k); handled {
				return m, cmd
			}
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *Model) handlePostKey(k tea.KeyMsg) (bool, tea.Cmd) {
	v, ok := m.openPost()
	if !ok {
		return false, nil
	}
	who := m.who
	id := v.ID
	switch {
	case key.Matches(k, m.keys.Like):
		return true, m.run("", func(ctx context.Context) error {
			_, err := m.forum.ToggleLike(ctx, &who, id)
			return err
		})
	case key.Matches(k, m.keys.Comment):
		f := &formFields{}
		return true, m.openForm(NewCommentForm(f), f, "Comment added",
			func(ctx context.Context, f *formFields) error {
				_, err := m.forum.AddComment(ctx, &who, id, f.Body)
				return err
			})
	case key.Matches(k, m.keys.Delete) && v.CanDelete:
		return true, m.confirmDelete(fmt.Sprintf("Delete post %q and its comments?", v.Title), "Post deleted",
			func(ctx context.Context) error { return m.forum.DeletePost(ctx, &who, id) })
	case key.Matches(k, m.keys.Uncomment) && len(v.Comments) > 0 && m.forum.Policy().CanDeleteComment(&who):
		f := &formFields{}
		return true, m.openForm(NewCommentPicker(v.Comments, f), f, "Comment deleted",
			func(ctx context.Context, f *formFields) error {
				return m.forum.DeleteComment(ctx, &who, id, f.Choice)
			})
	}
	return false, nil
}

func (m *Model) leavePost() {
	m.openPostID = ""
	if m.state == StateForm && m.pending != nil {
		m.pending.back = StateForum
		return
	}
	m.state = StateForum
}

func (m *Model) openForm(form *huh.Form, f *formFields, done string, submit func(context.Context, *formFields) error) tea.Cmd {
	m.pending = &pendingForm{
		form:   form,
		fields: f,
		submit: submit,
		back:   m.state,
		done:   done,
	}
	m.state = StateForm
	return form.Init()
}

func (m *Model) confirmDelete(prompt, done string, del func(context.Context) error) tea.Cmd {
	f := &formFields{}
	cmd := m.openForm(NewConfirmForm(prompt, f), f, done,
		func(ctx context.Context, f *formFields) error {
			if !f.Confirm {
				return nil
			}
			return del(ctx)
		})
	m.pending.confirm = true
	return cmd
}

func (m Model) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	p := m.pending
	if k, ok := msg.(tea.KeyMsg); ok && k.Type == tea.KeyEsc {
		m.closeForm()
		return m, nil
	}

	form, cmd := p.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		p.form = f
	}

	switch p.form.State {
	case huh.StateCompleted:
		m.closeForm()
		done := p.done
		if p.confirm && !p.fields.Confirm {
			done = "Cancelled"
		}
		return m, tea.Batch(cmd, m.run(done, func(ctx context.Context) error {
			return p.submit(ctx, p.fields)
		}))
	case huh.StateAborted:
		m.closeForm()
	}
	return m, cmd
}

func (m *Model) closeForm() {
	if m.pending != nil {
		m.state = m.pending.back
	}
	m.pending = nil
}

// refreshReader re-renders the open entry or post into the viewport.
func (m *Model) refreshReader() {
	var md string
	switch m.readerState() {
	case StateReadEntry:
		e := m.openEntry
		md = fmt.Sprintf("# %s\n\n*%s*\n\n%s\n", e.Title, utils.FormatDate(e.CreatedAt, m.loc), e.Content)
	case StateReadPost:
		v, ok := m.openPost()
		if !ok {
			return
		}
		var b strings.Builder
		author := v.Author
		if v.AuthorIsAdmin {
			author += " (admin)"
		}
		liked := ""
		if v.LikedByViewer {
			liked = ", including you"
		}
		fmt.Fprintf(&b, "# %s\n\n*by %s · %s · %d likes%s*\n\n%s\n\n---\n\n## Comments (%d)\n\n",
			v.Title, author, utils.Ago(v.CreatedAt), v.LikeCount, liked, v.Content, len(v.Comments))
		for i, c := range v.Comments {
			name := c.Author
			if c.AuthorIsAdmin {
				name += " (admin)"
			}
			fmt.Fprintf(&b, "%d. **%s** · %s\n\n   %s\n\n", i+1, name, utils.Ago(c.CreatedAt), c.Content)
		}
		md = b.String()
	default:
		return
	}
	m.viewport.SetContent(m.renderMarkdown(md))
}

func (m Model) renderMarkdown(md string) string {
	width := m.width - 4
	if width < 20 {
		width = 80
	}
	style := glamour.WithAutoStyle()
	if m.markdownStyle != "" {
		style = glamour.WithStandardStyle(m.markdownStyle)
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}
