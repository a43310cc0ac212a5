package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/daybook/internal/utils"
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.state {
	case StateDashboard:
		content = docStyle.Render(m.viewDashboard())
	case StateTodos:
		content = m.todoList.View()
	case StateHabits:
		content = m.habitList.View()
	case StateJournal:
		content = m.journalList.View()
	case StateForum:
		content = m.postList.View()
	case StateForm:
		content = docStyle.Render(m.pending.form.View())
	case StateReadEntry, StateReadPost:
		content = m.viewport.View()
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.viewTabs(),
		content,
		m.viewStatus(),
		m.help.View(m),
	)
}

func (m Model) viewTabs() string {
	active := m.activeTab()
	tabs := make([]string, len(tabTitles))
	for i, title := range tabTitles {
		if SessionState(i) == active {
			tabs[i] = activeTabStyle.Render(title)
		} else {
			tabs[i] = inactiveTabStyle.Render(title)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) viewStatus() string {
	if m.status == "" {
		return ""
	}
	if strings.HasPrefix(m.status, "Error") {
		return dangerStyle.Render(m.status)
	}
	return mutedStyle.Render(m.status)
}

func (m Model) viewDashboard() string {
	s := m.summary
	name := m.who.AuthorName()
	if s.Profile != nil && s.Profile.DisplayName != "" {
		name = s.Profile.DisplayName
	}

	var b strings.Builder
	b.WriteString(headingStyle.Render("Welcome, "+name) + "\n\n")
	fmt.Fprintf(&b, "To-dos   %d done, %d open (%d important)\n", s.Todos.Completed, s.Todos.Incomplete, s.Todos.Important)
	fmt.Fprintf(&b, "Habits   %d of %d done\n", s.Habits.Completed, s.Habits.Total)
	fmt.Fprintf(&b, "Journal  %d entries\n", s.JournalEntries)

	if len(s.RecentPosts) > 0 {
		b.WriteString("\n" + headingStyle.Render("Recent posts") + "\n")
		for _, p := range s.RecentPosts {
			fmt.Fprintf(&b, "  %s %s\n", p.Title,
				mutedStyle.Render(fmt.Sprintf("by %s, %s, %d likes", p.Author, utils.Ago(p.CreatedAt), p.LikeCount)))
		}
	}
	return b.String()
}
