package tui

import "github.com/charmbracelet/lipgloss"

var (
	accent = lipgloss.AdaptiveColor{Light: "#7D56F4", Dark: "#AD8CFF"}
	subtle = lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"}
	alert  = lipgloss.AdaptiveColor{Light: "#D7263D", Dark: "#FF5F6D"}

	tabStyle = lipgloss.NewStyle().Padding(0, 2)

	activeTabStyle = tabStyle.
			Foreground(accent).
			Bold(true).
			Underline(true)

	inactiveTabStyle = tabStyle.Foreground(subtle)

	dangerStyle  = lipgloss.NewStyle().Foreground(alert).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(subtle)
	headingStyle = lipgloss.NewStyle().Foreground(accent).Bold(true)

	docStyle = lipgloss.NewStyle().Padding(1, 2)
)
