package render

import "github.com/charmbracelet/lipgloss"

var (
	userRoleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("28")).
			Padding(0, 1)

	botRoleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("25")).
			Padding(0, 1)

	diagnosisStyle = lipgloss.NewStyle().
			Bold(true)

	optionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	linkStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Underline(true)

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")).
			Italic(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242"))
)
