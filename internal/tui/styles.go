package tui

import "github.com/charmbracelet/lipgloss"

type styles struct {
	Header    lipgloss.Style
	Username  lipgloss.Style
	Recording lipgloss.Style
	Muted     lipgloss.Style
	Footer    lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(lipgloss.Color("#3b3b58")).
			Padding(0, 2),
		Username: lipgloss.NewStyle().
			Bold(true).
			PaddingLeft(2),
		Recording: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ff3b30")).
			Bold(true).
			PaddingLeft(2),
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#808080")).
			PaddingLeft(2),
		Footer: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#808080")).
			Padding(0, 2),
	}
}
