package tui

import "github.com/charmbracelet/lipgloss"

type theme struct {
	header    lipgloss.Style
	phase     lipgloss.Style
	sessionID lipgloss.Style

	playerLabel lipgloss.Style
	dmLabel     lipgloss.Style
	systemText  lipgloss.Style
	bodyText    lipgloss.Style

	statusOK   lipgloss.Style
	statusErr  lipgloss.Style
	monologue  lipgloss.Style
	stateLine  lipgloss.Style
	inputFrame lipgloss.Style
}

func newTheme() theme {
	return theme{
		header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#f5d76e")),
		phase: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#0b0b14")).
			Background(lipgloss.Color("#7aa2f7")).
			Padding(0, 1),
		sessionID: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#565f89")),

		playerLabel: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#9ece6a")),
		dmLabel: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#bb9af7")),
		systemText: lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color("#565f89")),
		bodyText: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#c0caf5")),

		statusOK: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#565f89")),
		statusErr: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#f7768e")),
		monologue: lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color("#414868")),
		stateLine: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7dcfff")),
		inputFrame: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3b4261")).
			Padding(0, 1),
	}
}
