package tui

import "github.com/charmbracelet/lipgloss"

type styles struct {
	Title       lipgloss.Style
	Subtitle    lipgloss.Style
	Tab         lipgloss.Style
	ActiveTab   lipgloss.Style
	User        lipgloss.Style
	Assistant   lipgloss.Style
	Muted       lipgloss.Style
	Error       lipgloss.Style
	Cursor      lipgloss.Style
	Toast       lipgloss.Style
	ToastDanger lipgloss.Style
	Ready       lipgloss.Style
	Creating    lipgloss.Style
	Failed      lipgloss.Style
}

func defaultStyles() styles {
	primary := lipgloss.Color("141")
	danger := lipgloss.Color("203")
	muted := lipgloss.Color("245")

	return styles{
		Title:       lipgloss.NewStyle().Bold(true).Foreground(primary),
		Subtitle:    lipgloss.NewStyle().Foreground(muted),
		Tab:         lipgloss.NewStyle().Padding(0, 2).Foreground(muted),
		ActiveTab:   lipgloss.NewStyle().Padding(0, 2).Bold(true).Foreground(lipgloss.Color("231")).Background(primary),
		User:        lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("45")),
		Assistant:   lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		Muted:       lipgloss.NewStyle().Foreground(muted),
		Error:       lipgloss.NewStyle().Foreground(danger),
		Cursor:      lipgloss.NewStyle().Bold(true).Foreground(primary),
		Toast:       lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(primary).Padding(0, 1),
		ToastDanger: lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(danger).Foreground(danger).Padding(0, 1),
		Ready:       lipgloss.NewStyle().Foreground(lipgloss.Color("78")),
		Creating:    lipgloss.NewStyle().Foreground(lipgloss.Color("221")),
		Failed:      lipgloss.NewStyle().Foreground(danger),
	}
}
