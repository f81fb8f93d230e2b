package tui

import "github.com/charmbracelet/lipgloss"

type Styles struct {
	Title    lipgloss.Style
	Pose     lipgloss.Style
	Clock    lipgloss.Style
	Cue      lipgloss.Style
	Muted    lipgloss.Style
	Status   lipgloss.Style
	Error    lipgloss.Style
	Complete lipgloss.Style
	Box      lipgloss.Style
}

func DefaultStyles() Styles {
	return Styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#A78BFA")),
		Pose:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F5F5F4")),
		Clock:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#34D399")),
		Cue:      lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#FDE68A")),
		Muted:    lipgloss.NewStyle().Foreground(lipgloss.Color("#78716C")),
		Status:   lipgloss.NewStyle().Foreground(lipgloss.Color("#93C5FD")),
		Error:    lipgloss.NewStyle().Foreground(lipgloss.Color("#F87171")),
		Complete: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#34D399")),
		Box:      lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#57534E")).Padding(0, 1),
	}
}
