package console

import "github.com/charmbracelet/lipgloss"

// Theme styles the interactive menu.
type Theme struct {
	Title  lipgloss.Style
	Key    lipgloss.Style
	Help   lipgloss.Style
	Card   lipgloss.Style
	OK     lipgloss.Style
	Err    lipgloss.Style
	Banner lipgloss.Style
}

func DefaultTheme() Theme {
	return Theme{
		Title: lipgloss.NewStyle().Bold(true),
		Key:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")),
		Help:  lipgloss.NewStyle().Faint(true),
		Card: lipgloss.NewStyle().
			Padding(0, 2).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")),
		OK:     lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		Err:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Banner: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
	}
}

// PlainTheme renders without any styling.
func PlainTheme() Theme {
	s := lipgloss.NewStyle()
	return Theme{Title: s, Key: s, Help: s, Card: s, OK: s, Err: s, Banner: s}
}
