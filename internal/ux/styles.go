package ux

import "github.com/charmbracelet/lipgloss"

// Styles are the lipgloss styles used for text output.
type Styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Border  lipgloss.Style
	Header  lipgloss.Style
	Cell    lipgloss.Style
}

// DefaultStyles returns the colored styles.
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")), // Purple
		Label: lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")), // Cyan
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")), // Gray
		Success: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("46")), // Green
		Warning: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("226")), // Yellow
		Error: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")), // Red
		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1),
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")).
			Padding(0, 1),
		Cell: lipgloss.NewStyle().Padding(0, 1),
	}
}

// PlainStyles renders without color or decoration.
func PlainStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Title:   plain,
		Label:   plain,
		Muted:   plain,
		Success: plain,
		Warning: plain,
		Error:   plain,
		Border:  plain,
		Header:  plain.Padding(0, 1),
		Cell:    plain.Padding(0, 1),
	}
}

// StylesFor picks the style set for the --no-color setting.
func StylesFor(noColor bool) Styles {
	if noColor {
		return PlainStyles()
	}
	return DefaultStyles()
}
