package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/tasksync/internal/domain"
)

// View renders the TUI (required by Bubble Tea)
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Initializing..."
	}

	var b strings.Builder
	b.WriteString(m.styles.Title.Render("TaskSync Assistant"))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(m.styles.Help.Render("enter send • ↑/↓ scroll • esc quit"))
	return b.String()
}

func (m Model) renderStatus() string {
	switch {
	case m.waiting:
		return m.spinner.View() + m.styles.Muted.Render(" thinking...")
	case m.historyLoading:
		return m.styles.Muted.Render("loading earlier messages...")
	case m.historyErr != "":
		return m.styles.Error.Render(m.historyErr)
	}
	return ""
}

func (m Model) renderEntries() string {
	if len(m.entries) == 0 {
		return m.styles.Muted.Render("Ask anything about your tasks, or just say hello.")
	}

	wrap := lipgloss.NewStyle()
	if m.width > 0 {
		wrap = wrap.Width(m.width)
	}

	parts := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		var label string
		switch {
		case e.role == domain.ChatRoleUser:
			label = m.styles.User.Render("You")
		default:
			label = m.styles.Model.Render("Assistant")
		}
		text := e.text
		if e.failed {
			text = m.styles.Error.Render(text)
		}
		parts = append(parts, label+"\n"+wrap.Render(text))
	}
	return strings.Join(parts, "\n\n")
}
