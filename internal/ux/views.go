package ux

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/felixgeelhaar/tasksync/internal/app"
	"github.com/felixgeelhaar/tasksync/internal/domain"
	"github.com/felixgeelhaar/tasksync/internal/health"
	"github.com/felixgeelhaar/tasksync/internal/news"
	"github.com/felixgeelhaar/tasksync/internal/session"
)

const dateLayout = "2006-01-02"

// TaskList renders tasks as a table.
type TaskList []domain.Task

// RenderText implements TextRenderer.
func (l TaskList) RenderText(s Styles) string {
	if len(l) == 0 {
		return s.Muted.Render("No tasks yet. Add one with 'tasksync task add <title>'.")
	}
	now := time.Now()
	rows := make([][]string, 0, len(l))
	for _, t := range l {
		due := ""
		if t.DueDate != nil {
			due = t.DueDate.Format(dateLayout)
			if t.Overdue(now) {
				due += " !"
			}
		}
		rows = append(rows, []string{t.ID, t.Title, string(t.Status), string(t.Priority), due})
	}
	return renderTable(s, []string{"ID", "TITLE", "STATUS", "PRIORITY", "DUE"}, rows)
}

// TaskDetail renders one task.
type TaskDetail domain.Task

// RenderText implements TextRenderer.
func (t TaskDetail) RenderText(s Styles) string {
	var b strings.Builder
	b.WriteString(s.Title.Render(t.Title))
	b.WriteString("\n")
	field(&b, s, "ID", t.ID)
	field(&b, s, "Status", StatusBadge(s, t.Status))
	field(&b, s, "Priority", string(t.Priority))
	if t.DueDate != nil {
		field(&b, s, "Due", t.DueDate.Format(dateLayout))
	}
	if t.TeamID != nil {
		field(&b, s, "Team", *t.TeamID)
	}
	if !t.CreatedAt.IsZero() {
		field(&b, s, "Created", t.CreatedAt.Format(time.RFC3339))
	}
	if t.Description != "" {
		b.WriteString("\n" + t.Description + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// StatusBadge colors a task status.
func StatusBadge(s Styles, status domain.Status) string {
	switch status {
	case domain.StatusDone:
		return s.Success.Render(string(status))
	case domain.StatusInProgress:
		return s.Warning.Render(string(status))
	default:
		return string(status)
	}
}

// TeamList renders teams as a table.
type TeamList []domain.Team

// RenderText implements TextRenderer.
func (l TeamList) RenderText(s Styles) string {
	if len(l) == 0 {
		return s.Muted.Render("You are not in any team. Create one with 'tasksync team create <name>'.")
	}
	rows := make([][]string, 0, len(l))
	for _, t := range l {
		rows = append(rows, []string{t.ID, t.Name, t.Description})
	}
	return renderTable(s, []string{"ID", "NAME", "DESCRIPTION"}, rows)
}

// TeamDetail renders a team with its members.
type TeamDetail struct {
	Team    domain.Team         `json:"team" yaml:"team"`
	Members []domain.TeamMember `json:"members" yaml:"members"`
}

// RenderText implements TextRenderer.
func (d TeamDetail) RenderText(s Styles) string {
	var b strings.Builder
	b.WriteString(s.Title.Render(d.Team.Name))
	b.WriteString("\n")
	field(&b, s, "ID", d.Team.ID)
	field(&b, s, "Owner", d.Team.OwnerID)
	if d.Team.Description != "" {
		field(&b, s, "About", d.Team.Description)
	}
	b.WriteString("\n")
	b.WriteString(MemberList(d.Members).RenderText(s))
	return b.String()
}

// MemberList renders team members as a table.
type MemberList []domain.TeamMember

// RenderText implements TextRenderer.
func (l MemberList) RenderText(s Styles) string {
	if len(l) == 0 {
		return s.Muted.Render("No members.")
	}
	rows := make([][]string, 0, len(l))
	for _, m := range l {
		joined := ""
		if !m.CreatedAt.IsZero() {
			joined = m.CreatedAt.Format(dateLayout)
		}
		rows = append(rows, []string{m.UserID, string(m.Role), joined})
	}
	return renderTable(s, []string{"USER", "ROLE", "JOINED"}, rows)
}

// ProfileView renders a profile.
type ProfileView domain.Profile

// RenderText implements TextRenderer.
func (p ProfileView) RenderText(s Styles) string {
	var b strings.Builder
	b.WriteString(s.Title.Render(domain.Profile(p).DisplayName()))
	b.WriteString("\n")
	field(&b, s, "ID", p.ID)
	field(&b, s, "Email", p.Email)
	field(&b, s, "First name", p.FirstName)
	field(&b, s, "Last name", p.LastName)
	if p.AvatarURL != nil {
		field(&b, s, "Avatar", *p.AvatarURL)
	}
	return strings.TrimRight(b.String(), "\n")
}

// SessionStatus renders the session state.
type SessionStatus session.State

// RenderText implements TextRenderer.
func (st SessionStatus) RenderText(s Styles) string {
	state := session.State(st)
	switch session.PhaseOf(state) {
	case session.PhaseUnauthenticated:
		return s.Warning.Render("Not signed in.") + " " + s.Muted.Render("Run 'tasksync auth signin'.")
	case session.PhaseAuthenticatedNoProfile:
		return s.Success.Render("Signed in as "+st.User.Email) + "\n" +
			s.Warning.Render("Profile incomplete.") + " " + s.Muted.Render("Run 'tasksync profile save'.")
	case session.PhaseChecking:
		return s.Muted.Render("Checking session...")
	default:
		return s.Success.Render("Signed in as " + st.User.Email)
	}
}

// DashboardView renders the landing view.
type DashboardView app.Dashboard

// RenderText implements TextRenderer.
func (d DashboardView) RenderText(s Styles) string {
	var b strings.Builder

	name := d.User.Email
	if d.Profile != nil {
		name = d.Profile.DisplayName()
	}
	b.WriteString(s.Title.Render("Welcome back, " + name))
	b.WriteString("\n")
	if d.ProfileErr != "" {
		b.WriteString(s.Error.Render(d.ProfileErr) + "\n")
	}
	b.WriteString("\n")

	sum := d.Summary
	b.WriteString(s.Border.Render(fmt.Sprintf("%d tasks   %d todo   %d in progress   %d done   %d overdue",
		sum.Total, sum.Todo, sum.InProgress, sum.Done, sum.Overdue)))
	b.WriteString("\n\n")

	b.WriteString(s.Label.Render("Tasks") + "\n")
	if d.TasksErr != "" {
		b.WriteString(s.Error.Render(d.TasksErr))
	} else {
		b.WriteString(TaskList(d.Tasks).RenderText(s))
	}
	b.WriteString("\n\n")

	b.WriteString(s.Label.Render("Teams") + "\n")
	if d.TeamsErr != "" {
		b.WriteString(s.Error.Render(d.TeamsErr))
	} else {
		b.WriteString(TeamList(d.Teams).RenderText(s))
	}
	return b.String()
}

// Headlines renders a news response.
type Headlines news.Response

// RenderText implements TextRenderer.
func (h Headlines) RenderText(s Styles) string {
	if len(h.Articles) == 0 {
		return s.Muted.Render("No articles found.")
	}
	var b strings.Builder
	for i, a := range h.Articles {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(s.Title.Render(a.Title) + "\n")
		meta := a.Source.Name
		if !a.PublishedAt.IsZero() {
			meta += " · " + a.PublishedAt.Format(dateLayout)
		}
		b.WriteString(s.Muted.Render(meta) + "\n")
		if a.Description != "" {
			b.WriteString(a.Description + "\n")
		}
		b.WriteString(s.Label.Render(a.URL) + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// ChatHistory renders a conversation.
type ChatHistory []domain.ChatMessage

// RenderText implements TextRenderer.
func (h ChatHistory) RenderText(s Styles) string {
	if len(h) == 0 {
		return s.Muted.Render("No messages yet. Ask something with 'tasksync chat ask <question>'.")
	}
	var b strings.Builder
	for i, m := range h {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(ChatLine(s, m.Role, m.Content))
	}
	return b.String()
}

// ChatLine renders one turn with a role prefix.
func ChatLine(s Styles, role domain.ChatRole, content string) string {
	if role == domain.ChatRoleUser {
		return s.Label.Render("you: ") + content
	}
	return s.Title.Render("assistant: ") + content
}

// HealthReport renders doctor output.
type HealthReport health.Report

// RenderText implements TextRenderer.
func (r HealthReport) RenderText(s Styles) string {
	var b strings.Builder
	for _, res := range r.Results {
		icon := s.Success.Render("✓")
		switch res.Status {
		case health.StatusDegraded:
			icon = s.Warning.Render("!")
		case health.StatusUnhealthy:
			icon = s.Error.Render("✗")
		}
		fmt.Fprintf(&b, "%s %-18s %s %s\n", icon, res.Name, res.Message,
			s.Muted.Render(res.Latency.Round(time.Millisecond).String()))
		if hint, ok := res.Details["suggestion"].(string); ok {
			b.WriteString("    " + s.Muted.Render(hint) + "\n")
		}
	}
	b.WriteString("\n" + s.Label.Render("Overall: ") + string(r.Status))
	return b.String()
}

func renderTable(s Styles, headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(s.Muted).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return s.Header
			}
			return s.Cell
		})
	return t.String()
}

func field(b *strings.Builder, s Styles, label, value string) {
	b.WriteString(s.Label.Render(fmt.Sprintf("%-11s", label+":")) + " " + value + "\n")
}
