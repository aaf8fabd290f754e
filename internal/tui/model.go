// Package tui is the full-screen chat with the assistant.
package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/tasksync/internal/assistant"
	"github.com/felixgeelhaar/tasksync/internal/domain"
	"github.com/felixgeelhaar/tasksync/internal/errors"
	"github.com/felixgeelhaar/tasksync/internal/fetch"
	"github.com/felixgeelhaar/tasksync/internal/session"
)

// Sender sends a prompt and stores the exchange.
type Sender interface {
	Send(ctx context.Context, userID, prompt string) (assistant.Reply, error)
}

// chrome is the number of lines around the viewport: title, status,
// input and help.
const chrome = 6

type entry struct {
	role   domain.ChatRole
	text   string
	failed bool
}

// Model represents the chat screen state
type Model struct {
	ctx    context.Context
	chat   Sender
	userID string

	entries  []entry
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	waiting        bool
	historyLoading bool
	historyErr     string
	signedOut      bool

	width    int
	height   int
	ready    bool
	quitting bool

	styles Styles
}

// Styles contains lipgloss styles for the TUI
type Styles struct {
	Title lipgloss.Style
	User  lipgloss.Style
	Model lipgloss.Style
	Error lipgloss.Style
	Muted lipgloss.Style
	Help  lipgloss.Style
}

// replyMsg carries the assistant's answer back into Update.
type replyMsg struct {
	reply assistant.Reply
	err   error
}

// historyMsg delivers a settled history fetch.
type historyMsg fetch.State[[]domain.ChatMessage]

// signedOutMsg ends the screen after a sign-out elsewhere.
type signedOutMsg struct{}

// NewModel creates a chat screen seeded with history.
func NewModel(ctx context.Context, chat Sender, userID string, history []domain.ChatMessage) Model {
	input := textinput.New()
	input.Placeholder = "Ask the assistant..."
	input.CharLimit = 2000
	input.Focus()

	entries := make([]entry, 0, len(history))
	for _, m := range history {
		entries = append(entries, entry{role: m.Role, text: m.Content})
	}

	return Model{
		ctx:      ctx,
		chat:     chat,
		userID:   userID,
		entries:  entries,
		input:    input,
		viewport: viewport.New(80, 20),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		styles:   DefaultStyles(),
	}
}

// DefaultStyles returns the default lipgloss styles
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")), // Purple
		User: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")), // Cyan
		Model: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")),
		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")), // Red
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")), // Gray
		Help: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
	}
}

// Init initializes the TUI model (required by Bubble Tea)
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages and updates the model state (required by Bubble Tea)
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-chrome, 3)
		m.input.Width = max(msg.Width-4, 10)
		m.ready = true
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		}

	case replyMsg:
		m.waiting = false
		m.entries = append(m.entries, entry{
			role:   domain.ChatRoleModel,
			text:   msg.reply.Text,
			failed: msg.err != nil,
		})
		m.refresh()
		return m, nil

	case historyMsg:
		m.historyLoading = false
		m.historyErr = msg.Err
		if msg.Err == "" {
			earlier := make([]entry, 0, len(msg.Data)+len(m.entries))
			for _, h := range msg.Data {
				earlier = append(earlier, entry{role: h.Role, text: h.Content})
			}
			m.entries = append(earlier, m.entries...)
		}
		m.refresh()
		return m, nil

	case signedOutMsg:
		m.signedOut = true
		m.quitting = true
		return m, tea.Quit

	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var inputCmd, viewCmd tea.Cmd
	m.input, inputCmd = m.input.Update(msg)
	m.viewport, viewCmd = m.viewport.Update(msg)
	return m, tea.Batch(inputCmd, viewCmd)
}

// submit sends the typed prompt unless a reply is still pending.
func (m Model) submit() (tea.Model, tea.Cmd) {
	prompt := strings.TrimSpace(m.input.Value())
	if prompt == "" || m.waiting {
		return m, nil
	}
	m.input.Reset()
	m.waiting = true
	m.entries = append(m.entries, entry{role: domain.ChatRoleUser, text: prompt})
	m.refresh()
	return m, tea.Batch(m.ask(prompt), m.spinner.Tick)
}

func (m Model) ask(prompt string) tea.Cmd {
	return func() tea.Msg {
		reply, err := m.chat.Send(m.ctx, m.userID, prompt)
		if reply.Text == "" && err != nil {
			reply.Text = assistant.Message(err)
		}
		return replyMsg{reply: reply, err: err}
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderEntries())
	m.viewport.GotoBottom()
}

// SessionWatcher pushes session changes.
type SessionWatcher interface {
	Subscribe(fn func(session.State)) (unsubscribe func())
}

// Config wires the chat screen to its services.
type Config struct {
	Chat   Sender
	UserID string

	// History is mounted when the screen starts; nil starts empty.
	History *fetch.Resource[[]domain.ChatMessage]

	// Session ends the screen when the user is signed out elsewhere.
	Session SessionWatcher
}

// Run starts the chat screen and blocks until the user quits, the user
// is signed out or ctx ends.
func Run(ctx context.Context, cfg Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := NewModel(ctx, cfg.Chat, cfg.UserID, nil)
	m.historyLoading = cfg.History != nil
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	if cfg.Session != nil {
		unsubscribe := cfg.Session.Subscribe(func(s session.State) {
			if !s.Loading && !s.LoggedIn {
				p.Send(signedOutMsg{})
			}
		})
		defer unsubscribe()
	}
	if cfg.History != nil {
		remove := cfg.History.OnChange(func(s fetch.State[[]domain.ChatMessage]) {
			if !s.Loading {
				p.Send(historyMsg(s))
			}
		})
		defer remove()
		cfg.History.Mount(ctx)
	}

	final, err := p.Run()
	if err != nil {
		return err
	}
	if fm, ok := final.(Model); ok && fm.signedOut {
		return errors.NewNoSessionError()
	}
	return nil
}
