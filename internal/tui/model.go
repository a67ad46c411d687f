package tui

import (
	"context"
	"errors"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/domain"
	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/presenter"
	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/usecase"
)

// Controller is the part of the session controller the TUI drives.
type Controller interface {
	Open(ctx context.Context) error
	Close()
	ToggleMute() bool
	Status() domain.Status
}

// Model is the root bubbletea model. Controller calls run inside commands because
// status transitions are delivered back through the program.
type Model struct {
	ctx        context.Context
	controller Controller
	serverURL  string

	status   domain.Status
	errText  string
	width    int
	quitting bool
}

func New(ctx context.Context, controller Controller, serverURL string) Model {
	return Model{
		ctx:        ctx,
		controller: controller,
		serverURL:  serverURL,
		status:     domain.Status{State: domain.StatusIdle},
	}
}

func (m Model) Init() tea.Cmd {
	c := m.controller
	return func() tea.Msg {
		return StatusMsg{Status: c.Status()}
	}
}

func openCmd(ctx context.Context, c Controller) tea.Cmd {
	return func() tea.Msg {
		return openResultMsg{err: c.Open(ctx)}
	}
}

func muteCmd(c Controller) tea.Cmd {
	return func() tea.Msg {
		return muteResultMsg{muted: c.ToggleMute()}
	}
}

func closeCmd(c Controller, quit bool) tea.Cmd {
	return func() tea.Msg {
		c.Close()
		return closedMsg{quit: quit}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case StatusMsg:
		m.status = msg.Status
		if msg.Status.State != domain.StatusError {
			m.errText = ""
		}
		return m, nil

	case openResultMsg:
		switch {
		case msg.err == nil, errors.Is(msg.err, usecase.ErrSessionClosed):
		case errors.Is(msg.err, usecase.ErrSessionActive):
			m.errText = "A conversation is already running."
		default:
			m.errText = msg.err.Error()
		}
		return m, nil

	case muteResultMsg:
		m.status.Muted = msg.muted
		return m, nil

	case closedMsg:
		if msg.quit {
			return m, tea.Quit
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyQuit, KeyQuitUpper, KeyCtrlC:
		if m.quitting {
			return m, nil
		}
		m.quitting = true
		return m, closeCmd(m.controller, true)
	case KeyOpen, KeyEnter:
		if m.status.Active {
			return m, nil
		}
		m.errText = ""
		return m, openCmd(m.ctx, m.controller)
	case KeyMute:
		if !m.status.Active {
			return m, nil
		}
		return m, muteCmd(m.controller)
	case KeyEnd:
		return m, closeCmd(m.controller, false)
	}
	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return dimStyle.Render("Ending conversation...") + "\n"
	}

	indicator := presenter.For(m.status)
	dot := lipgloss.NewStyle().Foreground(lipgloss.Color(indicator.Color)).Render("●")

	var b strings.Builder
	b.WriteString(titleStyle.Render("ClinicConnect AI Receptionist"))
	b.WriteString("\n")
	b.WriteString(dividerStyle.Render(strings.Repeat("─", max(m.width, 32))))
	b.WriteString("\n\n")
	b.WriteString(dot + " " + labelStyle.Render(indicator.Label))
	b.WriteString("\n\n")

	details := []string{"server " + m.serverURL}
	if m.status.Mode != "" {
		details = append(details, "mode "+string(m.status.Mode))
	}
	if m.status.SessionID != "" {
		details = append(details, "session "+m.status.SessionID)
	}
	b.WriteString(dimStyle.Render(strings.Join(details, "  ·  ")))
	b.WriteString("\n")

	if m.errText != "" {
		b.WriteString("\n" + errorStyle.Render(m.errText) + "\n")
	}

	b.WriteString("\n" + m.footer() + "\n")
	return b.String()
}

func (m Model) footer() string {
	type binding struct{ key, desc string }
	bindings := []binding{{"o", "talk"}, {"m", "mute"}, {"esc", "end"}, {"q", "quit"}}
	if m.status.Active && m.status.Muted {
		bindings[1].desc = "unmute"
	}

	parts := make([]string, 0, len(bindings))
	for _, kb := range bindings {
		parts = append(parts, footerKeyStyle.Render(kb.key)+" "+footerDescStyle.Render(kb.desc))
	}
	return strings.Join(parts, "  ")
}
