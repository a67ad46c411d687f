package tui

import (
	"context"
	"errors"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/domain"
	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/usecase"
)

type fakeController struct {
	mu      sync.Mutex
	opens   int
	closes  int
	muted   bool
	openErr error
	status  domain.Status
}

func (f *fakeController) Open(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens++
	return f.openErr
}

func (f *fakeController) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
}

func (f *fakeController) ToggleMute() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.muted = !f.muted
	return f.muted
}

func (f *fakeController) Status() domain.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func key(s string) tea.KeyMsg {
	switch s {
	case KeyEnter:
		return tea.KeyMsg{Type: tea.KeyEnter}
	case KeyEnd:
		return tea.KeyMsg{Type: tea.KeyEsc}
	case KeyCtrlC:
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	return model, cmd
}

func TestInitReadsControllerStatus(t *testing.T) {
	ctrl := &fakeController{status: domain.Status{State: domain.StatusListening, Active: true}}
	m := New(context.Background(), ctrl, "ws://127.0.0.1:8000/ws")

	msg := m.Init()()
	m, _ = update(t, m, msg)
	assert.Equal(t, domain.StatusListening, m.status.State)
	assert.Contains(t, m.View(), "Listening")
}

func TestOpenKeyRunsOpenInCommand(t *testing.T) {
	ctrl := &fakeController{}
	m := New(context.Background(), ctrl, "")

	m, cmd := update(t, m, key(KeyOpen))
	require.NotNil(t, cmd)
	assert.Equal(t, 0, ctrl.opens, "open must not run inside Update")

	m, _ = update(t, m, cmd())
	assert.Equal(t, 1, ctrl.opens)
	assert.Empty(t, m.errText)

	_, cmd = update(t, m, key(KeyEnter))
	require.NotNil(t, cmd)
}

func TestOpenIgnoredWhileActive(t *testing.T) {
	m := New(context.Background(), &fakeController{}, "")
	m, _ = update(t, m, StatusMsg{Status: domain.Status{State: domain.StatusListening, Active: true}})

	_, cmd := update(t, m, key(KeyOpen))
	assert.Nil(t, cmd)
}

func TestOpenErrorsAreShown(t *testing.T) {
	m := New(context.Background(), &fakeController{}, "")

	m, _ = update(t, m, openResultMsg{err: usecase.ErrSessionClosed})
	assert.Empty(t, m.errText)

	m, _ = update(t, m, openResultMsg{err: usecase.ErrSessionActive})
	assert.Equal(t, "A conversation is already running.", m.errText)

	m, _ = update(t, m, openResultMsg{err: errors.New("boom")})
	assert.Equal(t, "boom", m.errText)
	assert.Contains(t, m.View(), "boom")

	m, _ = update(t, m, StatusMsg{Status: domain.Status{State: domain.StatusConnecting}})
	assert.Empty(t, m.errText)
}

func TestMuteKeyTogglesThroughController(t *testing.T) {
	ctrl := &fakeController{}
	m := New(context.Background(), ctrl, "")

	_, cmd := update(t, m, key(KeyMute))
	assert.Nil(t, cmd, "mute without a conversation is ignored")

	m, _ = update(t, m, StatusMsg{Status: domain.Status{State: domain.StatusListening, Active: true}})
	m, cmd = update(t, m, key(KeyMute))
	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())
	assert.True(t, m.status.Muted)
	assert.Contains(t, m.footer(), "unmute")
}

func TestEscEndsConversationWithoutQuitting(t *testing.T) {
	ctrl := &fakeController{}
	m := New(context.Background(), ctrl, "")

	m, cmd := update(t, m, key(KeyEnd))
	require.NotNil(t, cmd)
	m, next := update(t, m, cmd())
	assert.Equal(t, 1, ctrl.closes)
	assert.Nil(t, next)
	assert.False(t, m.quitting)
}

func TestQuitClosesThenQuits(t *testing.T) {
	ctrl := &fakeController{}
	m := New(context.Background(), ctrl, "")

	m, cmd := update(t, m, key(KeyCtrlC))
	require.NotNil(t, cmd)
	assert.True(t, m.quitting)
	assert.Contains(t, m.View(), "Ending conversation")

	_, again := update(t, m, key(KeyQuit))
	assert.Nil(t, again)

	_, quit := update(t, m, cmd())
	require.NotNil(t, quit)
	assert.Equal(t, tea.Quit(), quit())
	assert.Equal(t, 1, ctrl.closes)
}

func TestStatusBridgeWithoutProgramDrops(t *testing.T) {
	bridge := &StatusBridge{}
	assert.NotPanics(t, func() {
		bridge.StatusChanged(domain.Status{State: domain.StatusListening})
	})
}
