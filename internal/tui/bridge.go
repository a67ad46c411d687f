package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/domain"
)

// StatusBridge forwards controller status transitions into a running program.
// Transitions before Attach are dropped; the model reads the current status on Init.
type StatusBridge struct {
	mu      sync.Mutex
	program *tea.Program
}

func (b *StatusBridge) Attach(program *tea.Program) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.program = program
}

func (b *StatusBridge) StatusChanged(status domain.Status) {
	b.mu.Lock()
	program := b.program
	b.mu.Unlock()
	if program != nil {
		program.Send(StatusMsg{Status: status})
	}
}
