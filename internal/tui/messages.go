package tui

import "github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/domain"

// StatusMsg carries a status transition from the controller.
type StatusMsg struct {
	Status domain.Status
}

// openResultMsg is the outcome of an Open call.
type openResultMsg struct {
	err error
}

// muteResultMsg reports the mute flag after a toggle.
type muteResultMsg struct {
	muted bool
}

// closedMsg is sent once Close returned.
type closedMsg struct {
	quit bool
}
