package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/zap"

	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/bootstrap"
	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/config"
	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/domain"
	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/presenter"
	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/usecase"
)

const (
	eventStatus = "receptionist:status"
	eventError  = "receptionist:error"
)

// Conversation is the controller surface bound to the frontend.
type Conversation interface {
	Open(ctx context.Context) error
	Close()
	ToggleMute() bool
	Status() domain.Status
}

// App is the Wails application root.
type App struct {
	ctx context.Context

	controller Conversation
	services   bootstrap.Services
	cfg        config.Config
	bootErr    error

	emit func(ctx context.Context, name string, data ...interface{})
}

func NewApp() *App {
	return &App{emit: runtime.EventsEmit}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a)
	if err != nil {
		a.bootErr = err
		a.emitError(domain.ErrorKindUnknown, "Startup failed", err.Error())
		return
	}

	a.services = services
	a.cfg = services.Config
	a.controller = services.Controller
	a.StatusChanged(a.controller.Status())
}

func (a *App) shutdown(ctx context.Context) {
	if err := a.services.Close(ctx); err != nil && a.services.Logger != nil {
		a.services.Logger.Warn("shutdown incomplete", zap.Error(err))
	}
}

// Open starts a conversation: microphone, connection and playback.
func (a *App) Open() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.controller.Open(a.ctx); err != nil {
		if errors.Is(err, usecase.ErrSessionClosed) {
			return a.controller.Status(), nil
		}
		if !errors.Is(err, usecase.ErrSessionActive) {
			kind := domain.KindOf(err)
			a.emitError(kind, errorTitle(kind), err.Error())
		}
		return a.controller.Status(), err
	}
	return a.controller.Status(), nil
}

// Close ends the current conversation. It is safe to call at any time.
func (a *App) Close() domain.Status {
	if a.controller == nil {
		return a.GetStatus()
	}
	a.controller.Close()
	return a.controller.Status()
}

// ToggleMute flips the microphone mute state of the live conversation.
func (a *App) ToggleMute() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	a.controller.ToggleMute()
	return a.controller.Status(), nil
}

// GetStatus returns the current conversation status.
func (a *App) GetStatus() domain.Status {
	if a.controller == nil {
		if a.bootErr != nil {
			return domain.Status{State: domain.StatusError, Active: false, Message: a.bootErr.Error()}
		}
		return domain.Status{State: domain.StatusIdle, Active: false}
	}
	return a.controller.Status()
}

// GetIndicator returns the status dot for the current status.
func (a *App) GetIndicator() presenter.Indicator {
	return presenter.For(a.GetStatus())
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	encoding := string(domain.EncodingFallbackContainer)
	if a.cfg.Encoder.WorkletEnabled {
		encoding = string(domain.EncodingWorkletPCM)
	}
	return map[string]string{
		"server":            a.cfg.Server.URL,
		"encoding":          encoding,
		"audioReply":        strconv.FormatBool(a.cfg.Playback.AudioReply),
		"audioInput":        a.cfg.Audio.InputDevice,
		"audioInputFormat":  a.cfg.Audio.InputFormat,
		"captureSampleRate": strconv.Itoa(a.cfg.Audio.SampleRate),
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.controller == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

type statusEvent struct {
	domain.Status
	Indicator presenter.Indicator `json:"indicator"`
}

// StatusChanged emits every status transition to the frontend.
func (a *App) StatusChanged(status domain.Status) {
	if a.ctx == nil || a.emit == nil {
		return
	}
	a.emit(a.ctx, eventStatus, statusEvent{Status: status, Indicator: presenter.For(status)})
}

func (a *App) emitError(kind domain.ErrorKind, title string, detail string) {
	if a.ctx == nil || a.emit == nil {
		return
	}
	a.emit(a.ctx, eventError, map[string]string{
		"kind":    string(kind),
		"message": title,
		"detail":  detail,
	})
}

func errorTitle(kind domain.ErrorKind) string {
	switch kind {
	case domain.ErrorKindPermissionDenied:
		return "Microphone permission denied"
	case domain.ErrorKindUnsupportedAPI:
		return "Audio recording unsupported"
	case domain.ErrorKindConnectionFailure:
		return "Connection failed"
	case domain.ErrorKindDecodeFailure:
		return "Audio playback issue"
	case domain.ErrorKindEncoderInit:
		return "Audio encoder failed"
	default:
		return "Unknown error"
	}
}
