package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/bootstrap"
	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/tui"
)

func main() {
	// stderr belongs to the terminal UI unless logging was configured explicitly
	if _, ok := os.LookupEnv("LOG_STDERR"); !ok {
		_ = os.Setenv("LOG_STDERR", "false")
	}

	bridge := &tui.StatusBridge{}
	services, err := bootstrap.Build(bridge)
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup failed: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	model := tui.New(ctx, services.Controller, services.Config.Server.URL)
	program := tea.NewProgram(model, tea.WithContext(ctx))
	bridge.Attach(program)

	_, runErr := program.Run()
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := services.Close(shutdownCtx); err != nil {
		services.Logger.Warn("shutdown incomplete", zap.Error(err))
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "tui: %v\n", runErr)
		os.Exit(1)
	}
}
