package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/config"
	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/devserver"
	"github.com/Abdullah-Aakukara/ClinicConnect-AI-Receptionist/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	srv := devserver.New(logger)
	go func() {
		if err := srv.Start(cfg.DevServer.Addr); err != nil {
			logger.Fatal("dev server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("dev server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("dev server forced to shutdown", zap.Error(err))
	}
}
