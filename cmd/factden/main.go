package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gurnameh-99/fact-den/internal/app"
	"github.com/gurnameh-99/fact-den/internal/config"
	"github.com/gurnameh-99/fact-den/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("application setup failed", "error", err)
		os.Exit(1)
	}

	if err := application.Run(ctx); err != nil {
		logger.Error("application stopped", "error", err)
		os.Exit(1)
	}
}
