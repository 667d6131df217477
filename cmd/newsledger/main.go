package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"NewsLedger/internal/app"
	"NewsLedger/internal/config"
	"NewsLedger/internal/domain"
	"NewsLedger/internal/logging"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}

	if err := application.Run(ctx); err != nil {
		if errors.Is(err, domain.ErrQuotaExhausted) {
			logger.Error("run aborted on quota exhaustion", "error", err)
		} else {
			logger.Error("application stopped", "error", err)
		}
		os.Exit(1)
	}
}
