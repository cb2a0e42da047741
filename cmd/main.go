package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mwanafrika/mwanafrika-backend/internal/app"
	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := app.LoadConfig(".")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, log, cfg)
	if err != nil {
		log.Error("Failed to initialize app", "error", err)
		log.Sync()
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- a.Run() }()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("Server stopped", "error", err)
		}
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	}

	// Late WhatsApp answers get up to 30s to go out.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	a.Shutdown(shutdownCtx)
}
