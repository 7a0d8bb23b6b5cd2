package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/copyleftdev/shakelines/internal/config"
	"github.com/copyleftdev/shakelines/internal/logging"
	"github.com/copyleftdev/shakelines/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use standard error as fallback if config loading fails
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(&logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	// Wait for interrupt signal to gracefully shut down the server
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.ListenAndServe(ctx, cfg, logger); err != nil {
		logger.Fatal("Server failed", map[string]interface{}{"error": err.Error()})
	}
}
