// Package main is the entry point for the GitHub scraper API server.
//
// MAIN PACKAGE IN GO:
// main is kept minimal. Its job is to:
//  1. Read configuration (.env file, then environment variables)
//  2. Build the logger
//  3. Hand both to internal/server and block until shutdown
//
// All actual logic lives in imported packages (internal/server,
// internal/service, ...), which keeps it testable without a process.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/sakif/github-scraper/internal/config"
	"github.com/sakif/github-scraper/internal/logging"
	"github.com/sakif/github-scraper/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// === 1. READ CONFIGURATION ===
	// A .env file is a development convenience; real environment variables
	// always win over it.
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// === 2. SET UP LOGGING ===
	logger, closeLog, err := logging.New(cfg.Log, os.Stdout)
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	defer closeLog()

	// === 3. CREATE AND START THE SERVER ===
	srv, err := server.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		return err
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		return err
	}
	return nil
}
