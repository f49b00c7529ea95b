// Package main is the entry point for Cornerstone, the Manhattan office
// conversion analytics service.
//
// Startup order:
//  1. Load configuration from the environment (.env supported)
//  2. Build the logger
//  3. Wire databases, caches, clients and services via the DI container
//  4. Start the job scheduler and the HTTP server
//  5. Wait for SIGINT/SIGTERM and shut down gracefully
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/cornerstone/internal/config"
	"github.com/aristath/cornerstone/internal/di"
	"github.com/aristath/cornerstone/internal/server"
	"github.com/aristath/cornerstone/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("data_dir", cfg.DataDir).
		Str("profile", string(cfg.ScoringProfile)).
		Msg("Starting Cornerstone")

	container, jobs, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}

	// Nothing restored from the store: load in the background
	if container.Dataset.Size() == 0 {
		go func() {
			if err := container.Scheduler.RunNow(jobs.Reload); err != nil {
				log.Warn().Err(err).Msg("Initial dataset load failed")
			}
		}()
	}

	container.Scheduler.Start()

	srv := server.New(server.Config{
		Log:            log,
		Port:           cfg.Port,
		DevMode:        cfg.DevMode,
		AllowedOrigins: cfg.AllowedOrigins,
		Container:      container,
		Jobs:           jobs,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// In-flight requests get 10 seconds to finish
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Close stops the scheduler, waiting for running jobs, then releases stores
	if err := container.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close resources")
	}

	log.Info().Msg("Server stopped")
}
