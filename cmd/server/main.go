// Package main is the entry point for the MentorHub orchestration service.
// It fronts the mentorship backend with a caching, deduplicating,
// rate-limited gateway and exposes probation progress calculations over
// a REST API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mentorhq/mentorhub/internal/cache"
	"github.com/mentorhq/mentorhub/internal/config"
	"github.com/mentorhq/mentorhub/internal/gateway"
	"github.com/mentorhq/mentorhub/internal/probation"
	"github.com/mentorhq/mentorhub/internal/server"
	"github.com/mentorhq/mentorhub/pkg/logger"
)

// purgeSchedule is how often the cache janitor sweeps expired entries.
// Expired entries are also dropped lazily on read, so the sweep only
// reclaims memory for keys nobody asks for anymore.
const purgeSchedule = "@every 5m"

// main orchestrates the startup sequence:
//  1. Loads configuration from environment variables (.env file)
//  2. Initializes structured logging
//  3. Builds the backend gateway (cache, deduplicator, rate limiter, executor)
//  4. Wires the probation progress service on top of the gateway
//  5. Starts the cache janitor and HTTP server
//  6. Waits for shutdown signal and drains in-flight work
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

	log.Info().Msg("Starting MentorHub")

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// The gateway is the single path to the backend. Every read goes
	// through its cache and deduplicator, and every request through its
	// rate limiter, so the backend quota holds no matter how many
	// handlers fire at once.
	gw := gateway.New(gateway.Config{
		Executor: gateway.ExecutorConfig{
			BaseURL:    cfg.BackendBaseURL,
			Token:      cfg.BackendToken,
			Timeout:    cfg.RequestTimeout,
			MaxRetries: cfg.MaxRetries,
			Backoff:    cfg.RetryBackoff,
		},
		Limiter: gateway.LimiterConfig{
			MaxRequests:   cfg.MaxRequests,
			Window:        cfg.Window,
			MaxConcurrent: cfg.MaxConcurrent,
		},
		CacheTTL: cfg.CacheTTL,
	}, log)

	probationSvc := probation.NewService(gw, log)

	// Background sweep of expired cache entries. Reads already expire
	// lazily; this keeps memory bounded for keys that stop being read.
	janitor := cache.NewJanitor(gw.Cache(), log)
	if err := janitor.Start(purgeSchedule); err != nil {
		log.Fatal().Err(err).Msg("Failed to start cache janitor")
	}

	srv := server.New(server.Config{
		Port:      cfg.Port,
		Log:       log,
		DevMode:   cfg.DevMode,
		Gateway:   gw,
		Probation: probationSvc,
	})

	// Start server in goroutine so the main thread can wait on signals.
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Block until SIGINT (Ctrl+C) or SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	janitor.Stop()

	// Give the HTTP server up to 10 seconds to finish in-flight requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Drain queued backend requests and drop the cache.
	gw.Close()

	log.Info().Msg("Server stopped")
}
