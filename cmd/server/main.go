package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/voice-ledger/internal/app"
	"github.com/dvloznov/voice-ledger/internal/config"
	"github.com/dvloznov/voice-ledger/internal/logger"
)

func main() {
	// Parse command-line flags
	var (
		cfgFile   = flag.String("config", "", "config file (default voiceledger.yaml in . or ~/.voice-ledger)")
		addr      = flag.String("addr", "", "listen address (overrides server.addr)")
		ephemeral = flag.Bool("ephemeral", false, "keep the ledger in memory only")
	)
	flag.Parse()

	cfg, err := config.Load(*cfgFile)
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	// Initialize logger
	log := logger.NewWithOptions(logger.Options{Level: cfg.Log.Level, JSON: cfg.Log.JSON})

	ctx := context.Background()
	a, err := app.New(ctx, cfg, log, app.Options{Ephemeral: *ephemeral})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize ledger")
	}

	// Start capture workers in background
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()
	if err := a.Start(workerCtx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start capture workers")
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      a.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.AI.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", cfg.Server.Addr).
			Str("storage", cfg.Storage.Driver).
			Bool("ai_available", a.Ledger.AIAvailable()).
			Msg("Starting ledger server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Drain queued captures, then flush the last save
	if err := a.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}
