package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kdantuono/money-wise-sub010/internal/ai"
	"github.com/kdantuono/money-wise-sub010/internal/api"
	"github.com/kdantuono/money-wise-sub010/internal/config"
	"github.com/kdantuono/money-wise-sub010/internal/database"
	"github.com/kdantuono/money-wise-sub010/internal/logger"
	"github.com/kdantuono/money-wise-sub010/internal/repository"
	"github.com/kdantuono/money-wise-sub010/internal/schedtx"
)

func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.DatabaseURI == "" {
		log.Fatal().Msg("DATABASE_URI is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(ctx, cfg.DatabaseURI)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("connected to database")

	if err := db.Migrate(ctx, log); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	txRepo := repository.NewScheduledTransactionRepository(db)
	liabilityRepo := repository.NewLiabilityRepository(db)
	svc := schedtx.New(txRepo, liabilityRepo, log)

	var parser api.RecurrenceParser
	if cfg.AIAPIKey != "" {
		parser = ai.New(cfg.AIAPIKey, cfg.AIBaseURL, cfg.AIModel)
		log.Info().Str("model", cfg.AIModel).Msg("AI recurrence parsing enabled")
	} else {
		log.Info().Msg("AI recurrence parsing disabled, no API key configured")
	}

	handler := api.NewHandler(svc, parser, log)
	var root http.Handler = handler.Routes()
	root = api.CORS(root)
	root = api.Logger(log)(root)
	root = api.Recovery(log)(root)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown failed")
		}
		cancel()
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Msg("starting HTTP server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server error")
	}
}
