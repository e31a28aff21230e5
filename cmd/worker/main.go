// The worker runs the background side of the service: Telegram due-date
// notifications and the daily job that turns liabilities into scheduled
// transactions.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/kdantuono/money-wise-sub010/internal/config"
	"github.com/kdantuono/money-wise-sub010/internal/database"
	"github.com/kdantuono/money-wise-sub010/internal/logger"
	"github.com/kdantuono/money-wise-sub010/internal/notifier"
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

	if err := db.Migrate(ctx, log); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	txRepo := repository.NewScheduledTransactionRepository(db)
	liabilityRepo := repository.NewLiabilityRepository(db)
	svc := schedtx.New(txRepo, liabilityRepo, log)

	if cfg.TelegramToken != "" {
		tgAPI, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create Telegram API")
		}
		n := notifier.New(tgAPI, txRepo, cfg.NotifyInterval, cfg.NotifyLeadDays, log)
		go n.Start(ctx)
	} else {
		log.Info().Msg("Telegram notifications disabled, no token configured")
	}

	c := cron.New()
	_, err = c.AddFunc(cfg.GenerateCron, func() {
		generateForAllUsers(ctx, liabilityRepo, svc, log)
	})
	if err != nil {
		log.Fatal().Err(err).Str("spec", cfg.GenerateCron).Msg("invalid cron spec")
	}
	c.Start()
	log.Info().Str("spec", cfg.GenerateCron).Msg("liability generation job scheduled")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info().Msg("shutting down")

	cancel()
	<-c.Stop().Done()
}

func generateForAllUsers(ctx context.Context, liabilities *repository.LiabilityRepository, svc *schedtx.Service, log zerolog.Logger) {
	userIDs, err := liabilities.ListUserIDs(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to list users with liabilities")
		return
	}
	for _, userID := range userIDs {
		created, err := svc.GenerateFromLiabilities(ctx, userID)
		if err != nil {
			log.Error().Err(err).Int64("user_id", userID).Msg("liability generation failed")
			continue
		}
		if len(created) > 0 {
			log.Info().Int64("user_id", userID).Int("created", len(created)).
				Msg("generated scheduled transactions from liabilities")
		}
	}
}
