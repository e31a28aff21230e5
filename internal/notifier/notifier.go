// Package notifier sends Telegram reminders for scheduled transactions that
// are coming due. It polls on a fixed interval and notifies each record at
// most once per due date: advancing the series clears the notified marker.
package notifier

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/kdantuono/money-wise-sub010/internal/models"
	"github.com/kdantuono/money-wise-sub010/internal/recur"
)

// Store is the slice of persistence the notifier needs.
type Store interface {
	ListDueForNotification(ctx context.Context, until time.Time) ([]*models.ScheduledTransaction, error)
	SetNotifiedAt(ctx context.Context, id string, at time.Time) error
}

type Notifier struct {
	api      *tgbotapi.BotAPI
	store    Store
	interval time.Duration
	leadDays int
	log      zerolog.Logger
}

func New(api *tgbotapi.BotAPI, store Store, interval time.Duration, leadDays int, log zerolog.Logger) *Notifier {
	if interval <= 0 {
		interval = time.Hour
	}
	if leadDays < 0 {
		leadDays = 0
	}
	return &Notifier{
		api:      api,
		store:    store,
		interval: interval,
		leadDays: leadDays,
		log:      log,
	}
}

func (n *Notifier) Start(ctx context.Context) {
	n.log.Info().Dur("interval", n.interval).Int("lead_days", n.leadDays).Msg("notifier started")
	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	n.check(ctx)

	for {
		select {
		case <-ctx.Done():
			n.log.Info().Msg("notifier stopped")
			return
		case <-ticker.C:
			n.check(ctx)
		}
	}
}

func (n *Notifier) check(ctx context.Context) {
	now := time.Now()
	until := now.AddDate(0, 0, n.leadDays)

	due, err := n.store.ListDueForNotification(ctx, until)
	if err != nil {
		n.log.Error().Err(err).Msg("failed to list due scheduled transactions")
		return
	}

	for _, tx := range due {
		msg := tgbotapi.NewMessage(tx.UserID, buildMessage(tx, now))
		if _, err := n.api.Send(msg); err != nil {
			n.log.Error().Err(err).Str("id", tx.ID).Int64("user_id", tx.UserID).
				Msg("failed to send due notification")
			continue
		}
		if err := n.store.SetNotifiedAt(ctx, tx.ID, now); err != nil {
			n.log.Error().Err(err).Str("id", tx.ID).Msg("failed to record notification")
			continue
		}
		n.log.Info().Str("id", tx.ID).Int64("user_id", tx.UserID).
			Time("due", tx.NextDueDate).Msg("sent due notification")
	}
}

func buildMessage(tx *models.ScheduledTransaction, now time.Time) string {
	title := tx.Description
	if title == "" {
		title = "Scheduled transaction"
	}

	text := "💸 " + title + "\n"
	text += fmt.Sprintf("Amount: %.2f\n", tx.Amount)
	text += "Due: " + formatDueDate(tx.NextDueDate, now)
	text += "\n🔄 " + recur.Describe(tx.Rule)
	return text
}

func formatDueDate(due, now time.Time) string {
	today := startOfDay(now)
	dueDay := startOfDay(due)
	days := int(dueDay.Sub(today).Hours() / 24)

	switch {
	case days < 0:
		return fmt.Sprintf("%s (overdue by %d days)", due.Format("Jan 2"), -days)
	case days == 0:
		return "today"
	case days == 1:
		return "tomorrow"
	default:
		return fmt.Sprintf("%s (in %d days)", due.Format("Jan 2"), days)
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
