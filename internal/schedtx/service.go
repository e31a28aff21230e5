// Package schedtx owns the scheduled-transaction lifecycle: creation,
// filtering, upcoming and calendar projections, and the skip/complete state
// machine. All date arithmetic is delegated to the recur engine; all I/O to
// the store collaborators.
package schedtx

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kdantuono/money-wise-sub010/internal/models"
	"github.com/kdantuono/money-wise-sub010/internal/recur"
)

// DefaultUpcomingDays is the window used when Upcoming is called with
// days <= 0.
const DefaultUpcomingDays = 30

type Service struct {
	store       Store
	liabilities LiabilityStore
	now         func() time.Time
	log         zerolog.Logger
}

func New(store Store, liabilities LiabilityStore, log zerolog.Logger) *Service {
	return &Service{
		store:       store,
		liabilities: liabilities,
		now:         time.Now,
		log:         log,
	}
}

// WithClock overrides the time source. Tests use this to pin "now".
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type CreateInput struct {
	AccountID   *int64
	CategoryID  *int64
	Type        models.TransactionType
	FlowType    models.FlowType
	Amount      float64
	Description string
	Rule        recur.Rule
	SeriesStart time.Time
}

// Create validates the rule and stores a new ACTIVE scheduled transaction
// whose first occurrence is the series start itself.
func (s *Service) Create(ctx context.Context, userID int64, in CreateInput) (*models.ScheduledTransaction, error) {
	if err := in.Rule.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	if in.Type == "" {
		in.Type = models.TransactionTypeExpense
	}
	if in.FlowType == "" {
		in.FlowType = models.FlowTypeFixed
	}

	now := s.now()
	tx := &models.ScheduledTransaction{
		ID:              uuid.NewString(),
		UserID:          userID,
		AccountID:       in.AccountID,
		CategoryID:      in.CategoryID,
		Type:            in.Type,
		FlowType:        in.FlowType,
		Amount:          in.Amount,
		Description:     in.Description,
		Status:          models.StatusActive,
		Rule:            in.Rule,
		SeriesStart:     in.SeriesStart,
		NextDueDate:     in.SeriesStart,
		OccurrenceCount: 0,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.Create(ctx, tx); err != nil {
		return nil, err
	}
	s.log.Info().Str("id", tx.ID).Int64("user_id", userID).
		Str("rule", recur.Describe(tx.Rule)).Msg("scheduled transaction created")
	return tx, nil
}

func (s *Service) Get(ctx context.Context, id string, userID int64) (*models.ScheduledTransaction, error) {
	return s.store.GetByID(ctx, id, userID)
}

func (s *Service) List(ctx context.Context, userID int64, filter Filter) ([]*models.ScheduledTransaction, error) {
	return s.store.List(ctx, userID, filter)
}

type UpdateInput struct {
	AccountID   *int64
	CategoryID  *int64
	Type        *models.TransactionType
	FlowType    *models.FlowType
	Amount      *float64
	Description *string
	Rule        *recur.Rule
	NextDueDate *time.Time
	Cancel      bool
}

// Update patches a scheduled transaction. Only ACTIVE records can change;
// cancellation is the one transition allowed here and is terminal.
func (s *Service) Update(ctx context.Context, id string, userID int64, in UpdateInput) (*models.ScheduledTransaction, error) {
	tx, err := s.store.GetByID(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if !tx.IsActive() {
		return nil, ErrNotActive
	}

	if in.Rule != nil {
		if err := in.Rule.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
		}
		tx.Rule = *in.Rule
	}
	if in.AccountID != nil {
		tx.AccountID = in.AccountID
	}
	if in.CategoryID != nil {
		tx.CategoryID = in.CategoryID
	}
	if in.Type != nil {
		tx.Type = *in.Type
	}
	if in.FlowType != nil {
		tx.FlowType = *in.FlowType
	}
	if in.Amount != nil {
		tx.Amount = *in.Amount
	}
	if in.Description != nil {
		tx.Description = *in.Description
	}
	if in.NextDueDate != nil {
		tx.NextDueDate = *in.NextDueDate
		tx.NotifiedAt = nil
	}
	if in.Cancel {
		tx.Status = models.StatusCancelled
	}

	tx.UpdatedAt = s.now()
	if err := s.store.Update(ctx, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

func (s *Service) Remove(ctx context.Context, id string, userID int64) error {
	return s.store.Delete(ctx, id, userID)
}

// Skip advances past the next occurrence without materializing anything.
func (s *Service) Skip(ctx context.Context, id string, userID int64) (*models.ScheduledTransaction, error) {
	return s.advance(ctx, id, userID, nil)
}

// Complete consumes the current occurrence, optionally linking the ledger
// transaction an external collaborator materialized for it.
func (s *Service) Complete(ctx context.Context, id string, userID int64, linkedTransactionID *string) (*models.ScheduledTransaction, error) {
	return s.advance(ctx, id, userID, linkedTransactionID)
}

// advance is the shared skip/complete transition: consume one occurrence,
// then ask the engine for the next date. A nil answer means the series is
// spent; the record flips to COMPLETED and NextDueDate stays frozen.
func (s *Service) advance(ctx context.Context, id string, userID int64, linkedTransactionID *string) (*models.ScheduledTransaction, error) {
	tx, err := s.store.GetByID(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if !tx.IsActive() {
		return nil, ErrNotActive
	}

	tx.OccurrenceCount++
	if next := recur.Next(tx.Rule, tx.OccurrenceCount, tx.NextDueDate); next != nil {
		tx.NextDueDate = *next
		tx.NotifiedAt = nil
	} else {
		tx.Status = models.StatusCompleted
	}

	if linkedTransactionID != nil && *linkedTransactionID != "" {
		tx.LinkedTransactionIDs = append(tx.LinkedTransactionIDs, *linkedTransactionID)
	}

	tx.UpdatedAt = s.now()
	if err := s.store.Update(ctx, tx); err != nil {
		return nil, err
	}
	s.log.Debug().Str("id", tx.ID).Str("status", string(tx.Status)).
		Time("next_due", tx.NextDueDate).Msg("scheduled transaction advanced")
	return tx, nil
}

// Upcoming returns the active scheduled transactions whose stored next due
// date falls within [today, today+days]. Only the single stored date is
// consulted; short-interval rules are not projected multiple times inside
// the window.
func (s *Service) Upcoming(ctx context.Context, userID int64, days int) ([]*models.UpcomingScheduledTransaction, error) {
	if days <= 0 {
		days = DefaultUpcomingDays
	}
	status := models.StatusActive
	list, err := s.store.List(ctx, userID, Filter{Status: &status})
	if err != nil {
		return nil, err
	}

	windowStart := startOfDay(s.now())
	windowEnd := windowStart.AddDate(0, 0, days)

	var out []*models.UpcomingScheduledTransaction
	for _, tx := range list {
		due := startOfDay(tx.NextDueDate)
		if due.Before(windowStart) || due.After(windowEnd) {
			continue
		}
		out = append(out, &models.UpcomingScheduledTransaction{
			ScheduledTransaction: *tx,
			DaysUntilDue:         int(due.Sub(windowStart).Hours() / 24),
			RecurrenceLabel:      recur.Describe(tx.Rule),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].NextDueDate.Before(out[j].NextDueDate)
	})
	return out, nil
}

// CalendarEvents projects every active scheduled transaction into the date
// range, one event per occurrence the engine yields.
func (s *Service) CalendarEvents(ctx context.Context, userID int64, start, end time.Time) ([]*models.CalendarEvent, error) {
	status := models.StatusActive
	list, err := s.store.List(ctx, userID, Filter{Status: &status})
	if err != nil {
		return nil, err
	}

	var events []*models.CalendarEvent
	for _, tx := range list {
		label := recur.Describe(tx.Rule)
		dates := recur.InRange(tx.Rule, tx.OccurrenceCount, tx.NextDueDate, start, end, recur.DefaultRangeLimit)
		for _, d := range dates {
			events = append(events, &models.CalendarEvent{
				ScheduledTransactionID: tx.ID,
				UserID:                 tx.UserID,
				Date:                   d,
				Title:                  tx.Description,
				Amount:                 tx.Amount,
				Type:                   tx.Type,
				FlowType:               tx.FlowType,
				RecurrenceLabel:        label,
			})
		}
	}
	sort.Slice(events, func(i, j int) bool {
		if !events[i].Date.Equal(events[j].Date) {
			return events[i].Date.Before(events[j].Date)
		}
		return events[i].ScheduledTransactionID < events[j].ScheduledTransactionID
	})
	return events, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
