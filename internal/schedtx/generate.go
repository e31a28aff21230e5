package schedtx

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kdantuono/money-wise-sub010/internal/models"
	"github.com/kdantuono/money-wise-sub010/internal/recur"
)

type AddLiabilityInput struct {
	Name              string
	AccountID         *int64
	CategoryID        *int64
	PaymentAmount     float64
	DueDayOfMonth     int
	RemainingPayments *int
	PayoffDate        *time.Time
}

// AddLiability stores a liability seed definition. The due day is checked
// through the same rule validation the generated series will use, so a seed
// that cannot yield a valid monthly rule is rejected up front.
func (s *Service) AddLiability(ctx context.Context, userID int64, in AddLiabilityInput) (*models.Liability, error) {
	dueDay := in.DueDayOfMonth
	rule := recur.Rule{
		Frequency:  recur.Monthly,
		Interval:   1,
		DayOfMonth: &dueDay,
		EndDate:    in.PayoffDate,
		EndCount:   in.RemainingPayments,
	}
	if err := rule.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}

	l := &models.Liability{
		ID:                uuid.NewString(),
		UserID:            userID,
		Name:              in.Name,
		AccountID:         in.AccountID,
		CategoryID:        in.CategoryID,
		PaymentAmount:     in.PaymentAmount,
		DueDayOfMonth:     in.DueDayOfMonth,
		RemainingPayments: in.RemainingPayments,
		PayoffDate:        in.PayoffDate,
		CreatedAt:         s.now(),
	}
	if err := s.liabilities.Create(ctx, l); err != nil {
		return nil, err
	}
	s.log.Info().Str("liability_id", l.ID).Int64("user_id", userID).
		Int("due_day", l.DueDayOfMonth).Msg("liability created")
	return l, nil
}

// Liabilities lists the user's liability seed definitions.
func (s *Service) Liabilities(ctx context.Context, userID int64) ([]*models.Liability, error) {
	return s.liabilities.ListByUserID(ctx, userID)
}

// GenerateFromLiabilities creates one ACTIVE monthly scheduled transaction
// for each of the user's liabilities that does not already have one. The
// operation is idempotent: liabilities already linked to a scheduled
// transaction are left alone, so re-running it never duplicates a series.
func (s *Service) GenerateFromLiabilities(ctx context.Context, userID int64) ([]*models.ScheduledTransaction, error) {
	liabilities, err := s.liabilities.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load liabilities: %w", err)
	}

	now := s.now()
	today := startOfDay(now)

	var created []*models.ScheduledTransaction
	for _, l := range liabilities {
		exists, err := s.store.ExistsForLiability(ctx, userID, l.ID)
		if err != nil {
			return created, err
		}
		if exists {
			continue
		}

		dueDay := l.DueDayOfMonth
		rule := recur.Rule{
			Frequency:  recur.Monthly,
			Interval:   1,
			DayOfMonth: &dueDay,
			EndDate:    l.PayoffDate,
			EndCount:   l.RemainingPayments,
		}
		if err := rule.Validate(); err != nil {
			s.log.Warn().Str("liability_id", l.ID).Err(err).
				Msg("skipping liability with unusable due day")
			continue
		}

		// First due date on or after today: step from yesterday so a due
		// day landing on today is kept.
		firstDue := recur.Next(rule, 0, today.AddDate(0, 0, -1))
		if firstDue == nil {
			// Already paid off; nothing left to schedule.
			continue
		}

		liabilityID := l.ID
		tx := &models.ScheduledTransaction{
			ID:              uuid.NewString(),
			UserID:          userID,
			AccountID:       l.AccountID,
			CategoryID:      l.CategoryID,
			Type:            models.TransactionTypeExpense,
			FlowType:        models.FlowTypeFixed,
			Amount:          l.PaymentAmount,
			Description:     l.Name,
			Status:          models.StatusActive,
			Rule:            rule,
			SeriesStart:     *firstDue,
			NextDueDate:     *firstDue,
			OccurrenceCount: 0,
			LiabilityID:     &liabilityID,
			Version:         1,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.store.Create(ctx, tx); err != nil {
			return created, err
		}
		s.log.Info().Str("id", tx.ID).Str("liability_id", l.ID).
			Time("first_due", *firstDue).Msg("scheduled transaction generated from liability")
		created = append(created, tx)
	}
	return created, nil
}
