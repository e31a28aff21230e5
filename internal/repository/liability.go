package repository

import (
	"context"

	"github.com/kdantuono/money-wise-sub010/internal/database"
	"github.com/kdantuono/money-wise-sub010/internal/models"
)

type LiabilityRepository struct {
	db *database.DB
}

func NewLiabilityRepository(db *database.DB) *LiabilityRepository {
	return &LiabilityRepository{db: db}
}

func (r *LiabilityRepository) Create(ctx context.Context, l *models.Liability) error {
	return r.db.Pool.QueryRow(ctx,
		`INSERT INTO liabilities (id, user_id, name, account_id, category_id, payment_amount,
		 due_day_of_month, remaining_payments, payoff_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING created_at`,
		l.ID, l.UserID, l.Name, l.AccountID, l.CategoryID, l.PaymentAmount,
		l.DueDayOfMonth, l.RemainingPayments, l.PayoffDate,
	).Scan(&l.CreatedAt)
}

func (r *LiabilityRepository) ListByUserID(ctx context.Context, userID int64) ([]*models.Liability, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, user_id, name, account_id, category_id, payment_amount,
		 due_day_of_month, remaining_payments, payoff_date, created_at
		 FROM liabilities WHERE user_id = $1 ORDER BY created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var liabilities []*models.Liability
	for rows.Next() {
		l := &models.Liability{}
		if err := rows.Scan(&l.ID, &l.UserID, &l.Name, &l.AccountID, &l.CategoryID,
			&l.PaymentAmount, &l.DueDayOfMonth, &l.RemainingPayments, &l.PayoffDate, &l.CreatedAt); err != nil {
			return nil, err
		}
		liabilities = append(liabilities, l)
	}
	return liabilities, rows.Err()
}

// ListUserIDs returns the distinct users that own at least one liability.
// The worker iterates these when running the scheduled generation job.
func (r *LiabilityRepository) ListUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT DISTINCT user_id FROM liabilities`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
