package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kdantuono/money-wise-sub010/internal/database"
	"github.com/kdantuono/money-wise-sub010/internal/models"
	"github.com/kdantuono/money-wise-sub010/internal/schedtx"
)

const scheduledTransactionColumns = `id, user_id, account_id, category_id, type, flow_type, amount, description, status,
	 frequency, interval, day_of_week, day_of_month, end_date, end_count,
	 series_start, next_due_date, occurrence_count, liability_id, linked_transaction_ids,
	 notified_at, version, created_at, updated_at`

// ScheduledTransactionRepository is the Postgres implementation of
// schedtx.Store. Every query is scoped by user_id, so a record belonging to
// another user behaves exactly like a missing one.
type ScheduledTransactionRepository struct {
	db *database.DB
}

func NewScheduledTransactionRepository(db *database.DB) *ScheduledTransactionRepository {
	return &ScheduledTransactionRepository{db: db}
}

func (r *ScheduledTransactionRepository) Create(ctx context.Context, tx *models.ScheduledTransaction) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO scheduled_transactions (`+scheduledTransactionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)`,
		tx.ID, tx.UserID, tx.AccountID, tx.CategoryID, tx.Type, tx.FlowType, tx.Amount, tx.Description, tx.Status,
		tx.Rule.Frequency, tx.Rule.Interval, tx.Rule.DayOfWeek, tx.Rule.DayOfMonth, tx.Rule.EndDate, tx.Rule.EndCount,
		tx.SeriesStart, tx.NextDueDate, tx.OccurrenceCount, tx.LiabilityID, tx.LinkedTransactionIDs,
		tx.NotifiedAt, tx.Version, tx.CreatedAt, tx.UpdatedAt,
	)
	return err
}

func (r *ScheduledTransactionRepository) GetByID(ctx context.Context, id string, userID int64) (*models.ScheduledTransaction, error) {
	row := r.db.Pool.QueryRow(ctx,
		`SELECT `+scheduledTransactionColumns+`
		 FROM scheduled_transactions WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	tx, err := scanScheduledTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, schedtx.ErrNotFound
	}
	return tx, err
}

func (r *ScheduledTransactionRepository) List(ctx context.Context, userID int64, filter schedtx.Filter) ([]*models.ScheduledTransaction, error) {
	query := `SELECT ` + scheduledTransactionColumns + ` FROM scheduled_transactions WHERE user_id = $1`
	args := []any{userID}

	add := func(clause string, value any) {
		args = append(args, value)
		query += fmt.Sprintf(" AND %s = $%d", clause, len(args))
	}
	if filter.Status != nil {
		add("status", *filter.Status)
	}
	if filter.Type != nil {
		add("type", *filter.Type)
	}
	if filter.FlowType != nil {
		add("flow_type", *filter.FlowType)
	}
	if filter.AccountID != nil {
		add("account_id", *filter.AccountID)
	}
	if filter.CategoryID != nil {
		add("category_id", *filter.CategoryID)
	}

	query += " ORDER BY next_due_date ASC, created_at ASC"
	if filter.Take > 0 {
		args = append(args, filter.Take)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Skip > 0 {
		args = append(args, filter.Skip)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanScheduledTransactions(rows)
}

// Update writes the record back guarded by its version: the row is only
// touched when the stored version still matches the one the caller read,
// which serializes concurrent skip/complete commands per record.
func (r *ScheduledTransactionRepository) Update(ctx context.Context, tx *models.ScheduledTransaction) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE scheduled_transactions
		 SET account_id = $1, category_id = $2, type = $3, flow_type = $4, amount = $5, description = $6,
		     status = $7, frequency = $8, interval = $9, day_of_week = $10, day_of_month = $11,
		     end_date = $12, end_count = $13, series_start = $14, next_due_date = $15,
		     occurrence_count = $16, linked_transaction_ids = $17, notified_at = $18,
		     version = version + 1, updated_at = $19
		 WHERE id = $20 AND user_id = $21 AND version = $22`,
		tx.AccountID, tx.CategoryID, tx.Type, tx.FlowType, tx.Amount, tx.Description,
		tx.Status, tx.Rule.Frequency, tx.Rule.Interval, tx.Rule.DayOfWeek, tx.Rule.DayOfMonth,
		tx.Rule.EndDate, tx.Rule.EndCount, tx.SeriesStart, tx.NextDueDate,
		tx.OccurrenceCount, tx.LinkedTransactionIDs, tx.NotifiedAt,
		tx.UpdatedAt, tx.ID, tx.UserID, tx.Version,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.Pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM scheduled_transactions WHERE id = $1 AND user_id = $2)`,
			tx.ID, tx.UserID,
		).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return schedtx.ErrConflict
		}
		return schedtx.ErrNotFound
	}
	tx.Version++
	return nil
}

func (r *ScheduledTransactionRepository) Delete(ctx context.Context, id string, userID int64) error {
	tag, err := r.db.Pool.Exec(ctx,
		`DELETE FROM scheduled_transactions WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return schedtx.ErrNotFound
	}
	return nil
}

func (r *ScheduledTransactionRepository) ExistsForLiability(ctx context.Context, userID int64, liabilityID string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM scheduled_transactions WHERE user_id = $1 AND liability_id = $2)`,
		userID, liabilityID,
	).Scan(&exists)
	return exists, err
}

// ListDueForNotification returns active records due on or before the given
// time that have not yet been notified for their current due date.
func (r *ScheduledTransactionRepository) ListDueForNotification(ctx context.Context, until time.Time) ([]*models.ScheduledTransaction, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+scheduledTransactionColumns+`
		 FROM scheduled_transactions
		 WHERE status = 'active' AND next_due_date <= $1 AND notified_at IS NULL
		 ORDER BY next_due_date ASC`,
		until,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanScheduledTransactions(rows)
}

func (r *ScheduledTransactionRepository) SetNotifiedAt(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE scheduled_transactions SET notified_at = $1 WHERE id = $2`,
		at, id,
	)
	return err
}

func scanScheduledTransaction(row pgx.Row) (*models.ScheduledTransaction, error) {
	tx := &models.ScheduledTransaction{}
	err := row.Scan(
		&tx.ID, &tx.UserID, &tx.AccountID, &tx.CategoryID, &tx.Type, &tx.FlowType,
		&tx.Amount, &tx.Description, &tx.Status,
		&tx.Rule.Frequency, &tx.Rule.Interval, &tx.Rule.DayOfWeek, &tx.Rule.DayOfMonth,
		&tx.Rule.EndDate, &tx.Rule.EndCount,
		&tx.SeriesStart, &tx.NextDueDate, &tx.OccurrenceCount, &tx.LiabilityID,
		&tx.LinkedTransactionIDs, &tx.NotifiedAt, &tx.Version, &tx.CreatedAt, &tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func scanScheduledTransactions(rows pgx.Rows) ([]*models.ScheduledTransaction, error) {
	var list []*models.ScheduledTransaction
	for rows.Next() {
		tx, err := scanScheduledTransaction(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, tx)
	}
	return list, rows.Err()
}
