package schedtx

import (
	"context"

	"github.com/kdantuono/money-wise-sub010/internal/models"
)

// Filter narrows List results. Nil fields are ignored. Take <= 0 means no
// page size cap.
type Filter struct {
	Status     *models.ScheduledTransactionStatus
	Type       *models.TransactionType
	FlowType   *models.FlowType
	AccountID  *int64
	CategoryID *int64
	Skip       int
	Take       int
}

// Store is the persistence collaborator for scheduled transactions. Update
// must serialize concurrent writers per record (the Postgres implementation
// uses a version column) and report a lost race as ErrConflict; lookups that
// match nothing return ErrNotFound.
type Store interface {
	Create(ctx context.Context, tx *models.ScheduledTransaction) error
	GetByID(ctx context.Context, id string, userID int64) (*models.ScheduledTransaction, error)
	List(ctx context.Context, userID int64, filter Filter) ([]*models.ScheduledTransaction, error)
	Update(ctx context.Context, tx *models.ScheduledTransaction) error
	Delete(ctx context.Context, id string, userID int64) error
	ExistsForLiability(ctx context.Context, userID int64, liabilityID string) (bool, error)
}

// LiabilityStore holds the liability seed definitions for bulk generation.
type LiabilityStore interface {
	Create(ctx context.Context, l *models.Liability) error
	ListByUserID(ctx context.Context, userID int64) ([]*models.Liability, error)
}
