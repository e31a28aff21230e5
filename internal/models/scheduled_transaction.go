package models

import (
	"time"

	"github.com/kdantuono/money-wise-sub010/internal/recur"
)

type ScheduledTransactionStatus string

const (
	StatusActive    ScheduledTransactionStatus = "active"
	StatusCompleted ScheduledTransactionStatus = "completed"
	StatusCancelled ScheduledTransactionStatus = "cancelled"
)

type TransactionType string

const (
	TransactionTypeIncome   TransactionType = "income"
	TransactionTypeExpense  TransactionType = "expense"
	TransactionTypeTransfer TransactionType = "transfer"
)

// FlowType distinguishes obligations with a fixed amount per occurrence
// (rent, loan payments) from ones whose amount varies (utility bills).
type FlowType string

const (
	FlowTypeFixed    FlowType = "fixed"
	FlowTypeVariable FlowType = "variable"
)

// ScheduledTransaction pairs a recurrence rule with transaction details and a
// lifecycle state. NextDueDate is the single clock hand of the entity: every
// skip/complete command advances it through the recurrence engine.
type ScheduledTransaction struct {
	ID                   string                     `json:"id"`
	UserID               int64                      `json:"user_id"`
	AccountID            *int64                     `json:"account_id"`
	CategoryID           *int64                     `json:"category_id"`
	Type                 TransactionType            `json:"type"`
	FlowType             FlowType                   `json:"flow_type"`
	Amount               float64                    `json:"amount"`
	Description          string                     `json:"description"`
	Status               ScheduledTransactionStatus `json:"status"`
	Rule                 recur.Rule                 `json:"rule"`
	SeriesStart          time.Time                  `json:"series_start"`
	NextDueDate          time.Time                  `json:"next_due_date"`
	OccurrenceCount      int                        `json:"occurrence_count"`
	LiabilityID          *string                    `json:"liability_id,omitempty"`
	LinkedTransactionIDs []string                   `json:"linked_transaction_ids,omitempty"`
	NotifiedAt           *time.Time                 `json:"notified_at,omitempty"`
	Version              int                        `json:"version"`
	CreatedAt            time.Time                  `json:"created_at"`
	UpdatedAt            time.Time                  `json:"updated_at"`
}

func (s *ScheduledTransaction) IsActive() bool {
	return s.Status == StatusActive
}

// UpcomingScheduledTransaction is an active scheduled transaction whose
// stored next due date falls inside the requested window.
type UpcomingScheduledTransaction struct {
	ScheduledTransaction
	DaysUntilDue    int    `json:"days_until_due"`
	RecurrenceLabel string `json:"recurrence_label"`
}

// CalendarEvent is one projected occurrence of a scheduled transaction,
// carrying the display fields a calendar view needs.
type CalendarEvent struct {
	ScheduledTransactionID string          `json:"scheduled_transaction_id"`
	UserID                 int64           `json:"user_id"`
	Date                   time.Time       `json:"date"`
	Title                  string          `json:"title"`
	Amount                 float64         `json:"amount"`
	Type                   TransactionType `json:"type"`
	FlowType               FlowType        `json:"flow_type"`
	RecurrenceLabel        string          `json:"recurrence_label"`
}
