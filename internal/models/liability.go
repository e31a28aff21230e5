package models

import "time"

// Liability is a debt record used to seed scheduled transactions: a monthly
// payment due on a fixed day of the month, optionally bounded by a number of
// remaining payments or a payoff date.
type Liability struct {
	ID                string     `json:"id"`
	UserID            int64      `json:"user_id"`
	Name              string     `json:"name"`
	AccountID         *int64     `json:"account_id"`
	CategoryID        *int64     `json:"category_id"`
	PaymentAmount     float64    `json:"payment_amount"`
	DueDayOfMonth     int        `json:"due_day_of_month"` // 1-31, or -1 for last day
	RemainingPayments *int       `json:"remaining_payments,omitempty"`
	PayoffDate        *time.Time `json:"payoff_date,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}
