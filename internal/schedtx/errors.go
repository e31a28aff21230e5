package schedtx

import "errors"

var (
	// ErrNotFound covers both unknown ids and records owned by another
	// user; the store never reveals which.
	ErrNotFound = errors.New("scheduled transaction not found")
	// ErrNotActive rejects lifecycle commands on completed or cancelled
	// records.
	ErrNotActive = errors.New("scheduled transaction is not active")
	// ErrConflict signals a lost optimistic-concurrency race; the caller
	// should re-read and retry the command.
	ErrConflict = errors.New("scheduled transaction was modified concurrently")
	// ErrInvalidRule wraps the specific recurrence-rule violation.
	ErrInvalidRule = errors.New("invalid recurrence rule")
)
