package model

import "time"

// Schedule is a per-user distribution schedule. At most one schedule
// per user is active at any time; creating a new one deactivates the
// rest in the same transaction.
type Schedule struct {
	ID             int64
	UserID         int64
	CronExpr       string
	Description    string
	Active         bool
	CreatedAt      time.Time
	LastExecuted   *time.Time
	ExecutionCount int
}
