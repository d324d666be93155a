package models

import "time"

// FeeDeadline is an informational payment deadline for a branch and fee
// type. It has no referential effect on ledger entries.
type FeeDeadline struct {
	ID        string    `db:"id" json:"id"`
	Branch    string    `db:"branch" json:"branch"`
	FeeType   string    `db:"fee_type" json:"fee_type"`
	Deadline  time.Time `db:"deadline" json:"deadline"`
	CreatedBy *string   `db:"created_by" json:"created_by,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CreateDeadlineRequest registers a new fee deadline.
type CreateDeadlineRequest struct {
	Branch   string    `json:"branch" validate:"required,max=64"`
	FeeType  string    `json:"fee_type" validate:"required,max=64"`
	Deadline time.Time `json:"deadline" validate:"required"`
}

// ReminderDispatch reports how many reminders a notify run produced.
type ReminderDispatch struct {
	DeadlineID string `json:"deadline_id"`
	Queued     int    `json:"queued"`
}
