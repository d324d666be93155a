package models

import "time"

// StudentFee is one ledger entry keyed by (student, fee name, year).
// total_amount == paid_amount + due_amount holds after every mutation and
// due_amount never goes negative. Duplicate rows under the same key are
// permitted: bulk charges always append a fresh row.
type StudentFee struct {
	ID          string    `db:"id" json:"id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	FeeName     string    `db:"fee_name" json:"fee_name"`
	Year        string    `db:"year" json:"year"`
	TotalAmount int64     `db:"total_amount" json:"total_amount"`
	DueAmount   int64     `db:"due_amount" json:"due_amount"`
	PaidAmount  int64     `db:"paid_amount" json:"paid_amount"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// YearTotals aggregates a student's position for one academic year.
type YearTotals struct {
	Year  string `db:"year" json:"year"`
	Total int64  `db:"total" json:"total"`
	Due   int64  `db:"due" json:"due"`
	Paid  int64  `db:"paid" json:"paid"`
}

// StudentLedger is the full fee position returned to dashboards.
type StudentLedger struct {
	Entries []StudentFee `json:"entries"`
	Totals  []YearTotals `json:"totals"`
}

// PaymentResult describes an applied payment.
type PaymentResult struct {
	TransactionID string     `json:"transaction_id"`
	Entry         StudentFee `json:"entry"`
	Amount        int64      `json:"amount"`
	Method        string     `json:"method"`
	PaidAt        time.Time  `json:"paid_at"`
}

// PaymentRequest applies a payment against one ledger entry.
type PaymentRequest struct {
	FeeName string `json:"fee_name" validate:"required"`
	Year    string `json:"year" validate:"required"`
	Amount  int64  `json:"amount" validate:"required,min=1"`
	Method  string `json:"method" validate:"required,oneof=Cash Card UPI NetBanking"`
}

// BulkChargeRequest applies a fee or fine to a set of students.
type BulkChargeRequest struct {
	StudentIDs []string   `json:"student_ids" validate:"required,min=1,dive,required"`
	FeeName    string     `json:"fee_name" validate:"required"`
	Year       string     `json:"year" validate:"required"`
	Amount     int64      `json:"amount" validate:"required,min=1"`
	Kind       ChargeKind `json:"kind" validate:"required,oneof=fee fine"`
}

// BulkRemoveRequest deletes ledger rows matching a (fee, year) key for a set
// of students.
type BulkRemoveRequest struct {
	StudentIDs []string `json:"student_ids" validate:"required,min=1,dive,required"`
	FeeName    string   `json:"fee_name" validate:"required"`
	Year       string   `json:"year" validate:"required"`
}

// ChargeKind distinguishes extra fees from fines in bulk application.
type ChargeKind string

const (
	ChargeKindFee  ChargeKind = "fee"
	ChargeKindFine ChargeKind = "fine"
)

// DebtorEntry pairs a ledger row with the owning student's contact fields,
// used when dispatching deadline reminders.
type DebtorEntry struct {
	StudentUUID string `db:"id" json:"id"`
	StudentID   string `db:"student_id" json:"student_id"`
	Name        string `db:"name" json:"name"`
	Mobile      string `db:"mobile" json:"mobile"`
	FeeName     string `db:"fee_name" json:"fee_name"`
	Year        string `db:"year" json:"year"`
	DueAmount   int64  `db:"due_amount" json:"due_amount"`
}
