package models

import "time"

// TransactionType tags the event category of a ledger transaction.
type TransactionType string

const (
	TransactionFeeAdded        TransactionType = "fee_added"
	TransactionFineAdded       TransactionType = "fine_added"
	TransactionFeeRemoved      TransactionType = "fee_removed"
	TransactionPayment         TransactionType = "payment"
	TransactionSMSNotification TransactionType = "sms_notification"
)

// Transaction is an append-only audit record of a ledger-affecting or
// notification event. Rows are never updated or deleted.
type Transaction struct {
	ID          string          `db:"id" json:"id"`
	StudentID   string          `db:"student_id" json:"student_id"`
	Description string          `db:"description" json:"description"`
	Amount      int64           `db:"amount" json:"amount"`
	Type        TransactionType `db:"transaction_type" json:"transaction_type"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// TransactionFilter restricts transaction listings.
type TransactionFilter struct {
	StudentID string
	Type      TransactionType
	Page      int
	PageSize  int
}
