package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/fee-portal-api/internal/models"
)

// TransactionRepository appends and reads the transaction log. The table is
// insert-only: no update or delete statement exists here on purpose.
type TransactionRepository struct {
	db *sqlx.DB
}

// NewTransactionRepository constructs a TransactionRepository.
func NewTransactionRepository(db *sqlx.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const transactionColumns = "id, student_id, description, amount, transaction_type, created_at"

// Insert appends one transaction record.
func (r *TransactionRepository) Insert(ctx context.Context, txn *models.Transaction) error {
	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO transactions (id, student_id, description, amount, transaction_type, created_at)
        VALUES (:id, :student_id, :description, :amount, :transaction_type, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, txn); err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// List returns transactions matching the filter, newest first.
func (r *TransactionRepository) List(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, int, error) {
	base := "FROM transactions"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Type != "" {
		conditions = append(conditions, fmt.Sprintf("transaction_type = $%d", len(args)+1))
		args = append(args, filter.Type)
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", transactionColumns, base, size, offset)

	var txns []models.Transaction
	if err := r.db.SelectContext(ctx, &txns, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}
	return txns, total, nil
}

// FindPayment locates a payment transaction for a student by the generated
// transaction identifier embedded in its description.
func (r *TransactionRepository) FindPayment(ctx context.Context, studentID, transactionID string) (*models.Transaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM transactions
        WHERE student_id = $1 AND transaction_type = $2 AND description LIKE $3
        ORDER BY created_at DESC LIMIT 1`, transactionColumns)
	var txn models.Transaction
	pattern := "%[" + transactionID + "]%"
	if err := r.db.GetContext(ctx, &txn, query, studentID, models.TransactionPayment, pattern); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find payment transaction: %w", err)
	}
	return &txn, nil
}

// CountByType returns per-type transaction counts for dashboard reporting.
func (r *TransactionRepository) CountByType(ctx context.Context) (map[models.TransactionType]int, error) {
	const query = `SELECT transaction_type, COUNT(*) AS count FROM transactions GROUP BY transaction_type`
	rows := []struct {
		Type  models.TransactionType `db:"transaction_type"`
		Count int                    `db:"count"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("count transactions by type: %w", err)
	}
	counts := make(map[models.TransactionType]int, len(rows))
	for _, row := range rows {
		counts[row.Type] = row.Count
	}
	return counts, nil
}
