package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/fee-portal-api/internal/models"
)

// LedgerRepository manages persistence for student fee ledger entries.
type LedgerRepository struct {
	db *sqlx.DB
}

// NewLedgerRepository constructs a LedgerRepository.
func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

const ledgerColumns = "id, student_id, fee_name, year, total_amount, due_amount, paid_amount, created_at, updated_at"

// ListByStudent returns every ledger entry for one student, newest year
// grouping first.
func (r *LedgerRepository) ListByStudent(ctx context.Context, studentID string) ([]models.StudentFee, error) {
	query := fmt.Sprintf("SELECT %s FROM student_fees WHERE student_id = $1 ORDER BY year, fee_name, created_at", ledgerColumns)
	var entries []models.StudentFee
	if err := r.db.SelectContext(ctx, &entries, query, studentID); err != nil {
		return nil, fmt.Errorf("list student fees: %w", err)
	}
	return entries, nil
}

// TotalsByStudent aggregates per-year totals for one student.
func (r *LedgerRepository) TotalsByStudent(ctx context.Context, studentID string) ([]models.YearTotals, error) {
	const query = `SELECT year, COALESCE(SUM(total_amount), 0) AS total, COALESCE(SUM(due_amount), 0) AS due, COALESCE(SUM(paid_amount), 0) AS paid
        FROM student_fees WHERE student_id = $1 GROUP BY year ORDER BY year`
	var totals []models.YearTotals
	if err := r.db.SelectContext(ctx, &totals, query, studentID); err != nil {
		return nil, fmt.Errorf("sum student fees: %w", err)
	}
	return totals, nil
}

// Find returns the ledger entry matching the exact (student, fee, year) key.
// When duplicate rows share the key the oldest one is returned, matching the
// row payments target.
func (r *LedgerRepository) Find(ctx context.Context, studentID, feeName, year string) (*models.StudentFee, error) {
	query := fmt.Sprintf("SELECT %s FROM student_fees WHERE student_id = $1 AND fee_name = $2 AND year = $3 ORDER BY created_at LIMIT 1", ledgerColumns)
	var entry models.StudentFee
	if err := r.db.GetContext(ctx, &entry, query, studentID, feeName, year); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student fee: %w", err)
	}
	return &entry, nil
}

// Insert appends a new ledger entry. No uniqueness applies to the
// (student, fee, year) key: repeated charges deliberately create duplicate
// rows under the same label.
func (r *LedgerRepository) Insert(ctx context.Context, entry *models.StudentFee) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now
	const query = `INSERT INTO student_fees (id, student_id, fee_name, year, total_amount, due_amount, paid_amount, created_at, updated_at)
        VALUES (:id, :student_id, :fee_name, :year, :total_amount, :due_amount, :paid_amount, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("insert student fee: %w", err)
	}
	return nil
}

// InsertBatch writes a set of ledger entries in one statement. Used by the
// ledger initializer at student creation.
func (r *LedgerRepository) InsertBatch(ctx context.Context, entries []models.StudentFee) error {
	if len(entries) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range entries {
		if entries[i].ID == "" {
			entries[i].ID = uuid.NewString()
		}
		if entries[i].CreatedAt.IsZero() {
			entries[i].CreatedAt = now
		}
		entries[i].UpdatedAt = now
	}
	const query = `INSERT INTO student_fees (id, student_id, fee_name, year, total_amount, due_amount, paid_amount, created_at, updated_at)
        VALUES (:id, :student_id, :fee_name, :year, :total_amount, :due_amount, :paid_amount, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entries); err != nil {
		return fmt.Errorf("insert student fee batch: %w", err)
	}
	return nil
}

// ApplyPayment atomically moves amount from due to paid on the entry with
// the given id. The WHERE guard keeps due_amount from going negative under
// concurrent payments: zero rows affected on an existing entry means the
// remaining due no longer covers the amount.
func (r *LedgerRepository) ApplyPayment(ctx context.Context, entryID string, amount int64) (*models.StudentFee, error) {
	query := fmt.Sprintf(`UPDATE student_fees
        SET paid_amount = paid_amount + $2, due_amount = due_amount - $2, updated_at = $3
        WHERE id = $1 AND due_amount >= $2
        RETURNING %s`, ledgerColumns)
	var entry models.StudentFee
	if err := r.db.GetContext(ctx, &entry, query, entryID, amount, time.Now().UTC()); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("apply payment: %w", err)
	}
	return &entry, nil
}

// DeleteByKey removes every row matching the exact (student, fee, year) key
// and reports how many were deleted. Zero is not an error.
func (r *LedgerRepository) DeleteByKey(ctx context.Context, studentID, feeName, year string) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM student_fees WHERE student_id = $1 AND fee_name = $2 AND year = $3", studentID, feeName, year)
	if err != nil {
		return 0, fmt.Errorf("delete student fees: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete student fees rows affected: %w", err)
	}
	return affected, nil
}

// Debtors returns students in the given branch still owing the fee type,
// with contact fields for reminder dispatch.
func (r *LedgerRepository) Debtors(ctx context.Context, branch, feeType string) ([]models.DebtorEntry, error) {
	const query = `SELECT s.id, s.student_id, s.name, s.mobile, f.fee_name, f.year, f.due_amount
        FROM student_fees f
        JOIN students s ON s.id = f.student_id
        WHERE s.branch = $1 AND f.fee_name = $2 AND f.due_amount > 0
        ORDER BY s.student_id, f.year`
	var debtors []models.DebtorEntry
	if err := r.db.SelectContext(ctx, &debtors, query, branch, feeType); err != nil {
		return nil, fmt.Errorf("list debtors: %w", err)
	}
	return debtors, nil
}

// OutstandingTotals sums the whole ledger for dashboard reporting.
func (r *LedgerRepository) OutstandingTotals(ctx context.Context) (due int64, paid int64, err error) {
	const query = `SELECT COALESCE(SUM(due_amount), 0) AS due, COALESCE(SUM(paid_amount), 0) AS paid FROM student_fees`
	row := struct {
		Due  int64 `db:"due"`
		Paid int64 `db:"paid"`
	}{}
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		return 0, 0, fmt.Errorf("sum ledger: %w", err)
	}
	return row.Due, row.Paid, nil
}
