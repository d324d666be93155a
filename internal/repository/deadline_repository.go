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

// DeadlineRepository manages fee deadline records.
type DeadlineRepository struct {
	db *sqlx.DB
}

// NewDeadlineRepository constructs a DeadlineRepository.
func NewDeadlineRepository(db *sqlx.DB) *DeadlineRepository {
	return &DeadlineRepository{db: db}
}

const deadlineColumns = "id, branch, fee_type, deadline, created_by, created_at"

// List returns all deadlines ordered by the deadline timestamp.
func (r *DeadlineRepository) List(ctx context.Context) ([]models.FeeDeadline, error) {
	query := fmt.Sprintf("SELECT %s FROM fee_deadlines ORDER BY deadline", deadlineColumns)
	var deadlines []models.FeeDeadline
	if err := r.db.SelectContext(ctx, &deadlines, query); err != nil {
		return nil, fmt.Errorf("list deadlines: %w", err)
	}
	return deadlines, nil
}

// FindByID returns one deadline.
func (r *DeadlineRepository) FindByID(ctx context.Context, id string) (*models.FeeDeadline, error) {
	query := fmt.Sprintf("SELECT %s FROM fee_deadlines WHERE id = $1 LIMIT 1", deadlineColumns)
	var deadline models.FeeDeadline
	if err := r.db.GetContext(ctx, &deadline, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find deadline: %w", err)
	}
	return &deadline, nil
}

// Create inserts a deadline record.
func (r *DeadlineRepository) Create(ctx context.Context, deadline *models.FeeDeadline) error {
	if deadline.ID == "" {
		deadline.ID = uuid.NewString()
	}
	if deadline.CreatedAt.IsZero() {
		deadline.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO fee_deadlines (id, branch, fee_type, deadline, created_by, created_at)
        VALUES (:id, :branch, :fee_type, :deadline, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, deadline); err != nil {
		return fmt.Errorf("create deadline: %w", err)
	}
	return nil
}

// Delete removes a deadline. Deadlines are informational: deleting one has
// no effect on ledger entries.
func (r *DeadlineRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM fee_deadlines WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete deadline: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete deadline rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DueWithin returns deadlines falling between now and now+lookahead.
func (r *DeadlineRepository) DueWithin(ctx context.Context, lookahead time.Duration) ([]models.FeeDeadline, error) {
	now := time.Now().UTC()
	query := fmt.Sprintf("SELECT %s FROM fee_deadlines WHERE deadline >= $1 AND deadline <= $2 ORDER BY deadline", deadlineColumns)
	var deadlines []models.FeeDeadline
	if err := r.db.SelectContext(ctx, &deadlines, query, now, now.Add(lookahead)); err != nil {
		return nil, fmt.Errorf("list upcoming deadlines: %w", err)
	}
	return deadlines, nil
}
