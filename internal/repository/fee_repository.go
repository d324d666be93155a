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

// FeeRepository manages the standard fee catalog.
type FeeRepository struct {
	db *sqlx.DB
}

// NewFeeRepository constructs a FeeRepository.
func NewFeeRepository(db *sqlx.DB) *FeeRepository {
	return &FeeRepository{db: db}
}

// List returns the full catalog, oldest first.
func (r *FeeRepository) List(ctx context.Context) ([]models.Fee, error) {
	const query = `SELECT id, name, amount, created_at FROM fees ORDER BY created_at`
	var fees []models.Fee
	if err := r.db.SelectContext(ctx, &fees, query); err != nil {
		return nil, fmt.Errorf("list fees: %w", err)
	}
	return fees, nil
}

// ExistsByName checks whether a catalog entry with the name exists.
func (r *FeeRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists int
	if err := r.db.GetContext(ctx, &exists, "SELECT 1 FROM fees WHERE name = $1 LIMIT 1", name); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check fee name: %w", err)
	}
	return true, nil
}

// Create inserts a catalog entry.
func (r *FeeRepository) Create(ctx context.Context, fee *models.Fee) error {
	if fee.ID == "" {
		fee.ID = uuid.NewString()
	}
	if fee.CreatedAt.IsZero() {
		fee.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO fees (id, name, amount, created_at) VALUES (:id, :name, :amount, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, fee); err != nil {
		if wrapped := wrapUnique(err); wrapped != err {
			return wrapped
		}
		return fmt.Errorf("create fee: %w", err)
	}
	return nil
}

// Seed inserts the standard catalog entries that are not present yet.
func (r *FeeRepository) Seed(ctx context.Context, catalog []models.Fee) error {
	for i := range catalog {
		exists, err := r.ExistsByName(ctx, catalog[i].Name)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if err := r.Create(ctx, &catalog[i]); err != nil {
			return err
		}
	}
	return nil
}
