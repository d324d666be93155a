package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/fee-portal-api/internal/models"
	appErrors "github.com/noah-isme/fee-portal-api/pkg/errors"
	"github.com/noah-isme/fee-portal-api/pkg/export"
)

type transactionRepository interface {
	List(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, int, error)
	CountByType(ctx context.Context) (map[models.TransactionType]int, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// TransactionService reads the append-only transaction log.
type TransactionService struct {
	repo   transactionRepository
	csv    csvRenderer
	logger *zap.Logger
}

// NewTransactionService constructs a TransactionService.
func NewTransactionService(repo transactionRepository, csv csvRenderer, logger *zap.Logger) *TransactionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	return &TransactionService{repo: repo, csv: csv, logger: logger}
}

// List returns transactions matching the filter, newest first.
func (s *TransactionService) List(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, *models.Pagination, error) {
	txns, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list transactions")
	}
	if txns == nil {
		txns = []models.Transaction{}
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}

	return txns, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// ExportCSV renders the matching transactions as a CSV document. Pagination
// in the filter is ignored: exports cover the full match set in pages pulled
// from the repository.
func (s *TransactionService) ExportCSV(ctx context.Context, filter models.TransactionFilter) ([]byte, error) {
	dataset := export.Dataset{
		Headers: []string{"id", "student_id", "transaction_type", "amount", "description", "created_at"},
	}

	filter.Page = 1
	filter.PageSize = 200
	for {
		txns, total, err := s.repo.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to export transactions")
		}
		for _, txn := range txns {
			dataset.Rows = append(dataset.Rows, map[string]string{
				"id":               txn.ID,
				"student_id":       txn.StudentID,
				"transaction_type": string(txn.Type),
				"amount":           fmt.Sprintf("%d", txn.Amount),
				"description":      txn.Description,
				"created_at":       txn.CreatedAt.Format("2006-01-02 15:04:05"),
			})
		}
		if len(txns) < filter.PageSize || len(dataset.Rows) >= total {
			break
		}
		filter.Page++
	}

	payload, err := s.csv.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}
	return payload, nil
}

// CountsByType exposes per-type transaction counts for reporting.
func (s *TransactionService) CountsByType(ctx context.Context) (map[models.TransactionType]int, error) {
	counts, err := s.repo.CountByType(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count transactions")
	}
	return counts, nil
}
