package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/fee-portal-api/internal/models"
	appErrors "github.com/noah-isme/fee-portal-api/pkg/errors"
)

type ledgerRepository interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.StudentFee, error)
	TotalsByStudent(ctx context.Context, studentID string) ([]models.YearTotals, error)
	Find(ctx context.Context, studentID, feeName, year string) (*models.StudentFee, error)
	Insert(ctx context.Context, entry *models.StudentFee) error
	InsertBatch(ctx context.Context, entries []models.StudentFee) error
	ApplyPayment(ctx context.Context, entryID string, amount int64) (*models.StudentFee, error)
	DeleteByKey(ctx context.Context, studentID, feeName, year string) (int64, error)
}

type transactionWriter interface {
	Insert(ctx context.Context, txn *models.Transaction) error
}

type studentResolver interface {
	FindByStudentID(ctx context.Context, studentID string) (*models.Student, error)
}

type feeCatalog interface {
	List(ctx context.Context) ([]models.Fee, error)
}

// LedgerService owns the student fee ledger. Every mutation preserves
// total_amount == paid_amount + due_amount on each entry and appends a
// matching transaction record.
type LedgerService struct {
	repo      ledgerRepository
	txns      transactionWriter
	students  studentResolver
	catalog   feeCatalog
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewLedgerService constructs a LedgerService.
func NewLedgerService(repo ledgerRepository, txns transactionWriter, students studentResolver, catalog feeCatalog, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &LedgerService{repo: repo, txns: txns, students: students, catalog: catalog, audit: audit, validator: validate, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// InitializeLedger creates one fully-due ledger entry per catalog fee per
// academic year for a freshly created student.
func (s *LedgerService) InitializeLedger(ctx context.Context, studentUUID string) error {
	fees, err := s.catalog.List(ctx)
	if err != nil {
		return fmt.Errorf("load fee catalog: %w", err)
	}
	if len(fees) == 0 {
		fees = models.StandardCatalog()
	}

	years := models.AcademicYears()
	entries := make([]models.StudentFee, 0, len(fees)*len(years))
	for _, fee := range fees {
		for _, year := range years {
			entries = append(entries, models.StudentFee{
				StudentID:   studentUUID,
				FeeName:     fee.Name,
				Year:        year,
				TotalAmount: fee.Amount,
				DueAmount:   fee.Amount,
				PaidAmount:  0,
			})
		}
	}

	if err := s.repo.InsertBatch(ctx, entries); err != nil {
		return fmt.Errorf("initialize ledger: %w", err)
	}
	return nil
}

// Ledger returns a student's full fee position: every entry plus per-year
// aggregates.
func (s *LedgerService) Ledger(ctx context.Context, studentUUID string) (*models.StudentLedger, error) {
	entries, err := s.repo.ListByStudent(ctx, studentUUID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ledger")
	}
	totals, err := s.repo.TotalsByStudent(ctx, studentUUID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sum ledger")
	}
	if entries == nil {
		entries = []models.StudentFee{}
	}
	if totals == nil {
		totals = []models.YearTotals{}
	}
	return &models.StudentLedger{Entries: entries, Totals: totals}, nil
}

// Pay applies a payment to the entry matching (fee, year) for the student.
// Rejections leave no trace: no ledger change and no transaction row. The
// due_amount guard in the update statement is the final arbiter under
// concurrent payments.
func (s *LedgerService) Pay(ctx context.Context, studentUUID string, req models.PaymentRequest) (*models.PaymentResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}

	entry, err := s.repo.Find(ctx, studentUUID, req.FeeName, req.Year)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no fee entry for the given fee and year")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee entry")
	}

	if req.Amount > entry.DueAmount {
		return nil, appErrors.Clone(appErrors.ErrPaymentExceedsDue, fmt.Sprintf("amount ₹%d exceeds due ₹%d", req.Amount, entry.DueAmount))
	}

	updated, err := s.repo.ApplyPayment(ctx, entry.ID, req.Amount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Guard failed: a concurrent payment shrank the due below the amount.
			return nil, appErrors.Clone(appErrors.ErrPaymentExceedsDue, "amount exceeds remaining due")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply payment")
	}

	paidAt := s.now()
	transactionID := fmt.Sprintf("TXN%d", paidAt.UnixMilli())
	txn := &models.Transaction{
		StudentID:   studentUUID,
		Description: fmt.Sprintf("Paid ₹%d for %s (%s) via %s [%s]", req.Amount, req.FeeName, req.Year, req.Method, transactionID),
		Amount:      req.Amount,
		Type:        models.TransactionPayment,
		CreatedAt:   paidAt,
	}
	if err := s.txns.Insert(ctx, txn); err != nil {
		// The ledger already moved; surface the applied payment but flag the log gap.
		s.logger.Error("payment applied but transaction insert failed", zap.String("student", studentUUID), zap.String("txn_id", transactionID), zap.Error(err))
	}

	return &models.PaymentResult{
		TransactionID: transactionID,
		Entry:         *updated,
		Amount:        req.Amount,
		Method:        req.Method,
		PaidAt:        paidAt,
	}, nil
}

// BulkCharge applies a fee or fine to each listed student independently.
// Duplicate ids in the request collapse to one application; repeated requests
// deliberately append duplicate ledger rows under the same key.
func (s *LedgerService) BulkCharge(ctx context.Context, actorID string, req models.BulkChargeRequest) (*models.BulkResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk charge payload")
	}

	txnType := models.TransactionFeeAdded
	verb := "fee"
	if req.Kind == models.ChargeKindFine {
		txnType = models.TransactionFineAdded
		verb = "fine"
	}

	result := &models.BulkResult{}
	seen := make(map[string]struct{}, len(req.StudentIDs))
	for _, studentID := range req.StudentIDs {
		if _, dup := seen[studentID]; dup {
			continue
		}
		seen[studentID] = struct{}{}

		student, err := s.students.FindByStudentID(ctx, studentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				result.RecordFailure(studentID, errors.New("student not found"))
			} else {
				result.RecordFailure(studentID, err)
			}
			continue
		}

		entry := &models.StudentFee{
			StudentID:   student.ID,
			FeeName:     req.FeeName,
			Year:        req.Year,
			TotalAmount: req.Amount,
			DueAmount:   req.Amount,
			PaidAmount:  0,
		}
		if err := s.repo.Insert(ctx, entry); err != nil {
			result.RecordFailure(studentID, err)
			continue
		}

		txn := &models.Transaction{
			StudentID:   student.ID,
			Description: fmt.Sprintf("Added %s %s (%s) of ₹%d", verb, req.FeeName, req.Year, req.Amount),
			Amount:      req.Amount,
			Type:        txnType,
		}
		if err := s.txns.Insert(ctx, txn); err != nil {
			s.logger.Error("charge applied but transaction insert failed", zap.String("student", studentID), zap.Error(err))
		}

		result.Succeeded++
	}

	s.recordBulkAudit(ctx, actorID, models.AuditActionBulkCharge, req.FeeName, req.Year, result)
	return result, nil
}

// BulkRemove deletes ledger rows matching the (fee, year) key for each
// listed student. A student with no matching rows still counts as a success
// and still gets the removal logged.
func (s *LedgerService) BulkRemove(ctx context.Context, actorID string, req models.BulkRemoveRequest) (*models.BulkResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk remove payload")
	}

	result := &models.BulkResult{}
	seen := make(map[string]struct{}, len(req.StudentIDs))
	for _, studentID := range req.StudentIDs {
		if _, dup := seen[studentID]; dup {
			continue
		}
		seen[studentID] = struct{}{}

		student, err := s.students.FindByStudentID(ctx, studentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				result.RecordFailure(studentID, errors.New("student not found"))
			} else {
				result.RecordFailure(studentID, err)
			}
			continue
		}

		removed, err := s.repo.DeleteByKey(ctx, student.ID, req.FeeName, req.Year)
		if err != nil {
			result.RecordFailure(studentID, err)
			continue
		}

		txn := &models.Transaction{
			StudentID:   student.ID,
			Description: fmt.Sprintf("Removed fee %s (%s), %d entries", req.FeeName, req.Year, removed),
			Amount:      0,
			Type:        models.TransactionFeeRemoved,
		}
		if err := s.txns.Insert(ctx, txn); err != nil {
			s.logger.Error("removal applied but transaction insert failed", zap.String("student", studentID), zap.Error(err))
		}

		result.Succeeded++
	}

	s.recordBulkAudit(ctx, actorID, models.AuditActionBulkRemove, req.FeeName, req.Year, result)
	return result, nil
}

func (s *LedgerService) recordBulkAudit(ctx context.Context, actorID string, action string, feeName, year string, result *models.BulkResult) {
	if s.audit == nil {
		return
	}

	log := &models.AuditLog{
		Action:    action,
		Resource:  "student_fees",
		NewValues: []byte(fmt.Sprintf(`{"fee_name":%q,"year":%q,"succeeded":%d,"failed":%d}`, feeName, year, result.Succeeded, result.Failed)),
	}
	if actorID != "" {
		log.AccountID = &actorID
	}

	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record bulk audit log", zap.String("action", action), zap.Error(err))
	}
}
