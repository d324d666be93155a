package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/fee-portal-api/internal/models"
	appErrors "github.com/noah-isme/fee-portal-api/pkg/errors"
	"github.com/noah-isme/fee-portal-api/pkg/jobs"
	"github.com/noah-isme/fee-portal-api/pkg/notify"
)

// ReminderJobType tags reminder jobs on the background queue.
const ReminderJobType = "fee_deadline_reminder"

type deadlineRepository interface {
	List(ctx context.Context) ([]models.FeeDeadline, error)
	FindByID(ctx context.Context, id string) (*models.FeeDeadline, error)
	Create(ctx context.Context, deadline *models.FeeDeadline) error
	Delete(ctx context.Context, id string) error
	DueWithin(ctx context.Context, lookahead time.Duration) ([]models.FeeDeadline, error)
}

type debtorLister interface {
	Debtors(ctx context.Context, branch, feeType string) ([]models.DebtorEntry, error)
}

type reminderQueue interface {
	Enqueue(job jobs.Job) error
}

// ReminderPayload is the job payload for one reminder SMS.
type ReminderPayload struct {
	StudentUUID string
	StudentID   string
	Name        string
	Mobile      string
	FeeType     string
	Year        string
	DueAmount   int64
	Deadline    string
}

// DeadlineService manages fee deadlines and dispatches payment reminders to
// students still owing the fee. Reminders ride the background queue; each
// delivered reminder is recorded as an sms_notification transaction.
type DeadlineService struct {
	repo      deadlineRepository
	debtors   debtorLister
	txns      transactionWriter
	notifier  notify.Notifier
	queue     reminderQueue
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDeadlineService constructs a DeadlineService.
func NewDeadlineService(repo deadlineRepository, debtors debtorLister, txns transactionWriter, notifier notify.Notifier, queue reminderQueue, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *DeadlineService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &DeadlineService{repo: repo, debtors: debtors, txns: txns, notifier: notifier, queue: queue, audit: audit, validator: validate, logger: logger}
}

// List returns all deadlines ordered by date.
func (s *DeadlineService) List(ctx context.Context) ([]models.FeeDeadline, error) {
	deadlines, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list deadlines")
	}
	if deadlines == nil {
		deadlines = []models.FeeDeadline{}
	}
	return deadlines, nil
}

// Create registers a deadline.
func (s *DeadlineService) Create(ctx context.Context, actorID string, req models.CreateDeadlineRequest) (*models.FeeDeadline, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid deadline payload")
	}

	deadline := &models.FeeDeadline{
		Branch:   req.Branch,
		FeeType:  req.FeeType,
		Deadline: req.Deadline.UTC(),
	}
	if actorID != "" {
		deadline.CreatedBy = &actorID
	}

	if err := s.repo.Create(ctx, deadline); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create deadline")
	}

	s.recordAudit(ctx, actorID, models.AuditActionDeadlineCreate, deadline.ID)
	return deadline, nil
}

// Delete removes a deadline.
func (s *DeadlineService) Delete(ctx context.Context, actorID, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "deadline not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete deadline")
	}

	s.recordAudit(ctx, actorID, models.AuditActionDeadlineDelete, id)
	return nil
}

// Notify queues one reminder per debtor ledger row for the deadline's branch
// and fee type. Students with nothing due are skipped.
func (s *DeadlineService) Notify(ctx context.Context, deadlineID string) (*models.ReminderDispatch, error) {
	deadline, err := s.repo.FindByID(ctx, deadlineID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "deadline not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load deadline")
	}

	return s.dispatch(ctx, deadline)
}

// Sweep finds deadlines falling inside the lookahead window and dispatches
// reminders for each. Invoked on a timer by the reminder loop.
func (s *DeadlineService) Sweep(ctx context.Context, lookahead time.Duration) error {
	deadlines, err := s.repo.DueWithin(ctx, lookahead)
	if err != nil {
		return fmt.Errorf("sweep deadlines: %w", err)
	}

	for i := range deadlines {
		if _, err := s.dispatch(ctx, &deadlines[i]); err != nil {
			s.logger.Error("reminder dispatch failed",
				zap.String("deadline_id", deadlines[i].ID),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (s *DeadlineService) dispatch(ctx context.Context, deadline *models.FeeDeadline) (*models.ReminderDispatch, error) {
	debtors, err := s.debtors.Debtors(ctx, deadline.Branch, deadline.FeeType)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list debtors")
	}

	dispatch := &models.ReminderDispatch{DeadlineID: deadline.ID}
	deadlineLabel := deadline.Deadline.Format("02 Jan 2006")
	for _, debtor := range debtors {
		payload := ReminderPayload{
			StudentUUID: debtor.StudentUUID,
			StudentID:   debtor.StudentID,
			Name:        debtor.Name,
			Mobile:      debtor.Mobile,
			FeeType:     debtor.FeeName,
			Year:        debtor.Year,
			DueAmount:   debtor.DueAmount,
			Deadline:    deadlineLabel,
		}
		if err := s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: ReminderJobType, Payload: payload}); err != nil {
			s.logger.Error("failed to queue reminder", zap.String("student_id", debtor.StudentID), zap.Error(err))
			continue
		}
		dispatch.Queued++
	}

	s.logger.Info("queued deadline reminders",
		zap.String("deadline_id", deadline.ID),
		zap.String("branch", deadline.Branch),
		zap.String("fee_type", deadline.FeeType),
		zap.Int("queued", dispatch.Queued),
	)
	return dispatch, nil
}

// HandleReminderJob delivers one reminder and logs it as an sms_notification
// transaction. Wired as the handler of the reminder queue.
func (s *DeadlineService) HandleReminderJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(ReminderPayload)
	if !ok {
		return fmt.Errorf("unexpected reminder payload type %T", job.Payload)
	}

	body := notify.DeadlineAlert(payload.Name, payload.StudentID, payload.FeeType, payload.DueAmount, payload.Deadline)
	if err := s.notifier.Send(ctx, notify.Message{Mobile: payload.Mobile, Body: body}); err != nil {
		return fmt.Errorf("send reminder to %s: %w", payload.StudentID, err)
	}

	txn := &models.Transaction{
		StudentID:   payload.StudentUUID,
		Description: fmt.Sprintf("SMS reminder sent for %s (%s), due ₹%d by %s", payload.FeeType, payload.Year, payload.DueAmount, payload.Deadline),
		Amount:      0,
		Type:        models.TransactionSMSNotification,
	}
	if err := s.txns.Insert(ctx, txn); err != nil {
		s.logger.Error("reminder sent but transaction insert failed", zap.String("student_id", payload.StudentID), zap.Error(err))
	}
	return nil
}

func (s *DeadlineService) recordAudit(ctx context.Context, actorID string, action string, resourceID string) {
	if s.audit == nil {
		return
	}

	log := &models.AuditLog{Action: action, Resource: "fee_deadlines"}
	if actorID != "" {
		log.AccountID = &actorID
	}
	if resourceID != "" {
		log.ResourceID = &resourceID
	}

	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
