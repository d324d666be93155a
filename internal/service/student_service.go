package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/fee-portal-api/internal/models"
	"github.com/noah-isme/fee-portal-api/internal/repository"
	appErrors "github.com/noah-isme/fee-portal-api/pkg/errors"
)

const studentListCachePrefix = "students:list:"

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByStudentID(ctx context.Context, studentID string) (*models.Student, error)
	ExistsByStudentID(ctx context.Context, studentID string) (bool, error)
	ExistsByPin(ctx context.Context, pin string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, id string) error
}

type ledgerInitializer interface {
	InitializeLedger(ctx context.Context, studentUUID string) error
}

type listCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, prefix string)
}

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// StudentService implements student administration. Uniqueness of student_id
// and pin is ultimately enforced by the storage constraints; the pre-checks
// here only produce friendlier errors for the common case.
type StudentService struct {
	repo      studentRepository
	ledger    ledgerInitializer
	cache     listCache
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
	listTTL   time.Duration
}

// NewStudentService constructs a StudentService.
func NewStudentService(repo studentRepository, ledger ledgerInitializer, cache listCache, audit auditRecorder, validate *validator.Validate, logger *zap.Logger, listTTL time.Duration) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &StudentService{repo: repo, ledger: ledger, cache: cache, audit: audit, validator: validate, logger: logger, listTTL: listTTL}
}

type studentListPayload struct {
	Students   []models.Student  `json:"students"`
	Pagination models.Pagination `json:"pagination"`
}

// List returns students for the admin roster, served from cache when the
// same filter combination was requested recently.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	key := fmt.Sprintf("%s%s:%s:%d:%d:%s:%s", studentListCachePrefix, filter.Branch, filter.Search, filter.Page, filter.PageSize, filter.SortBy, filter.SortOrder)

	if s.cache != nil {
		var cached studentListPayload
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached.Students, &cached.Pagination, nil
		}
	}

	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	if students == nil {
		students = []models.Student{}
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	pagination := models.Pagination{Page: page, PageSize: size, TotalCount: total}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, studentListPayload{Students: students, Pagination: pagination}, s.listTTL); err != nil {
			s.logger.Warn("failed to cache student list", zap.Error(err))
		}
	}

	return students, &pagination, nil
}

// Get returns one student by row id.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch student")
	}
	return student, nil
}

// GetByStudentID returns one student by the institution-assigned identifier.
func (s *StudentService) GetByStudentID(ctx context.Context, studentID string) (*models.Student, error) {
	student, err := s.repo.FindByStudentID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch student")
	}
	return student, nil
}

// Create registers a student and initializes the fee ledger. The student row
// is kept even when ledger initialization fails partway; the result flags
// the incomplete ledger so the caller can surface it.
func (s *StudentService) Create(ctx context.Context, actorID string, req models.CreateStudentRequest) (*models.CreateStudentResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	taken, err := s.repo.ExistsByStudentID(ctx, req.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check student id")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student id already exists")
	}

	taken, err = s.repo.ExistsByPin(ctx, req.Pin)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pin")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "pin already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	student := &models.Student{
		StudentID:    req.StudentID,
		PasswordHash: string(hash),
		Name:         req.Name,
		Pin:          req.Pin,
		Course:       req.Course,
		Branch:       req.Branch,
		Mobile:       req.Mobile,
		PhotoColor:   req.PhotoColor,
	}

	if err := s.repo.Create(ctx, student); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student id or pin already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}

	result := &models.CreateStudentResult{Student: *student, LedgerInitialized: true}
	if s.ledger != nil {
		if err := s.ledger.InitializeLedger(ctx, student.ID); err != nil {
			s.logger.Error("ledger initialization incomplete", zap.String("student_id", student.StudentID), zap.Error(err))
			result.LedgerInitialized = false
		}
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, studentListCachePrefix)
	}
	s.recordAudit(ctx, actorID, models.AuditActionStudentCreate, student.ID, student)

	return result, nil
}

// Update modifies a student's profile fields. Password changes go through
// the auth flow instead.
func (s *StudentService) Update(ctx context.Context, actorID, id string, req models.UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch student")
	}

	if req.StudentID != student.StudentID {
		taken, err := s.repo.ExistsByStudentID(ctx, req.StudentID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check student id")
		}
		if taken {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student id already exists")
		}
	}
	if req.Pin != student.Pin {
		taken, err := s.repo.ExistsByPin(ctx, req.Pin)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pin")
		}
		if taken {
			return nil, appErrors.Clone(appErrors.ErrConflict, "pin already exists")
		}
	}

	student.StudentID = req.StudentID
	student.Name = req.Name
	student.Pin = req.Pin
	student.Course = req.Course
	student.Branch = req.Branch
	student.Mobile = req.Mobile
	student.PhotoColor = req.PhotoColor

	if err := s.repo.Update(ctx, student); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student id or pin already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, studentListCachePrefix)
	}
	s.recordAudit(ctx, actorID, models.AuditActionStudentUpdate, student.ID, student)

	return student, nil
}

// Delete removes a student. Ledger rows and transactions go with the row via
// the storage cascade.
func (s *StudentService) Delete(ctx context.Context, actorID, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, studentListCachePrefix)
	}
	s.recordAudit(ctx, actorID, models.AuditActionStudentDelete, id, nil)

	return nil
}

// BulkDelete removes a set of students independently. Items already deleted
// concurrently count as failures without affecting the rest.
func (s *StudentService) BulkDelete(ctx context.Context, actorID string, ids []string) *models.BulkResult {
	result := &models.BulkResult{}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		if err := s.repo.Delete(ctx, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				result.RecordFailure(id, errors.New("student not found"))
			} else {
				result.RecordFailure(id, err)
			}
			continue
		}
		result.Succeeded++
	}

	if result.Succeeded > 0 {
		if s.cache != nil {
			s.cache.Invalidate(ctx, studentListCachePrefix)
		}
		s.recordAudit(ctx, actorID, models.AuditActionStudentDelete, "", map[string]int{"deleted": result.Succeeded})
	}

	return result
}

func (s *StudentService) recordAudit(ctx context.Context, actorID string, action string, resourceID string, payload interface{}) {
	if s.audit == nil {
		return
	}

	log := &models.AuditLog{Action: action, Resource: "students"}
	if actorID != "" {
		log.AccountID = &actorID
	}
	if resourceID != "" {
		log.ResourceID = &resourceID
	}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			log.NewValues = raw
		}
	}

	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
