package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/fee-portal-api/internal/models"
	"github.com/noah-isme/fee-portal-api/internal/repository"
	appErrors "github.com/noah-isme/fee-portal-api/pkg/errors"
)

type feeRepository interface {
	List(ctx context.Context) ([]models.Fee, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	Create(ctx context.Context, fee *models.Fee) error
	Seed(ctx context.Context, catalog []models.Fee) error
}

// CreateFeeRequest adds a catalog entry.
type CreateFeeRequest struct {
	Name   string `json:"name" validate:"required,min=2,max=64"`
	Amount int64  `json:"amount" validate:"required,min=1"`
}

// FeeService manages the standard fee catalog. Catalog names are unique;
// the storage constraint is the final arbiter.
type FeeService struct {
	repo      feeRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFeeService constructs a FeeService.
func NewFeeService(repo feeRepository, validate *validator.Validate, logger *zap.Logger) *FeeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &FeeService{repo: repo, validator: validate, logger: logger}
}

// List returns the full catalog.
func (s *FeeService) List(ctx context.Context) ([]models.Fee, error) {
	fees, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list fees")
	}
	if fees == nil {
		fees = []models.Fee{}
	}
	return fees, nil
}

// Create adds a catalog entry. New entries do not retroactively appear on
// existing student ledgers; bulk charge covers that.
func (s *FeeService) Create(ctx context.Context, req CreateFeeRequest) (*models.Fee, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid fee payload")
	}

	exists, err := s.repo.ExistsByName(ctx, req.Name)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check fee name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "fee name already exists")
	}

	fee := &models.Fee{Name: req.Name, Amount: req.Amount}
	if err := s.repo.Create(ctx, fee); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "fee name already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create fee")
	}
	return fee, nil
}

// Seed inserts the standard catalog entries missing from storage. Invoked
// at startup when seeding is enabled.
func (s *FeeService) Seed(ctx context.Context) error {
	if err := s.repo.Seed(ctx, models.StandardCatalog()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to seed fee catalog")
	}
	s.logger.Info("fee catalog seeded")
	return nil
}
