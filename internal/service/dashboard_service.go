package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/fee-portal-api/internal/models"
	appErrors "github.com/noah-isme/fee-portal-api/pkg/errors"
)

const dashboardCacheKey = "dashboard:summary"

type studentCounter interface {
	Count(ctx context.Context) (int, error)
}

type ledgerAggregator interface {
	OutstandingTotals(ctx context.Context) (due int64, paid int64, err error)
}

type transactionCounter interface {
	CountByType(ctx context.Context) (map[models.TransactionType]int, error)
}

type queryObserver interface {
	RecordCacheOperation(hit bool)
	ObserveDBQuery(label string, duration time.Duration)
}

// DashboardSummary is the admin landing page aggregate.
type DashboardSummary struct {
	StudentCount     int                            `json:"student_count"`
	TotalDue         int64                          `json:"total_due"`
	TotalPaid        int64                          `json:"total_paid"`
	TotalCharged     int64                          `json:"total_charged"`
	TransactionCount map[models.TransactionType]int `json:"transaction_count"`
	GeneratedAt      time.Time                      `json:"generated_at"`
}

// DashboardService aggregates portal-wide figures for the admin dashboard,
// cached briefly since the numbers tolerate short staleness.
type DashboardService struct {
	students studentCounter
	ledger   ledgerAggregator
	txns     transactionCounter
	cache    listCache
	metrics  queryObserver
	logger   *zap.Logger
	ttl      time.Duration
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(students studentCounter, ledger ledgerAggregator, txns transactionCounter, cache listCache, metrics queryObserver, logger *zap.Logger, ttl time.Duration) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{students: students, ledger: ledger, txns: txns, cache: cache, metrics: metrics, logger: logger, ttl: ttl}
}

// Summary returns the aggregate dashboard payload.
func (s *DashboardService) Summary(ctx context.Context) (*DashboardSummary, error) {
	if s.cache != nil {
		var cached DashboardSummary
		if err := s.cache.Get(ctx, dashboardCacheKey, &cached); err == nil {
			if s.metrics != nil {
				s.metrics.RecordCacheOperation(true)
			}
			return &cached, nil
		}
		if s.metrics != nil {
			s.metrics.RecordCacheOperation(false)
		}
	}

	start := time.Now()
	count, err := s.students.Count(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}
	s.observeQuery("dashboard_students", start)

	start = time.Now()
	due, paid, err := s.ledger.OutstandingTotals(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sum ledger")
	}
	s.observeQuery("dashboard_ledger", start)

	start = time.Now()
	txnCounts, err := s.txns.CountByType(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count transactions")
	}
	s.observeQuery("dashboard_transactions", start)

	summary := &DashboardSummary{
		StudentCount:     count,
		TotalDue:         due,
		TotalPaid:        paid,
		TotalCharged:     due + paid,
		TransactionCount: txnCounts,
		GeneratedAt:      time.Now().UTC(),
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, dashboardCacheKey, summary, s.ttl); err != nil {
			s.logger.Warn("failed to cache dashboard summary", zap.Error(err))
		}
	}

	return summary, nil
}

func (s *DashboardService) observeQuery(label string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveDBQuery(label, time.Since(start))
	}
}
