package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fee-portal-api/internal/models"
)

type mockStudentCounter struct {
	count int
}

func (m *mockStudentCounter) Count(ctx context.Context) (int, error) {
	return m.count, nil
}

type mockLedgerAggregator struct {
	due  int64
	paid int64
}

func (m *mockLedgerAggregator) OutstandingTotals(ctx context.Context) (int64, int64, error) {
	return m.due, m.paid, nil
}

func TestDashboardSummaryAggregates(t *testing.T) {
	repo := &mockTransactionRepo{txns: []models.Transaction{
		{Type: models.TransactionPayment},
		{Type: models.TransactionPayment},
		{Type: models.TransactionFeeAdded},
	}}
	svc := NewDashboardService(
		&mockStudentCounter{count: 42},
		&mockLedgerAggregator{due: 150000, paid: 50000},
		repo,
		&mockCache{},
		nil,
		nil,
		time.Minute,
	)

	summary, err := svc.Summary(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 42, summary.StudentCount)
	assert.Equal(t, int64(150000), summary.TotalDue)
	assert.Equal(t, int64(50000), summary.TotalPaid)
	assert.Equal(t, int64(200000), summary.TotalCharged)
	assert.Equal(t, 2, summary.TransactionCount[models.TransactionPayment])
	assert.Equal(t, 1, summary.TransactionCount[models.TransactionFeeAdded])
	assert.False(t, summary.GeneratedAt.IsZero())
}

func TestDashboardSummaryWithoutCache(t *testing.T) {
	svc := NewDashboardService(
		&mockStudentCounter{},
		&mockLedgerAggregator{},
		&mockTransactionRepo{},
		nil,
		nil,
		nil,
		time.Minute,
	)

	summary, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.TotalCharged)
}
