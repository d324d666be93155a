package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/fee-portal-api/internal/models"
	appErrors "github.com/noah-isme/fee-portal-api/pkg/errors"
)

type mockLedgerRepo struct {
	entries []models.StudentFee
	nextID  int
	err     error
}

func (m *mockLedgerRepo) ListByStudent(ctx context.Context, studentID string) ([]models.StudentFee, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []models.StudentFee
	for _, e := range m.entries {
		if e.StudentID == studentID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockLedgerRepo) TotalsByStudent(ctx context.Context, studentID string) ([]models.YearTotals, error) {
	byYear := map[string]*models.YearTotals{}
	var order []string
	for _, e := range m.entries {
		if e.StudentID != studentID {
			continue
		}
		t, ok := byYear[e.Year]
		if !ok {
			t = &models.YearTotals{Year: e.Year}
			byYear[e.Year] = t
			order = append(order, e.Year)
		}
		t.Total += e.TotalAmount
		t.Due += e.DueAmount
		t.Paid += e.PaidAmount
	}
	out := make([]models.YearTotals, 0, len(order))
	for _, y := range order {
		out = append(out, *byYear[y])
	}
	return out, nil
}

func (m *mockLedgerRepo) Find(ctx context.Context, studentID, feeName, year string) (*models.StudentFee, error) {
	for i := range m.entries {
		e := m.entries[i]
		if e.StudentID == studentID && e.FeeName == feeName && e.Year == year {
			return &e, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockLedgerRepo) Insert(ctx context.Context, entry *models.StudentFee) error {
	if m.err != nil {
		return m.err
	}
	m.nextID++
	entry.ID = fmt.Sprintf("entry-%d", m.nextID)
	entry.CreatedAt = time.Now().UTC()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *mockLedgerRepo) InsertBatch(ctx context.Context, entries []models.StudentFee) error {
	if m.err != nil {
		return m.err
	}
	for i := range entries {
		m.nextID++
		entries[i].ID = fmt.Sprintf("entry-%d", m.nextID)
		m.entries = append(m.entries, entries[i])
	}
	return nil
}

func (m *mockLedgerRepo) ApplyPayment(ctx context.Context, entryID string, amount int64) (*models.StudentFee, error) {
	for i := range m.entries {
		if m.entries[i].ID != entryID {
			continue
		}
		if m.entries[i].DueAmount < amount {
			return nil, sql.ErrNoRows
		}
		m.entries[i].PaidAmount += amount
		m.entries[i].DueAmount -= amount
		e := m.entries[i]
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockLedgerRepo) DeleteByKey(ctx context.Context, studentID, feeName, year string) (int64, error) {
	var kept []models.StudentFee
	var removed int64
	for _, e := range m.entries {
		if e.StudentID == studentID && e.FeeName == feeName && e.Year == year {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	m.entries = kept
	return removed, nil
}

type mockTxnWriter struct {
	txns []models.Transaction
	err  error
}

func (m *mockTxnWriter) Insert(ctx context.Context, txn *models.Transaction) error {
	if m.err != nil {
		return m.err
	}
	m.txns = append(m.txns, *txn)
	return nil
}

func (m *mockTxnWriter) ofType(t models.TransactionType) []models.Transaction {
	var out []models.Transaction
	for _, txn := range m.txns {
		if txn.Type == t {
			out = append(out, txn)
		}
	}
	return out
}

type mockStudentResolver struct {
	students map[string]models.Student
}

func (m *mockStudentResolver) FindByStudentID(ctx context.Context, studentID string) (*models.Student, error) {
	if s, ok := m.students[studentID]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

type mockFeeCatalog struct {
	fees []models.Fee
}

func (m *mockFeeCatalog) List(ctx context.Context) ([]models.Fee, error) {
	return m.fees, nil
}

type mockAuditRecorder struct {
	logs []models.AuditLog
}

func (m *mockAuditRecorder) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, *log)
	return nil
}

func newLedgerService(repo *mockLedgerRepo, txns *mockTxnWriter, students *mockStudentResolver) *LedgerService {
	return NewLedgerService(repo, txns, students, &mockFeeCatalog{fees: models.StandardCatalog()}, &mockAuditRecorder{}, validator.New(), zap.NewNop())
}

func TestInitializeLedgerCreatesCatalogTimesYears(t *testing.T) {
	repo := &mockLedgerRepo{}
	svc := newLedgerService(repo, &mockTxnWriter{}, &mockStudentResolver{})

	err := svc.InitializeLedger(context.Background(), "stu-1")
	require.NoError(t, err)

	require.Len(t, repo.entries, len(models.StandardCatalog())*len(models.AcademicYears()))
	for _, e := range repo.entries {
		assert.Equal(t, "stu-1", e.StudentID)
		assert.Equal(t, e.TotalAmount, e.DueAmount)
		assert.Zero(t, e.PaidAmount)
	}
}

func TestPayAppliesExactAccounting(t *testing.T) {
	repo := &mockLedgerRepo{entries: []models.StudentFee{
		{ID: "entry-1", StudentID: "stu-1", FeeName: "Tuition", Year: "2024-25", TotalAmount: 10000, DueAmount: 10000},
	}}
	txns := &mockTxnWriter{}
	svc := newLedgerService(repo, txns, &mockStudentResolver{})

	result, err := svc.Pay(context.Background(), "stu-1", models.PaymentRequest{FeeName: "Tuition", Year: "2024-25", Amount: 3000, Method: "UPI"})
	require.NoError(t, err)

	assert.Equal(t, int64(3000), result.Entry.PaidAmount)
	assert.Equal(t, int64(7000), result.Entry.DueAmount)
	assert.Equal(t, result.Entry.TotalAmount, result.Entry.PaidAmount+result.Entry.DueAmount)
	assert.True(t, strings.HasPrefix(result.TransactionID, "TXN"))

	payments := txns.ofType(models.TransactionPayment)
	require.Len(t, payments, 1)
	assert.Equal(t, int64(3000), payments[0].Amount)
	assert.Contains(t, payments[0].Description, "Paid ₹3000 for Tuition (2024-25) via UPI")
	assert.Contains(t, payments[0].Description, "["+result.TransactionID+"]")
}

func TestPayRejectsAmountOverDueWithNoSideEffects(t *testing.T) {
	repo := &mockLedgerRepo{entries: []models.StudentFee{
		{ID: "entry-1", StudentID: "stu-1", FeeName: "Tuition", Year: "2024-25", TotalAmount: 10000, DueAmount: 7000, PaidAmount: 3000},
	}}
	txns := &mockTxnWriter{}
	svc := newLedgerService(repo, txns, &mockStudentResolver{})

	result, err := svc.Pay(context.Background(), "stu-1", models.PaymentRequest{FeeName: "Tuition", Year: "2024-25", Amount: 7001, Method: "Cash"})
	require.Error(t, err)
	assert.Nil(t, result)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPaymentExceedsDue.Code, appErr.Code)

	assert.Equal(t, int64(7000), repo.entries[0].DueAmount)
	assert.Equal(t, int64(3000), repo.entries[0].PaidAmount)
	assert.Empty(t, txns.txns)
}

func TestPayRejectsZeroAndNegativeAmounts(t *testing.T) {
	repo := &mockLedgerRepo{entries: []models.StudentFee{
		{ID: "entry-1", StudentID: "stu-1", FeeName: "Tuition", Year: "2024-25", TotalAmount: 10000, DueAmount: 10000},
	}}
	txns := &mockTxnWriter{}
	svc := newLedgerService(repo, txns, &mockStudentResolver{})

	for _, amount := range []int64{0, -100} {
		_, err := svc.Pay(context.Background(), "stu-1", models.PaymentRequest{FeeName: "Tuition", Year: "2024-25", Amount: amount, Method: "Cash"})
		require.Error(t, err)
		appErr := appErrors.FromError(err)
		assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	}
	assert.Empty(t, txns.txns)
	assert.Equal(t, int64(10000), repo.entries[0].DueAmount)
}

func TestPayUnknownFeeEntryNotFound(t *testing.T) {
	repo := &mockLedgerRepo{}
	svc := newLedgerService(repo, &mockTxnWriter{}, &mockStudentResolver{})

	_, err := svc.Pay(context.Background(), "stu-1", models.PaymentRequest{FeeName: "Hostel", Year: "2024-25", Amount: 100, Method: "Cash"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestPayFullSettlementReachesZeroDue(t *testing.T) {
	repo := &mockLedgerRepo{entries: []models.StudentFee{
		{ID: "entry-1", StudentID: "stu-1", FeeName: "Exam", Year: "2024-25", TotalAmount: 1500, DueAmount: 1500},
	}}
	svc := newLedgerService(repo, &mockTxnWriter{}, &mockStudentResolver{})

	result, err := svc.Pay(context.Background(), "stu-1", models.PaymentRequest{FeeName: "Exam", Year: "2024-25", Amount: 1500, Method: "Card"})
	require.NoError(t, err)
	assert.Zero(t, result.Entry.DueAmount)
	assert.Equal(t, int64(1500), result.Entry.PaidAmount)
}

func TestBulkChargeAppendsRowAndTransactionPerStudent(t *testing.T) {
	repo := &mockLedgerRepo{}
	txns := &mockTxnWriter{}
	students := &mockStudentResolver{students: map[string]models.Student{
		"S1": {ID: "stu-1", StudentID: "S1"},
		"S2": {ID: "stu-2", StudentID: "S2"},
		"S3": {ID: "stu-3", StudentID: "S3"},
	}}
	svc := newLedgerService(repo, txns, students)

	result, err := svc.BulkCharge(context.Background(), "admin-1", models.BulkChargeRequest{
		StudentIDs: []string{"S1", "S2", "S3", "S2"},
		FeeName:    "Lab",
		Year:       "2024-25",
		Amount:     750,
		Kind:       models.ChargeKindFee,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Succeeded)
	assert.Zero(t, result.Failed)
	assert.Len(t, repo.entries, 3)
	assert.Len(t, txns.ofType(models.TransactionFeeAdded), 3)
	for _, e := range repo.entries {
		assert.Equal(t, int64(750), e.TotalAmount)
		assert.Equal(t, int64(750), e.DueAmount)
		assert.Zero(t, e.PaidAmount)
	}
}

func TestBulkChargeRepeatCreatesDuplicateRows(t *testing.T) {
	repo := &mockLedgerRepo{}
	students := &mockStudentResolver{students: map[string]models.Student{"S1": {ID: "stu-1", StudentID: "S1"}}}
	svc := newLedgerService(repo, &mockTxnWriter{}, students)

	req := models.BulkChargeRequest{StudentIDs: []string{"S1"}, FeeName: "Lab", Year: "2024-25", Amount: 750, Kind: models.ChargeKindFee}
	_, err := svc.BulkCharge(context.Background(), "admin-1", req)
	require.NoError(t, err)
	_, err = svc.BulkCharge(context.Background(), "admin-1", req)
	require.NoError(t, err)

	// Same key twice: two independent rows, no merge.
	assert.Len(t, repo.entries, 2)
}

func TestBulkChargeFineUsesFineTransactionType(t *testing.T) {
	repo := &mockLedgerRepo{}
	txns := &mockTxnWriter{}
	students := &mockStudentResolver{students: map[string]models.Student{"S1": {ID: "stu-1", StudentID: "S1"}}}
	svc := newLedgerService(repo, txns, students)

	_, err := svc.BulkCharge(context.Background(), "admin-1", models.BulkChargeRequest{
		StudentIDs: []string{"S1"}, FeeName: "Late Fine", Year: "2024-25", Amount: 200, Kind: models.ChargeKindFine,
	})
	require.NoError(t, err)
	require.Len(t, txns.ofType(models.TransactionFineAdded), 1)
	assert.Empty(t, txns.ofType(models.TransactionFeeAdded))
}

func TestBulkChargeUnknownStudentCountsAsFailure(t *testing.T) {
	repo := &mockLedgerRepo{}
	txns := &mockTxnWriter{}
	students := &mockStudentResolver{students: map[string]models.Student{"S1": {ID: "stu-1", StudentID: "S1"}}}
	svc := newLedgerService(repo, txns, students)

	result, err := svc.BulkCharge(context.Background(), "admin-1", models.BulkChargeRequest{
		StudentIDs: []string{"S1", "GHOST"}, FeeName: "Lab", Year: "2024-25", Amount: 750, Kind: models.ChargeKindFee,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "GHOST", result.Failures[0].StudentID)
	// The successful item is never rolled back by the failed one.
	assert.Len(t, repo.entries, 1)
}

func TestBulkRemoveDeletesAllMatchingRows(t *testing.T) {
	repo := &mockLedgerRepo{entries: []models.StudentFee{
		{ID: "entry-1", StudentID: "stu-1", FeeName: "Lab", Year: "2024-25", TotalAmount: 750, DueAmount: 750},
		{ID: "entry-2", StudentID: "stu-1", FeeName: "Lab", Year: "2024-25", TotalAmount: 750, DueAmount: 750},
		{ID: "entry-3", StudentID: "stu-1", FeeName: "Tuition", Year: "2024-25", TotalAmount: 10000, DueAmount: 10000},
	}}
	txns := &mockTxnWriter{}
	students := &mockStudentResolver{students: map[string]models.Student{"S1": {ID: "stu-1", StudentID: "S1"}}}
	svc := newLedgerService(repo, txns, students)

	result, err := svc.BulkRemove(context.Background(), "admin-1", models.BulkRemoveRequest{
		StudentIDs: []string{"S1"}, FeeName: "Lab", Year: "2024-25",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Succeeded)
	require.Len(t, repo.entries, 1)
	assert.Equal(t, "Tuition", repo.entries[0].FeeName)

	removed := txns.ofType(models.TransactionFeeRemoved)
	require.Len(t, removed, 1)
	assert.Zero(t, removed[0].Amount)
}

func TestBulkRemoveNoMatchingRowsStillSucceedsAndLogs(t *testing.T) {
	repo := &mockLedgerRepo{}
	txns := &mockTxnWriter{}
	students := &mockStudentResolver{students: map[string]models.Student{"S1": {ID: "stu-1", StudentID: "S1"}}}
	svc := newLedgerService(repo, txns, students)

	result, err := svc.BulkRemove(context.Background(), "admin-1", models.BulkRemoveRequest{
		StudentIDs: []string{"S1"}, FeeName: "Hostel", Year: "2024-25",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Succeeded)
	assert.Zero(t, result.Failed)
	removed := txns.ofType(models.TransactionFeeRemoved)
	require.Len(t, removed, 1)
	assert.Zero(t, removed[0].Amount)
}

func TestLedgerTotalsConserveAcrossMutations(t *testing.T) {
	repo := &mockLedgerRepo{}
	txns := &mockTxnWriter{}
	students := &mockStudentResolver{students: map[string]models.Student{"S123": {ID: "stu-1", StudentID: "S123"}}}
	svc := newLedgerService(repo, txns, students)

	require.NoError(t, svc.InitializeLedger(context.Background(), "stu-1"))

	_, err := svc.Pay(context.Background(), "stu-1", models.PaymentRequest{FeeName: "Tuition", Year: "2024-25", Amount: 3000, Method: "UPI"})
	require.NoError(t, err)

	_, err = svc.BulkCharge(context.Background(), "admin-1", models.BulkChargeRequest{
		StudentIDs: []string{"S123"}, FeeName: "Lab", Year: "2024-25", Amount: 750, Kind: models.ChargeKindFee,
	})
	require.NoError(t, err)

	ledger, err := svc.Ledger(context.Background(), "stu-1")
	require.NoError(t, err)
	for _, yt := range ledger.Totals {
		assert.Equal(t, yt.Total, yt.Due+yt.Paid, "year %s", yt.Year)
	}
	for _, e := range ledger.Entries {
		assert.Equal(t, e.TotalAmount, e.PaidAmount+e.DueAmount)
		assert.GreaterOrEqual(t, e.DueAmount, int64(0))
	}
}
