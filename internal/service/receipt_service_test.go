package service

import (
	"context"
	"database/sql"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fee-portal-api/internal/models"
	appErrors "github.com/noah-isme/fee-portal-api/pkg/errors"
	"github.com/noah-isme/fee-portal-api/pkg/export"
	"github.com/noah-isme/fee-portal-api/pkg/storage"
)

type mockPaymentFinder struct {
	payments map[string]models.Transaction
}

func (m *mockPaymentFinder) FindPayment(ctx context.Context, studentID, transactionID string) (*models.Transaction, error) {
	key := studentID + "/" + transactionID
	if txn, ok := m.payments[key]; ok {
		return &txn, nil
	}
	return nil, sql.ErrNoRows
}

type mockStudentFinder struct {
	students map[string]models.Student
}

func (m *mockStudentFinder) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func newReceiptService(t *testing.T, payments *mockPaymentFinder, students *mockStudentFinder) *ReceiptService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("receipt-test-secret", time.Hour)
	return NewReceiptService(payments, students, export.NewReceiptRenderer("Test Institute"), store, signer, nil)
}

func TestReceiptGenerateAndDownload(t *testing.T) {
	payments := &mockPaymentFinder{payments: map[string]models.Transaction{
		"stu-1/TXN1700000000000": {
			ID:          "txn-1",
			StudentID:   "stu-1",
			Description: "Paid ₹3000 for Tuition (2024-25) via UPI [TXN1700000000000]",
			Amount:      3000,
			Type:        models.TransactionPayment,
			CreatedAt:   time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
		},
	}}
	students := &mockStudentFinder{students: map[string]models.Student{
		"stu-1": {ID: "stu-1", StudentID: "S123", Name: "Asha", Course: "BTech", Branch: "CSE", Mobile: "9876543210"},
	}}
	svc := newReceiptService(t, payments, students)

	link, err := svc.Generate(context.Background(), "stu-1", "TXN1700000000000")
	require.NoError(t, err)
	assert.Equal(t, "TXN1700000000000", link.TransactionID)
	assert.NotEmpty(t, link.Token)
	assert.True(t, link.ExpiresAt.After(time.Now()))

	file, filename, err := svc.Download(link.Token)
	require.NoError(t, err)
	defer file.Close()

	assert.Equal(t, "receipt-TXN1700000000000.pdf", filename)
	payload, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.True(t, len(payload) > 0)
	assert.Equal(t, "%PDF", string(payload[:4]))
}

func TestReceiptGenerateUnknownPayment(t *testing.T) {
	svc := newReceiptService(t, &mockPaymentFinder{}, &mockStudentFinder{})

	_, err := svc.Generate(context.Background(), "stu-1", "TXN0")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestReceiptDownloadRejectsTamperedToken(t *testing.T) {
	payments := &mockPaymentFinder{payments: map[string]models.Transaction{
		"stu-1/TXN1": {ID: "txn-1", StudentID: "stu-1", Description: "Paid ₹100 for Exam (2024-25) via Cash [TXN1]", Amount: 100, Type: models.TransactionPayment},
	}}
	students := &mockStudentFinder{students: map[string]models.Student{
		"stu-1": {ID: "stu-1", StudentID: "S123", Name: "Asha"},
	}}
	svc := newReceiptService(t, payments, students)

	link, err := svc.Generate(context.Background(), "stu-1", "TXN1")
	require.NoError(t, err)

	_, _, err = svc.Download(link.Token + "0")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestParsePaymentDescription(t *testing.T) {
	cases := []struct {
		desc    string
		feeName string
		year    string
		method  string
	}{
		{"Paid ₹3000 for Tuition (2024-25) via UPI [TXN1700000000000]", "Tuition", "2024-25", "UPI"},
		{"Paid ₹500 for Library Fine (2025-26) via Cash [TXN1]", "Library Fine", "2025-26", "Cash"},
		{"Paid ₹100 for Exam via NetBanking [TXN2]", "Exam", "", "NetBanking"},
		{"something unparseable", "something unparseable", "", ""},
	}

	for _, tc := range cases {
		feeName, year, method := parsePaymentDescription(tc.desc)
		assert.Equal(t, tc.feeName, feeName, tc.desc)
		assert.Equal(t, tc.year, year, tc.desc)
		assert.Equal(t, tc.method, method, tc.desc)
	}
}
