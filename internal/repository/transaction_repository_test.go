package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fee-portal-api/internal/models"
)

func newTransactionMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func transactionRows(txn models.Transaction) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "student_id", "description", "amount", "transaction_type", "created_at"}).
		AddRow(txn.ID, txn.StudentID, txn.Description, txn.Amount, string(txn.Type), time.Now())
}

func TestTransactionRepositoryInsert(t *testing.T) {
	db, mock, cleanup := newTransactionMock(t)
	defer cleanup()
	repo := NewTransactionRepository(db)

	mock.ExpectExec("INSERT INTO transactions").
		WillReturnResult(sqlmock.NewResult(0, 1))

	txn := &models.Transaction{StudentID: "stu-1", Description: "Paid ₹3000 for Tuition (2024-25) via UPI [TXN1700000000000]", Amount: 3000, Type: models.TransactionPayment}
	err := repo.Insert(context.Background(), txn)
	require.NoError(t, err)
	assert.NotEmpty(t, txn.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepositoryListFiltered(t *testing.T) {
	db, mock, cleanup := newTransactionMock(t)
	defer cleanup()
	repo := NewTransactionRepository(db)

	txn := models.Transaction{ID: "txn-1", StudentID: "stu-1", Description: "Added fee Exam (2024-25) of ₹1500", Amount: 1500, Type: models.TransactionFeeAdded}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, description, amount, transaction_type, created_at FROM transactions WHERE 1=1 AND student_id = $1 AND transaction_type = $2 ORDER BY created_at DESC LIMIT 50 OFFSET 0")).
		WithArgs("stu-1", models.TransactionFeeAdded).
		WillReturnRows(transactionRows(txn))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM transactions WHERE 1=1 AND student_id = $1 AND transaction_type = $2")).
		WithArgs("stu-1", models.TransactionFeeAdded).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	txns, total, err := repo.List(context.Background(), models.TransactionFilter{StudentID: "stu-1", Type: models.TransactionFeeAdded})
	require.NoError(t, err)
	assert.Len(t, txns, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepositoryFindPayment(t *testing.T) {
	db, mock, cleanup := newTransactionMock(t)
	defer cleanup()
	repo := NewTransactionRepository(db)

	txn := models.Transaction{ID: "txn-1", StudentID: "stu-1", Description: "Paid ₹3000 for Tuition (2024-25) via UPI [TXN1700000000000]", Amount: 3000, Type: models.TransactionPayment}
	mock.ExpectQuery("SELECT id, student_id, description, amount, transaction_type, created_at FROM transactions").
		WithArgs("stu-1", models.TransactionPayment, "%[TXN1700000000000]%").
		WillReturnRows(transactionRows(txn))

	found, err := repo.FindPayment(context.Background(), "stu-1", "TXN1700000000000")
	require.NoError(t, err)
	assert.Equal(t, "txn-1", found.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepositoryFindPaymentMissing(t *testing.T) {
	db, mock, cleanup := newTransactionMock(t)
	defer cleanup()
	repo := NewTransactionRepository(db)

	mock.ExpectQuery("SELECT id, student_id, description, amount, transaction_type, created_at FROM transactions").
		WithArgs("stu-1", models.TransactionPayment, "%[TXN0]%").
		WillReturnError(sql.ErrNoRows)

	found, err := repo.FindPayment(context.Background(), "stu-1", "TXN0")
	assert.Nil(t, found)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
