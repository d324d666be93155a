package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/fee-portal-api/internal/models"
	appErrors "github.com/noah-isme/fee-portal-api/pkg/errors"
	"github.com/noah-isme/fee-portal-api/pkg/export"
)

type paymentFinder interface {
	FindPayment(ctx context.Context, studentID, transactionID string) (*models.Transaction, error)
}

type studentFinder interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type receiptRenderer interface {
	Render(receipt export.Receipt) ([]byte, error)
}

type receiptStore interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
}

type receiptSigner interface {
	Generate(receiptID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (receiptID, relPath string, expiresAt time.Time, err error)
}

// ReceiptLink points to a rendered receipt via a signed download token.
type ReceiptLink struct {
	TransactionID string    `json:"transaction_id"`
	Token         string    `json:"token"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// ReceiptService renders payment receipts as PDFs stored on disk and issues
// time-limited signed download tokens for them.
type ReceiptService struct {
	payments paymentFinder
	students studentFinder
	renderer receiptRenderer
	store    receiptStore
	signer   receiptSigner
	logger   *zap.Logger
}

// NewReceiptService constructs a ReceiptService.
func NewReceiptService(payments paymentFinder, students studentFinder, renderer receiptRenderer, store receiptStore, signer receiptSigner, logger *zap.Logger) *ReceiptService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReceiptService{payments: payments, students: students, renderer: renderer, store: store, signer: signer, logger: logger}
}

// Generate renders the receipt for a past payment and returns a signed
// download link. Only payments belonging to the given student resolve.
func (s *ReceiptService) Generate(ctx context.Context, studentUUID, transactionID string) (*ReceiptLink, error) {
	txn, err := s.payments.FindPayment(ctx, studentUUID, transactionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}

	student, err := s.students.FindByID(ctx, studentUUID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	feeName, year, method := parsePaymentDescription(txn.Description)
	receipt := export.Receipt{
		TransactionID: transactionID,
		StudentName:   student.Name,
		StudentID:     student.StudentID,
		Course:        student.Course,
		Branch:        student.Branch,
		Mobile:        student.Mobile,
		Year:          year,
		FeeName:       feeName,
		Amount:        txn.Amount,
		Method:        method,
		PaidAt:        txn.CreatedAt,
	}

	payload, err := s.renderer.Render(receipt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render receipt")
	}

	relPath := filepath.Join(student.StudentID, transactionID+".pdf")
	if _, err := s.store.Save(relPath, payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store receipt")
	}

	token, expiresAt, err := s.signer.Generate(transactionID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign receipt link")
	}

	return &ReceiptLink{TransactionID: transactionID, Token: token, ExpiresAt: expiresAt}, nil
}

// Download resolves a signed token to the stored receipt file.
func (s *ReceiptService) Download(token string) (*os.File, string, error) {
	receiptID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid receipt token")
	}

	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "receipt file not found")
	}

	return file, fmt.Sprintf("receipt-%s.pdf", receiptID), nil
}

// parsePaymentDescription recovers fee, year and method from a payment
// description of the form "Paid ₹X for FEE (YEAR) via METHOD [TXNID]".
func parsePaymentDescription(desc string) (feeName, year, method string) {
	rest := desc
	if i := strings.Index(rest, " for "); i >= 0 {
		rest = rest[i+len(" for "):]
	}
	if i := strings.LastIndex(rest, " via "); i >= 0 {
		method = rest[i+len(" via "):]
		rest = rest[:i]
	}
	if i := strings.Index(method, " ["); i >= 0 {
		method = method[:i]
	}
	if open := strings.LastIndex(rest, "("); open >= 0 {
		if close := strings.Index(rest[open:], ")"); close > 0 {
			year = rest[open+1 : open+close]
		}
		feeName = strings.TrimSpace(rest[:open])
	} else {
		feeName = strings.TrimSpace(rest)
	}
	return feeName, year, method
}
