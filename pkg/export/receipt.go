package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Receipt captures everything printed on a payment receipt.
type Receipt struct {
	TransactionID string
	StudentName   string
	StudentID     string
	Course        string
	Branch        string
	Mobile        string
	Year          string
	FeeName       string
	Amount        int64
	Method        string
	PaidAt        time.Time
}

// ReceiptRenderer renders payment receipts as PDF documents.
type ReceiptRenderer struct {
	institution string
}

// NewReceiptRenderer builds a renderer with an institution header line.
func NewReceiptRenderer(institution string) *ReceiptRenderer {
	if institution == "" {
		institution = "Fee Portal"
	}
	return &ReceiptRenderer{institution: institution}
}

// Render produces the PDF bytes for a single receipt.
func (r *ReceiptRenderer) Render(receipt Receipt) ([]byte, error) {
	if receipt.TransactionID == "" {
		return nil, fmt.Errorf("receipt requires a transaction id")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 20)
	pdf.CellFormat(0, 12, "Fee Payment Receipt", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 8, r.institution, "", 1, "C", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 12)
	writeLine := func(label, value string) {
		pdf.CellFormat(55, 8, label, "", 0, "", false, 0, "")
		pdf.CellFormat(0, 8, value, "", 1, "", false, 0, "")
	}

	writeLine("Student Name:", receipt.StudentName)
	writeLine("Student ID:", receipt.StudentID)
	writeLine("Course:", receipt.Course)
	writeLine("Branch:", receipt.Branch)
	writeLine("Mobile:", receipt.Mobile)
	pdf.Ln(6)

	writeLine("Date:", receipt.PaidAt.Format("02 Jan 2006"))
	writeLine("Time:", receipt.PaidAt.Format("15:04:05"))
	writeLine("Academic Year:", receipt.Year)
	writeLine("Fee Type:", receipt.FeeName)
	writeLine("Amount Paid:", fmt.Sprintf("Rs. %d", receipt.Amount))
	writeLine("Payment Method:", receipt.Method)
	writeLine("Transaction ID:", receipt.TransactionID)

	pdf.Ln(14)
	pdf.SetFont("Arial", "I", 11)
	pdf.CellFormat(0, 8, "Thank you for your payment!", "", 1, "C", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render receipt pdf: %w", err)
	}
	return buf.Bytes(), nil
}
