package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/fee-portal-api/internal/models"
	"github.com/noah-isme/fee-portal-api/internal/service"
	appErrors "github.com/noah-isme/fee-portal-api/pkg/errors"
	"github.com/noah-isme/fee-portal-api/pkg/response"
)

// LedgerHandler exposes a student's fee position and payments.
type LedgerHandler struct {
	ledger   *service.LedgerService
	receipts *service.ReceiptService
	metrics  *service.MetricsService
}

// NewLedgerHandler constructs LedgerHandler.
func NewLedgerHandler(ledger *service.LedgerService, receipts *service.ReceiptService, metrics *service.MetricsService) *LedgerHandler {
	return &LedgerHandler{ledger: ledger, receipts: receipts, metrics: metrics}
}

// Ledger godoc
// @Summary Get a student's fee ledger
// @Tags Ledger
// @Produce json
// @Param id path string true "Student row id"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/fees [get]
func (h *LedgerHandler) Ledger(c *gin.Context) {
	ledger, err := h.ledger.Ledger(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ledger, nil)
}

// Pay godoc
// @Summary Pay a fee
// @Tags Ledger
// @Accept json
// @Produce json
// @Param id path string true "Student row id"
// @Param payload body models.PaymentRequest true "Payment payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/payments [post]
func (h *LedgerHandler) Pay(c *gin.Context) {
	var req models.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	result, err := h.ledger.Pay(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.ObservePayment(result.Amount)

	response.JSON(c, http.StatusOK, result, nil)
}

// Receipt godoc
// @Summary Get a signed receipt download link for a payment
// @Tags Ledger
// @Produce json
// @Param id path string true "Student row id"
// @Param txn path string true "Transaction id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/receipts/{txn} [get]
func (h *LedgerHandler) Receipt(c *gin.Context) {
	link, err := h.receipts.Generate(c.Request.Context(), c.Param("id"), c.Param("txn"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// Download godoc
// @Summary Download a receipt by signed token
// @Tags Ledger
// @Produce application/pdf
// @Param token query string true "Signed token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Router /receipts/download [get]
func (h *LedgerHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token required"))
		return
	}

	file, filename, err := h.receipts.Download(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read receipt"))
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.DataFromReader(http.StatusOK, info.Size(), "application/pdf", file, nil)
}
