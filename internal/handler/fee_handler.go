package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/fee-portal-api/internal/models"
	"github.com/noah-isme/fee-portal-api/internal/service"
	appErrors "github.com/noah-isme/fee-portal-api/pkg/errors"
	"github.com/noah-isme/fee-portal-api/pkg/response"
)

// FeeHandler exposes the fee catalog and bulk charge endpoints.
type FeeHandler struct {
	fees   *service.FeeService
	ledger *service.LedgerService
}

// NewFeeHandler constructs FeeHandler.
func NewFeeHandler(fees *service.FeeService, ledger *service.LedgerService) *FeeHandler {
	return &FeeHandler{fees: fees, ledger: ledger}
}

// List godoc
// @Summary List the fee catalog
// @Tags Fees
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /fees [get]
func (h *FeeHandler) List(c *gin.Context) {
	fees, err := h.fees.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, fees, nil)
}

// Create godoc
// @Summary Add a fee catalog entry
// @Tags Fees
// @Accept json
// @Produce json
// @Param payload body service.CreateFeeRequest true "Fee payload"
// @Success 201 {object} response.Envelope
// @Router /fees [post]
func (h *FeeHandler) Create(c *gin.Context) {
	var req service.CreateFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	fee, err := h.fees.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, fee)
}

// BulkCharge godoc
// @Summary Apply a fee or fine to a set of students
// @Tags Fees
// @Accept json
// @Produce json
// @Param payload body models.BulkChargeRequest true "Bulk charge payload"
// @Success 200 {object} response.Envelope
// @Router /fees/bulk-charge [post]
func (h *FeeHandler) BulkCharge(c *gin.Context) {
	var req models.BulkChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.ledger.BulkCharge(c.Request.Context(), actorIDFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// BulkRemove godoc
// @Summary Remove a fee from a set of students
// @Tags Fees
// @Accept json
// @Produce json
// @Param payload body models.BulkRemoveRequest true "Bulk remove payload"
// @Success 200 {object} response.Envelope
// @Router /fees/bulk-remove [post]
func (h *FeeHandler) BulkRemove(c *gin.Context) {
	var req models.BulkRemoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.ledger.BulkRemove(c.Request.Context(), actorIDFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
