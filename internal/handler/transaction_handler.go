package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/fee-portal-api/internal/models"
	"github.com/noah-isme/fee-portal-api/internal/service"
	"github.com/noah-isme/fee-portal-api/pkg/response"
)

// TransactionHandler exposes the transaction log.
type TransactionHandler struct {
	transactions *service.TransactionService
}

// NewTransactionHandler constructs TransactionHandler.
func NewTransactionHandler(transactions *service.TransactionService) *TransactionHandler {
	return &TransactionHandler{transactions: transactions}
}

func transactionFilterFromQuery(c *gin.Context) models.TransactionFilter {
	var filter models.TransactionFilter
	filter.StudentID = c.Query("student_id")
	filter.Type = models.TransactionType(c.Query("type"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		filter.PageSize = size
	}
	return filter
}

// List godoc
// @Summary List transactions
// @Tags Transactions
// @Produce json
// @Param student_id query string false "Filter by student row id"
// @Param type query string false "Filter by transaction type"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /transactions [get]
func (h *TransactionHandler) List(c *gin.Context) {
	txns, pagination, err := h.transactions.List(c.Request.Context(), transactionFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, txns, pagination)
}

// ListForStudent godoc
// @Summary List a student's transactions
// @Tags Transactions
// @Produce json
// @Param id path string true "Student row id"
// @Param type query string false "Filter by transaction type"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/transactions [get]
func (h *TransactionHandler) ListForStudent(c *gin.Context) {
	filter := transactionFilterFromQuery(c)
	filter.StudentID = c.Param("id")

	txns, pagination, err := h.transactions.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, txns, pagination)
}

// ExportCSV godoc
// @Summary Export transactions as CSV
// @Tags Transactions
// @Produce text/csv
// @Param student_id query string false "Filter by student row id"
// @Param type query string false "Filter by transaction type"
// @Success 200 {file} file
// @Router /transactions/export [get]
func (h *TransactionHandler) ExportCSV(c *gin.Context) {
	payload, err := h.transactions.ExportCSV(c.Request.Context(), transactionFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	filename := fmt.Sprintf("transactions-%s.csv", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "text/csv", payload)
}
