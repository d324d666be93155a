package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/fee-portal-api/internal/models"
	"github.com/noah-isme/fee-portal-api/internal/service"
	appErrors "github.com/noah-isme/fee-portal-api/pkg/errors"
	"github.com/noah-isme/fee-portal-api/pkg/response"
)

// DeadlineHandler exposes fee deadline management and reminder dispatch.
type DeadlineHandler struct {
	deadlines *service.DeadlineService
}

// NewDeadlineHandler constructs DeadlineHandler.
func NewDeadlineHandler(deadlines *service.DeadlineService) *DeadlineHandler {
	return &DeadlineHandler{deadlines: deadlines}
}

// List godoc
// @Summary List fee deadlines
// @Tags Deadlines
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /deadlines [get]
func (h *DeadlineHandler) List(c *gin.Context) {
	deadlines, err := h.deadlines.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, deadlines, nil)
}

// Create godoc
// @Summary Create a fee deadline
// @Tags Deadlines
// @Accept json
// @Produce json
// @Param payload body models.CreateDeadlineRequest true "Deadline payload"
// @Success 201 {object} response.Envelope
// @Router /deadlines [post]
func (h *DeadlineHandler) Create(c *gin.Context) {
	var req models.CreateDeadlineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	deadline, err := h.deadlines.Create(c.Request.Context(), actorIDFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, deadline)
}

// Delete godoc
// @Summary Delete a fee deadline
// @Tags Deadlines
// @Produce json
// @Param id path string true "Deadline id"
// @Success 204
// @Router /deadlines/{id} [delete]
func (h *DeadlineHandler) Delete(c *gin.Context) {
	if err := h.deadlines.Delete(c.Request.Context(), actorIDFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Notify godoc
// @Summary Dispatch reminders for a deadline
// @Tags Deadlines
// @Produce json
// @Param id path string true "Deadline id"
// @Success 202 {object} response.Envelope
// @Router /deadlines/{id}/notify [post]
func (h *DeadlineHandler) Notify(c *gin.Context) {
	dispatch, err := h.deadlines.Notify(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, dispatch, nil)
}
