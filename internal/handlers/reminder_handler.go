package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sjperalta/covenantops-api/internal/services"
)

type ReminderHandler struct {
	reminderService *services.ReminderService
}

func NewReminderHandler(reminderService *services.ReminderService) *ReminderHandler {
	return &ReminderHandler{reminderService: reminderService}
}

// @Summary Send Reminder Digest
// @Description Email the loan's overdue and due-soon obligations to the configured recipients now
// @Tags Reminders
// @Produce json
// @Param id path int true "Loan ID"
// @Success 200 {object} services.Digest
// @Failure 404 {object} ErrorResponse
// @Failure 501 {object} ErrorResponse
// @Security BearerAuth
// @Router /loans/{id}/reminders [post]
func (h *ReminderHandler) Send(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	digest, err := h.reminderService.SendLoanDigest(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, digest)
}
