package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sjperalta/covenantops-api/internal/models"
	"github.com/sjperalta/covenantops-api/internal/repository"
	"github.com/sjperalta/covenantops-api/internal/services"
)

type AuditHandler struct {
	auditService *services.AuditService
}

func NewAuditHandler(auditService *services.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

// @Summary List Audit Events
// @Description The most recent 200 audit events, newest first, optionally filtered
// @Tags Audit
// @Produce json
// @Param loan_id query int false "Only events of this loan"
// @Param obligation_id query int false "Only events of this obligation"
// @Success 200 {array} models.AuditEventResponse
// @Failure 400 {object} ErrorResponse
// @Security BearerAuth
// @Router /audit [get]
func (h *AuditHandler) Index(c *gin.Context) {
	loanID, ok := parseOptionalID(c, "loan_id")
	if !ok {
		return
	}
	obligationID, ok := parseOptionalID(c, "obligation_id")
	if !ok {
		return
	}

	events, err := h.auditService.List(c.Request.Context(), repository.AuditFilter{
		LoanID:       loanID,
		ObligationID: obligationID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	responses := make([]models.AuditEventResponse, 0, len(events))
	for i := range events {
		responses = append(responses, events[i].ToResponse())
	}
	c.JSON(http.StatusOK, responses)
}
