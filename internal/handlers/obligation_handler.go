package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sjperalta/covenantops-api/internal/jobs"
	"github.com/sjperalta/covenantops-api/internal/models"
	"github.com/sjperalta/covenantops-api/internal/services"
)

type ObligationHandler struct {
	obligationService *services.ObligationService
	evidenceService   *services.EvidenceService
	worker            *jobs.Worker
}

func NewObligationHandler(obligationService *services.ObligationService, evidenceService *services.EvidenceService, worker *jobs.Worker) *ObligationHandler {
	return &ObligationHandler{obligationService: obligationService, evidenceService: evidenceService, worker: worker}
}

// @Summary List Obligations
// @Description List a loan's obligations, newest first, with statuses computed now
// @Tags Obligations
// @Produce json
// @Param id path int true "Loan ID"
// @Success 200 {array} models.Obligation
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /loans/{id}/obligations [get]
func (h *ObligationHandler) Index(c *gin.Context) {
	loanID, ok := parseID(c, "id")
	if !ok {
		return
	}
	obligations, err := h.obligationService.List(c.Request.Context(), loanID)
	if err != nil {
		respondError(c, err)
		return
	}
	if obligations == nil {
		obligations = []models.Obligation{}
	}
	c.JSON(http.StatusOK, obligations)
}

// @Summary Create Obligation
// @Description Create an obligation under a loan
// @Tags Obligations
// @Accept json
// @Produce json
// @Param id path int true "Loan ID"
// @Param obligation body services.ObligationInput true "Obligation"
// @Success 201 {object} models.Obligation
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Security BearerAuth
// @Router /loans/{id}/obligations [post]
func (h *ObligationHandler) Create(c *gin.Context) {
	loanID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var in services.ObligationInput
	if err := BindNestedOrFlat(c, "obligation", &in); err != nil {
		respondError(c, err)
		return
	}

	obligation, err := h.obligationService.Create(c.Request.Context(), loanID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, obligation)
}

// @Summary Get Obligation
// @Description Get one obligation with its status computed now
// @Tags Obligations
// @Produce json
// @Param id path int true "Obligation ID"
// @Success 200 {object} models.Obligation
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /obligations/{id} [get]
func (h *ObligationHandler) Show(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	obligation, err := h.obligationService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, obligation)
}

// @Summary Update Obligation
// @Description Partially update an obligation. Fields left out are unchanged; null clears a nullable field.
// @Tags Obligations
// @Accept json
// @Produce json
// @Param id path int true "Obligation ID"
// @Param obligation body services.ObligationInput true "Fields to change"
// @Success 200 {object} models.Obligation
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Security BearerAuth
// @Router /obligations/{id} [put]
func (h *ObligationHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var patch services.ObligationPatch
	if err := BindNestedOrFlat(c, "obligation", &patch); err != nil {
		respondError(c, err)
		return
	}

	obligation, err := h.obligationService.Update(c.Request.Context(), id, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, obligation)
}

// @Summary Complete Obligation
// @Description Mark an obligation COMPLETED regardless of its due date
// @Tags Obligations
// @Produce json
// @Param id path int true "Obligation ID"
// @Success 200 {object} models.Obligation
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /obligations/{id}/complete [post]
func (h *ObligationHandler) Complete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	obligation, err := h.obligationService.Complete(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, obligation)
}

// @Summary Reopen Obligation
// @Description Clear COMPLETED and recompute the status from the due date
// @Tags Obligations
// @Produce json
// @Param id path int true "Obligation ID"
// @Success 200 {object} models.Obligation
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /obligations/{id}/reopen [post]
func (h *ObligationHandler) Reopen(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	obligation, err := h.obligationService.Reopen(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, obligation)
}

// @Summary Delete Obligation
// @Description Delete an obligation and its evidence
// @Tags Obligations
// @Produce json
// @Param id path int true "Obligation ID"
// @Success 200 {object} DeletedResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /obligations/{id} [delete]
func (h *ObligationHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	removed, err := h.obligationService.Delete(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	if len(removed) > 0 {
		if h.worker != nil {
			h.worker.Enqueue("remove-evidence-files", func(ctx context.Context) error {
				h.evidenceService.RemoveFiles(ctx, removed)
				return nil
			})
		} else {
			h.evidenceService.RemoveFiles(c.Request.Context(), removed)
		}
	}

	c.JSON(http.StatusOK, DeletedResponse{Deleted: true})
}
