package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sjperalta/covenantops-api/internal/models"
	"github.com/sjperalta/covenantops-api/internal/services"
)

type LoanHandler struct {
	loanService *services.LoanService
}

func NewLoanHandler(loanService *services.LoanService) *LoanHandler {
	return &LoanHandler{loanService: loanService}
}

type CreateLoanRequest struct {
	Title string `json:"title"`
}

type ImportTextRequest struct {
	Text string `json:"text"`
}

type ExtractRequest struct {
	Text string `json:"text"`
}

// @Summary Create Loan
// @Description Create a loan facility
// @Tags Loans
// @Accept json
// @Produce json
// @Param loan body CreateLoanRequest true "Loan"
// @Success 201 {object} models.Loan
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Security BearerAuth
// @Router /loans [post]
func (h *LoanHandler) Create(c *gin.Context) {
	var req CreateLoanRequest
	if err := BindNestedOrFlat(c, "loan", &req); err != nil {
		respondError(c, err)
		return
	}

	loan, err := h.loanService.Create(c.Request.Context(), req.Title)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, loan)
}

// @Summary List Loans
// @Description List all loans, newest first
// @Tags Loans
// @Produce json
// @Success 200 {array} models.Loan
// @Security BearerAuth
// @Router /loans [get]
func (h *LoanHandler) Index(c *gin.Context) {
	loans, err := h.loanService.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if loans == nil {
		loans = []models.Loan{}
	}
	c.JSON(http.StatusOK, loans)
}

// @Summary Get Loan
// @Description Get a loan with its obligation status summary
// @Tags Loans
// @Produce json
// @Param id path int true "Loan ID"
// @Success 200 {object} models.LoanDetailResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /loans/{id} [get]
func (h *LoanHandler) Show(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	detail, err := h.loanService.Detail(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// @Summary Delete Loan
// @Description Delete a loan with all its obligations and evidence
// @Tags Loans
// @Produce json
// @Param id path int true "Loan ID"
// @Success 200 {object} DeletedResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /loans/{id} [delete]
func (h *LoanHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.loanService.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, DeletedResponse{Deleted: true})
}

// @Summary Import Loan Text
// @Description Store the loan agreement text for extraction
// @Tags Loans
// @Accept json
// @Produce json
// @Param id path int true "Loan ID"
// @Param body body ImportTextRequest true "Agreement text"
// @Success 200 {object} models.Loan
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Security BearerAuth
// @Router /loans/{id}/import-text [post]
func (h *LoanHandler) ImportText(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req ImportTextRequest
	if err := BindNestedOrFlat(c, "loan", &req); err != nil {
		respondError(c, err)
		return
	}

	loan, err := h.loanService.ImportText(c.Request.Context(), id, req.Text)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, loan)
}

// @Summary Extract Obligations
// @Description Run the configured extractor over the given text, or the imported text, and create the obligations it proposes
// @Tags Loans
// @Accept json
// @Produce json
// @Param id path int true "Loan ID"
// @Param body body ExtractRequest false "Text to extract from"
// @Success 200 {object} services.ExtractResult
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 501 {object} ErrorResponse
// @Security BearerAuth
// @Router /loans/{id}/extract [post]
func (h *LoanHandler) Extract(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req ExtractRequest
	if err := BindNestedOrFlat(c, "loan", &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(c, err)
		return
	}

	result, err := h.loanService.Extract(c.Request.Context(), id, req.Text)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
