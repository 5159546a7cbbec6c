package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sjperalta/covenantops-api/internal/services"
)

type ExportHandler struct {
	exportService *services.ExportService
}

func NewExportHandler(exportService *services.ExportService) *ExportHandler {
	return &ExportHandler{exportService: exportService}
}

// @Summary Calendar Export
// @Description Download the loan's dated obligations as an iCalendar file
// @Tags Exports
// @Produce text/calendar
// @Param id path int true "Loan ID"
// @Success 200 {file} file "loan-{id}-obligations.ics"
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /loans/{id}/export.ics [get]
func (h *ExportHandler) Calendar(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	doc, err := h.exportService.Calendar(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	attachment(c, doc)
}

// @Summary Compliance Packet
// @Description Render the compliance packet as HTML, or as PDF with format=pdf
// @Tags Exports
// @Produce text/html
// @Produce application/pdf
// @Param id path int true "Loan ID"
// @Param format query string false "html or pdf" default(html)
// @Success 200 {string} string "packet"
// @Failure 404 {object} ErrorResponse
// @Failure 501 {object} ErrorResponse
// @Security BearerAuth
// @Router /loans/{id}/compliance-packet [get]
func (h *ExportHandler) CompliancePacket(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	switch strings.ToLower(c.DefaultQuery("format", "html")) {
	case "html":
		body, err := h.exportService.PacketHTML(c.Request.Context(), id, apiBase(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", body)
	case "pdf":
		doc, err := h.exportService.PacketPDF(c.Request.Context(), id, apiBase(c))
		if err != nil {
			respondError(c, err)
			return
		}
		attachment(c, doc)
	default:
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: "format must be html or pdf"})
	}
}

// @Summary Obligation Schedule PDF
// @Description Download the obligation schedule as PDF
// @Tags Exports
// @Produce application/pdf
// @Param id path int true "Loan ID"
// @Success 200 {file} file "loan-{id}-schedule.pdf"
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /loans/{id}/export.pdf [get]
func (h *ExportHandler) SchedulePDF(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	doc, err := h.exportService.SchedulePDF(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	attachment(c, doc)
}

// @Summary Obligation Register XLSX
// @Description Download the obligation register as an Excel workbook
// @Tags Exports
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path int true "Loan ID"
// @Success 200 {file} file "loan-{id}-register.xlsx"
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /loans/{id}/export.xlsx [get]
func (h *ExportHandler) RegisterXLSX(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	doc, err := h.exportService.RegisterXLSX(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	attachment(c, doc)
}
