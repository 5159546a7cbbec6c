package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sjperalta/covenantops-api/internal/models"
	"github.com/sjperalta/covenantops-api/internal/services"
)

type EvidenceHandler struct {
	evidenceService *services.EvidenceService
	maxUploadBytes  int64
}

func NewEvidenceHandler(evidenceService *services.EvidenceService, maxUploadBytes int64) *EvidenceHandler {
	return &EvidenceHandler{evidenceService: evidenceService, maxUploadBytes: maxUploadBytes}
}

// @Summary Upload Evidence
// @Description Attach a file to an obligation
// @Tags Evidence
// @Accept multipart/form-data
// @Produce json
// @Param id path int true "Obligation ID"
// @Param file formData file true "Evidence file"
// @Param note formData string false "Note"
// @Success 200 {object} models.Evidence
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 413 {object} ErrorResponse
// @Security BearerAuth
// @Router /obligations/{id}/evidence [post]
func (h *EvidenceHandler) Upload(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	// multipart framing needs a little room on top of the file itself
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+1<<20)

	header, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(c, err)
			return
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: "file is required"})
		return
	}
	if header.Size > h.maxUploadBytes {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Error: "file exceeds " + strconv.FormatInt(h.maxUploadBytes, 10) + " bytes",
		})
		return
	}

	file, err := header.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	var note *string
	if n := strings.TrimSpace(c.PostForm("note")); n != "" {
		note = &n
	}

	evidence, err := h.evidenceService.Upload(c.Request.Context(), id, services.UploadInput{
		Body:        file,
		Filename:    header.Filename,
		ContentType: contentType,
		Note:        note,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, evidence)
}

// @Summary List Evidence
// @Description List an obligation's evidence, newest first
// @Tags Evidence
// @Produce json
// @Param id path int true "Obligation ID"
// @Success 200 {array} models.Evidence
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /obligations/{id}/evidence [get]
func (h *EvidenceHandler) Index(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	evidence, err := h.evidenceService.List(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if evidence == nil {
		evidence = []models.Evidence{}
	}
	c.JSON(http.StatusOK, evidence)
}

// @Summary Download Evidence
// @Description Download the stored file under its original name
// @Tags Evidence
// @Produce application/octet-stream
// @Param id path int true "Evidence ID"
// @Success 200 {file} file "evidence"
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /evidence/{id}/download [get]
func (h *EvidenceHandler) Download(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	evidence, file, err := h.evidenceService.Open(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	defer file.Close()

	size := int64(-1)
	if info, err := file.Stat(); err == nil {
		size = info.Size()
	}
	contentType := evidence.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, size, contentType, file, map[string]string{
		"Content-Disposition": contentDisposition("attachment", evidence.Filename),
	})
}
