package handlers

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/sjperalta/covenantops-api/internal/extractor"
	"github.com/sjperalta/covenantops-api/internal/services"
	"github.com/sjperalta/covenantops-api/internal/storage"
	"github.com/sjperalta/covenantops-api/pkg/logger"
)

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error string `json:"error"`
}

// DeletedResponse confirms a delete
type DeletedResponse struct {
	Deleted bool `json:"deleted"`
}

// statusFor maps a service error to its HTTP status
func statusFor(err error) int {
	var bindErr *BindError
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &bindErr):
		if bindErr.Malformed() {
			return http.StatusBadRequest
		}
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrNoText), errors.Is(err, storage.ErrInvalidPath):
		return http.StatusBadRequest
	case errors.Is(err, extractor.ErrUnavailable),
		errors.Is(err, services.ErrPDFDisabled),
		errors.Is(err, services.ErrNoRecipients):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes {"error": ...}. Server errors are logged, reported to
// Sentry when enabled and shown to the client without internals.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError && status != http.StatusNotImplemented {
		logger.FromContext(c.Request.Context()).Error("request failed", "path", c.FullPath(), "error", err)
		if hub := sentrygin.GetHubFromContext(c); hub != nil {
			hub.CaptureException(err)
		}
		_ = c.Error(err)
		msg = "internal server error"
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: msg})
}

// parseID reads a positive integer path parameter
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("invalid %s", name)})
		return 0, false
	}
	return uint(id), true
}

// parseOptionalID reads a positive integer query parameter if present
func parseOptionalID(c *gin.Context, name string) (*uint, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("invalid %s", name)})
		return nil, false
	}
	v := uint(id)
	return &v, true
}

// apiBase is the absolute /api URL the client reached us on
func apiBase(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		scheme = proto
	}
	return scheme + "://" + c.Request.Host + "/api"
}

// attachment sends a rendered document as a download
func attachment(c *gin.Context, doc *services.Document) {
	c.Header("Content-Disposition", contentDisposition("attachment", doc.Filename))
	c.Data(http.StatusOK, doc.ContentType, doc.Body)
}

// contentDisposition formats the header, encoding non-ASCII names per RFC 2231
func contentDisposition(kind, filename string) string {
	if v := mime.FormatMediaType(kind, map[string]string{"filename": filename}); v != "" {
		return v
	}
	return kind
}
