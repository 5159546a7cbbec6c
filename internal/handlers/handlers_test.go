package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sjperalta/covenantops-api/internal/config"
	"github.com/sjperalta/covenantops-api/internal/extractor"
	"github.com/sjperalta/covenantops-api/internal/metrics"
	"github.com/sjperalta/covenantops-api/internal/repository"
	"github.com/sjperalta/covenantops-api/internal/services"
	"github.com/sjperalta/covenantops-api/internal/storage"
	"github.com/sjperalta/covenantops-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

type testAPI struct {
	router *gin.Engine
	store  *storage.LocalStorage
}

func newTestAPI(t *testing.T, provider string) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	now := func() time.Time { return testNow }
	ex, err := extractor.New(provider, now)
	require.NoError(t, err)

	cfg := &config.Config{MaxUploadBytes: 1 << 10}
	svcs := services.NewServices(services.Deps{
		Repos:     repository.NewRepositories(testutil.NewDB(t)),
		Storage:   store,
		Extractor: ex,
		Mailer:    services.LogMailer{},
		Metrics:   metrics.New(prometheus.NewRegistry()),
		Config:    cfg,
		Now:       now,
	})

	r := gin.New()
	NewHandlers(svcs, nil, cfg).Register(r.Group("/api"))
	return &testAPI{router: r, store: store}
}

func (a *testAPI) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (a *testAPI) createLoan(t *testing.T, title string) uint {
	t.Helper()
	w := a.do(t, http.MethodPost, "/api/loans", fmt.Sprintf(`{"title": %q}`, title))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[struct{ ID uint }](t, w).ID
}

func (a *testAPI) createObligation(t *testing.T, loanID uint, body string) map[string]any {
	t.Helper()
	w := a.do(t, http.MethodPost, fmt.Sprintf("/api/loans/%d/obligations", loanID), body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[map[string]any](t, w)
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t, "mock")
	w := api.do(t, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestLoanEndpoints(t *testing.T) {
	api := newTestAPI(t, "mock")

	id := api.createLoan(t, "Term Loan A")

	w := api.do(t, http.MethodGet, "/api/loans", "")
	require.Equal(t, http.StatusOK, w.Code)
	loans := decode[[]map[string]any](t, w)
	require.Len(t, loans, 1)
	assert.Equal(t, "Term Loan A", loans[0]["title"])

	w = api.do(t, http.MethodGet, fmt.Sprintf("/api/loans/%d", id), "")
	require.Equal(t, http.StatusOK, w.Code)
	detail := decode[map[string]any](t, w)
	assert.Equal(t, map[string]any{"total": 0.0, "on_track": 0.0, "due_soon": 0.0, "overdue": 0.0, "completed": 0.0}, detail["summary"])

	nested := api.do(t, http.MethodPost, "/api/loans", `{"loan": {"title": "Revolver B"}}`)
	assert.Equal(t, http.StatusCreated, nested.Code)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"blank title", http.MethodPost, "/api/loans", `{"title": "  "}`, http.StatusUnprocessableEntity},
		{"malformed json", http.MethodPost, "/api/loans", `{"title": `, http.StatusBadRequest},
		{"wrong type", http.MethodPost, "/api/loans", `{"title": 7}`, http.StatusUnprocessableEntity},
		{"bad id", http.MethodGet, "/api/loans/abc", "", http.StatusBadRequest},
		{"missing loan", http.MethodGet, "/api/loans/999", "", http.StatusNotFound},
		{"missing loan obligations", http.MethodGet, "/api/loans/999/obligations", "", http.StatusNotFound},
		{"blank import", http.MethodPost, fmt.Sprintf("/api/loans/%d/import-text", id), `{"text": ""}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.NotEmpty(t, decode[ErrorResponse](t, w).Error)
		})
	}

	w = api.do(t, http.MethodDelete, fmt.Sprintf("/api/loans/%d", id), "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"deleted": true}`, w.Body.String())
	w = api.do(t, http.MethodGet, fmt.Sprintf("/api/loans/%d", id), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestObligationWalkthrough(t *testing.T) {
	api := newTestAPI(t, "mock")
	loanID := api.createLoan(t, "Term Loan A")

	o := api.createObligation(t, loanID, `{
		"name": "Quarterly report",
		"obligation_type": "REPORTING",
		"frequency": "QUARTERLY",
		"next_due_at": "2025-05-06T12:00:00Z"
	}`)
	assert.Equal(t, "DUE_SOON", o["status"])
	id := uint(o["id"].(float64))

	w := api.do(t, http.MethodPost, fmt.Sprintf("/api/obligations/%d/complete", id), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "COMPLETED", decode[map[string]any](t, w)["status"])

	w = api.do(t, http.MethodPost, fmt.Sprintf("/api/obligations/%d/reopen", id), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DUE_SOON", decode[map[string]any](t, w)["status"])

	w = api.do(t, http.MethodPut, fmt.Sprintf("/api/obligations/%d", id), `{"due_rule": "45 days after quarter end"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "45 days after quarter end", decode[map[string]any](t, w)["due_rule"])

	w = api.do(t, http.MethodPut, fmt.Sprintf("/api/obligations/%d", id), `{"name": null}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = api.do(t, http.MethodPut, fmt.Sprintf("/api/obligations/%d", id), `{"frequency": "HOURLY"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = api.do(t, http.MethodGet, fmt.Sprintf("/api/audit?obligation_id=%d", id), "")
	require.Equal(t, http.StatusOK, w.Code)
	events := decode[[]map[string]any](t, w)
	require.Len(t, events, 4)
	assert.Equal(t, "UPDATED", events[0]["action"])
	assert.Contains(t, events[0]["details_json"], "due_rule")
	assert.Equal(t, "CREATED", events[3]["action"])

	w = api.do(t, http.MethodGet, fmt.Sprintf("/api/loans/%d/obligations", loanID), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]map[string]any](t, w), 1)

	w = api.do(t, http.MethodDelete, fmt.Sprintf("/api/obligations/%d", id), "")
	require.Equal(t, http.StatusOK, w.Code)
	w = api.do(t, http.MethodGet, fmt.Sprintf("/api/obligations/%d", id), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func assertUpdatedAt(t *testing.T, w *httptest.ResponseRecorder, want time.Time) {
	t.Helper()
	got, err := time.Parse(time.RFC3339Nano, decode[struct {
		UpdatedAt string `json:"updated_at"`
	}](t, w).UpdatedAt)
	require.NoError(t, err)
	assert.True(t, got.Equal(want), "updated_at = %s, want %s", got, want)
}

func TestObligationRoundTripKeepsUpdatedAt(t *testing.T) {
	api := newTestAPI(t, "mock")
	loanID := api.createLoan(t, "Term Loan A")
	o := api.createObligation(t, loanID, `{"name": "Quarterly report", "next_due_at": "2025-05-06T12:00:00Z"}`)
	id := uint(o["id"].(float64))

	w := api.do(t, http.MethodGet, fmt.Sprintf("/api/obligations/%d", id), "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()

	w = api.do(t, http.MethodPut, fmt.Sprintf("/api/obligations/%d", id), body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assertUpdatedAt(t, w, testNow)

	for _, action := range []string{"complete", "reopen"} {
		w = api.do(t, http.MethodPost, fmt.Sprintf("/api/obligations/%d/%s", id, action), "")
		require.Equal(t, http.StatusOK, w.Code)
		assertUpdatedAt(t, w, testNow)
	}

	w = api.do(t, http.MethodGet, fmt.Sprintf("/api/audit?obligation_id=%d", id), "")
	actions := []string{}
	for _, e := range decode[[]map[string]any](t, w) {
		actions = append(actions, e["action"].(string))
	}
	assert.Equal(t, []string{"UPDATED", "COMPLETED", "CREATED"}, actions)
}

func TestCreateObligationValidation(t *testing.T) {
	api := newTestAPI(t, "mock")
	loanID := api.createLoan(t, "Term Loan A")
	path := fmt.Sprintf("/api/loans/%d/obligations", loanID)

	assert.Equal(t, http.StatusUnprocessableEntity, api.do(t, http.MethodPost, path, `{"name": "x", "obligation_type": "MEMO"}`).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, api.do(t, http.MethodPost, path, `{"obligation_type": "NOTICE"}`).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, api.do(t, http.MethodPost, path, `{"name": "x", "obligation_type": "NOTICE", "due_date": "soon"}`).Code)
	assert.Equal(t, http.StatusBadRequest, api.do(t, http.MethodPost, path, ``).Code)
	assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodPost, "/api/loans/999/obligations", `{"name": "x", "obligation_type": "NOTICE"}`).Code)
}

func TestExtractEndpoint(t *testing.T) {
	api := newTestAPI(t, "mock")
	loanID := api.createLoan(t, "Term Loan A")
	path := fmt.Sprintf("/api/loans/%d/extract", loanID)

	w := api.do(t, http.MethodPost, path, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[ErrorResponse](t, w).Error, "no text")

	w = api.do(t, http.MethodPost, fmt.Sprintf("/api/loans/%d/import-text", loanID), `{"text": "The Borrower shall deliver..."}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodPost, path, "")
	require.Equal(t, http.StatusOK, w.Code)
	result := decode[services.ExtractResult](t, w)
	assert.Equal(t, services.ExtractMeta{Extractor: "mock", Count: 10}, result.Meta)
	assert.Len(t, result.Obligations, 10)
}

func TestExtractUnavailable(t *testing.T) {
	api := newTestAPI(t, "llm")
	loanID := api.createLoan(t, "Term Loan A")

	w := api.do(t, http.MethodPost, fmt.Sprintf("/api/loans/%d/extract", loanID), `{"text": "agreement"}`)
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func uploadRequest(t *testing.T, path, filename, content, note string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	if note != "" {
		require.NoError(t, mw.WriteField("note", note))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestEvidenceEndpoints(t *testing.T) {
	api := newTestAPI(t, "mock")
	loanID := api.createLoan(t, "Term Loan A")
	o := api.createObligation(t, loanID, `{"name": "Compliance certificate", "obligation_type": "REPORTING"}`)
	id := uint(o["id"].(float64))
	path := fmt.Sprintf("/api/obligations/%d/evidence", id)

	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, uploadRequest(t, path, "Q1 résumé.pdf", "%PDF-1.4 certificate", "signed copy"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	evidence := decode[map[string]any](t, w)
	assert.Equal(t, "Q1 résumé.pdf", evidence["filename"])
	assert.Equal(t, "signed copy", evidence["note"])
	evidenceID := uint(evidence["id"].(float64))

	w = api.do(t, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]map[string]any](t, w), 1)

	w = api.do(t, http.MethodGet, fmt.Sprintf("/api/evidence/%d/download", evidenceID), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "%PDF-1.4 certificate", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "filename*=utf-8''Q1%20r%C3%A9sum%C3%A9.pdf")

	w = httptest.NewRecorder()
	api.router.ServeHTTP(w, uploadRequest(t, path, "", "", "note only"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	api.router.ServeHTTP(w, uploadRequest(t, path, "big.bin", strings.Repeat("x", 2<<10), ""))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = httptest.NewRecorder()
	api.router.ServeHTTP(w, uploadRequest(t, "/api/obligations/999/evidence", "a.pdf", "x", ""))
	assert.Equal(t, http.StatusNotFound, w.Code)

	stored := evidence["file_path"].(string)
	require.True(t, api.store.Exists(stored))
	w = api.do(t, http.MethodDelete, fmt.Sprintf("/api/obligations/%d", id), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, api.store.Exists(stored))

	w = api.do(t, http.MethodGet, fmt.Sprintf("/api/evidence/%d/download", evidenceID), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExportEndpoints(t *testing.T) {
	api := newTestAPI(t, "mock")
	loanID := api.createLoan(t, "Term Loan A")
	api.createObligation(t, loanID, `{"name": "Compliance certificate", "obligation_type": "REPORTING", "due_date": "2025-06-01"}`)
	api.createObligation(t, loanID, `{"name": "Undated", "obligation_type": "NOTICE"}`)

	w := api.do(t, http.MethodGet, fmt.Sprintf("/api/loans/%d/export.ics", loanID), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/calendar; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), fmt.Sprintf("loan-%d-obligations.ics", loanID))
	assert.Equal(t, 1, strings.Count(w.Body.String(), "BEGIN:VEVENT"))
	assert.Contains(t, w.Body.String(), "DTSTART;VALUE=DATE:20250601")

	w = api.do(t, http.MethodGet, fmt.Sprintf("/api/loans/%d/compliance-packet", loanID), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "Compliance certificate")

	w = api.do(t, http.MethodGet, fmt.Sprintf("/api/loans/%d/compliance-packet?format=pdf", loanID), "")
	assert.Equal(t, http.StatusNotImplemented, w.Code)

	w = api.do(t, http.MethodGet, fmt.Sprintf("/api/loans/%d/compliance-packet?format=doc", loanID), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodGet, fmt.Sprintf("/api/loans/%d/export.pdf", loanID), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "%PDF"))

	w = api.do(t, http.MethodGet, fmt.Sprintf("/api/loans/%d/export.xlsx", loanID), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "PK"))

	w = api.do(t, http.MethodGet, "/api/loans/999/export.ics", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAuditEndpoint(t *testing.T) {
	api := newTestAPI(t, "mock")
	first := api.createLoan(t, "Term Loan A")
	api.createLoan(t, "Revolver B")

	w := api.do(t, http.MethodGet, "/api/audit", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]map[string]any](t, w), 2)

	w = api.do(t, http.MethodGet, fmt.Sprintf("/api/audit?loan_id=%d", first), "")
	require.Equal(t, http.StatusOK, w.Code)
	events := decode[[]map[string]any](t, w)
	require.Len(t, events, 1)
	assert.Equal(t, "loan", events[0]["entity_type"])
	assert.JSONEq(t, `{"title": "Term Loan A"}`, events[0]["details_json"].(string))

	w = api.do(t, http.MethodGet, "/api/audit?loan_id=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReminderWithoutRecipients(t *testing.T) {
	api := newTestAPI(t, "mock")
	loanID := api.createLoan(t, "Term Loan A")

	w := api.do(t, http.MethodPost, fmt.Sprintf("/api/loans/%d/reminders", loanID), "")
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("loan 1: %w", services.ErrNotFound), http.StatusNotFound},
		{&services.ValidationError{Field: "name", Reason: "is required"}, http.StatusUnprocessableEntity},
		{services.ErrNoText, http.StatusBadRequest},
		{fmt.Errorf("mock: %w", extractor.ErrUnavailable), http.StatusNotImplemented},
		{services.ErrPDFDisabled, http.StatusNotImplemented},
		{storage.ErrInvalidPath, http.StatusBadRequest},
		{&BindError{Err: errEmptyBody}, http.StatusBadRequest},
		{&http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, statusFor(tt.err), tt.err.Error())
	}
}

func TestInternalErrorsAreHidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	respondError(c, errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error": "internal server error"}`, w.Body.String())
}
