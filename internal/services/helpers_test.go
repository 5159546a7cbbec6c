package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sjperalta/covenantops-api/internal/config"
	"github.com/sjperalta/covenantops-api/internal/extractor"
	"github.com/sjperalta/covenantops-api/internal/metrics"
	"github.com/sjperalta/covenantops-api/internal/models"
	"github.com/sjperalta/covenantops-api/internal/repository"
	"github.com/sjperalta/covenantops-api/internal/storage"
	"github.com/sjperalta/covenantops-api/internal/testutil"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sentMail struct {
	to      []string
	subject string
	html    string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) Send(ctx context.Context, to []string, subject, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, html: html})
	return nil
}

type testEnv struct {
	svc     *Services
	repos   *repository.Repositories
	store   *storage.LocalStorage
	clock   *fakeClock
	mailer  *fakeMailer
	metrics *metrics.Metrics
}

type envOption func(*Deps)

func withExtractor(ex extractor.Extractor) envOption {
	return func(d *Deps) { d.Extractor = ex }
}

func withRecipients(to ...string) envOption {
	return func(d *Deps) { d.Config.ReminderRecipients = to }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	clock := &fakeClock{now: time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)}
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	repos := repository.NewRepositories(testutil.NewDB(t))
	mailer := &fakeMailer{}
	m := metrics.New(prometheus.NewRegistry())

	deps := Deps{
		Repos:     repos,
		Storage:   store,
		Extractor: extractor.NewMock(clock.Now),
		Mailer:    mailer,
		Metrics:   m,
		Config:    &config.Config{},
		Now:       clock.Now,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	return &testEnv{
		svc:     NewServices(deps),
		repos:   repos,
		store:   store,
		clock:   clock,
		mailer:  mailer,
		metrics: m,
	}
}

func (e *testEnv) loan(t *testing.T, title string) *models.Loan {
	t.Helper()
	loan, err := e.svc.Loan.Create(context.Background(), title)
	require.NoError(t, err)
	return loan
}

func (e *testEnv) obligation(t *testing.T, loanID uint, in ObligationInput) *models.Obligation {
	t.Helper()
	if in.Name == "" {
		in.Name = "Quarterly report"
	}
	if in.ObligationType == "" {
		in.ObligationType = models.ObligationTypeReporting
	}
	o, err := e.svc.Obligation.Create(context.Background(), loanID, in)
	require.NoError(t, err)
	return o
}

func (e *testEnv) audit(t *testing.T, filter repository.AuditFilter) []models.AuditEvent {
	t.Helper()
	events, err := e.svc.Audit.List(context.Background(), filter)
	require.NoError(t, err)
	return events
}

func decodeDetails(t *testing.T, event models.AuditEvent) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(event.Details, &out))
	return out
}

func timePtr(t time.Time) *time.Time { return &t }

func datePtr(d models.Date) *models.Date { return &d }

func uintPtr(v uint) *uint { return &v }
