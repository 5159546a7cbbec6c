package services

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/sjperalta/covenantops-api/internal/models"
	"github.com/sjperalta/covenantops-api/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const day = 24 * time.Hour

func TestTermLoanAWalkthrough(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	loan := env.loan(t, "Term Loan A")
	o := env.obligation(t, loan.ID, ObligationInput{
		Name:      "Quarterly report",
		Frequency: models.FrequencyQuarterly,
		NextDueAt: timePtr(env.clock.Now().Add(5 * day)),
	})
	assert.Equal(t, models.StatusDueSoon, o.Status)

	completed, err := env.svc.Obligation.Complete(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, completed.Status)

	reopened, err := env.svc.Obligation.Reopen(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDueSoon, reopened.Status)

	events := env.audit(t, repository.AuditFilter{ObligationID: &o.ID})
	require.Len(t, events, 3)
	assert.Equal(t, models.AuditActionUpdated, events[0].Action)
	assert.Equal(t, true, decodeDetails(t, events[0])["reopened"])
	assert.Equal(t, models.AuditActionCompleted, events[1].Action)
	assert.Equal(t, models.AuditActionCreated, events[2].Action)

	created := decodeDetails(t, events[2])
	assert.EqualValues(t, loan.ID, created["loan_id"])
	assert.Equal(t, "Quarterly report", created["name"])
	assert.Equal(t, "QUARTERLY", created["frequency"])
}

func TestCreateAppliesDefaults(t *testing.T) {
	env := newTestEnv(t)
	loan := env.loan(t, "Term Loan A")

	o := env.obligation(t, loan.ID, ObligationInput{Name: "  Negative pledge  ", ObligationType: models.ObligationTypeCovenant})
	assert.Equal(t, "Negative pledge", o.Name)
	assert.Equal(t, models.FrequencyOnce, o.Frequency)
	assert.Equal(t, models.StatusOnTrack, o.Status)
	assert.True(t, o.CreatedAt.Equal(env.clock.Now()))
}

func TestCreateKeepsExplicitCompletedStatus(t *testing.T) {
	env := newTestEnv(t)
	loan := env.loan(t, "Term Loan A")

	o := env.obligation(t, loan.ID, ObligationInput{
		Status:  models.StatusCompleted,
		DueDate: datePtr(models.DateOf(env.clock.Now().Add(-30 * day))),
	})
	assert.Equal(t, models.StatusCompleted, o.Status)
}

func TestCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	loan := env.loan(t, "Term Loan A")

	tests := []struct {
		name  string
		in    ObligationInput
		field string
	}{
		{"missing name", ObligationInput{ObligationType: models.ObligationTypeReporting}, "name"},
		{"long name", ObligationInput{Name: strings.Repeat("n", 256), ObligationType: models.ObligationTypeReporting}, "name"},
		{"bad type", ObligationInput{Name: "x", ObligationType: "MEMO"}, "obligation_type"},
		{"bad frequency", ObligationInput{Name: "x", ObligationType: models.ObligationTypeReporting, Frequency: "HOURLY"}, "frequency"},
		{"bad status", ObligationInput{Name: "x", ObligationType: models.ObligationTypeReporting, Status: "LATE"}, "status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Obligation.Create(ctx, loan.ID, tt.in)
			assert.ErrorIs(t, err, ErrValidation)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	events := env.audit(t, repository.AuditFilter{LoanID: &loan.ID})
	assert.Len(t, events, 1, "only the loan creation is audited")
}

func TestCreateUnknownLoan(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.Obligation.Create(context.Background(), 999, ObligationInput{Name: "x", ObligationType: models.ObligationTypeNotice})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReopenPastDueReadsOverdue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	loan := env.loan(t, "Term Loan A")

	o := env.obligation(t, loan.ID, ObligationInput{DueDate: datePtr(models.DateOf(env.clock.Now().Add(-2 * day)))})
	assert.Equal(t, models.StatusOverdue, o.Status)

	_, err := env.svc.Obligation.Complete(ctx, o.ID)
	require.NoError(t, err)

	reopened, err := env.svc.Obligation.Reopen(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOverdue, reopened.Status)
}

func TestCompleteUnknownObligation(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.Obligation.Complete(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = env.svc.Obligation.Reopen(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func patchFromJSON(t *testing.T, body string) ObligationPatch {
	t.Helper()
	var p ObligationPatch
	require.NoError(t, json.Unmarshal([]byte(body), &p))
	return p
}

func TestUpdateIdenticalPayloadWritesNoEvent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	loan := env.loan(t, "Term Loan A")
	o := env.obligation(t, loan.ID, ObligationInput{
		Name:      "Quarterly report",
		Frequency: models.FrequencyQuarterly,
		DueDate:   datePtr(models.NewDate(2025, 6, 1)),
	})

	_, err := env.svc.Obligation.Update(ctx, o.ID, patchFromJSON(t, `{
		"name": "Quarterly report",
		"obligation_type": "REPORTING",
		"frequency": "QUARTERLY",
		"due_date": "2025-06-01",
		"due_rule": null
	}`))
	require.NoError(t, err)

	events := env.audit(t, repository.AuditFilter{ObligationID: &o.ID})
	require.Len(t, events, 1)
	assert.Equal(t, models.AuditActionCreated, events[0].Action)
}

func TestUpdateIdenticalPayloadKeepsUpdatedAt(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	loan := env.loan(t, "Term Loan A")
	o := env.obligation(t, loan.ID, ObligationInput{DueDate: datePtr(models.NewDate(2025, 6, 1))})
	createdAt := env.clock.Now()

	env.clock.Advance(time.Hour)
	updated, err := env.svc.Obligation.Update(ctx, o.ID, patchFromJSON(t, `{"name": "Quarterly report", "due_date": "2025-06-01"}`))
	require.NoError(t, err)
	assert.True(t, updated.UpdatedAt.Equal(createdAt), "updated_at = %s", updated.UpdatedAt)

	stored, err := env.repos.Obligation.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, stored.UpdatedAt.Equal(createdAt), "stored updated_at = %s", stored.UpdatedAt)
}

func TestUpdateAndTransitionsStampInjectedClock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	loan := env.loan(t, "Term Loan A")
	o := env.obligation(t, loan.ID, ObligationInput{DueDate: datePtr(models.NewDate(2025, 6, 1))})

	steps := []struct {
		name string
		run  func() (*models.Obligation, error)
	}{
		{"update", func() (*models.Obligation, error) {
			return env.svc.Obligation.Update(ctx, o.ID, patchFromJSON(t, `{"name": "Compliance certificate"}`))
		}},
		{"complete", func() (*models.Obligation, error) { return env.svc.Obligation.Complete(ctx, o.ID) }},
		{"reopen", func() (*models.Obligation, error) { return env.svc.Obligation.Reopen(ctx, o.ID) }},
	}
	for _, step := range steps {
		env.clock.Advance(90 * time.Minute)
		want := env.clock.Now()

		got, err := step.run()
		require.NoError(t, err, step.name)
		assert.True(t, got.UpdatedAt.Equal(want), "%s: updated_at = %s", step.name, got.UpdatedAt)

		stored, err := env.repos.Obligation.FindByID(ctx, o.ID)
		require.NoError(t, err, step.name)
		assert.True(t, stored.UpdatedAt.Equal(want), "%s: stored updated_at = %s", step.name, stored.UpdatedAt)
	}
}

func TestUpdateStatusOverriddenByEngine(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	loan := env.loan(t, "Term Loan A")
	// due in 9 days, inside the due-soon window
	o := env.obligation(t, loan.ID, ObligationInput{DueDate: datePtr(models.NewDate(2025, 5, 10))})
	require.Equal(t, models.StatusDueSoon, o.Status)

	updated, err := env.svc.Obligation.Update(ctx, o.ID, patchFromJSON(t, `{"status": "ON_TRACK"}`))
	require.NoError(t, err)
	assert.Equal(t, models.StatusDueSoon, updated.Status)
	require.Len(t, env.audit(t, repository.AuditFilter{ObligationID: &o.ID}), 1)

	_, err = env.svc.Obligation.Update(ctx, o.ID, patchFromJSON(t, `{"status": "ON_TRACK", "name": "Annual budget"}`))
	require.NoError(t, err)
	events := env.audit(t, repository.AuditFilter{ObligationID: &o.ID})
	require.Len(t, events, 2)
	changes := decodeDetails(t, events[0])["changes"].(map[string]any)
	assert.Equal(t, map[string]any{
		"name": map[string]any{"from": "Quarterly report", "to": "Annual budget"},
	}, changes)
}

func TestUpdateStatusDiffRecordsStoredStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	loan := env.loan(t, "Term Loan A")
	o := env.obligation(t, loan.ID, ObligationInput{DueDate: datePtr(models.NewDate(2025, 5, 10))})
	_, err := env.svc.Obligation.Complete(ctx, o.ID)
	require.NoError(t, err)

	updated, err := env.svc.Obligation.Update(ctx, o.ID, patchFromJSON(t, `{"status": "ON_TRACK"}`))
	require.NoError(t, err)
	assert.Equal(t, models.StatusDueSoon, updated.Status)

	events := env.audit(t, repository.AuditFilter{ObligationID: &o.ID})
	require.Equal(t, models.AuditActionUpdated, events[0].Action)
	changes := decodeDetails(t, events[0])["changes"].(map[string]any)
	assert.Equal(t, map[string]any{"from": "COMPLETED", "to": "DUE_SOON"}, changes["status"])
}

func TestUpdateSingleFieldDiff(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	loan := env.loan(t, "Term Loan A")
	o := env.obligation(t, loan.ID, ObligationInput{Name: "Quarterly report"})

	updated, err := env.svc.Obligation.Update(ctx, o.ID, patchFromJSON(t, `{"name": "Quarterly financial report"}`))
	require.NoError(t, err)
	assert.Equal(t, "Quarterly financial report", updated.Name)

	events := env.audit(t, repository.AuditFilter{ObligationID: &o.ID})
	require.Len(t, events, 2)
	assert.Equal(t, models.AuditActionUpdated, events[0].Action)

	details := decodeDetails(t, events[0])
	assert.EqualValues(t, loan.ID, details["loan_id"])
	changes := details["changes"].(map[string]any)
	require.Len(t, changes, 1)
	assert.Equal(t, map[string]any{"from": "Quarterly report", "to": "Quarterly financial report"}, changes["name"])
}

func TestUpdateRederivesStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	loan := env.loan(t, "Term Loan A")
	o := env.obligation(t, loan.ID, ObligationInput{})
	assert.Equal(t, models.StatusOnTrack, o.Status)

	updated, err := env.svc.Obligation.Update(ctx, o.ID, patchFromJSON(t, `{"due_date": "2025-04-20"}`))
	require.NoError(t, err)
	assert.Equal(t, models.StatusOverdue, updated.Status)

	events := env.audit(t, repository.AuditFilter{ObligationID: &o.ID})
	changes := decodeDetails(t, events[0])["changes"].(map[string]any)
	assert.Equal(t, map[string]any{"from": nil, "to": "2025-04-20"}, changes["due_date"])
}

func TestUpdateNullHandling(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	loan := env.loan(t, "Term Loan A")
	rule := "Within 45 days"
	o := env.obligation(t, loan.ID, ObligationInput{DueRule: &rule})

	updated, err := env.svc.Obligation.Update(ctx, o.ID, patchFromJSON(t, `{"due_rule": null}`))
	require.NoError(t, err)
	assert.Nil(t, updated.DueRule)

	stored, err := env.svc.Obligation.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.DueRule)

	_, err = env.svc.Obligation.Update(ctx, o.ID, patchFromJSON(t, `{"name": null}`))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.svc.Obligation.Update(ctx, o.ID, patchFromJSON(t, `{"frequency": "FORTNIGHTLY"}`))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpdateUnknownObligation(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.Obligation.Update(context.Background(), 77, patchFromJSON(t, `{"name": "x"}`))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListRecomputesAtReadTime(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	loan := env.loan(t, "Term Loan A")
	env.obligation(t, loan.ID, ObligationInput{NextDueAt: timePtr(env.clock.Now().Add(20 * day))})

	list, err := env.svc.Obligation.List(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOnTrack, list[0].Status)

	env.clock.Advance(10 * day)
	list, err = env.svc.Obligation.List(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDueSoon, list[0].Status)

	env.clock.Advance(11 * day)
	list, err = env.svc.Obligation.List(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOverdue, list[0].Status)

	_, err = env.svc.Obligation.List(ctx, 12345)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	loan := env.loan(t, "Term Loan A")
	env.obligation(t, loan.ID, ObligationInput{Name: "first"})
	env.clock.Advance(time.Minute)
	env.obligation(t, loan.ID, ObligationInput{Name: "second"})

	list, err := env.svc.Obligation.List(context.Background(), loan.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].Name)
}

func TestDeleteCascadesEvidence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	loan := env.loan(t, "Term Loan A")
	o := env.obligation(t, loan.ID, ObligationInput{})

	for _, name := range []string{"a.pdf", "b.pdf"} {
		_, err := env.svc.Evidence.Upload(ctx, o.ID, UploadInput{Body: strings.NewReader(name), Filename: name})
		require.NoError(t, err)
	}

	removed, err := env.svc.Obligation.Delete(ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, removed, 2)

	_, err = env.svc.Obligation.Get(ctx, o.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	rows, err := env.repos.Evidence.FindByObligation(ctx, o.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)

	events := env.audit(t, repository.AuditFilter{ObligationID: &o.ID})
	deleted := 0
	for _, e := range events {
		if e.Action == models.AuditActionDeleted {
			deleted++
			details := decodeDetails(t, e)
			assert.EqualValues(t, loan.ID, details["loan_id"])
			assert.EqualValues(t, 2, details["evidence_count"])
		}
	}
	assert.Equal(t, 1, deleted)

	_, err = env.svc.Obligation.Delete(ctx, o.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSummaryCountsByStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	loan := env.loan(t, "Term Loan A")
	now := env.clock.Now()

	env.obligation(t, loan.ID, ObligationInput{NextDueAt: timePtr(now.Add(-day))})
	env.obligation(t, loan.ID, ObligationInput{NextDueAt: timePtr(now.Add(3 * day))})
	env.obligation(t, loan.ID, ObligationInput{})
	done := env.obligation(t, loan.ID, ObligationInput{})
	_, err := env.svc.Obligation.Complete(ctx, done.ID)
	require.NoError(t, err)

	summary, err := env.svc.Obligation.Summary(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoanSummary{Total: 4, Overdue: 1, DueSoon: 1, OnTrack: 1, Completed: 1}, summary)
}
