package services

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sjperalta/covenantops-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDigest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := env.clock.Now()
	loan := env.loan(t, "Term Loan A")

	env.obligation(t, loan.ID, ObligationInput{Name: "late", NextDueAt: timePtr(now.Add(-3 * day))})
	env.obligation(t, loan.ID, ObligationInput{Name: "later", NextDueAt: timePtr(now.Add(10 * day))})
	env.obligation(t, loan.ID, ObligationInput{Name: "sooner", DueDate: datePtr(models.DateOf(now.Add(2 * day)))})
	env.obligation(t, loan.ID, ObligationInput{Name: "far", NextDueAt: timePtr(now.Add(60 * day))})
	env.obligation(t, loan.ID, ObligationInput{Name: "undated"})

	digest, err := env.svc.Reminder.BuildDigest(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, "Term Loan A", digest.LoanTitle)
	require.Len(t, digest.Overdue, 1)
	assert.Equal(t, "late", digest.Overdue[0].Name)
	require.Len(t, digest.DueSoon, 2)
	assert.Equal(t, "sooner", digest.DueSoon[0].Name)
	assert.Equal(t, "2025-05-03", digest.DueSoon[0].Due)
	assert.Equal(t, "later", digest.DueSoon[1].Name)

	_, err = env.svc.Reminder.BuildDigest(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSendLoanDigest(t *testing.T) {
	env := newTestEnv(t, withRecipients("ops@example.com"))
	ctx := context.Background()
	loan := env.loan(t, "Term Loan A")
	env.obligation(t, loan.ID, ObligationInput{Name: "Compliance certificate", NextDueAt: timePtr(env.clock.Now().Add(-day))})

	digest, err := env.svc.Reminder.SendLoanDigest(ctx, loan.ID)
	require.NoError(t, err)
	assert.True(t, digest.Sent)

	require.Len(t, env.mailer.sent, 1)
	mail := env.mailer.sent[0]
	assert.Equal(t, []string{"ops@example.com"}, mail.to)
	assert.Equal(t, "[CovenantOps] Term Loan A: 1 overdue, 0 due soon", mail.subject)
	assert.Contains(t, mail.html, "Compliance certificate")
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.RemindersSent.WithLabelValues("sent")))
}

func TestSendLoanDigestSkipsQuietLoans(t *testing.T) {
	env := newTestEnv(t, withRecipients("ops@example.com"))
	loan := env.loan(t, "Term Loan A")
	env.obligation(t, loan.ID, ObligationInput{})

	digest, err := env.svc.Reminder.SendLoanDigest(context.Background(), loan.ID)
	require.NoError(t, err)
	assert.False(t, digest.Sent)
	assert.Empty(t, env.mailer.sent)
}

func TestSendLoanDigestWithoutRecipients(t *testing.T) {
	env := newTestEnv(t)
	loan := env.loan(t, "Term Loan A")

	_, err := env.svc.Reminder.SendLoanDigest(context.Background(), loan.ID)
	assert.ErrorIs(t, err, ErrNoRecipients)
}

func TestSendAllDigestsJoinsFailures(t *testing.T) {
	env := newTestEnv(t, withRecipients("ops@example.com"))
	ctx := context.Background()
	for _, title := range []string{"Term Loan A", "Revolver B"} {
		loan := env.loan(t, title)
		env.obligation(t, loan.ID, ObligationInput{NextDueAt: timePtr(env.clock.Now().Add(-day))})
	}

	require.NoError(t, env.svc.Reminder.SendAllDigests(ctx))
	assert.Len(t, env.mailer.sent, 2)

	boom := errors.New("smtp down")
	env.mailer.err = boom
	err := env.svc.Reminder.SendAllDigests(ctx)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2.0, testutil.ToFloat64(env.metrics.RemindersSent.WithLabelValues("error")))
}

func TestNewMailerFallsBackToLog(t *testing.T) {
	assert.IsType(t, LogMailer{}, NewMailer("", "noreply@example.com"))
	assert.IsType(t, &ResendMailer{}, NewMailer("re_test", "noreply@example.com"))
	assert.NoError(t, LogMailer{}.Send(context.Background(), []string{"a@example.com"}, "subject", "<p>x</p>"))
}
