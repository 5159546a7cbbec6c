package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sjperalta/covenantops-api/internal/export"
	"github.com/sjperalta/covenantops-api/internal/metrics"
	"github.com/sjperalta/covenantops-api/internal/models"
	"github.com/sjperalta/covenantops-api/internal/repository"
	"github.com/sjperalta/covenantops-api/pkg/logger"
)

// ErrNoRecipients is returned when a digest is requested but nobody would receive it
var ErrNoRecipients = errors.New("no reminder recipients configured")

// DigestItem is one obligation listed in a reminder
type DigestItem struct {
	ObligationID uint   `json:"obligation_id"`
	Name         string `json:"name"`
	Due          string `json:"due"`
	Rule         string `json:"rule,omitempty"`
	dueAt        time.Time
}

// Digest lists a loan's obligations that need attention
type Digest struct {
	LoanID      uint         `json:"loan_id"`
	LoanTitle   string       `json:"loan_title"`
	GeneratedAt string       `json:"generated_at"`
	Overdue     []DigestItem `json:"overdue"`
	DueSoon     []DigestItem `json:"due_soon"`
	Recipients  []string     `json:"recipients"`
	Sent        bool         `json:"sent"`
}

// Empty reports whether nothing needs attention
func (d *Digest) Empty() bool {
	return len(d.Overdue) == 0 && len(d.DueSoon) == 0
}

// ReminderService sends digests of DUE_SOON and OVERDUE obligations
type ReminderService struct {
	repos       *repository.Repositories
	obligations *ObligationService
	email       *EmailService
	recipients  []string
	metrics     *metrics.Metrics
	now         func() time.Time
}

func NewReminderService(repos *repository.Repositories, obligations *ObligationService, email *EmailService, recipients []string, m *metrics.Metrics, now func() time.Time) *ReminderService {
	return &ReminderService{repos: repos, obligations: obligations, email: email, recipients: recipients, metrics: m, now: now}
}

// BuildDigest collects the loan's obligations that are overdue or due soon, earliest first
func (s *ReminderService) BuildDigest(ctx context.Context, loanID uint) (*Digest, error) {
	loan, err := s.repos.Loan.FindByID(ctx, loanID)
	if err != nil {
		return nil, notFound(err, "loan", loanID)
	}
	obligations, err := s.obligations.listFresh(ctx, s.repos, loanID)
	if err != nil {
		return nil, err
	}

	digest := &Digest{
		LoanID:      loan.ID,
		LoanTitle:   loan.Title,
		GeneratedAt: s.now().UTC().Format("2006-01-02 15:04 UTC"),
		Overdue:     []DigestItem{},
		DueSoon:     []DigestItem{},
		Recipients:  s.recipients,
	}
	for _, o := range obligations {
		item := DigestItem{ObligationID: o.ID, Name: o.Name, Due: export.DueLabel(o)}
		if o.DueRule != nil {
			item.Rule = *o.DueRule
		}
		if due := o.DueAt(); due != nil {
			item.dueAt = *due
		}
		switch o.Status {
		case models.StatusOverdue:
			digest.Overdue = append(digest.Overdue, item)
		case models.StatusDueSoon:
			digest.DueSoon = append(digest.DueSoon, item)
		}
	}
	byDue := func(items []DigestItem) {
		sort.SliceStable(items, func(i, j int) bool { return items[i].dueAt.Before(items[j].dueAt) })
	}
	byDue(digest.Overdue)
	byDue(digest.DueSoon)
	return digest, nil
}

// SendLoanDigest builds and emails the digest for one loan. Nothing is sent
// when no obligation needs attention.
func (s *ReminderService) SendLoanDigest(ctx context.Context, loanID uint) (*Digest, error) {
	if len(s.recipients) == 0 {
		return nil, ErrNoRecipients
	}
	digest, err := s.BuildDigest(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if digest.Empty() {
		s.metrics.ReminderSent("skipped")
		return digest, nil
	}

	if err := s.email.SendDigest(ctx, s.recipients, digest); err != nil {
		s.metrics.ReminderSent("error")
		return nil, fmt.Errorf("send digest for loan %d: %w", loanID, err)
	}
	s.metrics.ReminderSent("sent")
	digest.Sent = true
	return digest, nil
}

// SendAllDigests runs SendLoanDigest for every loan, continuing past failures
func (s *ReminderService) SendAllDigests(ctx context.Context) error {
	loans, err := s.repos.Loan.List(ctx)
	if err != nil {
		return err
	}

	var errs []error
	sent := 0
	for _, loan := range loans {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		digest, err := s.SendLoanDigest(ctx, loan.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if digest.Sent {
			sent++
		}
	}

	logger.FromContext(ctx).Info("reminder digests processed", "loans", len(loans), "sent", sent, "failed", len(errs))
	return errors.Join(errs...)
}
