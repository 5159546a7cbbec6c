package services

import (
	"time"

	"github.com/sjperalta/covenantops-api/internal/config"
	"github.com/sjperalta/covenantops-api/internal/extractor"
	"github.com/sjperalta/covenantops-api/internal/metrics"
	"github.com/sjperalta/covenantops-api/internal/repository"
	"github.com/sjperalta/covenantops-api/internal/storage"
)

// Services holds all service instances
type Services struct {
	Audit      *AuditService
	Obligation *ObligationService
	Loan       *LoanService
	Evidence   *EvidenceService
	Export     *ExportService
	Email      *EmailService
	Reminder   *ReminderService
}

// Deps are the collaborators the services are built from
type Deps struct {
	Repos     *repository.Repositories
	Storage   *storage.LocalStorage
	Extractor extractor.Extractor
	Mailer    Mailer
	Metrics   *metrics.Metrics
	Config    *config.Config
	Now       func() time.Time
}

// NewServices creates all service instances
func NewServices(d Deps) *Services {
	now := d.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	auditSvc := NewAuditService(d.Repos.Audit, d.Metrics, now)
	obligationSvc := NewObligationService(d.Repos, auditSvc, d.Metrics, now)
	evidenceSvc := NewEvidenceService(d.Repos, d.Storage, auditSvc, d.Metrics, now)
	loanSvc := NewLoanService(d.Repos, obligationSvc, evidenceSvc, auditSvc, d.Extractor, d.Metrics, now)
	emailSvc := NewEmailService(d.Mailer)

	return &Services{
		Audit:      auditSvc,
		Obligation: obligationSvc,
		Loan:       loanSvc,
		Evidence:   evidenceSvc,
		Export:     NewExportService(d.Repos, loanSvc, obligationSvc, d.Config.WkhtmltopdfEnabled, now),
		Email:      emailSvc,
		Reminder:   NewReminderService(d.Repos, obligationSvc, emailSvc, d.Config.ReminderRecipients, d.Metrics, now),
	}
}
