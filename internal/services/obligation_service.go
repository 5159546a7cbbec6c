package services

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sjperalta/covenantops-api/internal/metrics"
	"github.com/sjperalta/covenantops-api/internal/models"
	"github.com/sjperalta/covenantops-api/internal/repository"
	"github.com/sjperalta/covenantops-api/internal/statemachine"
	"github.com/sjperalta/covenantops-api/pkg/logger"
)

const maxNameLength = 255

// ObligationInput is the body of a create request
type ObligationInput struct {
	Name             string                  `json:"name"`
	ObligationType   models.ObligationType   `json:"obligation_type"`
	Description      string                  `json:"description"`
	PartyResponsible string                  `json:"party_responsible"`
	Frequency        models.Frequency        `json:"frequency"`
	DueDate          *models.Date            `json:"due_date"`
	DueRule          *string                 `json:"due_rule"`
	NextDueAt        *time.Time              `json:"next_due_at"`
	Status           models.ObligationStatus `json:"status"`
	Confidence       *float64                `json:"confidence"`
	SourceExcerpt    *string                 `json:"source_excerpt"`
	SourcePage       *int                    `json:"source_page"`
}

// Validate checks required fields and enum members, filling defaults
func (in *ObligationInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateName(in.Name); err != nil {
		return err
	}
	if !in.ObligationType.Valid() {
		return invalid("obligation_type", "must be one of REPORTING, COVENANT, NOTICE, INFORMATION, EVENT")
	}
	if in.Frequency == "" {
		in.Frequency = models.FrequencyOnce
	}
	if !in.Frequency.Valid() {
		return invalid("frequency", "unknown frequency "+string(in.Frequency))
	}
	if in.Status == "" {
		in.Status = models.StatusOnTrack
	}
	if !in.Status.Valid() {
		return invalid("status", "unknown status "+string(in.Status))
	}
	return nil
}

func validateName(name string) error {
	if name == "" {
		return invalid("name", "is required")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return invalid("name", "must be at most 255 characters")
	}
	return nil
}

// ObligationPatch is the body of an update. Absent fields are left alone.
type ObligationPatch struct {
	Name             Optional[string]                  `json:"name"`
	ObligationType   Optional[models.ObligationType]   `json:"obligation_type"`
	Description      Optional[string]                  `json:"description"`
	PartyResponsible Optional[string]                  `json:"party_responsible"`
	Frequency        Optional[models.Frequency]        `json:"frequency"`
	DueDate          Optional[models.Date]             `json:"due_date"`
	DueRule          Optional[string]                  `json:"due_rule"`
	NextDueAt        Optional[time.Time]               `json:"next_due_at"`
	Status           Optional[models.ObligationStatus] `json:"status"`
	Confidence       Optional[float64]                 `json:"confidence"`
	SourceExcerpt    Optional[string]                  `json:"source_excerpt"`
	SourcePage       Optional[int]                     `json:"source_page"`
}

// Validate checks every present field
func (p *ObligationPatch) Validate() error {
	if p.Name.Value != nil {
		trimmed := strings.TrimSpace(*p.Name.Value)
		p.Name.Value = &trimmed
		if err := validateName(trimmed); err != nil {
			return err
		}
	}
	if p.ObligationType.Value != nil && !p.ObligationType.Value.Valid() {
		return invalid("obligation_type", "unknown type "+string(*p.ObligationType.Value))
	}
	if p.Frequency.Value != nil && !p.Frequency.Value.Valid() {
		return invalid("frequency", "unknown frequency "+string(*p.Frequency.Value))
	}
	if p.Status.Value != nil && !p.Status.Value.Valid() {
		return invalid("status", "unknown status "+string(*p.Status.Value))
	}
	return nil
}

// apply writes the patch onto o and returns the fields that changed
func (p *ObligationPatch) apply(o *models.Obligation) (map[string]models.FieldChange, error) {
	changes := changeSet{}

	if err := setRequired(changes, "name", p.Name, &o.Name, equal[string]); err != nil {
		return nil, err
	}
	if err := setRequired(changes, "obligation_type", p.ObligationType, &o.ObligationType, equal[models.ObligationType]); err != nil {
		return nil, err
	}
	if err := setRequired(changes, "description", p.Description, &o.Description, equal[string]); err != nil {
		return nil, err
	}
	if err := setRequired(changes, "party_responsible", p.PartyResponsible, &o.PartyResponsible, equal[string]); err != nil {
		return nil, err
	}
	if err := setRequired(changes, "frequency", p.Frequency, &o.Frequency, equal[models.Frequency]); err != nil {
		return nil, err
	}
	if err := setRequired(changes, "status", p.Status, &o.Status, equal[models.ObligationStatus]); err != nil {
		return nil, err
	}

	setNullable(changes, "due_date", p.DueDate, &o.DueDate, models.Date.Equal)
	setNullable(changes, "due_rule", p.DueRule, &o.DueRule, equal[string])
	setNullable(changes, "next_due_at", p.NextDueAt, &o.NextDueAt, time.Time.Equal)
	o.NextDueAt = utcPtr(o.NextDueAt)
	setNullable(changes, "confidence", p.Confidence, &o.Confidence, equal[float64])
	setNullable(changes, "source_excerpt", p.SourceExcerpt, &o.SourceExcerpt, equal[string])
	setNullable(changes, "source_page", p.SourcePage, &o.SourcePage, equal[int])

	return changes, nil
}

// settleStatusChange rewrites the status diff to the status that was actually
// stored. A requested status the engine overrides back to the old one is no change.
func settleStatusChange(changes changeSet, final models.ObligationStatus) {
	change, ok := changes["status"]
	if !ok {
		return
	}
	if change.From == final {
		delete(changes, "status")
		return
	}
	change.To = final
	changes["status"] = change
}

// ObligationService manages the obligation lifecycle
type ObligationService struct {
	repos   *repository.Repositories
	audit   *AuditService
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewObligationService(repos *repository.Repositories, audit *AuditService, m *metrics.Metrics, now func() time.Time) *ObligationService {
	return &ObligationService{repos: repos, audit: audit, metrics: m, now: now}
}

// List returns the obligations of a loan, newest first, with fresh statuses
func (s *ObligationService) List(ctx context.Context, loanID uint) ([]models.Obligation, error) {
	if _, err := s.repos.Loan.FindByID(ctx, loanID); err != nil {
		return nil, notFound(err, "loan", loanID)
	}
	return s.listFresh(ctx, s.repos, loanID)
}

func (s *ObligationService) listFresh(ctx context.Context, repos *repository.Repositories, loanID uint) ([]models.Obligation, error) {
	obligations, err := repos.Obligation.FindByLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	statemachine.RefreshAll(obligations, s.now())
	return obligations, nil
}

// Get returns one obligation with a fresh status
func (s *ObligationService) Get(ctx context.Context, id uint) (*models.Obligation, error) {
	return s.get(ctx, s.repos, id)
}

func (s *ObligationService) get(ctx context.Context, repos *repository.Repositories, id uint) (*models.Obligation, error) {
	obligation, err := repos.Obligation.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "obligation", id)
	}
	statemachine.Refresh(obligation, s.now())
	return obligation, nil
}

// Summary counts the loan's obligations by fresh status
func (s *ObligationService) Summary(ctx context.Context, loanID uint) (models.LoanSummary, error) {
	var summary models.LoanSummary
	obligations, err := s.listFresh(ctx, s.repos, loanID)
	if err != nil {
		return summary, err
	}
	for _, o := range obligations {
		summary.Add(o.Status)
	}
	return summary, nil
}

// Create validates the input and stores a new obligation under loanID
func (s *ObligationService) Create(ctx context.Context, loanID uint, in ObligationInput) (*models.Obligation, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var obligation *models.Obligation
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if _, err := tx.Loan.FindByID(ctx, loanID); err != nil {
			return notFound(err, "loan", loanID)
		}
		created, err := s.create(ctx, tx, loanID, in)
		obligation = created
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObligationCreated("manual", 1)
	logger.FromContext(ctx).Info("obligation created", "obligation_id", obligation.ID, "loan_id", loanID)
	return obligation, nil
}

// create persists one validated input and its audit event inside tx
func (s *ObligationService) create(ctx context.Context, tx *repository.Repositories, loanID uint, in ObligationInput) (*models.Obligation, error) {
	now := s.now()
	obligation := &models.Obligation{
		LoanID:           loanID,
		Name:             in.Name,
		ObligationType:   in.ObligationType,
		Description:      in.Description,
		PartyResponsible: in.PartyResponsible,
		Frequency:        in.Frequency,
		DueDate:          in.DueDate,
		DueRule:          in.DueRule,
		NextDueAt:        utcPtr(in.NextDueAt),
		Status:           in.Status,
		Confidence:       in.Confidence,
		SourceExcerpt:    in.SourceExcerpt,
		SourcePage:       in.SourcePage,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	statemachine.Refresh(obligation, now)

	if err := tx.Obligation.Create(ctx, obligation); err != nil {
		return nil, err
	}

	_, err := s.audit.WithTx(tx).Record(ctx, models.ObligationCreated{
		ObligationID: obligation.ID,
		LoanID:       loanID,
		Name:         obligation.Name,
		Frequency:    obligation.Frequency,
	})
	if err != nil {
		return nil, err
	}
	return obligation, nil
}

// Update applies a partial patch. An audit event is written only when a field changed.
func (s *ObligationService) Update(ctx context.Context, id uint, patch ObligationPatch) (*models.Obligation, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	var obligation *models.Obligation
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		current, err := s.get(ctx, tx, id)
		if err != nil {
			return err
		}

		changes, err := patch.apply(current)
		if err != nil {
			return err
		}

		now := s.now()
		statemachine.Refresh(current, now)
		settleStatusChange(changes, current.Status)

		obligation = current
		if len(changes) == 0 {
			return nil
		}

		current.UpdatedAt = now
		if err := tx.Obligation.Update(ctx, current); err != nil {
			return err
		}
		_, err = s.audit.WithTx(tx).Record(ctx, models.ObligationUpdated{
			ObligationID: current.ID,
			LoanID:       current.LoanID,
			Changes:      changes,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return obligation, nil
}

// Complete forces the obligation to COMPLETED regardless of its due date
func (s *ObligationService) Complete(ctx context.Context, id uint) (*models.Obligation, error) {
	return s.transition(ctx, id, statemachine.EventComplete, func(o *models.Obligation) models.AuditDetails {
		return models.ObligationCompleted{ObligationID: o.ID, LoanID: o.LoanID}
	})
}

// Reopen clears COMPLETED and re-derives the status from the due date, so a
// past-due obligation reads OVERDUE straight away.
func (s *ObligationService) Reopen(ctx context.Context, id uint) (*models.Obligation, error) {
	return s.transition(ctx, id, statemachine.EventReopen, func(o *models.Obligation) models.AuditDetails {
		return models.ObligationReopened{ObligationID: o.ID, LoanID: o.LoanID, Reopened: true}
	})
}

func (s *ObligationService) transition(ctx context.Context, id uint, event string, details func(*models.Obligation) models.AuditDetails) (*models.Obligation, error) {
	var obligation *models.Obligation
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		current, err := s.get(ctx, tx, id)
		if err != nil {
			return err
		}

		now := s.now()
		ofsm := statemachine.NewObligationFSM(current)
		switch event {
		case statemachine.EventComplete:
			err = ofsm.Complete(ctx)
		case statemachine.EventReopen:
			err = ofsm.Reopen(ctx, now)
		}
		if err != nil {
			return err
		}

		current.UpdatedAt = now
		if err := tx.Obligation.Update(ctx, current); err != nil {
			return err
		}
		if _, err := s.audit.WithTx(tx).Record(ctx, details(current)); err != nil {
			return err
		}

		obligation = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Transition(event)
	logger.FromContext(ctx).Info("obligation transition", "obligation_id", id, "event", event, "status", obligation.Status)
	return obligation, nil
}

// Delete removes the obligation and its evidence rows. The removed evidence
// is returned so the caller can clean up stored files.
func (s *ObligationService) Delete(ctx context.Context, id uint) ([]models.Evidence, error) {
	var removed []models.Evidence
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		obligation, err := tx.Obligation.FindByID(ctx, id)
		if err != nil {
			return notFound(err, "obligation", id)
		}

		removed, err = tx.Evidence.FindByObligation(ctx, id)
		if err != nil {
			return err
		}
		if _, err := tx.Evidence.DeleteByObligation(ctx, id); err != nil {
			return err
		}
		if err := tx.Obligation.Delete(ctx, id); err != nil {
			return err
		}

		_, err = s.audit.WithTx(tx).Record(ctx, models.ObligationDeleted{
			ObligationID:  id,
			LoanID:        obligation.LoanID,
			EvidenceCount: len(removed),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Transition("delete")
	return removed, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
