package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sjperalta/covenantops-api/internal/extractor"
	"github.com/sjperalta/covenantops-api/internal/metrics"
	"github.com/sjperalta/covenantops-api/internal/models"
	"github.com/sjperalta/covenantops-api/internal/repository"
	"github.com/sjperalta/covenantops-api/pkg/logger"
)

// ExtractMeta describes an extraction run
type ExtractMeta struct {
	Extractor string `json:"extractor"`
	Count     int    `json:"count"`
}

// ExtractResult is returned by Extract
type ExtractResult struct {
	Obligations []models.Obligation             `json:"obligations"`
	Extracted   []extractor.ExtractedObligation `json:"extracted"`
	Meta        ExtractMeta                     `json:"meta"`
}

// LoanService manages loans, their source text and extraction
type LoanService struct {
	repos       *repository.Repositories
	obligations *ObligationService
	evidence    *EvidenceService
	audit       *AuditService
	extractor   extractor.Extractor
	metrics     *metrics.Metrics
	now         func() time.Time
}

func NewLoanService(
	repos *repository.Repositories,
	obligations *ObligationService,
	evidence *EvidenceService,
	audit *AuditService,
	ex extractor.Extractor,
	m *metrics.Metrics,
	now func() time.Time,
) *LoanService {
	return &LoanService{
		repos:       repos,
		obligations: obligations,
		evidence:    evidence,
		audit:       audit,
		extractor:   ex,
		metrics:     m,
		now:         now,
	}
}

// Create stores a new loan
func (s *LoanService) Create(ctx context.Context, title string) (*models.Loan, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, invalid("title", "is required")
	}
	if utf8.RuneCountInString(title) > maxNameLength {
		return nil, invalid("title", "must be at most 255 characters")
	}

	loan := &models.Loan{Title: title, CreatedAt: s.now().UTC()}
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if err := tx.Loan.Create(ctx, loan); err != nil {
			return err
		}
		_, err := s.audit.WithTx(tx).Record(ctx, models.LoanCreated{LoanID: loan.ID, Title: title})
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("loan created", "loan_id", loan.ID)
	return loan, nil
}

// List returns all loans, newest first
func (s *LoanService) List(ctx context.Context) ([]models.Loan, error) {
	return s.repos.Loan.List(ctx)
}

// Get returns one loan
func (s *LoanService) Get(ctx context.Context, id uint) (*models.Loan, error) {
	loan, err := s.repos.Loan.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "loan", id)
	}
	return loan, nil
}

// Detail returns the loan with its status summary
func (s *LoanService) Detail(ctx context.Context, id uint) (*models.LoanDetailResponse, error) {
	loan, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	summary, err := s.obligations.Summary(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := loan.ToDetailResponse(summary)
	return &detail, nil
}

// ImportText stores the loan document text for later extraction
func (s *LoanService) ImportText(ctx context.Context, id uint, text string) (*models.Loan, error) {
	if strings.TrimSpace(text) == "" {
		return nil, invalid("text", "is required")
	}

	var loan *models.Loan
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		current, err := tx.Loan.FindByID(ctx, id)
		if err != nil {
			return notFound(err, "loan", id)
		}
		current.RawText = &text
		if err := tx.Loan.Update(ctx, current); err != nil {
			return err
		}
		if _, err := s.audit.WithTx(tx).Record(ctx, models.LoanTextImported{
			LoanID:        id,
			RawTextLength: utf8.RuneCountInString(text),
		}); err != nil {
			return err
		}
		loan = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

// Extract runs the configured extractor over text, or the imported text when
// text is empty, and creates every proposed obligation in one transaction.
func (s *LoanService) Extract(ctx context.Context, id uint, text string) (*ExtractResult, error) {
	loan, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if text == "" && loan.RawText != nil {
		text = *loan.RawText
	}
	if text == "" {
		return nil, ErrNoText
	}

	name := s.extractor.Name()
	extracted, err := s.extractor.Extract(ctx, text)
	if err != nil {
		outcome := "error"
		if errors.Is(err, extractor.ErrUnavailable) {
			outcome = "unavailable"
		}
		s.metrics.Extraction(name, outcome)
		return nil, err
	}

	created := make([]models.Obligation, 0, len(extracted))
	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		for _, e := range extracted {
			in := fromExtracted(e)
			if err := in.Validate(); err != nil {
				return err
			}
			o, err := s.obligations.create(ctx, tx, id, in)
			if err != nil {
				return err
			}
			created = append(created, *o)
		}
		return nil
	})
	if err != nil {
		s.metrics.Extraction(name, "error")
		return nil, err
	}

	s.metrics.Extraction(name, "ok")
	s.metrics.ObligationCreated("extracted", len(created))
	logger.FromContext(ctx).Info("obligations extracted", "loan_id", id, "extractor", name, "count", len(created))

	return &ExtractResult{
		Obligations: created,
		Extracted:   extracted,
		Meta:        ExtractMeta{Extractor: name, Count: len(created)},
	}, nil
}

func fromExtracted(e extractor.ExtractedObligation) ObligationInput {
	return ObligationInput{
		Name:             e.Name,
		ObligationType:   e.ObligationType,
		Description:      e.Description,
		PartyResponsible: e.PartyResponsible,
		Frequency:        e.Frequency,
		DueDate:          e.DueDate,
		DueRule:          e.DueRule,
		NextDueAt:        e.NextDueAt,
		Confidence:       e.Confidence,
		SourceExcerpt:    e.SourceExcerpt,
		SourcePage:       e.SourcePage,
	}
}

// Delete removes a loan with all its obligations and evidence
func (s *LoanService) Delete(ctx context.Context, id uint) error {
	var removed []models.Evidence
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		loan, err := tx.Loan.FindByID(ctx, id)
		if err != nil {
			return notFound(err, "loan", id)
		}

		removed, err = tx.Evidence.FindByLoan(ctx, id)
		if err != nil {
			return err
		}
		if _, err := tx.Evidence.DeleteByLoan(ctx, id); err != nil {
			return err
		}
		count, err := tx.Obligation.DeleteByLoan(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.Loan.Delete(ctx, id); err != nil {
			return err
		}

		_, err = s.audit.WithTx(tx).Record(ctx, models.LoanDeleted{
			LoanID:          id,
			Title:           loan.Title,
			ObligationCount: int(count),
		})
		return err
	})
	if err != nil {
		return err
	}

	s.evidence.RemoveFiles(ctx, removed)
	logger.FromContext(ctx).Info("loan deleted", "loan_id", id, "evidence_files", len(removed))
	return nil
}
