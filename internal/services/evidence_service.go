package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sjperalta/covenantops-api/internal/metrics"
	"github.com/sjperalta/covenantops-api/internal/models"
	"github.com/sjperalta/covenantops-api/internal/repository"
	"github.com/sjperalta/covenantops-api/internal/storage"
	"github.com/sjperalta/covenantops-api/pkg/logger"
)

// AttachInput is the metadata of a file already written to storage
type AttachInput struct {
	Filename    string
	FilePath    string
	ContentType string
	SizeBytes   int64
	Checksum    string
	Note        *string
}

// UploadInput is an incoming evidence file
type UploadInput struct {
	Body        io.Reader
	Filename    string
	ContentType string
	Note        *string
}

// EvidenceService keeps evidence metadata and the stored bytes in step
type EvidenceService struct {
	repos   *repository.Repositories
	storage *storage.LocalStorage
	audit   *AuditService
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewEvidenceService(repos *repository.Repositories, store *storage.LocalStorage, audit *AuditService, m *metrics.Metrics, now func() time.Time) *EvidenceService {
	return &EvidenceService{repos: repos, storage: store, audit: audit, metrics: m, now: now}
}

// Upload streams the file to storage and then records its metadata. If the
// record cannot be written the stored file is removed again.
func (s *EvidenceService) Upload(ctx context.Context, obligationID uint, in UploadInput) (*models.Evidence, error) {
	if _, err := s.repos.Obligation.FindByID(ctx, obligationID); err != nil {
		return nil, notFound(err, "obligation", obligationID)
	}

	stored, err := s.storage.Save(in.Body, in.Filename, storage.ObligationDir(obligationID))
	if err != nil {
		return nil, err
	}

	evidence, err := s.Attach(ctx, obligationID, AttachInput{
		Filename:    stored.Filename,
		FilePath:    stored.Path,
		ContentType: in.ContentType,
		SizeBytes:   stored.Size,
		Checksum:    stored.Checksum,
		Note:        in.Note,
	})
	if err != nil {
		if rmErr := s.storage.Delete(stored.Path); rmErr != nil {
			logger.FromContext(ctx).Warn("failed to remove orphaned evidence file", "path", stored.Path, "error", rmErr)
		}
		return nil, err
	}

	s.metrics.EvidenceStored(stored.Size)
	return evidence, nil
}

// Attach records metadata for a stored file against an obligation
func (s *EvidenceService) Attach(ctx context.Context, obligationID uint, in AttachInput) (*models.Evidence, error) {
	var evidence *models.Evidence
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		obligation, err := tx.Obligation.FindByID(ctx, obligationID)
		if err != nil {
			return notFound(err, "obligation", obligationID)
		}

		record := &models.Evidence{
			ObligationID: obligationID,
			Filename:     in.Filename,
			FilePath:     in.FilePath,
			ContentType:  in.ContentType,
			SizeBytes:    in.SizeBytes,
			Checksum:     in.Checksum,
			Note:         in.Note,
			UploadedAt:   s.now().UTC(),
		}
		if err := tx.Evidence.Create(ctx, record); err != nil {
			return err
		}

		if _, err := s.audit.WithTx(tx).Record(ctx, models.EvidenceUploaded{
			EvidenceID:   record.ID,
			LoanID:       obligation.LoanID,
			ObligationID: obligationID,
			Filename:     record.Filename,
		}); err != nil {
			return err
		}

		evidence = record
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("evidence attached", "evidence_id", evidence.ID, "obligation_id", obligationID)
	return evidence, nil
}

// List returns an obligation's evidence, newest first
func (s *EvidenceService) List(ctx context.Context, obligationID uint) ([]models.Evidence, error) {
	if _, err := s.repos.Obligation.FindByID(ctx, obligationID); err != nil {
		return nil, notFound(err, "obligation", obligationID)
	}
	return s.repos.Evidence.FindByObligation(ctx, obligationID)
}

// Fetch returns one evidence record
func (s *EvidenceService) Fetch(ctx context.Context, id uint) (*models.Evidence, error) {
	evidence, err := s.repos.Evidence.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "evidence", id)
	}
	return evidence, nil
}

// Open returns the evidence record with its stored bytes. A record whose
// file has gone missing reads as not found.
func (s *EvidenceService) Open(ctx context.Context, id uint) (*models.Evidence, *os.File, error) {
	evidence, err := s.Fetch(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	f, err := s.storage.Open(evidence.FilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, &missingFileError{id: id}
		}
		return nil, nil, err
	}
	return evidence, f, nil
}

// RemoveFiles deletes stored bytes for evidence rows that were already deleted.
// Failures are logged, not returned.
func (s *EvidenceService) RemoveFiles(ctx context.Context, evidence []models.Evidence) {
	for _, e := range evidence {
		if err := s.storage.Delete(e.FilePath); err != nil {
			logger.FromContext(ctx).Warn("failed to remove evidence file", "evidence_id", e.ID, "path", e.FilePath, "error", err)
		}
	}
}

type missingFileError struct {
	id uint
}

func (e *missingFileError) Error() string {
	return fmt.Sprintf("evidence %d: file missing on disk", e.id)
}

func (e *missingFileError) Is(target error) bool {
	return target == ErrNotFound
}
