package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sjperalta/covenantops-api/internal/metrics"
	"github.com/sjperalta/covenantops-api/internal/models"
	"github.com/sjperalta/covenantops-api/internal/repository"
)

// AuditService appends and reads the audit trail
type AuditService struct {
	repo    repository.AuditRepository
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewAuditService(repo repository.AuditRepository, m *metrics.Metrics, now func() time.Time) *AuditService {
	return &AuditService{repo: repo, metrics: m, now: now}
}

// WithTx returns a copy that writes through the transaction's repositories
func (s *AuditService) WithTx(tx *repository.Repositories) *AuditService {
	clone := *s
	clone.repo = tx.Audit
	return &clone
}

// Record appends one immutable event. Callers treat a failure as fatal to
// the enclosing operation.
func (s *AuditService) Record(ctx context.Context, details models.AuditDetails) (*models.AuditEvent, error) {
	event, err := models.NewAuditEvent(details, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("append audit event: %w", err)
	}
	s.metrics.AuditRecorded(string(event.EntityType), string(event.Action))
	return event, nil
}

// List returns the most recent events matching filter
func (s *AuditService) List(ctx context.Context, filter repository.AuditFilter) ([]models.AuditEvent, error) {
	return s.repo.List(ctx, filter)
}
