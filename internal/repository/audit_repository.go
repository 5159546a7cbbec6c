package repository

import (
	"context"

	"github.com/sjperalta/covenantops-api/internal/models"
	"gorm.io/gorm"
)

// MaxAuditEvents caps how many rows a single audit query returns
const MaxAuditEvents = 200

// AuditFilter narrows the audit trail; nil fields match everything
type AuditFilter struct {
	LoanID       *uint
	ObligationID *uint
	Limit        int
}

// AuditRepository appends and reads audit events. There is no update or delete.
type AuditRepository interface {
	Create(ctx context.Context, event *models.AuditEvent) error
	List(ctx context.Context, filter AuditFilter) ([]models.AuditEvent, error)
}

type auditRepository struct {
	db *gorm.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Create(ctx context.Context, event *models.AuditEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *auditRepository) List(ctx context.Context, filter AuditFilter) ([]models.AuditEvent, error) {
	limit := filter.Limit
	if limit <= 0 || limit > MaxAuditEvents {
		limit = MaxAuditEvents
	}

	db := r.db.WithContext(ctx).Model(&models.AuditEvent{})
	if filter.LoanID != nil {
		db = db.Where("loan_id = ?", *filter.LoanID)
	}
	if filter.ObligationID != nil {
		db = db.Where("obligation_id = ?", *filter.ObligationID)
	}

	var events []models.AuditEvent
	err := db.Order("at DESC").Order("id DESC").Limit(limit).Find(&events).Error
	return events, err
}
