package repository

import (
	"context"

	"github.com/sjperalta/covenantops-api/internal/models"
	"gorm.io/gorm"
)

// EvidenceRepository defines the interface for evidence metadata access
type EvidenceRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Evidence, error)
	FindByObligation(ctx context.Context, obligationID uint) ([]models.Evidence, error)
	FindByObligations(ctx context.Context, obligationIDs []uint) (map[uint][]models.Evidence, error)
	FindByLoan(ctx context.Context, loanID uint) ([]models.Evidence, error)
	Create(ctx context.Context, evidence *models.Evidence) error
	DeleteByObligation(ctx context.Context, obligationID uint) (int64, error)
	DeleteByLoan(ctx context.Context, loanID uint) (int64, error)
}

type evidenceRepository struct {
	db *gorm.DB
}

// NewEvidenceRepository creates a new evidence repository
func NewEvidenceRepository(db *gorm.DB) EvidenceRepository {
	return &evidenceRepository{db: db}
}

func (r *evidenceRepository) FindByID(ctx context.Context, id uint) (*models.Evidence, error) {
	var evidence models.Evidence
	err := r.db.WithContext(ctx).First(&evidence, id).Error
	if err != nil {
		return nil, err
	}
	return &evidence, nil
}

func (r *evidenceRepository) FindByObligation(ctx context.Context, obligationID uint) ([]models.Evidence, error) {
	var evidence []models.Evidence
	err := r.db.WithContext(ctx).
		Where("obligation_id = ?", obligationID).
		Order("uploaded_at DESC").
		Order("id DESC").
		Find(&evidence).Error
	return evidence, err
}

// FindByObligations loads the evidence of many obligations in one query, grouped by obligation id
func (r *evidenceRepository) FindByObligations(ctx context.Context, obligationIDs []uint) (map[uint][]models.Evidence, error) {
	grouped := make(map[uint][]models.Evidence, len(obligationIDs))
	if len(obligationIDs) == 0 {
		return grouped, nil
	}

	var evidence []models.Evidence
	err := r.db.WithContext(ctx).
		Where("obligation_id IN ?", obligationIDs).
		Order("uploaded_at DESC").
		Order("id DESC").
		Find(&evidence).Error
	if err != nil {
		return nil, err
	}

	for _, e := range evidence {
		grouped[e.ObligationID] = append(grouped[e.ObligationID], e)
	}
	return grouped, nil
}

func (r *evidenceRepository) FindByLoan(ctx context.Context, loanID uint) ([]models.Evidence, error) {
	var evidence []models.Evidence
	err := r.db.WithContext(ctx).
		Where("obligation_id IN (?)", r.loanObligationIDs(loanID)).
		Find(&evidence).Error
	return evidence, err
}

func (r *evidenceRepository) Create(ctx context.Context, evidence *models.Evidence) error {
	return r.db.WithContext(ctx).Create(evidence).Error
}

func (r *evidenceRepository) DeleteByObligation(ctx context.Context, obligationID uint) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("obligation_id = ?", obligationID).
		Delete(&models.Evidence{})
	return result.RowsAffected, result.Error
}

func (r *evidenceRepository) DeleteByLoan(ctx context.Context, loanID uint) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("obligation_id IN (?)", r.loanObligationIDs(loanID)).
		Delete(&models.Evidence{})
	return result.RowsAffected, result.Error
}

func (r *evidenceRepository) loanObligationIDs(loanID uint) *gorm.DB {
	return r.db.Model(&models.Obligation{}).Select("id").Where("loan_id = ?", loanID)
}
