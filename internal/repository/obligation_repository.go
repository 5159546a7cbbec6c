package repository

import (
	"context"

	"github.com/sjperalta/covenantops-api/internal/models"
	"gorm.io/gorm"
)

// ObligationRepository defines the interface for obligation data access
type ObligationRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Obligation, error)
	FindByLoan(ctx context.Context, loanID uint) ([]models.Obligation, error)
	CountByLoan(ctx context.Context, loanID uint) (int64, error)
	Create(ctx context.Context, obligation *models.Obligation) error
	CreateBatch(ctx context.Context, obligations []models.Obligation) error
	Update(ctx context.Context, obligation *models.Obligation) error
	Delete(ctx context.Context, id uint) error
	DeleteByLoan(ctx context.Context, loanID uint) (int64, error)
}

type obligationRepository struct {
	db *gorm.DB
}

// NewObligationRepository creates a new obligation repository
func NewObligationRepository(db *gorm.DB) ObligationRepository {
	return &obligationRepository{db: db}
}

func (r *obligationRepository) FindByID(ctx context.Context, id uint) (*models.Obligation, error) {
	var obligation models.Obligation
	err := r.db.WithContext(ctx).First(&obligation, id).Error
	if err != nil {
		return nil, err
	}
	return &obligation, nil
}

func (r *obligationRepository) FindByLoan(ctx context.Context, loanID uint) ([]models.Obligation, error) {
	var obligations []models.Obligation
	err := r.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&obligations).Error
	return obligations, err
}

func (r *obligationRepository) CountByLoan(ctx context.Context, loanID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Obligation{}).
		Where("loan_id = ?", loanID).
		Count(&count).Error
	return count, err
}

func (r *obligationRepository) Create(ctx context.Context, obligation *models.Obligation) error {
	return r.db.WithContext(ctx).Create(obligation).Error
}

func (r *obligationRepository) CreateBatch(ctx context.Context, obligations []models.Obligation) error {
	if len(obligations) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&obligations).Error
}

func (r *obligationRepository) Update(ctx context.Context, obligation *models.Obligation) error {
	return r.db.WithContext(ctx).Omit("Evidence").Save(obligation).Error
}

func (r *obligationRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Obligation{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *obligationRepository) DeleteByLoan(ctx context.Context, loanID uint) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Delete(&models.Obligation{})
	return result.RowsAffected, result.Error
}
