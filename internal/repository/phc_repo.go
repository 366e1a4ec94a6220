package repository

import (
	"context"

	"phcportal/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PHCFilter struct {
	Search string
	LGA    string
	Ward   string
	Status string
	Offset int
	Limit  int
}

type PHCRepository interface {
	Create(ctx context.Context, phc *model.PHC) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.PHC, error)
	List(ctx context.Context, filter PHCFilter) ([]model.PHC, int64, error)
	Update(ctx context.Context, phc *model.PHC) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type phcRepository struct {
	db *gorm.DB
}

func NewPHCRepository(db *gorm.DB) PHCRepository {
	return &phcRepository{db: db}
}

func (r *phcRepository) Create(ctx context.Context, phc *model.PHC) error {
	return GetDB(ctx, r.db).Create(phc).Error
}

func (r *phcRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.PHC, error) {
	var phc model.PHC
	if err := GetDB(ctx, r.db).First(&phc, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &phc, nil
}

func (r *phcRepository) List(ctx context.Context, filter PHCFilter) ([]model.PHC, int64, error) {
	var phcs []model.PHC
	var total int64

	query := GetDB(ctx, r.db).Model(&model.PHC{})
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("name ILIKE ? OR address ILIKE ? OR ward ILIKE ?", like, like, like)
	}
	if filter.LGA != "" {
		query = query.Where("lga = ?", filter.LGA)
	}
	if filter.Ward != "" {
		query = query.Where("ward ILIKE ?", filter.Ward)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("name ASC").Offset(filter.Offset).Limit(filter.Limit).Find(&phcs).Error; err != nil {
		return nil, 0, err
	}
	return phcs, total, nil
}

func (r *phcRepository) Update(ctx context.Context, phc *model.PHC) error {
	return GetDB(ctx, r.db).Save(phc).Error
}

func (r *phcRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.PHC{}).Error
}
