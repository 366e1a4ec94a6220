package repository

import (
	"context"

	"phcportal/internal/model"

	"gorm.io/gorm"
)

type StaffEmailRepository interface {
	Create(ctx context.Context, record *model.StaffEmail) error
	FindByPSN(ctx context.Context, psn string) (*model.StaffEmail, error)
	FindByEmail(ctx context.Context, email string) (*model.StaffEmail, error)
	List(ctx context.Context, search string, offset, limit int) ([]model.StaffEmail, int64, error)
}

type staffEmailRepository struct {
	db *gorm.DB
}

func NewStaffEmailRepository(db *gorm.DB) StaffEmailRepository {
	return &staffEmailRepository{db: db}
}

func (r *staffEmailRepository) Create(ctx context.Context, record *model.StaffEmail) error {
	return GetDB(ctx, r.db).Create(record).Error
}

func (r *staffEmailRepository) FindByPSN(ctx context.Context, psn string) (*model.StaffEmail, error) {
	var rec model.StaffEmail
	if err := GetDB(ctx, r.db).First(&rec, "psn = ?", psn).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *staffEmailRepository) FindByEmail(ctx context.Context, email string) (*model.StaffEmail, error) {
	var rec model.StaffEmail
	if err := GetDB(ctx, r.db).First(&rec, "LOWER(email) = LOWER(?)", email).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *staffEmailRepository) List(ctx context.Context, search string, offset, limit int) ([]model.StaffEmail, int64, error) {
	var records []model.StaffEmail
	var total int64

	query := GetDB(ctx, r.db).Model(&model.StaffEmail{})
	if search != "" {
		like := "%" + search + "%"
		query = query.Where("psn ILIKE ? OR email ILIKE ? OR staff_name ILIKE ?", like, like, like)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, total, nil
}
