package repository

import (
	"context"
	"strings"
	"time"

	"phcportal/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StaffFilter narrows the nominal roll. BornAfter/BornBefore are derived from an age range.
type StaffFilter struct {
	Search     string
	Sex        string
	LGA        string
	Tier       string
	Cadre      string
	BornAfter  *time.Time
	BornBefore *time.Time
	Offset     int
	Limit      int // zero means no limit
}

type StaffRepository interface {
	Create(ctx context.Context, staff *model.Staff) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Staff, error)
	FindByPSNAndSex(ctx context.Context, psn, sex string) (*model.Staff, error)
	List(ctx context.Context, filter StaffFilter) ([]model.Staff, int64, error)
	Update(ctx context.Context, staff *model.Staff) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountBySex(ctx context.Context) (map[string]int64, error)
}

type staffRepository struct {
	db *gorm.DB
}

func NewStaffRepository(db *gorm.DB) StaffRepository {
	return &staffRepository{db: db}
}

func (r *staffRepository) Create(ctx context.Context, staff *model.Staff) error {
	return GetDB(ctx, r.db).Create(staff).Error
}

func (r *staffRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Staff, error) {
	var staff model.Staff
	if err := GetDB(ctx, r.db).First(&staff, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &staff, nil
}

// FindByPSNAndSex matches the PSN exactly and the sex case-insensitively.
func (r *staffRepository) FindByPSNAndSex(ctx context.Context, psn, sex string) (*model.Staff, error) {
	var staff model.Staff
	err := GetDB(ctx, r.db).
		Where("psn = ? AND LOWER(sex) = ?", strings.TrimSpace(psn), strings.ToLower(strings.TrimSpace(sex))).
		First(&staff).Error
	if err != nil {
		return nil, err
	}
	return &staff, nil
}

func (r *staffRepository) List(ctx context.Context, filter StaffFilter) ([]model.Staff, int64, error) {
	var staff []model.Staff
	var total int64

	query := GetDB(ctx, r.db).Model(&model.Staff{})
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("name ILIKE ? OR psn ILIKE ?", like, like)
	}
	if filter.Sex != "" {
		query = query.Where("LOWER(sex) = LOWER(?)", filter.Sex)
	}
	if filter.LGA != "" {
		query = query.Where("lga = ?", filter.LGA)
	}
	if filter.Tier != "" {
		query = query.Where("tier = ?", filter.Tier)
	}
	if filter.Cadre != "" {
		query = query.Where("cadre = ?", filter.Cadre)
	}
	if filter.BornAfter != nil {
		query = query.Where("date_of_birth > ?", *filter.BornAfter)
	}
	if filter.BornBefore != nil {
		query = query.Where("date_of_birth <= ?", *filter.BornBefore)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order("name ASC").Offset(filter.Offset)
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if err := query.Find(&staff).Error; err != nil {
		return nil, 0, err
	}
	return staff, total, nil
}

func (r *staffRepository) Update(ctx context.Context, staff *model.Staff) error {
	return GetDB(ctx, r.db).Save(staff).Error
}

func (r *staffRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Staff{}).Error
}

func (r *staffRepository) CountBySex(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Sex   string
		Count int64
	}
	if err := GetDB(ctx, r.db).Model(&model.Staff{}).Select("sex, COUNT(*) AS count").Group("sex").Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Sex] = row.Count
	}
	return out, nil
}
