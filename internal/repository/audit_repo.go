package repository

import (
	"context"
	"time"

	"phcportal/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActivityFilter narrows the activity log. HideRole drops entries made by accounts with
// that role.
type ActivityFilter struct {
	UserID   *uuid.UUID
	Type     string
	From     *time.Time
	To       *time.Time
	HideRole string
	Offset   int
	Limit    int
}

type ActivityRepository interface {
	Log(ctx context.Context, entry *model.ActivityLog) error
	List(ctx context.Context, filter ActivityFilter) ([]model.ActivityLog, int64, error)
	Count(ctx context.Context, filter ActivityFilter) (int64, error)
	CountByType(ctx context.Context, filter ActivityFilter) ([]model.CountByKey, error)
}

type activityRepository struct {
	db *gorm.DB
}

func NewActivityRepository(db *gorm.DB) ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) Log(ctx context.Context, entry *model.ActivityLog) error {
	return GetDB(ctx, r.db).Omit("User").Create(entry).Error
}

func (r *activityRepository) scoped(ctx context.Context, filter ActivityFilter) *gorm.DB {
	query := GetDB(ctx, r.db).Model(&model.ActivityLog{})
	if filter.UserID != nil {
		query = query.Where("user_activity_logs.user_id = ?", *filter.UserID)
	}
	if filter.Type != "" {
		query = query.Where("user_activity_logs.activity_type = ?", filter.Type)
	}
	if filter.From != nil {
		query = query.Where("user_activity_logs.created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("user_activity_logs.created_at < ?", *filter.To)
	}
	if filter.HideRole != "" {
		query = query.Where("user_activity_logs.user_id IS NULL OR user_activity_logs.user_id NOT IN (?)",
			GetDB(ctx, r.db).Unscoped().Model(&model.User{}).Select("id").Where("role = ?", filter.HideRole))
	}
	return query
}

func (r *activityRepository) List(ctx context.Context, filter ActivityFilter) ([]model.ActivityLog, int64, error) {
	var logs []model.ActivityLog
	var total int64

	if err := r.scoped(ctx, filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := r.scoped(ctx, filter).Preload("User").
		Order("user_activity_logs.created_at DESC").
		Offset(filter.Offset).Limit(filter.Limit).
		Find(&logs).Error; err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}

func (r *activityRepository) Count(ctx context.Context, filter ActivityFilter) (int64, error) {
	var total int64
	err := r.scoped(ctx, filter).Count(&total).Error
	return total, err
}

func (r *activityRepository) CountByType(ctx context.Context, filter ActivityFilter) ([]model.CountByKey, error) {
	var rows []model.CountByKey
	err := r.scoped(ctx, filter).
		Select("user_activity_logs.activity_type AS key, COUNT(*) AS count").
		Group("user_activity_logs.activity_type").
		Order("count DESC").
		Scan(&rows).Error
	return rows, err
}
