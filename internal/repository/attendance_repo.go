package repository

import (
	"context"
	"time"

	"phcportal/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type AttendanceFilter struct {
	From   *time.Time
	To     *time.Time
	Status string
	Search string
	Offset int
	Limit  int // zero means no limit
}

// AttendanceRepository stores approval codes and clock records.
type AttendanceRepository interface {
	DeactivateCodes(ctx context.Context) (int64, error)
	CreateCode(ctx context.Context, code *model.ApprovalCode) error
	// FindUsableCode returns the code if it is active and not expired at now.
	FindUsableCode(ctx context.Context, code string, now time.Time) (*model.ApprovalCode, error)
	FindActiveCode(ctx context.Context, now time.Time) (*model.ApprovalCode, error)

	FindOpenRecord(ctx context.Context, psn string) (*model.AttendanceRecord, error)
	CreateRecord(ctx context.Context, record *model.AttendanceRecord) error
	UpdateRecord(ctx context.Context, record *model.AttendanceRecord) error
	ListRecords(ctx context.Context, filter AttendanceFilter) ([]model.AttendanceRecord, int64, error)
	CountRecords(ctx context.Context, from, to *time.Time, status string) (int64, error)
	AverageHours(ctx context.Context, from, to time.Time) (decimal.Decimal, error)
}

type attendanceRepository struct {
	db *gorm.DB
}

func NewAttendanceRepository(db *gorm.DB) AttendanceRepository {
	return &attendanceRepository{db: db}
}

func (r *attendanceRepository) DeactivateCodes(ctx context.Context) (int64, error) {
	res := GetDB(ctx, r.db).Model(&model.ApprovalCode{}).Where("is_active = ?", true).Update("is_active", false)
	return res.RowsAffected, res.Error
}

func (r *attendanceRepository) CreateCode(ctx context.Context, code *model.ApprovalCode) error {
	return GetDB(ctx, r.db).Create(code).Error
}

func (r *attendanceRepository) FindUsableCode(ctx context.Context, code string, now time.Time) (*model.ApprovalCode, error) {
	var ac model.ApprovalCode
	err := GetDB(ctx, r.db).
		Where("code = ? AND is_active = ? AND expires_at > ?", code, true, now).
		First(&ac).Error
	if err != nil {
		return nil, err
	}
	return &ac, nil
}

func (r *attendanceRepository) FindActiveCode(ctx context.Context, now time.Time) (*model.ApprovalCode, error) {
	var ac model.ApprovalCode
	err := GetDB(ctx, r.db).
		Where("is_active = ? AND expires_at > ?", true, now).
		Order("created_at DESC").
		First(&ac).Error
	if err != nil {
		return nil, err
	}
	return &ac, nil
}

func (r *attendanceRepository) FindOpenRecord(ctx context.Context, psn string) (*model.AttendanceRecord, error) {
	var rec model.AttendanceRecord
	err := GetDB(ctx, r.db).
		Where("psn = ? AND status = ?", psn, model.AttendanceClockedIn).
		Order("clock_in_time DESC").
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *attendanceRepository) CreateRecord(ctx context.Context, record *model.AttendanceRecord) error {
	return GetDB(ctx, r.db).Create(record).Error
}

func (r *attendanceRepository) UpdateRecord(ctx context.Context, record *model.AttendanceRecord) error {
	return GetDB(ctx, r.db).Save(record).Error
}

func (r *attendanceRepository) ListRecords(ctx context.Context, filter AttendanceFilter) ([]model.AttendanceRecord, int64, error) {
	var records []model.AttendanceRecord
	var total int64

	query := GetDB(ctx, r.db).Model(&model.AttendanceRecord{})
	if filter.From != nil {
		query = query.Where("clock_in_time >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("clock_in_time < ?", *filter.To)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("staff_name ILIKE ? OR psn ILIKE ?", like, like)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order("clock_in_time DESC").Offset(filter.Offset)
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if err := query.Find(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (r *attendanceRepository) CountRecords(ctx context.Context, from, to *time.Time, status string) (int64, error) {
	var count int64
	query := GetDB(ctx, r.db).Model(&model.AttendanceRecord{})
	if from != nil {
		query = query.Where("clock_in_time >= ?", *from)
	}
	if to != nil {
		query = query.Where("clock_in_time < ?", *to)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}
	err := query.Count(&count).Error
	return count, err
}

func (r *attendanceRepository) AverageHours(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	var result struct {
		Value decimal.NullDecimal
	}
	err := GetDB(ctx, r.db).Model(&model.AttendanceRecord{}).
		Select("AVG(hours_worked) AS value").
		Where("status = ? AND clock_in_time >= ? AND clock_in_time < ?", model.AttendanceClockedOut, from, to).
		Scan(&result).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !result.Value.Valid {
		return decimal.Zero, nil
	}
	return result.Value.Decimal.Round(2), nil
}
