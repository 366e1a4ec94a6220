package repository

import (
	"context"
	"fmt"
	"time"

	"phcportal/internal/model"

	"gorm.io/gorm"
)

type StatisticsRepository interface {
	Dashboard(ctx context.Context, now time.Time) (model.DashboardStatistics, error)
}

type statisticsRepository struct {
	db *gorm.DB
}

func NewStatisticsRepository(db *gorm.DB) StatisticsRepository {
	return &statisticsRepository{db: db}
}

// Dashboard counts every table shown on the dashboard. "Today" and "this week" are
// measured in now's location.
func (r *statisticsRepository) Dashboard(ctx context.Context, now time.Time) (model.DashboardStatistics, error) {
	var stats model.DashboardStatistics
	db := GetDB(ctx, r.db)

	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekAgo := startOfDay.AddDate(0, 0, -6)

	counts := []struct {
		name  string
		query *gorm.DB
		dest  *int64
	}{
		{"users", db.Model(&model.User{}), &stats.TotalUsers},
		{"pending users", db.Model(&model.User{}).Where("status = ?", model.UserStatusPending), &stats.PendingUsers},
		{"approved users", db.Model(&model.User{}).Where("status = ?", model.UserStatusApproved), &stats.ApprovedUsers},
		{"phcs", db.Model(&model.PHC{}), &stats.TotalPHCs},
		{"active phcs", db.Model(&model.PHC{}).Where("status = ?", model.PHCStatusActive), &stats.ActivePHCs},
		{"blog posts", db.Model(&model.BlogPost{}), &stats.TotalBlogPosts},
		{"published posts", db.Model(&model.BlogPost{}).Where("status = ?", model.PostStatusPublished), &stats.PublishedBlogPosts},
		{"staff", db.Model(&model.Staff{}), &stats.TotalStaff},
		{"staff emails", db.Model(&model.StaffEmail{}), &stats.TotalStaffEmails},
		{"gallery images", db.Model(&model.GalleryImage{}), &stats.TotalGalleryImages},
		{"activities today", db.Model(&model.ActivityLog{}).Where("created_at >= ?", startOfDay), &stats.ActivitiesToday},
		{"attendance", db.Model(&model.AttendanceRecord{}), &stats.TotalAttendance},
		{"attendance today", db.Model(&model.AttendanceRecord{}).Where("clock_in_time >= ?", startOfDay), &stats.AttendanceToday},
		{"clocked in", db.Model(&model.AttendanceRecord{}).Where("status = ?", model.AttendanceClockedIn), &stats.CurrentlyClockedIn},
		{"attendance this week", db.Model(&model.AttendanceRecord{}).Where("clock_in_time >= ?", weekAgo), &stats.AttendanceThisWeek},
	}

	for _, c := range counts {
		if err := c.query.Count(c.dest).Error; err != nil {
			return stats, fmt.Errorf("failed to count %s: %w", c.name, err)
		}
	}

	stats.GeneratedAt = now
	return stats, nil
}
