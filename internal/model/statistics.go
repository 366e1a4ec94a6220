package model

import (
	"time"
)

// DashboardStatistics aggregates the counters shown on the dashboard and analytics pages.
type DashboardStatistics struct {
	TotalUsers         int64     `json:"total_users"`
	PendingUsers       int64     `json:"pending_users"`
	ApprovedUsers      int64     `json:"approved_users"`
	TotalPHCs          int64     `json:"total_phcs"`
	ActivePHCs         int64     `json:"active_phcs"`
	TotalBlogPosts     int64     `json:"total_blog_posts"`
	PublishedBlogPosts int64     `json:"published_blog_posts"`
	TotalStaff         int64     `json:"total_staff"`
	TotalStaffEmails   int64     `json:"total_staff_emails"`
	TotalGalleryImages int64     `json:"total_gallery_images"`
	ActivitiesToday    int64     `json:"activities_today"`
	TotalAttendance    int64     `json:"total_attendance"`
	AttendanceToday    int64     `json:"attendance_today"`
	CurrentlyClockedIn int64     `json:"currently_clocked_in"`
	AttendanceThisWeek int64     `json:"attendance_this_week"`
	GeneratedAt        time.Time `json:"generated_at"`
}

// CountByKey is a grouped count row.
type CountByKey struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}
