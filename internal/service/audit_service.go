package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"phcportal/internal/model"
	"phcportal/internal/policy"
	"phcportal/internal/repository"
)

type ActivityLogFilter struct {
	UserID string
	Type   string
	From   *time.Time
	To     *time.Time
	Page   Page
}

type ActivityLogResponse struct {
	ID          string                 `json:"id"`
	UserID      string                 `json:"user_id"`
	UserName    string                 `json:"user_name"`
	UserEmail   string                 `json:"user_email"`
	UserRole    string                 `json:"user_role"`
	Type        string                 `json:"activity_type"`
	Description string                 `json:"activity_description"`
	Metadata    map[string]interface{} `json:"metadata"`
	CreatedAt   string                 `json:"created_at"`
}

type ActivityStats struct {
	Total  int64              `json:"total"`
	Today  int64              `json:"today"`
	ByType []model.CountByKey `json:"by_type"`
}

type ActivityService interface {
	List(ctx context.Context, actor policy.Actor, filter ActivityLogFilter) ([]ActivityLogResponse, int64, error)
	Stats(ctx context.Context, actor policy.Actor) (*ActivityStats, error)
}

type activityService struct {
	repo   repository.ActivityRepository
	policy *policy.Policy
	now    func() time.Time
}

// NewActivityService creates a new ActivityService instance
func NewActivityService(repo repository.ActivityRepository, pol *policy.Policy) ActivityService {
	return &activityService{repo: repo, policy: pol, now: time.Now}
}

// scope applies the viewer restrictions: super admin activity is only shown to super admins.
func (s *activityService) scope(actor policy.Actor, f *repository.ActivityFilter) error {
	if !s.policy.CanView(actor.Role, policy.ResourceActivityLogs) {
		return forbidden("Access denied: activity logs")
	}
	if !s.policy.VisibleTo(actor, model.RoleSuperAdmin) {
		f.HideRole = model.RoleSuperAdmin
	}
	return nil
}

func (s *activityService) List(ctx context.Context, actor policy.Actor, filter ActivityLogFilter) ([]ActivityLogResponse, int64, error) {
	page := filter.Page.normalize()
	q := repository.ActivityFilter{
		Type:   filter.Type,
		From:   filter.From,
		To:     filter.To,
		Offset: page.offset(),
		Limit:  page.Limit,
	}
	if filter.UserID != "" {
		uid, err := parseID(filter.UserID, "user")
		if err != nil {
			return nil, 0, err
		}
		q.UserID = &uid
	}
	if err := s.scope(actor, &q); err != nil {
		return nil, 0, err
	}

	logs, total, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch activity logs: %w", err)
	}

	res := make([]ActivityLogResponse, 0, len(logs))
	for _, l := range logs {
		item := ActivityLogResponse{
			ID:          l.ID.String(),
			UserName:    "System",
			Type:        l.ActivityType,
			Description: l.ActivityDescription,
			CreatedAt:   formatTime(l.CreatedAt),
		}
		if l.UserID != nil {
			item.UserID = l.UserID.String()
		}
		if l.User != nil {
			item.UserName = l.User.FullName
			item.UserEmail = l.User.Email
			item.UserRole = l.User.Role
		}
		if len(l.Metadata) > 0 {
			_ = json.Unmarshal(l.Metadata, &item.Metadata)
		}
		res = append(res, item)
	}
	return res, total, nil
}

func (s *activityService) Stats(ctx context.Context, actor policy.Actor) (*ActivityStats, error) {
	var q repository.ActivityFilter
	if err := s.scope(actor, &q); err != nil {
		return nil, err
	}

	total, err := s.repo.Count(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to count activity: %w", err)
	}

	now := s.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	today := q
	today.From = &midnight
	todayCount, err := s.repo.Count(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("failed to count activity: %w", err)
	}

	byType, err := s.repo.CountByType(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to group activity: %w", err)
	}
	return &ActivityStats{Total: total, Today: todayCount, ByType: byType}, nil
}
