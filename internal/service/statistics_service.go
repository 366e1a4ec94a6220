package service

import (
	"context"
	"fmt"
	"time"

	"phcportal/internal/model"
	"phcportal/internal/policy"
	"phcportal/internal/repository"
	ws "phcportal/internal/websocket"
)

type StatisticsService interface {
	Dashboard(ctx context.Context, actor policy.Actor) (model.DashboardStatistics, error)
	// Broadcast pushes fresh counters to connected dashboards.
	Broadcast(ctx context.Context) error
}

type statisticsService struct {
	repo   repository.StatisticsRepository
	policy *policy.Policy
	events EventPublisher
	now    func() time.Time
}

func NewStatisticsService(repo repository.StatisticsRepository, pol *policy.Policy, events EventPublisher) StatisticsService {
	return &statisticsService{repo: repo, policy: pol, events: publisherOrNop(events), now: time.Now}
}

func (s *statisticsService) Dashboard(ctx context.Context, actor policy.Actor) (model.DashboardStatistics, error) {
	if !s.policy.CanView(actor.Role, policy.ResourceDashboard) {
		return model.DashboardStatistics{}, forbidden("Access denied: dashboard")
	}
	stats, err := s.repo.Dashboard(ctx, s.now())
	if err != nil {
		return model.DashboardStatistics{}, fmt.Errorf("failed to compute statistics: %w", err)
	}
	return stats, nil
}

func (s *statisticsService) Broadcast(ctx context.Context) error {
	stats, err := s.repo.Dashboard(ctx, s.now())
	if err != nil {
		return fmt.Errorf("failed to compute statistics: %w", err)
	}
	s.events.Publish(ws.EventStatsUpdated, stats)
	return nil
}
