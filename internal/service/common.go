package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"phcportal/internal/model"
	"phcportal/internal/repository"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const timeLayout = "2006-01-02T15:04:05Z07:00"

// EventPublisher pushes realtime events to dashboard clients.
type EventPublisher interface {
	Publish(event string, data interface{})
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, interface{}) {}

func publisherOrNop(p EventPublisher) EventPublisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}

// Page is the pagination window passed from handlers.
type Page struct {
	Page  int
	Limit int
}

func (p Page) normalize() Page {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = 20
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	return p
}

func (p Page) offset() int {
	return (p.Page - 1) * p.Limit
}

func parseID(id, what string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, invalid("invalid %s id", what)
	}
	return parsed, nil
}

// lookupErr turns a repository miss into a not-found error and wraps everything else.
func lookupErr(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound(what)
	}
	return fmt.Errorf("failed to load %s: %w", what, err)
}

func userRef(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

// recordActivity appends an activity log entry. Call it with the txCtx of the change it
// describes so both commit or roll back together.
func recordActivity(ctx context.Context, repo repository.ActivityRepository, userID *uuid.UUID, activityType, description string, metadata map[string]interface{}) error {
	var meta datatypes.JSON
	if metadata != nil {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("failed to encode activity metadata: %w", err)
		}
		meta = datatypes.JSON(raw)
	}
	entry := &model.ActivityLog{
		UserID:              userID,
		ActivityType:        activityType,
		ActivityDescription: description,
		Metadata:            meta,
		CreatedAt:           time.Now(),
	}
	if err := repo.Log(ctx, entry); err != nil {
		return fmt.Errorf("failed to write activity log: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.Format(timeLayout)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(timeLayout)
	return &s
}
