// Package scheduler runs the periodic background jobs of the API process.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Broadcaster pushes fresh dashboard statistics to connected clients.
type Broadcaster interface {
	Broadcast(ctx context.Context) error
}

// Scheduler wraps a cron runner. Overlapping runs of the same job are skipped.
type Scheduler struct {
	cron *cron.Cron
}

func New() *Scheduler {
	return &Scheduler{cron: cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)))}
}

// AddStatsBroadcast schedules stats.Broadcast on spec, e.g. "@every 30s".
func (s *Scheduler) AddStatsBroadcast(spec string, stats Broadcaster) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		if err := stats.Broadcast(ctx); err != nil {
			log.Printf("[SCHEDULER] stats broadcast failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule stats broadcast %q: %w", spec, err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the runner and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
