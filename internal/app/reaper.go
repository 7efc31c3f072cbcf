package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Reaper drops submitted sessions once their retention period has passed.
type Reaper struct {
	service   *QuizService
	retention time.Duration
	clock     func() time.Time
	logger    *zap.Logger
	cron      *cron.Cron
}

func NewReaper(service *QuizService, retention time.Duration, logger *zap.Logger) *Reaper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reaper{
		service:   service,
		retention: retention,
		clock:     time.Now,
		logger:    logger,
		cron:      cron.New(),
	}
}

// Start schedules Sweep every interval.
func (r *Reaper) Start(interval time.Duration) error {
	if _, err := r.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		r.Sweep()
	}); err != nil {
		return fmt.Errorf("schedule session reaper: %w", err)
	}
	r.cron.Start()
	return nil
}

// Stop halts the schedule and waits for a running sweep.
func (r *Reaper) Stop() {
	<-r.cron.Stop().Done()
}

// Sweep removes expired sessions and returns how many were dropped.
func (r *Reaper) Sweep() int {
	ctx := context.Background()
	cutoff := r.clock().Add(-r.retention)
	removed := 0
	for _, id := range r.service.sessions.IDs() {
		session, ok := r.service.sessions.Get(id)
		if !ok {
			continue
		}
		at, submitted := session.SubmittedAt()
		if !submitted || at.After(cutoff) {
			continue
		}
		if err := r.service.Remove(ctx, id); err != nil {
			continue
		}
		removed++
	}
	if removed > 0 {
		r.logger.Info("reaped submitted sessions", zap.Int("removed", removed))
	}
	return removed
}
