// Package jobs runs the periodic maintenance work: signing reminders,
// subscription expiry checks and the account deletion sweep. Jobs share the
// request path's service and repository but never run on it.
package jobs

import (
	"context"
	"time"

	"github.com/quillsign/quillsign-server/internal/service"
	"go.uber.org/zap"
)

// Scheduler ticks every Interval and runs each job once per tick
type Scheduler struct {
	svc      service.Service
	logger   *zap.Logger
	interval time.Duration

	// ReminderAge is how long a contract must sit without activity before
	// its pending signees are reminded.
	reminderAge time.Duration
}

func NewScheduler(svc service.Service, logger *zap.Logger, interval, reminderAge time.Duration) *Scheduler {
	return &Scheduler{
		svc:         svc,
		logger:      logger,
		interval:    interval,
		reminderAge: reminderAge,
	}
}

// Run blocks until ctx is cancelled
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if n, err := s.svc.SendSigningReminders(ctx, s.reminderAge); err != nil {
		s.logger.Error("signing reminder job failed", zap.Error(err))
	} else if n > 0 {
		s.logger.Info("signing reminders sent", zap.Int("count", n))
	}

	if n, err := s.svc.DeactivateExpiredSubscriptions(ctx); err != nil {
		s.logger.Error("subscription expiry job failed", zap.Error(err))
	} else if n > 0 {
		s.logger.Info("expired subscriptions deactivated", zap.Int("count", n))
	}

	if n, err := s.svc.SweepScheduledDeletions(ctx); err != nil {
		s.logger.Error("deletion sweep failed", zap.Error(err))
	} else if n > 0 {
		s.logger.Info("scheduled deletions swept", zap.Int("count", n))
	}
}
