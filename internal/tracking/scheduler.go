package tracking

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the customs summary on a cron schedule in the configured
// timezone, daily at 20:00 São Paulo time by default.
type Scheduler struct {
	summary  *Summary
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger
}

// NewScheduler creates a Scheduler for the summary. The timezone must be an
// IANA zone name.
func NewScheduler(log *slog.Logger, summary *Summary, schedule, timezone string) (*Scheduler, error) {
	if log == nil {
		log = slog.Default()
	}
	if schedule == "" {
		schedule = "0 20 * * *"
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load tracking timezone: %w", err)
	}
	return &Scheduler{
		summary:  summary,
		schedule: schedule,
		cron:     cron.New(cron.WithLocation(loc)),
		logger:   log.With(slog.String("service", "tracking_scheduler")),
	}, nil
}

// Start registers the summary job and starts the cron scheduler.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.runOnce); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("tracking scheduler started", slog.String("schedule", s.schedule))
	return nil
}

// Stop stops the scheduler and waits for a running summary to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("tracking scheduler stopped")
}

func (s *Scheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	flagged, err := s.summary.Run(ctx)
	if err != nil {
		s.logger.Error("summary run failed", slog.Any("error", err))
		return
	}
	s.logger.Info("summary run complete", slog.Int("flagged", flagged))
}
