package proofs

import (
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/axisvitor/chatbot-ortopedic-sub003/internal/metrics"
)

// Sweeper runs the store's TTL sweep on a cron schedule, hourly by
// default. Evictions are housekeeping: logged, never
// surfaced, never forwarded.
type Sweeper struct {
	store    *Store
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger
}

// NewSweeper creates a Sweeper for the store with a cron schedule spec.
func NewSweeper(log *slog.Logger, store *Store, schedule string) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	if schedule == "" {
		schedule = "@hourly"
	}
	return &Sweeper{
		store:    store,
		schedule: schedule,
		cron:     cron.New(),
		logger:   log.With(slog.String("service", "proof_sweeper")),
	}
}

// Start registers the sweep job and starts the cron scheduler.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.runOnce); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("sweeper started", slog.String("schedule", s.schedule))
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("sweeper stopped")
}

func (s *Sweeper) runOnce() {
	evicted := s.store.Sweep(time.Now().UTC())
	metrics.SweepEvictionsTotal.Add(float64(evicted))
	metrics.ProofsPending.Set(float64(s.store.Len()))
	if evicted > 0 {
		s.logger.Info("sweep complete", slog.Int("evicted", evicted))
	}
}
