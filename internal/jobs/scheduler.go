package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"assetdeck/api/internal/config"
)

// Sweeper reclaims abandoned provisional products. Satisfied by
// service.CleanupService.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Scheduler runs the reconciliation sweep on a cron schedule. The sweep is
// the authoritative cleanup path for provisional products whose abandonment
// beacon never arrived.
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	cfg     *config.AppConfig
	log     zerolog.Logger
}

func NewScheduler(sweeper Sweeper, cfg *config.AppConfig, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:    c,
		sweeper: sweeper,
		cfg:     cfg,
		log:     log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.Cleanup.SweepSchedule, s.runSweep); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop waits for a running sweep to finish, bounded by a short timeout.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
	}
}

func (s *Scheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cleaned, err := s.sweeper.Sweep(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("scheduled sweep failed")
		return
	}
	if cleaned > 0 {
		s.log.Info().Int("cleaned", cleaned).Msg("scheduled sweep reclaimed products")
	}
}
