package cronjob

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/credfluxo/restructure-backend/internal/workflow/service"
)

// Scheduler runs the lock-expiry sweep on a fixed interval. The sweep
// itself is idempotent, so overlapping or repeated runs are harmless.
type Scheduler struct {
	c   *cron.Cron
	sm  *service.StateMachine
	log zerolog.Logger
}

func NewScheduler(sm *service.StateMachine, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		c:   cron.New(cron.WithSeconds()),
		sm:  sm,
		log: log,
	}
}

// Start registers the sweep job and starts the cron loop.
func (s *Scheduler) Start(interval time.Duration) error {
	spec := fmt.Sprintf("@every %s", interval)

	_, err := s.c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		ids, err := s.sm.ReclaimExpired(ctx)
		if err != nil {
			s.log.Error().Err(err).Msg("lock expiry sweep failed")
			return
		}
		if len(ids) > 0 {
			s.log.Info().Int("reclaimed", len(ids)).Msg("lock expiry sweep")
		}
	})
	if err != nil {
		return fmt.Errorf("register sweep job: %w", err)
	}

	s.c.Start()
	return nil
}

// Stop halts the cron loop and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	ctx := s.c.Stop()
	<-ctx.Done()
}
