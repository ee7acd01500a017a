// The worker owns the scheduled side of the workflow: the lock-expiry
// sweep that reclaims abandoned cases, and the queue-counter reseed at
// startup.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/credfluxo/restructure-backend/config"
	"github.com/credfluxo/restructure-backend/internal/bootstrap"
	"github.com/credfluxo/restructure-backend/internal/events"
	"github.com/credfluxo/restructure-backend/internal/locking"
	cronjob "github.com/credfluxo/restructure-backend/internal/locking/cron"
	simrepo "github.com/credfluxo/restructure-backend/internal/simulation/repository"
	"github.com/credfluxo/restructure-backend/internal/workflow/permissions"
	wfrepo "github.com/credfluxo/restructure-backend/internal/workflow/repository"
	wfservice "github.com/credfluxo/restructure-backend/internal/workflow/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.App.LogLevel)
	logger := log.Level(level).With().Str("service", "restructure-worker").Logger()

	ctx := context.Background()

	db, err := bootstrap.OpenDB(ctx, bootstrap.DBOptions{
		DSN:      cfg.Database.DSN,
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect db")
	}
	defer db.Close()

	rdb, err := bootstrap.OpenRedis(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}
	defer rdb.Close()

	caseRepo := wfrepo.NewCaseRepo(db)
	attemptRepo := simrepo.NewAttemptRepo(db)
	publisher := events.NewRedisPublisher(rdb)
	mutex := locking.NewKeyedMutex()
	clock := locking.SystemClock{}
	lockManager := locking.NewManager(caseRepo, mutex, clock, logger)

	sm := wfservice.NewStateMachine(
		caseRepo, permissions.New(), lockManager, mutex, attemptRepo, publisher,
		wfservice.Config{LockTTL: cfg.Workflow.LockTTL}, logger,
	)

	// Reseed the cached queue counters from the database so pub/sub
	// increments start from authoritative numbers.
	if counts, err := caseRepo.CountByStatus(ctx); err != nil {
		logger.Warn().Err(err).Msg("could not reseed queue counters")
	} else if err := publisher.ResetQueueCounters(ctx, counts); err != nil {
		logger.Warn().Err(err).Msg("could not reseed queue counters")
	}

	scheduler := cronjob.NewScheduler(sm, logger)
	if err := scheduler.Start(cfg.Workflow.SweepInterval); err != nil {
		logger.Fatal().Err(err).Msg("failed to start sweep scheduler")
	}
	logger.Info().Dur("interval", cfg.Workflow.SweepInterval).Msg("sweep scheduler started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	scheduler.Stop()
	logger.Info().Msg("worker stopped")
}
