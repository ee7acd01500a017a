package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/credfluxo/restructure-backend/config"
	"github.com/credfluxo/restructure-backend/internal/bootstrap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.App.LogLevel)
	logger := log.Level(level).With().Str("service", "restructure-api").Logger()

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

	bootstrap.SetGinMode(cfg.App.Environment)
	router := bootstrap.BuildRouter(bootstrap.RouterDeps{
		ServiceName:    "restructure-backend",
		Version:        cfg.App.Version,
		DB:             db,
		Redis:          rdb,
		Log:            logger,
		LockTTL:        cfg.Workflow.LockTTL,
		CORSOrigins:    cfg.Server.CORSOrigins,
		RateLimitRPS:   cfg.Server.RateLimitRPS,
		RateLimitBurst: cfg.Server.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		logger.Info().Str("port", cfg.Server.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}
