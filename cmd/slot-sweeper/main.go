package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-availability/internal/availability"
	"github.com/hackgods/clinic-availability/internal/config"
	"github.com/hackgods/clinic-availability/internal/db"
	"github.com/hackgods/clinic-availability/internal/directory"
	"github.com/hackgods/clinic-availability/internal/logger"
	"github.com/hackgods/clinic-availability/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("prod", "info")
		bootLog.Fatal().Err(err).Msg("config load error")
	}

	log := logger.New(cfg.Env, cfg.LogLevel).With().Str("service", "slot-sweeper").Logger()
	log.Info().
		Dur("interval", cfg.WorkerInterval).
		Dur("retention", cfg.SlotRetention).
		Msg("slot sweeper starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 2})
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	repo := availability.NewPgRepository(pgPool)
	svc := availability.NewService(repo, directory.NewPgDirectory(pgPool), nil, cfg.Location, metrics.New(nil, "clinic"), log)

	// Run once at startup
	runOnce(rootCtx, svc, cfg.SlotRetention, log)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping slot sweeper")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, cfg.SlotRetention, log)
		}
	}
}

func runOnce(ctx context.Context, svc *availability.Service, retention time.Duration, log zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	n, err := svc.PurgeStale(runCtx, time.Now(), retention)
	if err != nil {
		log.Error().Err(err).Msg("sweep run error")
		return
	}
	log.Info().Int64("purged", n).Dur("took", time.Since(start)).Msg("sweep run complete")
}
