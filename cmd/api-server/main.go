package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hackgods/clinic-availability/internal/api"
	"github.com/hackgods/clinic-availability/internal/availability"
	"github.com/hackgods/clinic-availability/internal/booking"
	"github.com/hackgods/clinic-availability/internal/config"
	"github.com/hackgods/clinic-availability/internal/db"
	"github.com/hackgods/clinic-availability/internal/directory"
	"github.com/hackgods/clinic-availability/internal/geo"
	"github.com/hackgods/clinic-availability/internal/logger"
	"github.com/hackgods/clinic-availability/internal/matching"
	"github.com/hackgods/clinic-availability/internal/metrics"
	redisclient "github.com/hackgods/clinic-availability/internal/redis"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("prod", "info")
		bootLog.Fatal().Err(err).Msg("config load error")
	}

	log := logger.New(cfg.Env, cfg.LogLevel).With().Str("service", "api-server").Logger()
	log.Info().
		Str("http_port", cfg.HTTPPort).
		Str("timezone", cfg.ClinicTimezone).
		Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{MaxConns: int32(cfg.MatchConcurrency) + 10})
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(rootCtx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("error closing redis")
		}
	}()
	log.Info().Msg("connected to Redis")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg, "clinic")

	google, err := geo.NewGoogleGeocoder(geo.GoogleConfig{
		APIKey:  cfg.GeocoderAPIKey,
		Timeout: cfg.GeocoderTimeout,
		RPS:     cfg.GeocoderRPS,
	}, m, log)
	if err != nil {
		log.Fatal().Err(err).Msg("geocoder init error")
	}
	if cfg.GeocoderAPIKey == "" {
		log.Warn().Msg("GEOCODER_API_KEY not set, matching will return no slots")
	}
	geocoder := geo.NewCachingGeocoder(google, geo.NewRedisCache(rdb), cfg.GeocodeCacheTTL, m, log)

	repo := availability.NewPgRepository(pgPool)
	dir := directory.NewPgDirectory(pgPool)
	locker := redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)

	availSvc := availability.NewService(repo, dir, locker, cfg.Location, m, log)
	engine := matching.NewEngine(dir, geocoder, matching.Options{
		Concurrency:    cfg.MatchConcurrency,
		GeocodeTimeout: cfg.GeocoderTimeout,
	}, m, log)
	bookingSvc := booking.NewService(repo, locker, engine, dir, cfg.AutoBookAttempts, m, log)

	router := api.NewRouter(api.RouterConfig{
		Availability: availSvc,
		Booking:      bookingSvc,
		Engine:       engine,
		Profiles:     dir,
		Geocoder:     geocoder,
		Postgres:     pgPool,
		Redis:        api.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
		Gatherer:     reg,
		Logger:       log,
		Env:          cfg.Env,
		Version:      version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-rootCtx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}

	log.Info().Msg("api-server stopped")
}
