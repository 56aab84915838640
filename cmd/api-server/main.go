package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/medibook/scheduling/internal/api"
	"github.com/medibook/scheduling/internal/booking"
	"github.com/medibook/scheduling/internal/config"
	"github.com/medibook/scheduling/internal/db"
	"github.com/medibook/scheduling/internal/logging"
	"github.com/medibook/scheduling/internal/metrics"
	redisclient "github.com/medibook/scheduling/internal/redis"
	"github.com/medibook/scheduling/internal/schedule"
)

const version = "0.3.0"

func main() {
	logger := logging.New("dev", "api-server")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config load error")
	}

	logger = logging.New(cfg.Env, "api-server")
	logger.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	var rdb *redis.Client
	var locker redisclient.Locker
	if cfg.LockBackend == "local" {
		locker = redisclient.NewLocalLocker()
		logger.Info().Msg("using in-process doctor locks")
	} else {
		rdb, err = redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection error")
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing redis")
			}
		}()
		locker = redisclient.NewRedisDoctorLocker(rdb, cfg.LockTTL, cfg.LockWait)
		logger.Info().Msg("connected to Redis")
	}

	store := booking.NewPgRepository(pgPool)
	schedules := schedule.NewPgRepository(pgPool)
	bookingMetrics := metrics.NewBookingMetrics(prometheus.DefaultRegisterer)
	svc := booking.NewService(store, schedules, locker, booking.SystemClock(), logger, bookingMetrics, cfg)

	router := api.NewRouter(api.RouterConfig{
		Service:   svc,
		Schedules: schedules,
		PgPool:    pgPool,
		Redis:     rdb,
		Logger:    logger,
		Metrics:   bookingMetrics,
		Env:       cfg.Env,
		Version:   version,
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		logger.Fatal().Err(err).Msg("http server error")
	case <-rootCtx.Done():
	}

	logger.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}
