package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/medibook/scheduling/internal/booking"
	"github.com/medibook/scheduling/internal/config"
	"github.com/medibook/scheduling/internal/db"
	"github.com/medibook/scheduling/internal/logging"
	redisclient "github.com/medibook/scheduling/internal/redis"
	"github.com/medibook/scheduling/internal/schedule"
)

func main() {
	logger := logging.New("dev", "expiry-worker")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config load error")
	}

	logger = logging.New(cfg.Env, "expiry-worker")
	logger.Info().Str("env", cfg.Env).Dur("interval", cfg.WorkerInterval).Msg("starting up")

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

	store := booking.NewPgRepository(pgPool)
	schedules := schedule.NewPgRepository(pgPool)

	// The sweep only writes status transitions; it never reserves, so
	// in-process locks suffice regardless of deployment shape.
	svc := booking.NewService(store, schedules, redisclient.NewLocalLocker(), booking.SystemClock(), logger, nil, cfg)

	runOnce(rootCtx, svc, logger)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping expiry worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, logger)
		}
	}
}

func runOnce(ctx context.Context, svc *booking.Service, logger zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	expired, err := svc.ExpirePendingAppointments(runCtx)
	if err != nil {
		logger.Error().Err(err).Msg("expiry run error")
		return
	}
	logger.Info().Int("expired", expired).Dur("took", time.Since(start)).Msg("expiry run complete")
}
