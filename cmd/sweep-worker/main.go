package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/joaoviitorsx/SistemaDeAgendamento/internal/booking"
	"github.com/joaoviitorsx/SistemaDeAgendamento/internal/config"
	"github.com/joaoviitorsx/SistemaDeAgendamento/internal/db"
	redisclient "github.com/joaoviitorsx/SistemaDeAgendamento/internal/redis"
)

// sweep-worker promotes confirmed appointments to completed once their end
// time is comfortably in the past, so stale rows never need manual cleanup.
func main() {
	cfg, err := config.Load()
	if err != nil {
		errLog := zerolog.New(os.Stderr)
		errLog.Fatal().Err(err).Msg("config load error")
	}

	log := zerolog.New(os.Stderr).With().Timestamp().Str("component", "sweep-worker").Logger()
	log.Info().Str("env", cfg.Env).Dur("interval", cfg.SweepInterval).Dur("lag", cfg.SweepLag).
		Msg("sweep-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing redis")
		}
	}()

	repo := booking.NewPgRepository(pgPool)
	locker := redisclient.NewRedisPhysicianLocker(rdb, cfg.LockTTL)
	svc := booking.NewService(repo, locker, cfg, log)

	runOnce(rootCtx, svc, cfg.SweepLag, log)

	c := cron.New()
	if _, err := c.AddFunc("@every "+cfg.SweepInterval.String(), func() {
		runOnce(rootCtx, svc, cfg.SweepLag, log)
	}); err != nil {
		log.Fatal().Err(err).Msg("cron schedule error")
	}
	c.Start()

	<-rootCtx.Done()
	log.Info().Msg("shutdown signal received, stopping sweep worker")

	// Let an in-flight run finish before exiting.
	<-c.Stop().Done()
}

func runOnce(ctx context.Context, svc *booking.Service, lag time.Duration, log zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	n, err := svc.CompleteOverdue(runCtx, lag)
	if err != nil {
		log.Error().Err(err).Msg("sweep run error")
		return
	}
	log.Info().Int("completed", n).Dur("took", time.Since(start)).Msg("sweep run complete")
}
