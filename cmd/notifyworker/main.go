package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/estraier/stgy-sub003/internal/adminserver"
	"github.com/estraier/stgy-sub003/internal/aggregator"
	"github.com/estraier/stgy-sub003/internal/config"
	"github.com/estraier/stgy-sub003/internal/cursorstore"
	"github.com/estraier/stgy-sub003/internal/dbx"
	"github.com/estraier/stgy-sub003/internal/eventlog"
	"github.com/estraier/stgy-sub003/internal/idgen"
	"github.com/estraier/stgy-sub003/internal/logging"
	"github.com/estraier/stgy-sub003/internal/notifystore"
	"github.com/estraier/stgy-sub003/internal/obsv"
	"github.com/estraier/stgy-sub003/internal/readside"
	"github.com/estraier/stgy-sub003/internal/wakebus"
	"github.com/estraier/stgy-sub003/internal/worker"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg)

	log.Info().Str("env", cfg.Env).Msg("notification worker starting")

	ctx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	pool, err := dbx.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("connect to postgres")
	}
	defer pool.Close()

	for _, ddl := range []string{eventlog.Schema, cursorstore.Schema, notifystore.Schema} {
		if _, err := pool.Exec(ctx, ddl); err != nil {
			log.Fatal().Err(err).Msg("apply schema")
		}
	}

	lock, acquired, err := dbx.TryAcquireSingleton(ctx, pool, cfg.SingletonLockName)
	if err != nil {
		log.Fatal().Err(err).Msg("acquire singleton lock")
	}
	if !acquired {
		log.Info().Msg("another instance already holds the singleton lock; exiting")
		return
	}
	defer lock.Release(context.Background())

	redisClient, err := wakebus.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("build redis client")
	}
	defer redisClient.Close()
	if err := wakebus.Ping(ctx, redisClient); err != nil {
		log.Fatal().Err(err).Msg("ping redis")
	}

	loc, err := time.LoadLocation(cfg.SystemTimezone)
	if err != nil {
		log.Fatal().Err(err).Str("timezone", cfg.SystemTimezone).Msg("load system timezone")
	}

	issuer, err := idgen.NewIssuer(cfg.IDIssueWorkerID)
	if err != nil {
		log.Fatal().Err(err).Msg("construct id issuer")
	}

	bus := wakebus.New(redisClient, cfg.NotificationWorkers, log)
	events := eventlog.New(pool, cfg.EventLogPartitions, issuer, bus, log)
	cursors := cursorstore.New(pool)
	notifications := notifystore.New(pool)
	posts := readside.NewPgPostStore(pool)
	users := readside.NewPgUserStore(pool)
	agg := aggregator.New(notifications, posts, users, cfg.NotificationPayloadRecords, loc)

	metrics := obsv.New(prometheus.DefaultRegisterer)

	workerCfg := worker.Config{
		Partitions:            cfg.EventLogPartitions,
		Workers:               cfg.NotificationWorkers,
		BatchSize:             cfg.NotificationBatchSize,
		EventLogRetention:     time.Duration(cfg.EventLogRetentionDays) * 24 * time.Hour,
		NotificationRetention: time.Duration(cfg.NotificationRetentionDays) * 24 * time.Hour,
		PurgeStatementTimeout: cfg.PurgeStatementTimeout,
		PurgeThreshold:        int64(cfg.NotificationPurgeThreshold),
		WakeTick:              cfg.WakeTick,
	}
	workers := worker.New(workerCfg, pool, events, cursors, notifications, agg, bus, metrics, log)

	admin := adminserver.New(cfg.AdminAddr, pool, bus, log)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	workersDone := make(chan struct{})
	go func() {
		defer close(workersDone)
		workers.Run(workerCtx)
	}()

	go func() {
		if err := admin.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("admin server stopped")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GracefulTimeout)
	defer cancel()

	if err := admin.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("admin server shutdown")
	}

	cancelWorkers()
	select {
	case <-workersDone:
	case <-shutdownCtx.Done():
		log.Warn().Msg("graceful timeout exceeded waiting for workers to drain")
	}

	log.Info().Msg("notification worker stopped")
}
