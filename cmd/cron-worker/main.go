package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/draftforge-backend/internal/cron"
	"github.com/angelmondragon/draftforge-backend/internal/documents"
	"github.com/angelmondragon/draftforge-backend/internal/projects"
	"github.com/angelmondragon/draftforge-backend/pkg/config"
	"github.com/angelmondragon/draftforge-backend/pkg/db"
	"github.com/angelmondragon/draftforge-backend/pkg/logger"
	"github.com/angelmondragon/draftforge-backend/pkg/metrics"
	"github.com/angelmondragon/draftforge-backend/pkg/migrate"
	"github.com/angelmondragon/draftforge-backend/pkg/outbox"
	"github.com/angelmondragon/draftforge-backend/pkg/redis"
	"github.com/angelmondragon/draftforge-backend/pkg/retry"
)

const lockNameFormat = "cron-worker:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: cfg.Service.Kind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Console:     cfg.App.ConsoleLogs(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shut down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer closeWith(ctx, logg, "database", dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer closeWith(ctx, logg, "redis", redisClient.Close)

	service, err := buildService(cfg, logg, dbClient, redisClient)
	if err != nil {
		return err
	}

	if cfg.HTTP.MetricsEnabled {
		srv := metrics.StartServer(ctx, cfg.App.Port, logg)
		defer closeWith(ctx, logg, "metrics server", func() error { return metrics.ShutdownServer(ctx, srv) })
	}

	logg.Info(ctx, "starting cron worker")
	return service.Run(ctx)
}

func buildService(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (*cron.Service, error) {
	lock, err := cron.NewRedisLock(redisClient, lockName(cfg.App.Env), 0)
	if err != nil {
		return nil, fmt.Errorf("cron lock: %w", err)
	}

	documentStore, err := documents.NewStore(documents.NewRepository(dbClient.DB()), retry.FromStoreConfig(cfg.Store), logg)
	if err != nil {
		return nil, fmt.Errorf("document store: %w", err)
	}
	outboxRepo := outbox.NewRepository(dbClient.DB())

	staleJob, err := cron.NewStaleGenerationJob(cron.StaleGenerationJobParams{
		Logger:     logg,
		DB:         dbClient,
		Documents:  documentStore,
		Projects:   projects.NewRepository(dbClient.DB()),
		Outbox:     outbox.NewService(outboxRepo, logg),
		StuckAfter: cfg.Generation.StuckAfter,
	})
	if err != nil {
		return nil, fmt.Errorf("stale generation job: %w", err)
	}

	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      logg,
		DB:          dbClient,
		Repository:  outboxRepo,
		DLQ:         outbox.NewDLQRepository(dbClient.DB()),
		Retention:   time.Duration(cfg.Cron.OutboxRetentionDays) * 24 * time.Hour,
		MinAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("outbox retention job: %w", err)
	}

	registry := cron.NewRegistry()
	registry.Register(staleJob, cfg.Cron.Interval)
	registry.Register(retentionJob, cfg.Cron.RetentionInterval)

	return cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
	})
}

func closeWith(ctx context.Context, logg *logger.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(logg.WithField(ctx, "resource", name), "close failed", err)
	}
}

func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockNameFormat, env)
}
