package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/draftforge-backend/api/routes"
	"github.com/angelmondragon/draftforge-backend/internal/accounts"
	"github.com/angelmondragon/draftforge-backend/internal/admission"
	"github.com/angelmondragon/draftforge-backend/internal/assist"
	"github.com/angelmondragon/draftforge-backend/internal/documents"
	"github.com/angelmondragon/draftforge-backend/internal/generation"
	"github.com/angelmondragon/draftforge-backend/internal/ledger"
	"github.com/angelmondragon/draftforge-backend/internal/llm"
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

const shutdownTimeout = 30 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Console:     cfg.App.ConsoleLogs(),
	})

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(rootCtx, cfg.DB, logg)
	if err != nil {
		logg.Error(rootCtx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(rootCtx, cfg, logg, dbClient); err != nil {
		logg.Error(rootCtx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(rootCtx, cfg.Redis, logg)
	if err != nil {
		logg.Error(rootCtx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	genMetrics := metrics.NewGenerationMetrics(prometheus.DefaultRegisterer)
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	ledgerService, err := ledger.NewService(ledger.ServiceParams{
		Repository: ledger.NewRepository(dbClient.DB()),
		DB:         dbClient,
		Outbox:     outboxService,
		Logger:     logg,
		Metrics:    genMetrics,
	})
	if err != nil {
		logg.Error(rootCtx, "failed to create ledger service", err)
		os.Exit(1)
	}

	accountService, err := accounts.NewService(accounts.NewRepository(dbClient.DB()), ledgerService, cfg.Credits, logg)
	if err != nil {
		logg.Error(rootCtx, "failed to create account service", err)
		os.Exit(1)
	}

	projectRepo := projects.NewRepository(dbClient.DB())
	projectService, err := projects.NewService(projectRepo)
	if err != nil {
		logg.Error(rootCtx, "failed to create project service", err)
		os.Exit(1)
	}

	documentStore, err := documents.NewStore(documents.NewRepository(dbClient.DB()), retry.FromStoreConfig(cfg.Store), logg)
	if err != nil {
		logg.Error(rootCtx, "failed to create document store", err)
		os.Exit(1)
	}
	documentService, err := documents.NewService(documentStore, projectRepo)
	if err != nil {
		logg.Error(rootCtx, "failed to create document service", err)
		os.Exit(1)
	}

	admissionController, err := admission.NewController(admission.Params{
		DB:       dbClient,
		Projects: projectRepo,
		Locker:   redisClient,
		Config:   cfg.Admission,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(rootCtx, "failed to create admission controller", err)
		os.Exit(1)
	}

	llmClient, err := llm.New(cfg.Generation, cfg.Anthropic)
	if err != nil {
		logg.Error(rootCtx, "failed to create llm client", err)
		os.Exit(1)
	}
	generator, err := generation.NewLLMGenerator(llmClient, cfg.Generation.Timeout)
	if err != nil {
		logg.Error(rootCtx, "failed to create generator", err)
		os.Exit(1)
	}

	orchestrator, err := generation.NewOrchestrator(generation.Params{
		Projects:   projectRepo,
		Documents:  documentStore,
		Ledger:     ledgerService,
		Generator:  generator,
		DB:         dbClient,
		Outbox:     outboxService,
		Locker:     redisClient,
		Generation: cfg.Generation,
		Credits:    cfg.Credits,
		Logger:     logg,
		Metrics:    genMetrics,
	})
	if err != nil {
		logg.Error(rootCtx, "failed to create orchestrator", err)
		os.Exit(1)
	}

	assistService, err := assist.NewService(assist.ServiceParams{
		Projects: projectRepo,
		Ledger:   ledgerService,
		Client:   llmClient,
		Credits:  cfg.Credits,
		Timeout:  cfg.Generation.Timeout,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(rootCtx, "failed to create assist service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(rootCtx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"provider": cfg.Generation.Provider,
		"async":    cfg.Generation.Async,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			accountService,
			admissionController,
			projectService,
			documentService,
			orchestrator,
			assistService,
			ledgerService,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-rootCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
		// async submissions own their documents until they settle
		orchestrator.Wait()
	}
}
