package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/draftforge-backend/api/controllers"
	"github.com/angelmondragon/draftforge-backend/api/middleware"
	"github.com/angelmondragon/draftforge-backend/internal/accounts"
	"github.com/angelmondragon/draftforge-backend/internal/admission"
	"github.com/angelmondragon/draftforge-backend/internal/assist"
	"github.com/angelmondragon/draftforge-backend/internal/documents"
	"github.com/angelmondragon/draftforge-backend/internal/generation"
	"github.com/angelmondragon/draftforge-backend/internal/ledger"
	"github.com/angelmondragon/draftforge-backend/internal/projects"
	"github.com/angelmondragon/draftforge-backend/pkg/config"
	"github.com/angelmondragon/draftforge-backend/pkg/db"
	"github.com/angelmondragon/draftforge-backend/pkg/enums"
	"github.com/angelmondragon/draftforge-backend/pkg/logger"
	"github.com/angelmondragon/draftforge-backend/pkg/redis"
)

// services are the handlers' dependencies.
type services struct {
	accounts   accounts.Service
	admission  *admission.Controller
	projects   projects.Service
	documents  documents.Service
	generation *generation.Orchestrator
	assist     assist.Service
	ledger     ledger.Service
}

// stores back the replay cache and the rate limiter. Both may be nil.
type stores struct {
	idempotency redis.IdempotencyStore
	counter     middleware.RateLimitStore
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	accountService accounts.Service,
	admissionController *admission.Controller,
	projectService projects.Service,
	documentService documents.Service,
	orchestrator *generation.Orchestrator,
	assistService assist.Service,
	ledgerService ledger.Service,
) http.Handler {
	pingers := map[string]controllers.Pinger{}
	if dbP != nil {
		pingers["database"] = dbP
	}
	// A nil *redis.Client must not reach the middleware as a non-nil interface.
	var st stores
	if redisClient != nil {
		st = stores{idempotency: redisClient, counter: redisClient}
		pingers["redis"] = redisClient
	}
	return newRouter(cfg, logg, pingers, st, services{
		accounts:   accountService,
		admission:  admissionController,
		projects:   projectService,
		documents:  documentService,
		generation: orchestrator,
		assist:     assistService,
		ledger:     ledgerService,
	})
}

func newRouter(cfg *config.Config, logg *logger.Logger, pingers map[string]controllers.Pinger, st stores, svc services) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.HTTP.CORSAllowedOrigins),
	)

	apiPolicy := middleware.NewRateLimitPolicy("api", cfg.HTTP.RateLimitWindow, cfg.HTTP.RateLimitRequests)
	generatePolicy := middleware.NewRateLimitPolicy("generate", cfg.HTTP.RateLimitWindow, cfg.HTTP.GenerateRateLimit)

	// Replay runs per route, after chi has matched the endpoint.
	charged := middleware.Idempotency(st.idempotency, middleware.DefaultIdempotencyTTL, logg)
	generate := chi.Chain(middleware.RateLimit(generatePolicy, st.counter, logg), charged)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, pingers))
	})

	if cfg.HTTP.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.EnsureAccount(svc.accounts, logg))
		r.Use(middleware.RateLimit(apiPolicy, st.counter, logg))

		r.Route("/credits", func(r chi.Router) {
			r.Get("/balance", controllers.GetCreditBalance(svc.ledger, logg))
			r.Get("/usage", controllers.ListCreditUsage(svc.ledger, logg))
		})

		r.Route("/projects", func(r chi.Router) {
			r.Post("/", controllers.CreateProject(svc.admission, logg))
			r.Get("/", controllers.ListProjects(svc.projects, logg))
			r.Route("/{projectId}", func(r chi.Router) {
				r.Get("/", controllers.GetProject(svc.projects, logg))
				r.Patch("/", controllers.UpdateProject(svc.projects, logg))
				r.Delete("/", controllers.DeleteProject(svc.projects, logg))
				r.Get("/documents", controllers.ListProjectDocuments(svc.documents, logg))
				r.With(generate...).Post("/documents/generate", controllers.GenerateDocuments(svc.generation, logg))
				r.Route("/assist", func(r chi.Router) {
					r.With(charged).Post("/refine-idea", controllers.RefineIdea(svc.assist, logg))
					r.With(charged).Post("/plan", controllers.GeneratePlan(svc.assist, logg))
					r.With(charged).Post("/answer", controllers.AnswerQuestion(svc.assist, logg))
				})
			})
		})

		r.Route("/documents/{documentId}", func(r chi.Router) {
			r.Get("/", controllers.GetDocument(svc.documents, logg))
			r.Delete("/", controllers.DeleteDocument(svc.documents, logg))
			r.With(generate...).Post("/regenerate", controllers.RegenerateDocument(svc.generation, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.AccountRoleAdmin))

		r.Route("/accounts/{accountId}", func(r chi.Router) {
			r.With(middleware.Idempotency(st.idempotency, middleware.GrantIdempotencyTTL, logg)).
				Post("/credits", controllers.AdminGrantCredits(svc.accounts, logg))
			r.Put("/project-limit", controllers.AdminSetProjectLimit(svc.accounts, logg))
		})
	})

	return r
}
