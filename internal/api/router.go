package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/strataops/vantage/internal/api/handlers"
	mw "github.com/strataops/vantage/internal/api/middleware"
	"github.com/strataops/vantage/internal/buildconfig"
	"github.com/strataops/vantage/internal/config"
	"github.com/strataops/vantage/internal/coordinator"
	"github.com/strataops/vantage/internal/domain"
	"github.com/strataops/vantage/internal/registry"
	"github.com/strataops/vantage/internal/rollout"
	"github.com/strataops/vantage/internal/router"
)

// Deps carries the wired components the HTTP surface exposes. DB may be
// nil in tests; /health then skips the ping.
type Deps struct {
	DB          *pgxpool.Pool
	Registry    *registry.Registry
	Monitor     *registry.Monitor
	Router      *router.Router
	Coordinator *coordinator.Coordinator
	Engine      *rollout.Engine
	Proposals   domain.ProposalStore
	Plans       domain.PlanStore
	Phases      domain.PhaseStore
	APIKey      string
}

// App holds the router and background services for lifecycle management.
type App struct {
	Router  *chi.Mux
	Monitor *registry.Monitor
	Engine  *rollout.Engine
}

func NewApp(deps Deps, logger *zap.Logger) *App {
	agentHandler := handlers.NewAgentHandler(deps.Registry)
	triggerHandler := handlers.NewTriggerHandler(deps.Coordinator)
	planHandler := handlers.NewPlanHandler(deps.Plans, deps.Phases, deps.Proposals, deps.Engine)

	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Metrics)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	// Health and metrics (no auth)
	r.Get("/health", healthHandler(deps.DB))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(deps.APIKey))

		r.Route("/agents", func(r chi.Router) {
			r.Post("/", agentHandler.Register(config.HeartbeatInterval()))
			r.Get("/", agentHandler.List)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", agentHandler.GetByID)
				r.Delete("/", agentHandler.Unregister)
				r.Post("/heartbeat", agentHandler.Heartbeat)
			})
		})

		r.Post("/triggers", triggerHandler.Submit)

		r.Get("/proposals", planHandler.Proposals)

		r.Route("/plans", func(r chi.Router) {
			r.Get("/", planHandler.List)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", planHandler.GetByID)
				r.Get("/phases", planHandler.Phases)
				r.Post("/approve", planHandler.Approve)
				r.Post("/reject", planHandler.Reject)
				r.Post("/cancel", planHandler.Cancel)
			})
		})
	})

	return &App{
		Router:  r,
		Monitor: deps.Monitor,
		Engine:  deps.Engine,
	}
}

func healthHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":  "ok",
			"version": buildconfig.Version(),
			"commit":  buildconfig.Commit(),
		})
	}
}
