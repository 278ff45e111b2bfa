package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	audithttp "github.com/chandumcs/opstracker/internal/audit/http"
	"github.com/chandumcs/opstracker/internal/auth"
	"github.com/chandumcs/opstracker/internal/dashboard"
	"github.com/chandumcs/opstracker/internal/handover"
	"github.com/chandumcs/opstracker/internal/observability"
	"github.com/chandumcs/opstracker/internal/platform/httpx"
	"github.com/chandumcs/opstracker/internal/rbac"
	"github.com/chandumcs/opstracker/internal/shared"
	"github.com/chandumcs/opstracker/internal/tasks"
	"github.com/chandumcs/opstracker/internal/users"
	"github.com/chandumcs/opstracker/jobs"
)

// Pinger reports database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	SessionManager   *shared.SessionManager
	CSRFManager      *shared.CSRFManager
	IdentityStore    rbac.Store
	Roles            RoleLookup
	RBACMiddleware   rbac.Middleware
	AuthHandler      *auth.Handler
	NavHandler       *rbac.Handler
	UsersHandler     *users.Handler
	TasksHandler     *tasks.Handler
	HandoverHandler  *handover.Handler
	DashboardHandler *dashboard.Handler
	JobHandler       *jobs.Handler
	AuditHandler     *audithttp.Handler
	Database         Pinger
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with tracker defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		IdentityStore:  params.IdentityStore,
		Roles:          params.Roles,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", pingHandler(params.Config))
		r.Get("/health", healthHandler(params.Database))

		if params.AuthHandler != nil {
			r.Route("/auth", params.AuthHandler.MountRoutes)
			r.Route("/session", params.AuthHandler.MountSession)
		}
		if params.NavHandler != nil {
			params.NavHandler.MountRoutes(r)
		}
		if params.DashboardHandler != nil {
			r.Route("/dashboard", params.DashboardHandler.MountRoutes)
		}
		if params.TasksHandler != nil {
			r.Route("/tasks", params.TasksHandler.MountRoutes)
		}
		if params.HandoverHandler != nil {
			r.Route("/handovers", params.HandoverHandler.MountRoutes)
		}
		if params.UsersHandler != nil {
			r.Route("/users", params.UsersHandler.MountRoutes)
		}
		if params.AuditHandler != nil {
			r.Route("/audit", params.AuditHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", func(r chi.Router) {
				r.Use(params.RBACMiddleware.Require(rbac.PermOthers))
				params.JobHandler.MountRoutes(r)
			})
		}
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "no route for "+r.URL.Path)
	})

	return r
}

func pingHandler(cfg *Config) http.HandlerFunc {
	message := "ping"
	if cfg != nil && cfg.PingMessage != "" {
		message = cfg.PingMessage
	}
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"message": message})
	}
}

func healthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, database, code := "healthy", "connected", http.StatusOK
		if db == nil {
			database = "not configured"
		} else {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				status, database, code = "unhealthy", "disconnected", http.StatusServiceUnavailable
			}
		}
		httpx.JSON(w, code, map[string]string{
			"status":    status,
			"database":  database,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}
