package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/vlady-pos/vlady-pos/internal/auth"
	"github.com/vlady-pos/vlady-pos/internal/clients"
	"github.com/vlady-pos/vlady-pos/internal/inventory"
	"github.com/vlady-pos/vlady-pos/internal/observability"
	"github.com/vlady-pos/vlady-pos/internal/platform/httpx"
	"github.com/vlady-pos/vlady-pos/internal/rbac"
	"github.com/vlady-pos/vlady-pos/internal/reports"
	"github.com/vlady-pos/vlady-pos/internal/sales"
	"github.com/vlady-pos/vlady-pos/internal/shared"
	"github.com/vlady-pos/vlady-pos/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics

	// RequireAuth resolves the bearer token into a session.
	RequireAuth func(http.Handler) http.Handler

	AuthHandler        *auth.Handler
	InventoryHandler   *inventory.Handler
	ClientsHandler     *clients.Handler
	SalesHandler       *sales.Handler
	ReportsHandler     *reports.Handler
	PermissionsHandler *rbac.PermissionsHandler
	JobHandler         *jobs.Handler
}

// NewRouter constructs the chi.Router with the API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.RespondError(w, shared.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Fail(w, http.StatusMethodNotAllowed, "Method not allowed.", nil)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", params.AuthHandler.MountRoutes)
		r.Group(func(r chi.Router) {
			r.Use(params.RequireAuth)
			r.Route("/products", params.InventoryHandler.MountRoutes)
			r.Route("/clients", params.ClientsHandler.MountRoutes)
			r.Route("/sales", params.SalesHandler.MountRoutes)
			r.Route("/reports", params.ReportsHandler.MountRoutes)
			if params.PermissionsHandler != nil {
				r.Route("/permissions", params.PermissionsHandler.MountRoutes)
			}
		})
	})

	return r
}
