package reports

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vlady-pos/vlady-pos/internal/platform/httpx"
	"github.com/vlady-pos/vlady-pos/internal/rbac"
	"github.com/vlady-pos/vlady-pos/internal/shared"
)

// Handler exposes report endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs the reports handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermReportsView))
		r.Get("/totals", h.handleTotals)
	})
}

func (h *Handler) handleTotals(w http.ResponseWriter, r *http.Request) {
	f, err := FilterFromRequest(r, h.service.Location())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	totals, err := h.service.Totals(r.Context(), f)
	if err != nil {
		h.logger.Error("report totals", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, "", totals)
}

// FilterFromRequest reads from, to and national_id query parameters.
func FilterFromRequest(r *http.Request, loc *time.Location) (Filter, error) {
	q := r.URL.Query()
	return ParseFilter(q.Get("from"), q.Get("to"), q.Get("national_id"), loc)
}
