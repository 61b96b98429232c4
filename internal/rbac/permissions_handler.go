package rbac

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vlady-pos/vlady-pos/internal/platform/httpx"
	"github.com/vlady-pos/vlady-pos/internal/shared"
)

// PermissionsHandler exposes grants so the front end can hide what the
// operator cannot use.
type PermissionsHandler struct {
	service *Service
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(service *Service) *PermissionsHandler {
	return &PermissionsHandler{service: service}
}

// MountRoutes registers permission routes. Callers must mount it behind
// authentication.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Get("/me", h.myPermissions)
	r.Get("/roles", h.listRoles)
}

type myPermissions struct {
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

func (h *PermissionsHandler) myPermissions(w http.ResponseWriter, r *http.Request) {
	_, role, ok := shared.OperatorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	httpx.OK(w, http.StatusOK, "", myPermissions{Role: role, Permissions: h.service.EffectivePermissions(role)})
}

func (h *PermissionsHandler) listRoles(w http.ResponseWriter, r *http.Request) {
	httpx.OK(w, http.StatusOK, "", h.service.ListRoles())
}
