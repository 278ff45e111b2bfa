package rbac

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/chandumcs/opstracker/internal/platform/httpx"
)

// Handler exposes the navigation table and access decisions.
type Handler struct {
	logger *slog.Logger
	guard  *Guard
	rbac   Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, guard *Guard, rbac Middleware) *Handler {
	return &Handler{logger: logger, guard: guard, rbac: rbac}
}

// MountRoutes registers navigation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/routes", h.listRoutes)
	r.Get("/access", h.checkAccess)
}

type routeView struct {
	Route
	Allowed bool `json:"allowed"`
}

func (h *Handler) listRoutes(w http.ResponseWriter, r *http.Request) {
	state := StateFromContext(r.Context())
	routes := h.guard.Routes().Routes()
	out := make([]routeView, 0, len(routes))
	for _, route := range routes {
		d := h.guard.Check(state, route.Path)
		h.rbac.observe(d)
		out = append(out, routeView{Route: route, Allowed: d.Allowed})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"role":   roleName(state),
		"routes": out,
	})
}

func (h *Handler) checkAccess(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSpace(r.URL.Query().Get("path"))
	if path == "" {
		httpx.ValidationProblem(w, map[string]string{"path": "required"})
		return
	}
	d := h.guard.Check(StateFromContext(r.Context()), path)
	h.rbac.observe(d)
	httpx.JSON(w, http.StatusOK, d)
}
