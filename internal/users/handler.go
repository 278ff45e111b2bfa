package users

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/chandumcs/opstracker/internal/platform/httpx"
	"github.com/chandumcs/opstracker/internal/rbac"
)

// Handler manages user directory endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac, validator: validator.New()}
}

// MountRoutes registers user routes. The {user} segment is an email on
// reads and a numeric id on role changes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.PermAllUsersData))
		r.Get("/", h.listUsers)
		r.Get("/signed-in", h.listSignedIn)
		r.Get("/{user}", h.getUser)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.PermOthers))
		r.Get("/departments", h.listDepartments)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.PermManageUsers))
		r.Put("/{user}/role", h.changeRole)
	})
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	filters := ListFilters{
		Status: q.Get("status"),
		Search: q.Get("search"),
	}
	if raw := q.Get("role"); raw != "" && !strings.EqualFold(raw, "all") {
		role := rbac.ParseRole(raw)
		if !role.Known() {
			httpx.ValidationProblem(w, map[string]string{"role": "unknown"})
			return
		}
		filters.Role = role
	}
	users, pagination, err := h.service.List(r.Context(), page, perPage, filters)
	if err != nil {
		h.logger.Error("list users failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "users": users, "pagination": pagination})
}

func (h *Handler) listSignedIn(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListSignedIn(r.Context())
	if err != nil {
		h.logger.Error("list signed-in users failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "users": users})
}

func (h *Handler) listDepartments(w http.ResponseWriter, r *http.Request) {
	departments, err := h.service.Departments(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "departments": departments})
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(chi.URLParam(r, "user"))
	if email == "" {
		httpx.ValidationProblem(w, map[string]string{"email": "required"})
		return
	}
	user, err := h.service.GetByEmail(r.Context(), email)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "user": user})
}

type changeRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

func (h *Handler) changeRole(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "user"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return
	}
	var req changeRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor := rbac.StateFromContext(r.Context()).CurrentIdentity()
	user, err := h.service.ChangeRole(r.Context(), actor.ActorID(), id, req.Role)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "user": user})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "User not found")
	case errors.Is(err, ErrUnknownRole):
		httpx.ValidationProblem(w, map[string]string{"role": "unknown"})
	default:
		h.logger.Error("users request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
