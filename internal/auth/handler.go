package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/chandumcs/opstracker/internal/platform/httpx"
	"github.com/chandumcs/opstracker/internal/rbac"
	"github.com/chandumcs/opstracker/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/register", h.handleRegister)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
}

// MountSession registers the session introspection route.
func (h *Handler) MountSession(r chi.Router) {
	r.Get("/", h.showSession)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	FirstName  string `json:"firstName" validate:"required,max=100"`
	LastName   string `json:"lastName" validate:"required,max=100"`
	UserName   string `json:"userName" validate:"omitempty,max=100"`
	EmployeeID string `json:"employeeId" validate:"omitempty,max=50"`
	Email      string `json:"email" validate:"required,email"`
	Role       string `json:"role" validate:"required"`
	Password   string `json:"password" validate:"required,min=8"`
}

type sessionView struct {
	Authenticated bool               `json:"authenticated"`
	User          *rbac.Identity     `json:"user"`
	Role          string             `json:"role"`
	Permissions   rbac.PermissionSet `json:"permissions"`
	ReadOnly      bool               `json:"readOnly"`
	CSRFToken     string             `json:"csrfToken,omitempty"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	identity, err := h.service.Register(r.Context(), Registration{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		UserName:   req.UserName,
		EmployeeID: req.EmployeeID,
		Email:      req.Email,
		Role:       req.Role,
		Password:   req.Password,
	})
	switch {
	case errors.Is(err, shared.ErrEmailTaken):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
		return
	case errors.Is(err, ErrUnknownRole):
		httpx.ValidationProblem(w, map[string]string{"role": "unknown"})
		return
	case err != nil:
		h.logger.Error("register user", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.signIn(w, r, identity)
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "User registered successfully",
		"userId":  identity.UserID,
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	identity, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if !errors.Is(err, shared.ErrInvalidCredentials) {
			h.logger.Error("authenticate", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "Invalid email or password")
		return
	}
	h.signIn(w, r, identity)
	httpx.JSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"message":     "Login successful",
		"user":        identity,
		"permissions": rbac.PermissionsFor(identity.Role),
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	state := rbac.StateFromContext(r.Context())
	current := state.CurrentIdentity()
	if err := h.service.Logout(r.Context(), current.Email); err != nil {
		h.logger.Warn("mark user offline", slog.Any("error", err))
	}
	if err := state.SetIdentity(r.Context(), rbac.Anonymous); err != nil {
		h.logger.Warn("clear identity", slog.Any("error", err))
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		h.sessionManager.Destroy(sess)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "message": "Logout successful"})
}

func (h *Handler) showSession(w http.ResponseWriter, r *http.Request) {
	state := rbac.StateFromContext(r.Context())
	view := sessionView{
		Authenticated: state.Authenticated(),
		Permissions:   state.Permissions(),
		ReadOnly:      state.IsReadOnly(),
		Role:          "Unknown",
	}
	if view.Authenticated {
		id := state.CurrentIdentity()
		view.User = &id
		view.Role = id.Role.DisplayName()
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		token, err := h.csrfManager.EnsureToken(r.Context(), sess)
		if err != nil {
			h.logger.Warn("ensure csrf token", slog.Any("error", err))
		}
		view.CSRFToken = token
	}
	httpx.JSON(w, http.StatusOK, view)
}

// signIn binds identity to a freshly issued session id so an id handed out
// before sign-in never becomes authenticated.
func (h *Handler) signIn(w http.ResponseWriter, r *http.Request, identity rbac.Identity) {
	ctx := r.Context()
	state := rbac.StateFromContext(ctx)
	if sess := shared.SessionFromContext(ctx); sess != nil {
		h.sessionManager.Renew(sess)
		if err := state.Rekey(ctx, rbac.IdentityKey(sess.ID)); err != nil {
			h.logger.Warn("move identity to renewed session", slog.Any("error", err))
		}
		h.csrfManager.Rotate(sess)
	}
	if err := state.SetIdentity(ctx, identity); err != nil {
		// The in-memory swap already happened; only persistence failed.
		h.logger.Error("persist identity", slog.Any("error", err))
	}
}
