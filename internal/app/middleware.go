package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/chandumcs/opstracker/internal/observability"
	"github.com/chandumcs/opstracker/internal/platform/httpx"
	"github.com/chandumcs/opstracker/internal/rbac"
	"github.com/chandumcs/opstracker/internal/shared"
)

// RoleLookup reads the current role of a user. found is false when the
// user no longer exists.
type RoleLookup interface {
	RoleOf(ctx context.Context, userID int64) (role rbac.Role, found bool, err error)
}

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	IdentityStore  rbac.Store
	Roles          RoleLookup
	Metrics        *observability.Metrics
}

type responseWriterWithCommit struct {
	http.ResponseWriter
	sess          *shared.Session
	manager       *shared.SessionManager
	logger        *slog.Logger
	ctx           context.Context
	req           *http.Request
	headerWritten bool
}

func (w *responseWriterWithCommit) commit() {
	if err := w.manager.Commit(w.ctx, w.ResponseWriter, w.req, w.sess); err != nil {
		w.logger.Error("commit session", slog.Any("error", err))
	}
}

func (w *responseWriterWithCommit) WriteHeader(statusCode int) {
	if !w.headerWritten {
		w.headerWritten = true
		w.commit()
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *responseWriterWithCommit) Write(data []byte) (int, error) {
	if !w.headerWritten {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(data)
}

// SessionMiddleware loads the HTTP session and the access state bound to it.
// The session is committed just before the first byte of the response.
func SessionMiddleware(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sess, err := cfg.SessionManager.Load(ctx, r)
			if err != nil {
				logger.Error("failed to load session", slog.Any("error", err))
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				return
			}
			state := rbac.NewSessionState(cfg.IdentityStore, rbac.IdentityKey(sess.ID))
			if err := state.Restore(ctx); err != nil {
				// The state stays anonymous; the client simply has to sign in again.
				logger.Warn("restore identity", slog.String("session", sess.ID), slog.Any("error", err))
			}
			refreshRole(ctx, logger, cfg.Roles, state)
			ctx = rbac.ContextWithState(shared.ContextWithSession(ctx, sess), state)

			wrapped := &responseWriterWithCommit{
				ResponseWriter: w,
				sess:           sess,
				manager:        cfg.SessionManager,
				logger:         logger,
				ctx:            ctx,
				req:            r.WithContext(ctx),
			}

			next.ServeHTTP(wrapped, r.WithContext(ctx))
			if !wrapped.headerWritten {
				wrapped.headerWritten = true
				wrapped.commit()
			}
		})
	}
}

// refreshRole brings a restored identity in line with the user's stored
// role. Deleted users are signed out. A failed lookup keeps the identity.
func refreshRole(ctx context.Context, logger *slog.Logger, roles RoleLookup, state *rbac.SessionState) {
	if roles == nil || !state.Authenticated() {
		return
	}
	id := state.CurrentIdentity()
	role, found, err := roles.RoleOf(ctx, id.ActorID())
	if err != nil {
		logger.Warn("lookup role", slog.String("user", id.UserID), slog.Any("error", err))
		return
	}
	if !found {
		if err := state.SetIdentity(ctx, rbac.Anonymous); err != nil {
			logger.Warn("clear identity", slog.String("user", id.UserID), slog.Any("error", err))
		}
		logger.Info("identity of deleted user cleared", slog.String("user", id.UserID))
		return
	}
	changed, err := state.ApplyRole(ctx, role)
	if err != nil {
		logger.Warn("persist refreshed identity", slog.String("user", id.UserID), slog.Any("error", err))
	}
	if changed {
		logger.Info("identity role refreshed", slog.String("user", id.UserID),
			slog.String("from", string(id.Role)), slog.String("to", string(role)))
	}
}

// CSRFMiddleware requires the X-CSRF-Token header on state-changing requests.
func CSRFMiddleware(logger *slog.Logger, csrf *shared.CSRFManager) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			sess := shared.SessionFromContext(r.Context())
			if err := csrf.VerifyToken(r.Context(), sess, r.Header.Get(shared.CSRFHeader)); err != nil {
				logger.Warn("csrf validation failed", slog.String("path", r.URL.Path), slog.Any("error", err))
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing or invalid CSRF token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// MiddlewareStack installs the tracker middleware chain.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		FeaturePolicy:         "none",
		ContentSecurityPolicy: "default-src 'self'",
		SSLRedirect:           cfg.Config != nil && cfg.Config.IsProduction(),
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
	})

	timeout := 30 * time.Second
	rateLimit := 300
	if cfg.Config != nil {
		if cfg.Config.AppRequestTimeout > 0 {
			timeout = cfg.Config.AppRequestTimeout
		}
		rateLimit = cfg.Config.RateLimitPerMinute
	}

	middlewares := []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		SessionMiddleware(cfg),
		middleware.Recoverer,
		middleware.Timeout(timeout),
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := secureMiddleware.Process(w, r); err != nil {
					logger.Warn("secure headers blocked request", slog.Any("error", err))
					httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
					return
				}
				next.ServeHTTP(w, r)
			})
		},
		middleware.Compress(5),
	}
	if rateLimit > 0 {
		middlewares = append(middlewares, httprate.Limit(rateLimit, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
	}
	middlewares = append(middlewares, CSRFMiddleware(logger, cfg.CSRFManager))
	if cfg.Metrics != nil {
		middlewares = append(middlewares, cfg.Metrics.Middleware)
	}
	return middlewares
}
