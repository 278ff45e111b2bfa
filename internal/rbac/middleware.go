package rbac

import (
	"log/slog"
	"net/http"

	"github.com/chandumcs/opstracker/internal/platform/httpx"
)

// DecisionRecorder observes access decisions, typically for metrics.
type DecisionRecorder interface {
	ObserveDecision(d Decision)
}

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Logger   *slog.Logger
	Recorder DecisionRecorder
}

// Require ensures the session holds perm.
func (m Middleware) Require(perm Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state := StateFromContext(r.Context())
			d := Authorize(state, perm, Decision{Path: r.URL.Path})
			m.observe(d)
			if !d.Allowed {
				m.deny(w, r, d)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAny ensures the session holds at least one of perms.
func (m Middleware) RequireAny(perms ...Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(perms) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			state := StateFromContext(r.Context())
			var d Decision
			for _, p := range perms {
				d = Authorize(state, p, Decision{Path: r.URL.Path})
				if d.Allowed {
					break
				}
			}
			m.observe(d)
			if !d.Allowed {
				m.deny(w, r, d)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSignedIn rejects anonymous sessions with 401.
func (m Middleware) RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !StateFromContext(r.Context()).Authenticated() {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "sign in required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireWritable rejects sessions whose permission set is read-only.
func (m Middleware) RequireWritable(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state := StateFromContext(r.Context())
		if state.IsReadOnly() {
			d := Decision{Path: r.URL.Path, Role: roleName(state), Reason: ReasonReadOnly}
			m.observe(d)
			m.deny(w, r, d)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m Middleware) observe(d Decision) {
	if m.Recorder != nil {
		m.Recorder.ObserveDecision(d)
	}
}

func (m Middleware) deny(w http.ResponseWriter, r *http.Request, d Decision) {
	if m.Logger != nil {
		m.Logger.Info("access denied",
			slog.String("path", r.URL.Path),
			slog.String("role", d.Role),
			slog.String("required", d.Required.String()),
			slog.String("reason", d.Reason),
		)
	}
	if d.Reason == ReasonNotSignedIn {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "sign in required")
		return
	}
	httpx.Forbidden(w, d.Role, d.Required.String(), "You don't have permission to access this page.")
}
