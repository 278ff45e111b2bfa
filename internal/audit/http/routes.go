package audithttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/chandumcs/opstracker/internal/platform/httpx"
	"github.com/chandumcs/opstracker/internal/rbac"
)

const rateLimit = 30
const rateWindow = time.Minute

// MountRoutes registers the activity timeline.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(rateLimit, rateWindow,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "timeline limit reached, try again shortly")
		}),
	)
	r.Use(h.rbac.Require(rbac.PermOthers))
	r.Use(limiter)
	r.Get("/", h.handleTimeline)
}

func rateLimitKey(r *http.Request) (string, error) {
	if id := rbac.StateFromContext(r.Context()).CurrentIdentity(); !id.IsAnonymous() {
		return "user:" + id.Email, nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
