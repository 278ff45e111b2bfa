package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/chandumcs/opstracker/internal/auth"
	"github.com/chandumcs/opstracker/internal/observability"
	"github.com/chandumcs/opstracker/internal/platform/cache"
	"github.com/chandumcs/opstracker/internal/rbac"
	"github.com/chandumcs/opstracker/internal/shared"
)

type singleAccountRepo struct {
	acct    auth.Account
	deleted bool
}

func (s *singleAccountRepo) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	if !strings.EqualFold(email, s.acct.Email) {
		return nil, shared.ErrNotFound
	}
	cp := s.acct
	return &cp, nil
}

func (s *singleAccountRepo) CreateAccount(ctx context.Context, acct auth.NewAccount) (int64, error) {
	return 0, errors.New("not supported")
}

func (s *singleAccountRepo) UpdateLoginStatus(ctx context.Context, email, status string) error {
	return nil
}

func (s *singleAccountRepo) RoleOf(ctx context.Context, userID int64) (rbac.Role, bool, error) {
	if s.deleted || userID != s.acct.ID {
		return rbac.RoleUnknown, false, nil
	}
	return s.acct.Role, true, nil
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(ctx context.Context) error { return f.err }

type client struct {
	t        *testing.T
	handler  http.Handler
	store    *cache.MemoryStore
	metrics  *observability.Metrics
	accounts *singleAccountRepo
	cookies  map[string]*http.Cookie
}

func (c *client) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	c.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = "10.0.0.1:1234"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	res := httptest.NewRecorder()
	c.handler.ServeHTTP(res, req)
	for _, ck := range res.Result().Cookies() {
		if ck.MaxAge < 0 {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}
	return res
}

func newTestRouter(t *testing.T, db Pinger) *client {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("uatpass1"), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := &Config{AppEnv: "test", RateLimitPerMinute: 0, PingMessage: "pong", AppRequestTimeout: 5 * time.Second}
	store := cache.NewMemoryStore(time.Hour)
	sessions := shared.NewSessionManager(store, "tracker_session", "secret", time.Hour, false)
	csrf := shared.NewCSRFManager("csrf-secret")
	metrics := observability.NewMetrics()
	rbacMW := rbac.Middleware{Recorder: metrics}

	repo := &singleAccountRepo{acct: auth.Account{ID: 11, Name: "Uma Tester", Email: "uma@test.local", PasswordHash: string(hash), Role: rbac.RoleUATSupport}}
	handler := NewRouter(RouterParams{
		Config:         cfg,
		SessionManager: sessions,
		CSRFManager:    csrf,
		IdentityStore:  store,
		Roles:          repo,
		RBACMiddleware: rbacMW,
		AuthHandler:    auth.NewHandler(nil, auth.NewService(repo), sessions, csrf),
		NavHandler:     rbac.NewHandler(nil, rbac.NewGuard(rbac.MustRouteTable(rbac.DefaultRoutes()...)), rbacMW),
		Database:       db,
		Metrics:        metrics,
	})
	return &client{t: t, handler: handler, store: store, metrics: metrics, accounts: repo, cookies: map[string]*http.Cookie{}}
}

func TestHealthEndpoints(t *testing.T) {
	c := newTestRouter(t, fakePinger{})

	res := c.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, res.Code)

	res = c.do(http.MethodGet, "/api/ping", "", nil)
	assert.JSONEq(t, `{"message":"pong"}`, res.Body.String())

	res = c.do(http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `"database":"connected"`)
}

func TestHealthReportsDatabaseDown(t *testing.T) {
	c := newTestRouter(t, fakePinger{err: errors.New("refused")})

	res := c.do(http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, res.Code)
	assert.Contains(t, res.Body.String(), `"status":"unhealthy"`)
}

func TestMutatingRequestWithoutCSRFTokenIsRejected(t *testing.T) {
	c := newTestRouter(t, nil)

	res := c.do(http.MethodPost, "/api/auth/login", `{"email":"uma@test.local","password":"uatpass1"}`, nil)
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Contains(t, res.Body.String(), "CSRF")
}

func TestUnknownPathIsNotFound(t *testing.T) {
	c := newTestRouter(t, nil)

	res := c.do(http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func csrfToken(t *testing.T, c *client) string {
	t.Helper()
	res := c.do(http.MethodGet, "/api/session", "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	var body struct {
		CSRFToken string `json:"csrfToken"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	require.NotEmpty(t, body.CSRFToken)
	return body.CSRFToken
}

func accessFor(t *testing.T, c *client, path string) rbac.Decision {
	t.Helper()
	res := c.do(http.MethodGet, "/api/access?path="+path, "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	var d rbac.Decision
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &d))
	return d
}

func TestSignedInSessionIsGuardedByRole(t *testing.T) {
	c := newTestRouter(t, nil)

	d := accessFor(t, c, "/daily-tracker")
	assert.False(t, d.Allowed)
	assert.Equal(t, rbac.ReasonNotSignedIn, d.Reason)

	token := csrfToken(t, c)
	res := c.do(http.MethodPost, "/api/auth/login", `{"email":"uma@test.local","password":"uatpass1"}`,
		map[string]string{shared.CSRFHeader: token, "Content-Type": "application/json"})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	d = accessFor(t, c, "/daily-tracker")
	assert.True(t, d.Allowed)
	assert.Equal(t, "UAT Support", d.Role)

	d = accessFor(t, c, "/shift-handover")
	assert.False(t, d.Allowed)
	assert.Equal(t, rbac.ReasonMissingPerm, d.Reason)
	assert.Equal(t, rbac.PermShiftHandover, d.Required)

	d = accessFor(t, c, "/register")
	assert.True(t, d.Allowed)

	// The old token was rotated at sign-in.
	res = c.do(http.MethodPost, "/api/auth/logout", "", map[string]string{shared.CSRFHeader: token})
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = c.do(http.MethodPost, "/api/auth/logout", "", map[string]string{shared.CSRFHeader: csrfToken(t, c)})
	require.Equal(t, http.StatusOK, res.Code)

	d = accessFor(t, c, "/dashboard")
	assert.False(t, d.Allowed)

	mres := httptest.NewRecorder()
	c.metrics.Handler().ServeHTTP(mres, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, mres.Body.String(), `access_decisions_total{permission="shift-handover",result="denied"} 1`)
}

func TestCorruptPersistedIdentityFallsBackToAnonymous(t *testing.T) {
	c := newTestRouter(t, nil)
	csrfToken(t, c)
	ck, ok := c.cookies["tracker_session"]
	require.True(t, ok)

	require.NoError(t, c.store.Save(context.Background(), rbac.IdentityKey(ck.Value), "{not json"))

	res := c.do(http.MethodGet, "/api/session", "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `"authenticated":false`)

	d := accessFor(t, c, "/dashboard")
	assert.False(t, d.Allowed)
	assert.Equal(t, rbac.ReasonNotSignedIn, d.Reason)
}

func TestPersistedIdentitySurvivesAcrossRequests(t *testing.T) {
	c := newTestRouter(t, nil)
	csrfToken(t, c)
	ck := c.cookies["tracker_session"]
	require.NotNil(t, ck)

	c.accounts.acct.Role = rbac.RoleAdmin
	require.NoError(t, c.store.Save(context.Background(), rbac.IdentityKey(ck.Value),
		`{"userId":"11","name":"Uma Tester","email":"uma@test.local","role":"admin"}`))

	for _, path := range []string{"/dashboard", "/daily-tracker", "/shift-handover", "/all-users-data", "/others"} {
		d := accessFor(t, c, path)
		assert.True(t, d.Allowed, path)
		assert.Equal(t, "Admin", d.Role)
	}
	d := accessFor(t, c, "/not-a-page")
	assert.False(t, d.Allowed)
	assert.Equal(t, rbac.ReasonUnknownRoute, d.Reason)
}

func signInAsUma(t *testing.T, c *client) {
	t.Helper()
	res := c.do(http.MethodPost, "/api/auth/login", `{"email":"uma@test.local","password":"uatpass1"}`,
		map[string]string{shared.CSRFHeader: csrfToken(t, c), "Content-Type": "application/json"})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
}

func TestRoleChangeReachesLiveSession(t *testing.T) {
	c := newTestRouter(t, nil)
	c.accounts.acct.Role = rbac.RoleAdmin
	signInAsUma(t, c)

	d := accessFor(t, c, "/others")
	require.True(t, d.Allowed)
	assert.Equal(t, "Admin", d.Role)

	c.accounts.acct.Role = rbac.RoleDeveloper

	d = accessFor(t, c, "/others")
	assert.False(t, d.Allowed)
	assert.Equal(t, "Developer", d.Role)
	assert.Equal(t, rbac.ReasonMissingPerm, d.Reason)

	d = accessFor(t, c, "/daily-tracker")
	assert.True(t, d.Allowed)

	raw, ok, err := c.store.Load(context.Background(), rbac.IdentityKey(c.cookies["tracker_session"].Value))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, raw, `"role":"developer"`)
}

func TestDeletedUserSessionIsSignedOut(t *testing.T) {
	c := newTestRouter(t, nil)
	signInAsUma(t, c)
	require.True(t, accessFor(t, c, "/dashboard").Allowed)

	c.accounts.deleted = true

	d := accessFor(t, c, "/dashboard")
	assert.False(t, d.Allowed)
	assert.Equal(t, rbac.ReasonNotSignedIn, d.Reason)
}

func TestSignInIssuesNewSessionID(t *testing.T) {
	c := newTestRouter(t, nil)
	csrfToken(t, c)
	preLogin := c.cookies["tracker_session"].Value

	signInAsUma(t, c)
	assert.NotEqual(t, preLogin, c.cookies["tracker_session"].Value)

	c.cookies["tracker_session"] = &http.Cookie{Name: "tracker_session", Value: preLogin}
	d := accessFor(t, c, "/dashboard")
	assert.False(t, d.Allowed)
	assert.Equal(t, rbac.ReasonNotSignedIn, d.Reason)
}
